// Package exporters serializes canonical datasets into the interchange formats.
//
// Serializers write to an io.Writer. Build is the usual entry point: it
// selects the requested record types, applies the session date range,
// recomputes the metadata and renders the payload.
package exporters

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
)

// Serializer renders a dataset in one format.
type Serializer interface {
	Serialize(w io.Writer, ds *canonical.Dataset) error
	ContentType() string
	Extension() string
}

// Options select what goes into an export.
type Options struct {
	Format    canonical.Format
	DataTypes []canonical.RecordType
	// DateRange restricts reading sessions by session date, inclusive.
	DateRange *canonical.DateRange
}

// Payload is a rendered export.
type Payload struct {
	Body        []byte
	ContentType string
	Filename    string
	Metadata    canonical.ExportMetadata
}

// SerializerFor returns the serializer for format.
func SerializerFor(format canonical.Format) (Serializer, error) {
	switch format {
	case canonical.FormatJSON, "":
		return JSONSerializer{Indent: "  "}, nil
	case canonical.FormatCSV:
		return CSVSerializer{}, nil
	case canonical.FormatGoodreads:
		return GoodreadsSerializer{}, nil
	}
	return nil, errs.New(errs.KindFileFormat, "unsupported export format %q", format)
}

// Build renders the records of ds selected by opts. Metadata is always
// recomputed from what is actually included.
func Build(ds *canonical.Dataset, userID string, opts Options, now time.Time) (*Payload, error) {
	ser, err := SerializerFor(opts.Format)
	if err != nil {
		return nil, err
	}

	selected := Select(ds, opts)
	selected.Metadata = Metadata(selected, userID, opts, now)

	var buf bytes.Buffer
	if err := ser.Serialize(&buf, selected); err != nil {
		return nil, fmt.Errorf("serialize %s export: %w", opts.Format, err)
	}

	return &Payload{
		Body:        buf.Bytes(),
		ContentType: ser.ContentType(),
		Filename:    Filename(now, ser.Extension()),
		Metadata:    selected.Metadata,
	}, nil
}

// Select returns a dataset holding only the requested record types. CSV only
// carries user books whatever was asked for. An empty DataTypes selects all.
func Select(ds *canonical.Dataset, opts Options) *canonical.Dataset {
	want := includedTypes(opts)
	out := &canonical.Dataset{}
	for _, t := range want {
		switch t {
		case canonical.RecordUserBook:
			out.UserBooks = ds.UserBooks
		case canonical.RecordWishlistItem:
			out.WishlistItems = ds.WishlistItems
		case canonical.RecordCollection:
			out.Collections = ds.Collections
		case canonical.RecordReadingSession:
			for _, s := range ds.ReadingSessions {
				if opts.DateRange == nil || opts.DateRange.Contains(s.SessionDate) {
					out.ReadingSessions = append(out.ReadingSessions, s)
				}
			}
		}
	}
	return out
}

// Metadata computes the export header for an already selected dataset.
func Metadata(ds *canonical.Dataset, userID string, opts Options, now time.Time) canonical.ExportMetadata {
	return canonical.ExportMetadata{
		FormatVersion: canonical.FormatVersion,
		ExportedAt:    now.UTC(),
		UserID:        userID,
		DataTypes:     includedTypes(opts),
		TotalRecords:  ds.Total(),
		DateRange:     opts.DateRange,
	}
}

// Filename returns export_<YYYY-MM-DD>.<ext>.
func Filename(now time.Time, ext string) string {
	return fmt.Sprintf("export_%s.%s", now.UTC().Format("2006-01-02"), ext)
}

func includedTypes(opts Options) []canonical.RecordType {
	if opts.Format == canonical.FormatCSV {
		return []canonical.RecordType{canonical.RecordUserBook}
	}
	if len(opts.DataTypes) == 0 {
		return canonical.AllRecordTypes
	}
	// keep canonical order and drop repeats
	var out []canonical.RecordType
	for _, t := range canonical.AllRecordTypes {
		for _, want := range opts.DataTypes {
			if want == t {
				out = append(out, t)
				break
			}
		}
	}
	return out
}
