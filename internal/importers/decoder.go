package importers

import (
	"errors"
	"io"
	"log"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
)

// Record is one decoded canonical record. Exactly one of the pointers is set.
type Record struct {
	Type  canonical.RecordType
	Line  int // 1-based source line, 0 for JSON
	Index int // 1-based position among records of the same type

	UserBook       *canonical.UserBook
	WishlistItem   *canonical.WishlistItem
	Collection     *canonical.Collection
	ReadingSession *canonical.ReadingSession
}

// Decoder yields canonical records one at a time so large files never have to
// be held in memory by the codec.
//
// Next returns io.EOF at the end of the stream. An error of kind
// errs.KindValidation concerns only the returned record: the caller may keep
// reading. Any other error is fatal for the stream.
type Decoder interface {
	Next() (Record, error)
}

// NewDecoder returns the decoder for format.
func NewDecoder(r io.Reader, format canonical.Format) (Decoder, error) {
	switch format {
	case canonical.FormatJSON:
		return newJSONDecoder(r), nil
	case canonical.FormatCSV:
		return newCSVDecoder(r, genericMapping)
	case canonical.FormatGoodreads:
		return newCSVDecoder(r, goodreadsMapping)
	}
	return nil, errs.New(errs.KindFileFormat, "unsupported format %q", format)
}

// Parse decodes a whole stream into a dataset. Record-level problems are
// returned as ImportErrors next to the records that parsed cleanly; a fatal
// problem aborts with an error and no dataset.
func Parse(r io.Reader, format canonical.Format) (*canonical.Dataset, []canonical.ImportError, error) {
	dec, err := NewDecoder(r, format)
	if err != nil {
		return nil, nil, err
	}

	ds := &canonical.Dataset{}
	var rowErrors []canonical.ImportError
	for {
		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			e, ok := errs.As(err)
			if !ok || e.Kind != errs.KindValidation {
				return nil, nil, err
			}
			rowErrors = append(rowErrors, RowError(rec, e))
			continue
		}
		appendRecord(ds, rec)
	}

	log.Printf("[IMPORT] Parsed %d records (%d row errors) from %s input", ds.Total(), len(rowErrors), format)
	return ds, rowErrors, nil
}

// RowError converts a record-level error into an ImportError.
func RowError(rec Record, e *errs.Error) canonical.ImportError {
	line := rec.Line
	if e.Line > 0 {
		line = e.Line
	}
	ie := canonical.ImportError{
		Line:       line,
		RecordType: rec.Type,
		Index:      rec.Index,
		Field:      e.Field,
		Message:    e.Message,
		Kind:       string(e.Kind),
	}
	if d, ok := e.Details.(FieldDetail); ok {
		ie.Value = d.Value
		ie.Suggestion = d.Suggestion
	}
	return ie
}

// FieldDetail carries the offending value and a hint for fixing it.
type FieldDetail struct {
	Value      string
	Suggestion string
}

func fieldError(line int, field, value, suggestion, format string, args ...any) *errs.Error {
	e := errs.AtLine(errs.KindValidation, line, format, args...)
	e.Field = field
	e.Details = FieldDetail{Value: value, Suggestion: suggestion}
	return e
}

func appendRecord(ds *canonical.Dataset, rec Record) {
	switch rec.Type {
	case canonical.RecordUserBook:
		ds.UserBooks = append(ds.UserBooks, *rec.UserBook)
	case canonical.RecordWishlistItem:
		ds.WishlistItems = append(ds.WishlistItems, *rec.WishlistItem)
	case canonical.RecordCollection:
		ds.Collections = append(ds.Collections, *rec.Collection)
	case canonical.RecordReadingSession:
		ds.ReadingSessions = append(ds.ReadingSessions, *rec.ReadingSession)
	}
}
