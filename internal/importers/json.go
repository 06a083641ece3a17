package importers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
)

// jsonDecoder walks the top-level export object and decodes array elements one
// at a time. The metadata block is read and discarded: it is always recomputed.
type jsonDecoder struct {
	dec     *json.Decoder
	started bool
	current canonical.RecordType
	index   map[canonical.RecordType]int
}

func newJSONDecoder(r io.Reader) *jsonDecoder {
	return &jsonDecoder{
		dec:   json.NewDecoder(r),
		index: make(map[canonical.RecordType]int, len(canonical.AllRecordTypes)),
	}
}

func (d *jsonDecoder) Next() (Record, error) {
	if !d.started {
		d.started = true
		if err := d.expectDelim('{'); err != nil {
			if errors.Is(err, io.EOF) {
				return Record{}, errs.New(errs.KindParse, "empty JSON document")
			}
			return Record{}, err
		}
	}

	for {
		if d.current != "" {
			if d.dec.More() {
				return d.decodeElement(d.current)
			}
			if err := d.expectDelim(']'); err != nil {
				return Record{}, err
			}
			d.current = ""
			continue
		}

		if !d.dec.More() {
			if err := d.expectDelim('}'); err != nil {
				return Record{}, err
			}
			return Record{}, io.EOF
		}

		tok, err := d.dec.Token()
		if err != nil {
			return Record{}, syntaxError(err)
		}
		key, ok := tok.(string)
		if !ok {
			return Record{}, errs.New(errs.KindParse, "expected object key, got %v", tok)
		}

		rt, known := jsonKeys[key]
		if !known {
			var skip json.RawMessage
			if err := d.dec.Decode(&skip); err != nil {
				return Record{}, syntaxError(err)
			}
			continue
		}

		tok, err = d.dec.Token()
		if err != nil {
			return Record{}, syntaxError(err)
		}
		if tok == nil {
			continue
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			return Record{}, errs.New(errs.KindParse, "%q must be an array", key)
		}
		d.current = rt
	}
}

var jsonKeys = map[string]canonical.RecordType{
	string(canonical.RecordUserBook):       canonical.RecordUserBook,
	string(canonical.RecordWishlistItem):   canonical.RecordWishlistItem,
	string(canonical.RecordCollection):     canonical.RecordCollection,
	string(canonical.RecordReadingSession): canonical.RecordReadingSession,
}

func (d *jsonDecoder) decodeElement(rt canonical.RecordType) (Record, error) {
	d.index[rt]++
	rec := Record{Type: rt, Index: d.index[rt]}

	var err error
	switch rt {
	case canonical.RecordUserBook:
		var ub canonical.UserBook
		if err = d.dec.Decode(&ub); err == nil {
			if st, perr := canonical.ParseStatus(string(ub.Status)); perr == nil {
				ub.Status = st
			}
			ub.Book.Authors = canonical.NormalizeList(ub.Book.Authors)
			ub.Book.Categories = canonical.NormalizeList(ub.Book.Categories)
			ub.Tags = canonical.NormalizeList(ub.Tags)
			if ub.BookID == "" {
				ub.BookID = ub.Book.Key()
			}
			rec.UserBook = &ub
		}
	case canonical.RecordWishlistItem:
		var wi canonical.WishlistItem
		if err = d.dec.Decode(&wi); err == nil {
			if p, perr := canonical.ParsePriority(string(wi.Priority)); perr == nil {
				wi.Priority = p
			}
			wi.Book.Authors = canonical.NormalizeList(wi.Book.Authors)
			wi.Book.Categories = canonical.NormalizeList(wi.Book.Categories)
			if wi.BookID == "" {
				wi.BookID = wi.Book.Key()
			}
			rec.WishlistItem = &wi
		}
	case canonical.RecordCollection:
		var c canonical.Collection
		if err = d.dec.Decode(&c); err == nil {
			c.Resequence()
			rec.Collection = &c
		}
	case canonical.RecordReadingSession:
		var s canonical.ReadingSession
		if err = d.dec.Decode(&s); err == nil {
			s.PagesRead = canonical.ComputePagesRead(s.StartPage, s.EndPage)
			rec.ReadingSession = &s
		}
	}
	if err == nil {
		return rec, nil
	}
	if e, ok := errs.As(err); ok {
		// the reader failed, e.g. LimitReader hit the size cap
		return rec, e
	}

	// A type mismatch leaves the decoder positioned after the value, so only
	// this record is lost.
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		e := errs.New(errs.KindValidation, "%s has the wrong type: expected %s", typeErr.Field, typeErr.Type)
		e.Field = typeErr.Field
		e.Details = FieldDetail{Value: typeErr.Value, Suggestion: fmt.Sprintf("provide a %s", typeErr.Type)}
		return rec, e
	}
	if isSyntaxOrIO(err) {
		return rec, syntaxError(err)
	}
	// Decode consumed the whole value, so anything else (bad dates, enum
	// text) is local to this record.
	return rec, errs.New(errs.KindValidation, "%v", err)
}

func isSyntaxOrIO(err error) bool {
	var se *json.SyntaxError
	return errors.As(err, &se) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (d *jsonDecoder) expectDelim(want json.Delim) error {
	tok, err := d.dec.Token()
	if err != nil {
		return syntaxError(err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != want {
		return errs.New(errs.KindParse, "expected %q, got %v", want, tok)
	}
	return nil
}

func syntaxError(err error) error {
	if e, ok := errs.As(err); ok {
		return e
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errs.Wrap(errs.KindParse, err, "truncated JSON document")
	}
	var se *json.SyntaxError
	if errors.As(err, &se) {
		e := errs.Wrap(errs.KindParse, err, "malformed JSON")
		e.Details = map[string]int64{"offset": se.Offset}
		return e
	}
	return errs.Wrap(errs.KindParse, err, "malformed JSON")
}
