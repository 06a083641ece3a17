package importers

import (
	"errors"
	"io"
	"strings"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
)

// ErrHeaderOnly is the message used when a CSV file has no data rows.
const ErrHeaderOnly = "File must contain at least a header and one data row"

// rowGetter returns the trimmed value of a column by lower-cased header name.
type rowGetter func(header string) string

// columnMapping turns CSV rows of one dialect into user books.
type columnMapping struct {
	name     string
	required []string
	convert  func(line int, get rowGetter) (*canonical.UserBook, *errs.Error)
}

type csvDecoder struct {
	tok     *Tokenizer
	mapping columnMapping
	header  map[string]int
	rows    int
}

func newCSVDecoder(r io.Reader, mapping columnMapping) (*csvDecoder, error) {
	d := &csvDecoder{tok: NewTokenizer(r), mapping: mapping}

	header, _, err := d.tok.ReadRecord()
	if errors.Is(err, io.EOF) {
		return nil, errs.New(errs.KindParse, ErrHeaderOnly)
	}
	if err != nil {
		return nil, err
	}

	d.header = make(map[string]int, len(header))
	for i, h := range header {
		d.header[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, h := range mapping.required {
		if _, ok := d.header[h]; !ok {
			return nil, errs.New(errs.KindParse, "missing required column %q in %s header", h, mapping.name)
		}
	}
	return d, nil
}

func (d *csvDecoder) Next() (Record, error) {
	fields, line, err := d.tok.ReadRecord()
	if errors.Is(err, io.EOF) {
		if d.rows == 0 {
			return Record{}, errs.New(errs.KindParse, ErrHeaderOnly)
		}
		return Record{}, io.EOF
	}
	if err != nil {
		return Record{}, err
	}
	d.rows++

	get := func(h string) string {
		if idx, ok := d.header[h]; ok && idx < len(fields) {
			return strings.TrimSpace(fields[idx])
		}
		return ""
	}

	rec := Record{Type: canonical.RecordUserBook, Line: line, Index: d.rows}
	ub, rowErr := d.mapping.convert(line, get)
	if rowErr != nil {
		return rec, rowErr
	}
	ub.Line = line
	rec.UserBook = ub
	return rec, nil
}

var genericMapping = columnMapping{
	name:     "CSV",
	required: []string{"title"},
	convert:  convertGenericRow,
}

func convertGenericRow(line int, get rowGetter) (*canonical.UserBook, *errs.Error) {
	title := get("title")
	if title == "" {
		return nil, fieldError(line, "title", "", "fill in the Title column", "title is required")
	}

	status, err := canonical.ParseStatus(get("status"))
	if err != nil {
		return nil, fieldError(line, "status", get("status"),
			"use one of want_to_read, reading, completed, paused, abandoned, reference", "%v", err)
	}

	ub := &canonical.UserBook{
		Book: canonical.Book{
			Title:      title,
			Authors:    splitList(get("authors"), ";"),
			ISBN10:     normalizeISBN(get("isbn10")),
			ISBN13:     normalizeISBN(get("isbn13")),
			Publisher:  get("publisher"),
			Categories: splitList(get("categories"), ";"),
			Language:   get("language"),
		},
		Status:     status,
		Review:     get("review"),
		Notes:      get("notes"),
		Tags:       splitList(get("tags"), ";"),
		IsFavorite: parseBool(get("favorite")),
	}
	if len(ub.Book.Authors) == 0 {
		ub.Book.Authors = splitList(get("author"), ";")
	}

	var ferr *errs.Error
	if ub.CurrentPage, ferr = intColumn(line, "currentPage", get("currentpage")); ferr != nil {
		return nil, ferr
	}
	if ub.Book.PageCount, ferr = intColumn(line, "pageCount", get("pagecount")); ferr != nil {
		return nil, ferr
	}
	if v := get("rating"); v != "" {
		n, ferr := intColumn(line, "rating", v)
		if ferr != nil {
			return nil, ferr
		}
		ub.Rating = &n
	}
	if ub.AcquiredDate, ferr = dateColumn(line, "acquiredDate", get("acquireddate")); ferr != nil {
		return nil, ferr
	}
	if ub.StartDate, ferr = dateColumn(line, "startDate", get("startdate")); ferr != nil {
		return nil, ferr
	}
	if ub.FinishDate, ferr = dateColumn(line, "finishDate", get("finishdate")); ferr != nil {
		return nil, ferr
	}

	ub.BookID = ub.Book.Key()
	return ub, nil
}
