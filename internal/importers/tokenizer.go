package importers

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/mrlokans/bookshelf/internal/errs"
)

const (
	readBufferSize = 64 * 1024
	// MaxRecordBytes bounds a single CSV record so a missing closing quote
	// cannot pull the rest of a large file into memory.
	MaxRecordBytes = 1 << 20
)

type tokenState int

const (
	stateFieldStart tokenState = iota
	stateUnquoted
	stateQuoted
	stateQuoteInQuoted
)

// Tokenizer splits a CSV stream into records.
//
// Quoting rules: a quote at the start of a field opens a quoted field, a doubled
// quote inside a quoted field is a literal quote, and commas or newlines inside
// quotes belong to the field. A stray quote inside an unquoted field is kept as a
// literal character.
type Tokenizer struct {
	r         *bufio.Reader
	line      int
	sawAny    bool
	recordLen int
}

// NewTokenizer wraps r in a bounded buffered reader.
func NewTokenizer(r io.Reader) *Tokenizer {
	return &Tokenizer{r: bufio.NewReaderSize(r, readBufferSize), line: 1}
}

// ReadRecord returns the next record and the 1-based line it starts on.
// Blank lines are skipped. io.EOF is returned once the stream is exhausted.
func (t *Tokenizer) ReadRecord() ([]string, int, error) {
	for {
		fields, start, blank, err := t.readOne()
		if err != nil {
			return nil, start, err
		}
		if blank {
			continue
		}
		return fields, start, nil
	}
}

func (t *Tokenizer) readOne() (fields []string, start int, blank bool, err error) {
	start = t.line
	state := stateFieldStart
	var field strings.Builder
	content := false
	t.recordLen = 0

	emit := func() {
		fields = append(fields, field.String())
		field.Reset()
	}

	for {
		r, size, rerr := t.r.ReadRune()
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				if e, ok := errs.As(rerr); ok {
					return nil, start, false, e
				}
				return nil, start, false, errs.Wrap(errs.KindParse, rerr, "read CSV stream")
			}
			switch state {
			case stateQuoted:
				return nil, start, false, errs.AtLine(errs.KindParse, start, "unterminated quoted field")
			case stateFieldStart:
				if !content && len(fields) == 0 {
					return nil, start, false, io.EOF
				}
			}
			emit()
			return fields, start, false, nil
		}

		if !t.sawAny {
			t.sawAny = true
			if r == '\uFEFF' {
				continue
			}
		}

		t.recordLen += size
		if t.recordLen > MaxRecordBytes {
			return nil, start, false, errs.AtLine(errs.KindParse, start, "record exceeds %d bytes", MaxRecordBytes)
		}

		switch state {
		case stateFieldStart:
			switch r {
			case '"':
				content = true
				state = stateQuoted
			case ',':
				content = true
				emit()
			case '\r':
			case '\n':
				t.line++
				if !content && len(fields) == 0 {
					return nil, start, true, nil
				}
				emit()
				return fields, start, false, nil
			default:
				content = true
				field.WriteRune(r)
				state = stateUnquoted
			}

		case stateUnquoted:
			switch r {
			case ',':
				emit()
				state = stateFieldStart
			case '\r':
			case '\n':
				t.line++
				emit()
				return fields, start, false, nil
			default:
				field.WriteRune(r)
			}

		case stateQuoted:
			switch r {
			case '"':
				state = stateQuoteInQuoted
			case '\n':
				t.line++
				field.WriteRune(r)
			default:
				field.WriteRune(r)
			}

		case stateQuoteInQuoted:
			switch r {
			case '"':
				field.WriteRune('"')
				state = stateQuoted
			case ',':
				emit()
				state = stateFieldStart
			case '\r':
			case '\n':
				t.line++
				emit()
				return fields, start, false, nil
			default:
				field.WriteRune(r)
				state = stateUnquoted
			}
		}
	}
}

// SplitLine tokenizes a single CSV line. It is a convenience for callers
// holding one line in memory.
func SplitLine(line string) ([]string, error) {
	fields, _, err := NewTokenizer(strings.NewReader(line)).ReadRecord()
	if errors.Is(err, io.EOF) {
		return []string{}, nil
	}
	return fields, err
}
