package exporters

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mrlokans/bookshelf/internal/canonical"
)

// CSVColumns is the fixed column order of the generic CSV format. New columns
// may only ever be appended.
var CSVColumns = []string{
	"Title", "Authors", "Status", "CurrentPage", "Rating", "Review", "Notes", "Tags",
	"Favorite", "ISBN10", "ISBN13", "Publisher", "PageCount", "Categories", "Language",
	"AcquiredDate", "StartDate", "FinishDate",
}

// listSeparator joins multi-valued columns.
const listSeparator = ";"

const dateLayout = "2006-01-02"

// CSVSerializer writes the flat user book table. Other record types have no
// CSV representation and are ignored.
type CSVSerializer struct{}

func (CSVSerializer) Serialize(w io.Writer, ds *canonical.Dataset) error {
	bw := bufio.NewWriter(w)
	if err := writeRow(bw, CSVColumns); err != nil {
		return err
	}
	for _, ub := range ds.UserBooks {
		if err := writeRow(bw, csvRow(ub)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (CSVSerializer) ContentType() string { return "text/csv; charset=utf-8" }

func (CSVSerializer) Extension() string { return "csv" }

func csvRow(ub canonical.UserBook) []string {
	return []string{
		ub.Book.Title,
		strings.Join(ub.Book.Authors, listSeparator),
		string(ub.Status),
		strconv.Itoa(ub.CurrentPage),
		optionalInt(ub.Rating),
		ub.Review,
		ub.Notes,
		strings.Join(ub.Tags, listSeparator),
		strconv.FormatBool(ub.IsFavorite),
		ub.Book.ISBN10,
		ub.Book.ISBN13,
		ub.Book.Publisher,
		positiveInt(ub.Book.PageCount),
		strings.Join(ub.Book.Categories, listSeparator),
		ub.Book.Language,
		formatDate(ub.AcquiredDate, dateLayout),
		formatDate(ub.StartDate, dateLayout),
		formatDate(ub.FinishDate, dateLayout),
	}
}

func writeRow(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(EscapeField(f)); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}

// EscapeField quotes a field only when it contains a comma, a quote, CR or LF,
// doubling any quotes inside.
func EscapeField(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func positiveInt(v int) string {
	if v <= 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func formatDate(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}
