package exporters

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/mrlokans/bookshelf/internal/canonical"
)

// GoodreadsColumns mirrors the Goodreads library export header.
var GoodreadsColumns = []string{
	"Book Id", "Title", "Author", "Additional Authors", "ISBN", "ISBN13", "My Rating",
	"Average Rating", "Publisher", "Number of Pages", "Year Published", "Date Read",
	"Date Added", "Bookshelves", "Exclusive Shelf", "My Review", "Private Notes", "Read Count",
}

const (
	goodreadsDateLayout = "2006/01/02"
	goodreadsIDPrefix   = "goodreads:"
	wishlistShelf       = "wishlist"
)

// GoodreadsSerializer writes a Goodreads-compatible library file. Wishlist
// items become to-read rows and collection names are added as shelves of the
// books they contain. Reading sessions have no Goodreads equivalent.
type GoodreadsSerializer struct{}

func (GoodreadsSerializer) Serialize(w io.Writer, ds *canonical.Dataset) error {
	shelves := collectionShelves(ds.Collections)

	bw := bufio.NewWriter(w)
	if err := writeRow(bw, GoodreadsColumns); err != nil {
		return err
	}
	for _, ub := range ds.UserBooks {
		tags := append(append([]string(nil), ub.Tags...), shelves[ub.ID]...)
		if err := writeRow(bw, goodreadsUserBookRow(ub, tags)); err != nil {
			return err
		}
	}
	for _, wi := range ds.WishlistItems {
		if err := writeRow(bw, goodreadsWishlistRow(wi)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (GoodreadsSerializer) ContentType() string { return "text/csv; charset=utf-8" }

func (GoodreadsSerializer) Extension() string { return "csv" }

func goodreadsUserBookRow(ub canonical.UserBook, shelves []string) []string {
	rating := "0"
	if ub.Rating != nil {
		rating = strconv.Itoa(*ub.Rating)
	}
	readCount := "0"
	if ub.Status == canonical.StatusCompleted {
		readCount = "1"
	}
	row := goodreadsBookColumns(ub.Book)
	row[6] = rating
	row[11] = formatDate(ub.FinishDate, goodreadsDateLayout)
	row[12] = formatDate(ub.AcquiredDate, goodreadsDateLayout)
	row[13] = strings.Join(shelves, ", ")
	row[14] = exclusiveShelf(ub.Status)
	row[15] = ub.Review
	row[16] = ub.Notes
	row[17] = readCount
	return row
}

func goodreadsWishlistRow(wi canonical.WishlistItem) []string {
	row := goodreadsBookColumns(wi.Book)
	row[6] = "0"
	row[13] = wishlistShelf
	row[14] = "to-read"
	row[16] = wi.Reason
	row[17] = "0"
	return row
}

func goodreadsBookColumns(b canonical.Book) []string {
	row := make([]string, len(GoodreadsColumns))
	row[0] = strings.TrimPrefix(b.ID, goodreadsIDPrefix)
	if !strings.HasPrefix(b.ID, goodreadsIDPrefix) {
		row[0] = ""
	}
	row[1] = b.Title
	if len(b.Authors) > 0 {
		row[2] = b.Authors[0]
		row[3] = strings.Join(b.Authors[1:], ", ")
	}
	row[4] = excelText(b.ISBN10)
	row[5] = excelText(b.ISBN13)
	if b.AverageRating != nil {
		row[7] = strconv.FormatFloat(*b.AverageRating, 'f', 2, 64)
	}
	row[8] = b.Publisher
	row[9] = positiveInt(b.PageCount)
	row[10] = b.PublishedDate
	return row
}

// excelText wraps a value the way Goodreads does so spreadsheets keep leading
// zeros.
func excelText(s string) string {
	return `="` + s + `"`
}

func exclusiveShelf(s canonical.Status) string {
	switch s {
	case canonical.StatusCompleted:
		return "read"
	case canonical.StatusWantToRead:
		return "to-read"
	}
	return "currently-reading"
}

// collectionShelves maps user book id to the sorted names of the collections
// containing it.
func collectionShelves(collections []canonical.Collection) map[string][]string {
	out := make(map[string][]string)
	for _, c := range collections {
		for _, it := range c.Items {
			out[it.UserBookID] = append(out[it.UserBookID], c.Name)
		}
	}
	for id := range out {
		sort.Strings(out[id])
	}
	return out
}
