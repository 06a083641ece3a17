package importers

import (
	"strconv"
	"strings"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
)

// Goodreads export columns that are mapped. Everything else is dropped.
const (
	grBookID            = "book id"
	grTitle             = "title"
	grAuthor            = "author"
	grAdditionalAuthors = "additional authors"
	grISBN              = "isbn"
	grISBN13            = "isbn13"
	grMyRating          = "my rating"
	grAverageRating     = "average rating"
	grPublisher         = "publisher"
	grPages             = "number of pages"
	grYearPublished     = "year published"
	grDateRead          = "date read"
	grDateAdded         = "date added"
	grBookshelves       = "bookshelves"
	grExclusiveShelf    = "exclusive shelf"
	grMyReview          = "my review"
	grPrivateNotes      = "private notes"
	grReadCount         = "read count"
)

var goodreadsMapping = columnMapping{
	name:     "Goodreads",
	required: []string{grTitle},
	convert:  convertGoodreadsRow,
}

func convertGoodreadsRow(line int, get rowGetter) (*canonical.UserBook, *errs.Error) {
	title := get(grTitle)
	if title == "" {
		return nil, fieldError(line, "title", "", "fill in the Title column", "title is required")
	}

	book := canonical.Book{
		Title:         title,
		ISBN10:        normalizeISBN(get(grISBN)),
		ISBN13:        normalizeISBN(get(grISBN13)),
		Publisher:     get(grPublisher),
		PublishedDate: get(grYearPublished),
	}
	if id := get(grBookID); id != "" {
		book.ID = "goodreads:" + id
	}
	if a := get(grAuthor); a != "" {
		book.Authors = append(book.Authors, a)
	}
	book.Authors = append(book.Authors, splitList(get(grAdditionalAuthors), ",")...)

	var ferr *errs.Error
	if book.PageCount, ferr = intColumn(line, "pageCount", get(grPages)); ferr != nil {
		return nil, ferr
	}
	if v := get(grAverageRating); v != "" {
		if avg, err := strconv.ParseFloat(v, 64); err == nil {
			book.AverageRating = &avg
		}
	}

	ub := &canonical.UserBook{
		Book:   book,
		Review: get(grMyReview),
		Notes:  get(grPrivateNotes),
		Tags:   splitList(get(grBookshelves), ","),
	}

	// Goodreads writes 0 for "not rated".
	if v := get(grMyRating); v != "" {
		rating, ferr := intColumn(line, "rating", v)
		if ferr != nil {
			return nil, ferr
		}
		if rating > 0 {
			ub.Rating = &rating
		}
	}

	readCount, ferr := intColumn(line, "readCount", get(grReadCount))
	if ferr != nil {
		return nil, ferr
	}
	ub.Status = goodreadsStatus(readCount, get(grExclusiveShelf))
	if ub.Status == canonical.StatusCompleted && book.PageCount > 0 {
		ub.CurrentPage = book.PageCount
	}

	if ub.FinishDate, ferr = dateColumn(line, "finishDate", get(grDateRead)); ferr != nil {
		return nil, ferr
	}
	if ub.AcquiredDate, ferr = dateColumn(line, "acquiredDate", get(grDateAdded)); ferr != nil {
		return nil, ferr
	}

	ub.BookID = ub.Book.Key()
	return ub, nil
}

// goodreadsStatus: any completed read wins, then the exclusive shelf. Custom
// shelves say nothing about the status.
func goodreadsStatus(readCount int, shelf string) canonical.Status {
	if readCount >= 1 {
		return canonical.StatusCompleted
	}
	switch strings.ToLower(shelf) {
	case "read":
		return canonical.StatusCompleted
	case "to-read":
		return canonical.StatusWantToRead
	case "currently-reading":
		return canonical.StatusReading
	}
	return ""
}
