package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
	"github.com/mrlokans/bookshelf/internal/importers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func validUserBook() canonical.UserBook {
	return canonical.UserBook{
		UserID: "user-1",
		Book: canonical.Book{
			Title:        "Dune",
			Authors:      []string{"Frank Herbert"},
			ISBN10:       "0441013597",
			ISBN13:       "978-0441013593",
			PageCount:    412,
			Language:     "en",
			ThumbnailURL: "https://covers.example.com/dune.jpg",
		},
		Status: canonical.StatusReading,
		Rating: intPtr(4),
		Line:   7,
	}
}

func fields(errors []canonical.ImportError) []string {
	var out []string
	for _, e := range errors {
		out = append(out, e.Field)
	}
	return out
}

func TestValidateUserBook_Valid(t *testing.T) {
	assert.Empty(t, New().ValidateUserBook(validUserBook()))
}

func TestValidateUserBook_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(ub *canonical.UserBook)
		field  string
	}{
		{"missing title", func(ub *canonical.UserBook) { ub.Book.Title = "" }, "book.title"},
		{"long title", func(ub *canonical.UserBook) { ub.Book.Title = strings.Repeat("a", 501) }, "book.title"},
		{"long description", func(ub *canonical.UserBook) { ub.Book.Description = strings.Repeat("a", 10001) }, "book.description"},
		{"long author", func(ub *canonical.UserBook) { ub.Book.Authors = []string{strings.Repeat("a", 501)} }, "book.authors[0]"},
		{"too many authors", func(ub *canonical.UserBook) { ub.Book.Authors = make([]string, 11) }, "book.authors"},
		{"too many categories", func(ub *canonical.UserBook) { ub.Book.Categories = make([]string, 21) }, "book.categories"},
		{"page count too large", func(ub *canonical.UserBook) { ub.Book.PageCount = 10001 }, "book.pageCount"},
		{"average rating above 5", func(ub *canonical.UserBook) { ub.Book.AverageRating = floatPtr(5.5) }, "book.averageRating"},
		{"negative ratings count", func(ub *canonical.UserBook) { ub.Book.RatingsCount = intPtr(-1) }, "book.ratingsCount"},
		{"bad isbn10", func(ub *canonical.UserBook) { ub.Book.ISBN10 = "12345" }, "book.isbn10"},
		{"bad isbn13", func(ub *canonical.UserBook) { ub.Book.ISBN13 = "978044101359X" }, "book.isbn13"},
		{"relative thumbnail", func(ub *canonical.UserBook) { ub.Book.ThumbnailURL = "/covers/dune.jpg" }, "book.thumbnailUrl"},
		{"ftp info link", func(ub *canonical.UserBook) { ub.Book.InfoLink = "ftp://example.com/x" }, "book.infoLink"},
		{"short language", func(ub *canonical.UserBook) { ub.Book.Language = "e" }, "book.language"},
		{"rating zero", func(ub *canonical.UserBook) { ub.Rating = intPtr(0) }, "rating"},
		{"rating six", func(ub *canonical.UserBook) { ub.Rating = intPtr(6) }, "rating"},
		{"missing user", func(ub *canonical.UserBook) { ub.UserID = "" }, "userId"},
		{"unknown status", func(ub *canonical.UserBook) { ub.Status = "finished" }, "status"},
		{"negative page", func(ub *canonical.UserBook) { ub.CurrentPage = -1 }, "currentPage"},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ub := validUserBook()
			tt.mutate(&ub)

			result := v.ValidateUserBook(ub)

			require.NotEmpty(t, result)
			assert.Contains(t, fields(result), tt.field)
			for _, e := range result {
				assert.Equal(t, 7, e.Line)
				assert.Equal(t, string(errs.KindValidation), e.Kind)
				assert.NotEmpty(t, e.Message)
			}
		})
	}
}

func TestValidateUserBook_ISBNWithXCheckDigit(t *testing.T) {
	ub := validUserBook()
	ub.Book.ISBN10 = "080442957X"

	assert.Empty(t, New().ValidateUserBook(ub))
}

func TestValidateUserBook_ReportsValueAndSuggestion(t *testing.T) {
	ub := validUserBook()
	ub.Book.ISBN13 = "12-34"

	result := New().ValidateUserBook(ub)

	require.Len(t, result, 1)
	assert.Equal(t, "12-34", result[0].Value)
	assert.NotEmpty(t, result[0].Suggestion)
}

func TestValidateReadingSession(t *testing.T) {
	v := New()
	s := canonical.ReadingSession{UserBookID: "ub-1", StartPage: 10, EndPage: 20, SessionDate: time.Now()}
	assert.Empty(t, v.ValidateReadingSession(s))

	s.EndPage = 5
	result := v.ValidateReadingSession(s)
	require.Len(t, result, 1)
	assert.Equal(t, "endPage", result[0].Field)
	assert.Contains(t, result[0].Message, "startPage")
}

func TestValidateWishlistItem(t *testing.T) {
	v := New()
	wi := canonical.WishlistItem{UserID: "user-1", Book: canonical.Book{Title: "Piranesi"}, Priority: canonical.PriorityUrgent}
	assert.Empty(t, v.ValidateWishlistItem(wi))

	wi.PriceAlert = floatPtr(-1)
	wi.Priority = "whenever"
	assert.ElementsMatch(t, []string{"priceAlert", "priority"}, fields(v.ValidateWishlistItem(wi)))
}

func TestValidateCollection(t *testing.T) {
	v := New()
	c := canonical.Collection{UserID: "user-1", Name: "Favourites", Items: []canonical.CollectionItem{{UserBookID: "ub-1"}}}
	assert.Empty(t, v.ValidateCollection(c))

	c.Name = ""
	c.Items = append(c.Items, canonical.CollectionItem{})
	assert.ElementsMatch(t, []string{"name", "items[1].userBookId"}, fields(v.ValidateCollection(c)))
}

func TestValidate_TagsRecordPosition(t *testing.T) {
	ub := validUserBook()
	ub.Book.Title = ""
	ub.Line = 0

	result := New().Validate(importers.Record{Type: canonical.RecordUserBook, Line: 3, Index: 2, UserBook: &ub})

	require.Len(t, result, 1)
	assert.Equal(t, canonical.RecordUserBook, result[0].RecordType)
	assert.Equal(t, 2, result[0].Index)
	assert.Equal(t, 3, result[0].Line)
}
