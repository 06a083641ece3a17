// Package canonical holds the format-neutral records every parser produces and
// every serializer consumes.
package canonical

import (
	"strings"
	"time"
)

// FormatVersion is written into every export's metadata.
const FormatVersion = "1.0"

// Book is the catalogue entry a user record points at.
type Book struct {
	ID            string   `json:"id,omitempty"`
	ISBN10        string   `json:"isbn10,omitempty" validate:"omitempty,isbn10_pattern"`
	ISBN13        string   `json:"isbn13,omitempty" validate:"omitempty,isbn13_pattern"`
	Title         string   `json:"title" validate:"required,max=500"`
	Subtitle      string   `json:"subtitle,omitempty" validate:"max=500"`
	Authors       []string `json:"authors,omitempty" validate:"max=10,dive,max=500"`
	Publisher     string   `json:"publisher,omitempty" validate:"max=500"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Description   string   `json:"description,omitempty" validate:"max=10000"`
	PageCount     int      `json:"pageCount,omitempty" validate:"omitempty,min=1,max=10000"`
	Categories    []string `json:"categories,omitempty" validate:"max=20"`
	Language      string   `json:"language,omitempty" validate:"omitempty,min=2,max=10"`
	ThumbnailURL  string   `json:"thumbnailUrl,omitempty" validate:"omitempty,weblink"`
	PreviewLink   string   `json:"previewLink,omitempty" validate:"omitempty,weblink"`
	InfoLink      string   `json:"infoLink,omitempty" validate:"omitempty,weblink"`
	AverageRating *float64 `json:"averageRating,omitempty" validate:"omitempty,min=0,max=5"`
	RatingsCount  *int     `json:"ratingsCount,omitempty" validate:"omitempty,min=0"`
}

// Key returns the identity key of the book: provider id, then ISBN-13, then ISBN-10.
func (b Book) Key() string {
	switch {
	case b.ID != "":
		return b.ID
	case b.ISBN13 != "":
		return b.ISBN13
	default:
		return b.ISBN10
	}
}

// PrimaryAuthor returns the first listed author or "".
func (b Book) PrimaryAuthor() string {
	if len(b.Authors) == 0 {
		return ""
	}
	return b.Authors[0]
}

// UserBook is a book on one user's shelf.
type UserBook struct {
	ID           string     `json:"id,omitempty"`
	UserID       string     `json:"userId,omitempty" validate:"required"`
	BookID       string     `json:"bookId,omitempty"`
	Book         Book       `json:"book"`
	Status       Status     `json:"status" validate:"omitempty,reading_status"`
	CurrentPage  int        `json:"currentPage" validate:"min=0"`
	Rating       *int       `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Review       string     `json:"review,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	IsFavorite   bool       `json:"isFavorite"`
	AcquiredDate *time.Time `json:"acquiredDate,omitempty"`
	StartDate    *time.Time `json:"startDate,omitempty"`
	FinishDate   *time.Time `json:"finishDate,omitempty"`

	// Line is the source line the record was parsed from.
	Line int `json:"-"`
}

// WithDefaults fills the fields an import may leave empty before the book is
// stored for the first time.
func (ub UserBook) WithDefaults() UserBook {
	if ub.Status == "" {
		ub.Status = DefaultStatus
	}
	return ub
}

// ReadingSession is an immutable log entry for a stretch of reading.
type ReadingSession struct {
	ID              string    `json:"id,omitempty"`
	UserBookID      string    `json:"userBookId" validate:"required"`
	StartPage       int       `json:"startPage" validate:"min=0"`
	EndPage         int       `json:"endPage" validate:"gtefield=StartPage"`
	PagesRead       int       `json:"pagesRead"`
	SessionDate     time.Time `json:"sessionDate"`
	DurationMinutes int       `json:"durationMinutes,omitempty" validate:"min=0"`
	Notes           string    `json:"notes,omitempty"`

	Line int `json:"-"`
}

// ComputePagesRead returns end - start + 1, floored at zero.
func ComputePagesRead(start, end int) int {
	n := end - start + 1
	if n < 0 {
		return 0
	}
	return n
}

// WishlistItem is a book the user wants to acquire.
type WishlistItem struct {
	ID         string     `json:"id,omitempty"`
	UserID     string     `json:"userId,omitempty" validate:"required"`
	BookID     string     `json:"bookId,omitempty"`
	Book       Book       `json:"book"`
	Priority   Priority   `json:"priority" validate:"omitempty,wishlist_priority"`
	Reason     string     `json:"reason,omitempty"`
	TargetDate *time.Time `json:"targetDate,omitempty"`
	PriceAlert *float64   `json:"priceAlert,omitempty" validate:"omitempty,min=0"`

	Line int `json:"-"`
}

// WithDefaults fills the fields an import may leave empty before the item is
// stored for the first time.
func (wi WishlistItem) WithDefaults() WishlistItem {
	if wi.Priority == "" {
		wi.Priority = DefaultPriority
	}
	return wi
}

// CollectionItem places a user book at a position within a collection.
type CollectionItem struct {
	UserBookID string `json:"userBookId" validate:"required"`
	SortOrder  int    `json:"sortOrder"`
}

// Collection is a named, ordered grouping of user books.
type Collection struct {
	ID          string           `json:"id,omitempty"`
	UserID      string           `json:"userId,omitempty" validate:"required"`
	Name        string           `json:"name" validate:"required,max=200"`
	Description string           `json:"description,omitempty" validate:"max=10000"`
	Items       []CollectionItem `json:"items" validate:"dive"`

	Line int `json:"-"`
}

// Resequence sorts items by their current order and renumbers them 0..n-1.
func (c *Collection) Resequence() {
	items := make([]CollectionItem, len(c.Items))
	copy(items, c.Items)
	// insertion sort keeps equal sort orders in input order
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].SortOrder < items[j-1].SortOrder; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
	for i := range items {
		items[i].SortOrder = i
	}
	c.Items = items
}

// Contains reports whether the collection already references a user book.
func (c Collection) Contains(userBookID string) bool {
	for _, it := range c.Items {
		if it.UserBookID == userBookID {
			return true
		}
	}
	return false
}

// DateRange bounds reading sessions by session date, inclusive on both ends.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Contains reports whether t falls within the range. Bounds compare by calendar day.
func (r DateRange) Contains(t time.Time) bool {
	day := truncateDay(t)
	if r.From != nil && day.Before(truncateDay(*r.From)) {
		return false
	}
	if r.To != nil && day.After(truncateDay(*r.To)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ExportMetadata describes an export. It is always recomputed when serializing.
type ExportMetadata struct {
	FormatVersion string       `json:"formatVersion"`
	ExportedAt    time.Time    `json:"exportedAt"`
	UserID        string       `json:"userId"`
	DataTypes     []RecordType `json:"dataTypes"`
	TotalRecords  int          `json:"totalRecords"`
	DateRange     *DateRange   `json:"dateRange,omitempty"`
}

// Dataset is the full interchange document.
type Dataset struct {
	Metadata        ExportMetadata   `json:"metadata"`
	UserBooks       []UserBook       `json:"userBooks"`
	WishlistItems   []WishlistItem   `json:"wishlistItems"`
	Collections     []Collection     `json:"collections"`
	ReadingSessions []ReadingSession `json:"readingSessions"`
}

// Count returns the number of records of one type.
func (d *Dataset) Count(t RecordType) int {
	switch t {
	case RecordUserBook:
		return len(d.UserBooks)
	case RecordWishlistItem:
		return len(d.WishlistItems)
	case RecordCollection:
		return len(d.Collections)
	case RecordReadingSession:
		return len(d.ReadingSessions)
	}
	return 0
}

// Total returns the number of records across all types.
func (d *Dataset) Total() int {
	n := 0
	for _, t := range AllRecordTypes {
		n += d.Count(t)
	}
	return n
}

// DuplicateMethod says how a duplicate was established.
type DuplicateMethod string

const (
	MethodExactKey DuplicateMethod = "exact_key"
	MethodFuzzy    DuplicateMethod = "fuzzy"
)

// DuplicateMatch pairs an incoming record with an existing one.
type DuplicateMatch struct {
	RecordType    RecordType      `json:"recordType"`
	IncomingIndex int             `json:"incomingIndex"`
	Line          int             `json:"line,omitempty"`
	IncomingTitle string          `json:"incomingTitle"`
	ExistingID    string          `json:"existingId"`
	ExistingTitle string          `json:"existingTitle"`
	Score         float64         `json:"score"`
	Method        DuplicateMethod `json:"method"`
}

// ImportError is a record-level problem kept in previews and job summaries.
type ImportError struct {
	Line       int        `json:"line,omitempty"`
	RecordType RecordType `json:"recordType,omitempty"`
	Index      int        `json:"index"`
	Field      string     `json:"field,omitempty"`
	Value      string     `json:"value,omitempty"`
	Message    string     `json:"message"`
	Suggestion string     `json:"suggestion,omitempty"`
	Kind       string     `json:"kind"`
}

// TypeCounts tallies outcomes for one record type.
type TypeCounts struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ImportSummary is attached to a job once it reaches a terminal state.
type ImportSummary struct {
	Counts     map[RecordType]*TypeCounts `json:"counts"`
	Errors     []ImportError              `json:"errors"`
	Warnings   []string                   `json:"warnings,omitempty"`
	RollbackID string                     `json:"rollbackId,omitempty"`
}

// NewImportSummary returns a summary with zeroed counters for every record type.
func NewImportSummary() *ImportSummary {
	s := &ImportSummary{Counts: make(map[RecordType]*TypeCounts, len(AllRecordTypes))}
	for _, t := range AllRecordTypes {
		s.Counts[t] = &TypeCounts{}
	}
	return s
}

// For returns the counters for a record type, creating them if needed.
func (s *ImportSummary) For(t RecordType) *TypeCounts {
	c, ok := s.Counts[t]
	if !ok {
		c = &TypeCounts{}
		s.Counts[t] = c
	}
	return c
}

// BooksAdded is the number of user books added by the import.
func (s *ImportSummary) BooksAdded() int {
	return s.For(RecordUserBook).Added
}

// Clone returns a deep copy so snapshots never share state with a running worker.
func (s *ImportSummary) Clone() *ImportSummary {
	if s == nil {
		return nil
	}
	out := &ImportSummary{
		Counts:     make(map[RecordType]*TypeCounts, len(s.Counts)),
		Errors:     append([]ImportError(nil), s.Errors...),
		Warnings:   append([]string(nil), s.Warnings...),
		RollbackID: s.RollbackID,
	}
	for k, v := range s.Counts {
		c := *v
		out.Counts[k] = &c
	}
	return out
}

// NormalizeList trims entries and drops empty ones.
func NormalizeList(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
