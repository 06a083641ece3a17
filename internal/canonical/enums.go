package canonical

import (
	"fmt"
	"strings"
)

// Status is the reading state of a user book.
type Status string

const (
	StatusWantToRead Status = "want_to_read"
	StatusReading    Status = "reading"
	StatusCompleted  Status = "completed"
	StatusPaused     Status = "paused"
	StatusAbandoned  Status = "abandoned"
	StatusReference  Status = "reference"
)

// DefaultStatus is stored for a new user book whose import row has no status.
const DefaultStatus = StatusReading

var statuses = []Status{
	StatusWantToRead, StatusReading, StatusCompleted,
	StatusPaused, StatusAbandoned, StatusReference,
}

// ParseStatus accepts underscore, hyphen and space spellings in any case.
// An empty string yields an empty status: the row says nothing about it.
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return "", nil
	}
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	for _, st := range statuses {
		if string(st) == norm {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// Priority ranks wishlist items.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Rank returns the ordinal of p (low=0 .. urgent=3) or -1 when unknown.
func (p Priority) Rank() int {
	for i, pr := range priorities {
		if pr == p {
			return i
		}
	}
	return -1
}

// DefaultPriority is stored for a new wishlist item without a priority.
const DefaultPriority = PriorityMedium

// ParsePriority is case-insensitive. Empty yields an empty priority.
func ParsePriority(s string) (Priority, error) {
	norm := Priority(strings.ToLower(strings.TrimSpace(s)))
	if norm == "" {
		return "", nil
	}
	if norm.Rank() < 0 {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return norm, nil
}

// RecordType names a kind of canonical record.
type RecordType string

const (
	RecordUserBook       RecordType = "userBooks"
	RecordWishlistItem   RecordType = "wishlistItems"
	RecordCollection     RecordType = "collections"
	RecordReadingSession RecordType = "readingSessions"
)

// AllRecordTypes lists record types in processing order: sessions and
// collections reference user books, so user books come first.
var AllRecordTypes = []RecordType{
	RecordUserBook, RecordWishlistItem, RecordReadingSession, RecordCollection,
}

// ParseRecordType accepts the JSON key or a short alias.
func ParseRecordType(s string) (RecordType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "userbooks", "user_books", "books":
		return RecordUserBook, nil
	case "wishlistitems", "wishlist_items", "wishlist":
		return RecordWishlistItem, nil
	case "collections":
		return RecordCollection, nil
	case "readingsessions", "reading_sessions", "sessions":
		return RecordReadingSession, nil
	}
	return "", fmt.Errorf("unknown record type %q", s)
}

// Format is an interchange format.
type Format string

const (
	FormatJSON      Format = "json"
	FormatCSV       Format = "csv"
	FormatGoodreads Format = "goodreads"
)

// ParseFormat validates a declared format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatGoodreads:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// Strategy is a merge policy applied to a detected duplicate.
type Strategy string

const (
	StrategySkip      Strategy = "skip"
	StrategyUpdate    Strategy = "update"
	StrategyMerge     Strategy = "merge"
	StrategyCreateNew Strategy = "create_new"
)

// DefaultStrategy is used when the caller does not choose one.
const DefaultStrategy = StrategyMerge

// ParseStrategy validates a strategy; empty yields DefaultStrategy.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return DefaultStrategy, nil
	case StrategySkip, StrategyUpdate, StrategyMerge, StrategyCreateNew:
		return st, nil
	}
	return "", fmt.Errorf("unknown merge strategy %q", s)
}
