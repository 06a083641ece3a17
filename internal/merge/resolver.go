// Package merge applies a duplicate handling strategy to an existing record and
// the incoming record that duplicates it.
package merge

import (
	"fmt"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
)

// Outcome is how a resolved record is counted in the import summary.
type Outcome string

const (
	OutcomeAdded   Outcome = "added"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
)

// Resolution is the record to store and how to count it. For OutcomeAdded the
// record carries no ID and must be inserted; otherwise it keeps the existing ID.
type Resolution[T any] struct {
	Record  T
	Outcome Outcome
	Warning string
}

// Resolver is stateless.
type Resolver struct{}

func NewResolver() *Resolver { return &Resolver{} }

func (r *Resolver) ResolveUserBook(existing, incoming canonical.UserBook, strategy canonical.Strategy) (Resolution[canonical.UserBook], error) {
	if err := checkOwner(existing.UserID, incoming.UserID); err != nil {
		return Resolution[canonical.UserBook]{}, err
	}

	switch strategy {
	case canonical.StrategySkip:
		return Resolution[canonical.UserBook]{Record: existing, Outcome: OutcomeSkipped}, nil

	case canonical.StrategyUpdate:
		out := incoming
		out.ID = existing.ID
		out.UserID = existing.UserID
		if out.Status == "" {
			out.Status = existing.Status
		}
		return Resolution[canonical.UserBook]{Record: out, Outcome: OutcomeUpdated}, nil

	case canonical.StrategyMerge:
		return Resolution[canonical.UserBook]{Record: MergeUserBook(existing, incoming), Outcome: OutcomeUpdated}, nil

	case canonical.StrategyCreateNew:
		out := incoming.WithDefaults()
		out.ID = ""
		return Resolution[canonical.UserBook]{
			Record:  out,
			Outcome: OutcomeAdded,
			Warning: duplicateWarning(incoming.Book.Title, existing.ID),
		}, nil
	}
	return Resolution[canonical.UserBook]{}, unknownStrategy(strategy)
}

func (r *Resolver) ResolveWishlistItem(existing, incoming canonical.WishlistItem, strategy canonical.Strategy) (Resolution[canonical.WishlistItem], error) {
	if err := checkOwner(existing.UserID, incoming.UserID); err != nil {
		return Resolution[canonical.WishlistItem]{}, err
	}

	switch strategy {
	case canonical.StrategySkip:
		return Resolution[canonical.WishlistItem]{Record: existing, Outcome: OutcomeSkipped}, nil

	case canonical.StrategyUpdate:
		out := incoming
		out.ID = existing.ID
		out.UserID = existing.UserID
		if out.Priority == "" {
			out.Priority = existing.Priority
		}
		return Resolution[canonical.WishlistItem]{Record: out, Outcome: OutcomeUpdated}, nil

	case canonical.StrategyMerge:
		return Resolution[canonical.WishlistItem]{Record: MergeWishlistItem(existing, incoming), Outcome: OutcomeUpdated}, nil

	case canonical.StrategyCreateNew:
		out := incoming.WithDefaults()
		out.ID = ""
		return Resolution[canonical.WishlistItem]{
			Record:  out,
			Outcome: OutcomeAdded,
			Warning: duplicateWarning(incoming.Book.Title, existing.ID),
		}, nil
	}
	return Resolution[canonical.WishlistItem]{}, unknownStrategy(strategy)
}

func (r *Resolver) ResolveCollection(existing, incoming canonical.Collection, strategy canonical.Strategy) (Resolution[canonical.Collection], error) {
	if err := checkOwner(existing.UserID, incoming.UserID); err != nil {
		return Resolution[canonical.Collection]{}, err
	}

	switch strategy {
	case canonical.StrategySkip:
		return Resolution[canonical.Collection]{Record: existing, Outcome: OutcomeSkipped}, nil

	case canonical.StrategyUpdate:
		out := incoming
		out.ID = existing.ID
		out.UserID = existing.UserID
		out.Resequence()
		return Resolution[canonical.Collection]{Record: out, Outcome: OutcomeUpdated}, nil

	case canonical.StrategyMerge:
		return Resolution[canonical.Collection]{Record: MergeCollection(existing, incoming), Outcome: OutcomeUpdated}, nil

	case canonical.StrategyCreateNew:
		out := incoming
		out.ID = ""
		out.Resequence()
		return Resolution[canonical.Collection]{
			Record:  out,
			Outcome: OutcomeAdded,
			Warning: duplicateWarning(incoming.Name, existing.ID),
		}, nil
	}
	return Resolution[canonical.Collection]{}, unknownStrategy(strategy)
}

// MergeUserBook overlays the present fields of incoming onto existing. An
// empty status leaves the stored one alone. CurrentPage never goes backwards.
func MergeUserBook(existing, incoming canonical.UserBook) canonical.UserBook {
	out := existing
	out.Book = MergeBook(existing.Book, incoming.Book)
	if incoming.BookID != "" {
		out.BookID = incoming.BookID
	}
	if incoming.Status != "" {
		out.Status = incoming.Status
	}
	out.CurrentPage = max(existing.CurrentPage, incoming.CurrentPage)
	if incoming.Rating != nil {
		rating := *incoming.Rating
		out.Rating = &rating
	}
	out.Review = pickString(existing.Review, incoming.Review)
	out.Notes = pickString(existing.Notes, incoming.Notes)
	out.Tags = pickList(existing.Tags, incoming.Tags)
	out.IsFavorite = existing.IsFavorite || incoming.IsFavorite
	out.AcquiredDate = pickTime(existing.AcquiredDate, incoming.AcquiredDate)
	out.StartDate = pickTime(existing.StartDate, incoming.StartDate)
	out.FinishDate = pickTime(existing.FinishDate, incoming.FinishDate)
	return out
}

// MergeWishlistItem overlays incoming onto existing. Priority only ever rises;
// an empty incoming priority ranks below every stored one.
func MergeWishlistItem(existing, incoming canonical.WishlistItem) canonical.WishlistItem {
	out := existing
	out.Book = MergeBook(existing.Book, incoming.Book)
	if incoming.BookID != "" {
		out.BookID = incoming.BookID
	}
	if incoming.Priority.Rank() > existing.Priority.Rank() {
		out.Priority = incoming.Priority
	}
	out.Reason = pickString(existing.Reason, incoming.Reason)
	out.TargetDate = pickTime(existing.TargetDate, incoming.TargetDate)
	if incoming.PriceAlert != nil {
		alert := *incoming.PriceAlert
		out.PriceAlert = &alert
	}
	return out
}

// MergeCollection keeps the existing items in order and appends incoming items
// it does not already hold.
func MergeCollection(existing, incoming canonical.Collection) canonical.Collection {
	out := existing
	out.Name = pickString(existing.Name, incoming.Name)
	out.Description = pickString(existing.Description, incoming.Description)

	out.Items = append([]canonical.CollectionItem(nil), existing.Items...)
	out.Resequence()
	next := len(out.Items)
	for _, it := range sortedItems(incoming) {
		if out.Contains(it.UserBookID) {
			continue
		}
		out.Items = append(out.Items, canonical.CollectionItem{UserBookID: it.UserBookID, SortOrder: next})
		next++
	}
	return out
}

// MergeBook overlays the present catalogue fields of incoming onto existing.
func MergeBook(existing, incoming canonical.Book) canonical.Book {
	out := existing
	out.ID = pickString(existing.ID, incoming.ID)
	out.ISBN10 = pickString(existing.ISBN10, incoming.ISBN10)
	out.ISBN13 = pickString(existing.ISBN13, incoming.ISBN13)
	out.Title = pickString(existing.Title, incoming.Title)
	out.Subtitle = pickString(existing.Subtitle, incoming.Subtitle)
	out.Authors = pickList(existing.Authors, incoming.Authors)
	out.Publisher = pickString(existing.Publisher, incoming.Publisher)
	out.PublishedDate = pickString(existing.PublishedDate, incoming.PublishedDate)
	out.Description = pickString(existing.Description, incoming.Description)
	if incoming.PageCount > 0 {
		out.PageCount = incoming.PageCount
	}
	out.Categories = pickList(existing.Categories, incoming.Categories)
	out.Language = pickString(existing.Language, incoming.Language)
	out.ThumbnailURL = pickString(existing.ThumbnailURL, incoming.ThumbnailURL)
	out.PreviewLink = pickString(existing.PreviewLink, incoming.PreviewLink)
	out.InfoLink = pickString(existing.InfoLink, incoming.InfoLink)
	if incoming.AverageRating != nil {
		v := *incoming.AverageRating
		out.AverageRating = &v
	}
	if incoming.RatingsCount != nil {
		v := *incoming.RatingsCount
		out.RatingsCount = &v
	}
	return out
}

func sortedItems(c canonical.Collection) []canonical.CollectionItem {
	c.Items = append([]canonical.CollectionItem(nil), c.Items...)
	c.Resequence()
	return c.Items
}

func pickString(existing, incoming string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}

func pickList(existing, incoming []string) []string {
	if len(incoming) > 0 {
		return append([]string(nil), incoming...)
	}
	return existing
}

func pickTime[T any](existing, incoming *T) *T {
	if incoming != nil {
		return incoming
	}
	return existing
}

func checkOwner(existing, incoming string) error {
	if existing != "" && incoming != "" && existing != incoming {
		return errs.New(errs.KindDuplicateHandling, "record belongs to another user")
	}
	return nil
}

func unknownStrategy(s canonical.Strategy) error {
	e := errs.New(errs.KindDuplicateHandling, "unknown merge strategy %q", s)
	e.Details = map[string]string{"strategy": string(s)}
	return e
}

func duplicateWarning(title, existingID string) string {
	return fmt.Sprintf("%q was added as a new record although it duplicates %s", title, existingID)
}
