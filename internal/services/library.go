package services

import (
	"context"
	"fmt"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/dedupe"
	"github.com/mrlokans/bookshelf/internal/errs"
)

// library is an in-memory view of one user's records used while previewing
// and importing. Records added during an import are appended so later rows in
// the same file see them.
type library struct {
	userBooks   []canonical.UserBook
	wishlist    []canonical.WishlistItem
	collections []canonical.Collection
	sessions    []canonical.ReadingSession
}

func loadLibrary(ctx context.Context, store RecordStore, userID string) (*library, error) {
	lib := &library{}
	var err error
	if lib.userBooks, err = store.ListUserBooks(ctx, userID); err != nil {
		return nil, storageError(err, "list user books")
	}
	if lib.wishlist, err = store.ListWishlistItems(ctx, userID); err != nil {
		return nil, storageError(err, "list wishlist items")
	}
	if lib.collections, err = store.ListCollections(ctx, userID); err != nil {
		return nil, storageError(err, "list collections")
	}
	if lib.sessions, err = store.ListReadingSessions(ctx, userID); err != nil {
		return nil, storageError(err, "list reading sessions")
	}
	return lib, nil
}

func (l *library) userBookEntries() []dedupe.Entry {
	out := make([]dedupe.Entry, len(l.userBooks))
	for i, ub := range l.userBooks {
		out[i] = dedupe.Entry{ID: ub.ID, Book: ub.Book}
	}
	return out
}

func (l *library) wishlistEntries() []dedupe.Entry {
	out := make([]dedupe.Entry, len(l.wishlist))
	for i, wi := range l.wishlist {
		out[i] = dedupe.Entry{ID: wi.ID, Book: wi.Book}
	}
	return out
}

// matchUserBook returns the position of the existing user book that ub
// duplicates. A shared catalogue key is an exact match; otherwise the
// detector decides.
func (l *library) matchUserBook(d *dedupe.Detector, ub canonical.UserBook) (int, dedupe.Match, bool) {
	if ub.BookID != "" {
		for i, existing := range l.userBooks {
			if existing.BookID == ub.BookID {
				return i, exactMatch(existing.ID, existing.Book.Title), true
			}
		}
	}
	m, ok := d.Best(ub.Book, l.userBookEntries())
	if !ok {
		return -1, dedupe.Match{}, false
	}
	return l.userBookIndex(m.ExistingID), m, true
}

func (l *library) matchWishlistItem(d *dedupe.Detector, wi canonical.WishlistItem) (int, dedupe.Match, bool) {
	if wi.BookID != "" {
		for i, existing := range l.wishlist {
			if existing.BookID == wi.BookID {
				return i, exactMatch(existing.ID, existing.Book.Title), true
			}
		}
	}
	m, ok := d.Best(wi.Book, l.wishlistEntries())
	if !ok {
		return -1, dedupe.Match{}, false
	}
	for i := range l.wishlist {
		if l.wishlist[i].ID == m.ExistingID {
			return i, m, true
		}
	}
	return -1, dedupe.Match{}, false
}

// matchCollection finds an existing collection with the same name, ignoring
// case and spacing.
func (l *library) matchCollection(c canonical.Collection) int {
	name := dedupe.Normalize(c.Name)
	for i, existing := range l.collections {
		if dedupe.Normalize(existing.Name) == name {
			return i
		}
	}
	return -1
}

// hasSession reports whether an identical session is already logged.
func (l *library) hasSession(s canonical.ReadingSession) bool {
	for _, existing := range l.sessions {
		if existing.UserBookID == s.UserBookID &&
			existing.StartPage == s.StartPage &&
			existing.EndPage == s.EndPage &&
			existing.SessionDate.Equal(s.SessionDate) {
			return true
		}
	}
	return false
}

func (l *library) userBookIndex(id string) int {
	for i := range l.userBooks {
		if l.userBooks[i].ID == id {
			return i
		}
	}
	return -1
}

func exactMatch(id, title string) dedupe.Match {
	return dedupe.Match{ExistingID: id, ExistingTitle: title, Score: 1, Method: canonical.MethodExactKey}
}

func storageError(err error, op string) error {
	return errs.Wrap(errs.KindDatabaseConnection, err, fmt.Sprintf("%s failed", op))
}
