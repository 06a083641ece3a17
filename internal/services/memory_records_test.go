package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/mrlokans/bookshelf/internal/canonical"
)

// memoryRecords is a RecordStore for tests.
type memoryRecords struct {
	mu          sync.Mutex
	seq         int
	userBooks   []canonical.UserBook
	wishlist    []canonical.WishlistItem
	collections []canonical.Collection
	sessions    []canonical.ReadingSession
	createdBy   map[string]string

	// afterSave runs after every successful save, outside the lock.
	afterSave func()
	saveErr   error
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{createdBy: make(map[string]string)}
}

var _ RecordStore = (*memoryRecords)(nil)

func (m *memoryRecords) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memoryRecords) saved() {
	if m.afterSave != nil {
		m.afterSave()
	}
}

func (m *memoryRecords) ListUserBooks(_ context.Context, userID string) ([]canonical.UserBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []canonical.UserBook
	for _, ub := range m.userBooks {
		if ub.UserID == userID {
			out = append(out, ub)
		}
	}
	return out, nil
}

func (m *memoryRecords) SaveUserBook(_ context.Context, ub *canonical.UserBook, jobID string) error {
	m.mu.Lock()
	if m.saveErr != nil {
		m.mu.Unlock()
		return m.saveErr
	}
	if ub.ID == "" {
		ub.ID = m.nextID("ub")
		m.createdBy[ub.ID] = jobID
		m.userBooks = append(m.userBooks, *ub)
	} else {
		for i := range m.userBooks {
			if m.userBooks[i].ID == ub.ID {
				m.userBooks[i] = *ub
			}
		}
	}
	m.mu.Unlock()
	m.saved()
	return nil
}

func (m *memoryRecords) ListWishlistItems(_ context.Context, userID string) ([]canonical.WishlistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []canonical.WishlistItem
	for _, wi := range m.wishlist {
		if wi.UserID == userID {
			out = append(out, wi)
		}
	}
	return out, nil
}

func (m *memoryRecords) SaveWishlistItem(_ context.Context, wi *canonical.WishlistItem, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wi.ID == "" {
		wi.ID = m.nextID("wi")
		m.createdBy[wi.ID] = jobID
		m.wishlist = append(m.wishlist, *wi)
		return nil
	}
	for i := range m.wishlist {
		if m.wishlist[i].ID == wi.ID {
			m.wishlist[i] = *wi
		}
	}
	return nil
}

func (m *memoryRecords) ListCollections(_ context.Context, userID string) ([]canonical.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []canonical.Collection
	for _, c := range m.collections {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryRecords) SaveCollection(_ context.Context, c *canonical.Collection, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = m.nextID("col")
		m.createdBy[c.ID] = jobID
		m.collections = append(m.collections, *c)
		return nil
	}
	for i := range m.collections {
		if m.collections[i].ID == c.ID {
			m.collections[i] = *c
		}
	}
	return nil
}

func (m *memoryRecords) ListReadingSessions(_ context.Context, userID string) ([]canonical.ReadingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned := make(map[string]bool)
	for _, ub := range m.userBooks {
		if ub.UserID == userID {
			owned[ub.ID] = true
		}
	}
	var out []canonical.ReadingSession
	for _, s := range m.sessions {
		if owned[s.UserBookID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memoryRecords) SaveReadingSession(_ context.Context, s *canonical.ReadingSession, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.nextID("rs")
	m.createdBy[s.ID] = jobID
	m.sessions = append(m.sessions, *s)
	return nil
}

func (m *memoryRecords) DeleteCreatedBy(_ context.Context, userID, jobID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	keep := func(id string) bool {
		if m.createdBy[id] == jobID {
			removed++
			return false
		}
		return true
	}

	var books []canonical.UserBook
	for _, ub := range m.userBooks {
		if ub.UserID != userID || keep(ub.ID) {
			books = append(books, ub)
		}
	}
	m.userBooks = books

	var wishlist []canonical.WishlistItem
	for _, wi := range m.wishlist {
		if wi.UserID != userID || keep(wi.ID) {
			wishlist = append(wishlist, wi)
		}
	}
	m.wishlist = wishlist

	var collections []canonical.Collection
	for _, c := range m.collections {
		if c.UserID != userID || keep(c.ID) {
			collections = append(collections, c)
		}
	}
	m.collections = collections

	var sessions []canonical.ReadingSession
	for _, s := range m.sessions {
		if keep(s.ID) {
			sessions = append(sessions, s)
		}
	}
	m.sessions = sessions
	return removed, nil
}
