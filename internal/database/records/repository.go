// Package records stores a user's library: user books, wishlist items,
// collections and reading sessions.
//
// # Interface Implementation
//
//	var _ services.RecordStore = (*Repository)(nil)
//
// Every insert records the import job that made it in created_by_job, which is
// what DeleteCreatedBy uses to roll an import back.
package records

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/errs"
	"github.com/mrlokans/bookshelf/internal/services"
)

// Repository handles all library database operations.
type Repository struct {
	db *gorm.DB
}

var _ services.RecordStore = (*Repository)(nil)

// NewRepository creates a new records repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ErrSessionImmutable is returned when saving a reading session that already
// has an id.
var ErrSessionImmutable = errs.New(errs.KindInvalidState, "reading sessions cannot be changed once logged")

func (r *Repository) ListUserBooks(ctx context.Context, userID string) ([]canonical.UserBook, error) {
	var rows []entities.UserBook
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]canonical.UserBook, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromUserBook(row))
	}
	return out, nil
}

func (r *Repository) SaveUserBook(ctx context.Context, ub *canonical.UserBook, jobID string) error {
	row := toUserBook(*ub)
	if row.ID == "" {
		row.ID = uuid.NewString()
		row.CreatedByJob = jobID
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("insert user book: %w", err)
		}
		ub.ID = row.ID
		return nil
	}
	return r.update(ctx, &entities.UserBook{}, "user book", row.ID, row.UserID, &row)
}

func (r *Repository) ListWishlistItems(ctx context.Context, userID string) ([]canonical.WishlistItem, error) {
	var rows []entities.WishlistItem
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]canonical.WishlistItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromWishlistItem(row))
	}
	return out, nil
}

func (r *Repository) SaveWishlistItem(ctx context.Context, wi *canonical.WishlistItem, jobID string) error {
	row := toWishlistItem(*wi)
	if row.ID == "" {
		row.ID = uuid.NewString()
		row.CreatedByJob = jobID
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("insert wishlist item: %w", err)
		}
		wi.ID = row.ID
		return nil
	}
	return r.update(ctx, &entities.WishlistItem{}, "wishlist item", row.ID, row.UserID, &row)
}

// ListCollections returns collections with their items in sort order.
func (r *Repository) ListCollections(ctx context.Context, userID string) ([]canonical.Collection, error) {
	var rows []entities.Collection
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") }).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]canonical.Collection, 0, len(rows))
	for _, row := range rows {
		c := fromCollection(row)
		c.Resequence()
		out = append(out, c)
	}
	return out, nil
}

// SaveCollection writes the collection and replaces its items.
func (r *Repository) SaveCollection(ctx context.Context, c *canonical.Collection, jobID string) error {
	row := toCollection(*c)
	items := row.Items
	row.Items = nil

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.ID == "" {
			row.ID = uuid.NewString()
			row.CreatedByJob = jobID
			if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
				return fmt.Errorf("insert collection: %w", err)
			}
		} else {
			if err := r.updateTx(tx, &entities.Collection{}, "collection", row.ID, row.UserID, &row); err != nil {
				return err
			}
			if err := tx.Where("collection_id = ?", row.ID).Delete(&entities.CollectionItem{}).Error; err != nil {
				return fmt.Errorf("clear collection items: %w", err)
			}
		}

		for i := range items {
			items[i].CollectionID = row.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("insert collection items: %w", err)
			}
		}
		c.ID = row.ID
		return nil
	})
}

func (r *Repository) ListReadingSessions(ctx context.Context, userID string) ([]canonical.ReadingSession, error) {
	var rows []entities.ReadingSession
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("session_date ASC, created_at ASC, id ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]canonical.ReadingSession, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromReadingSession(row))
	}
	return out, nil
}

// SaveReadingSession logs a new session. The owner is taken from the user
// book the session belongs to.
func (r *Repository) SaveReadingSession(ctx context.Context, s *canonical.ReadingSession, jobID string) error {
	if s.ID != "" {
		return ErrSessionImmutable
	}

	db := r.db.WithContext(ctx)
	var owner entities.UserBook
	if err := db.Select("id", "user_id").Where("id = ?", s.UserBookID).First(&owner).Error; err != nil {
		return fmt.Errorf("find user book %s: %w", s.UserBookID, err)
	}

	row := entities.ReadingSession{
		ID:              uuid.NewString(),
		UserID:          owner.UserID,
		UserBookID:      s.UserBookID,
		StartPage:       s.StartPage,
		EndPage:         s.EndPage,
		PagesRead:       canonical.ComputePagesRead(s.StartPage, s.EndPage),
		SessionDate:     s.SessionDate,
		DurationMinutes: s.DurationMinutes,
		Notes:           s.Notes,
		CreatedByJob:    jobID,
	}
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("insert reading session: %w", err)
	}
	s.ID = row.ID
	s.PagesRead = row.PagesRead
	return nil
}

// DeleteCreatedBy removes every record jobID inserted for userID, together
// with the sessions and collection memberships of the user books it removes.
func (r *Repository) DeleteCreatedBy(ctx context.Context, userID, jobID string) (int, error) {
	if jobID == "" {
		return 0, errs.New(errs.KindValidation, "job id is required")
	}

	removed := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bookIDs []string
		if err := tx.Model(&entities.UserBook{}).
			Where("user_id = ? AND created_by_job = ?", userID, jobID).
			Pluck("id", &bookIDs).Error; err != nil {
			return err
		}
		var collectionIDs []string
		if err := tx.Model(&entities.Collection{}).
			Where("user_id = ? AND created_by_job = ?", userID, jobID).
			Pluck("id", &collectionIDs).Error; err != nil {
			return err
		}

		sessions := tx.Where("user_id = ?", userID)
		if len(bookIDs) > 0 {
			sessions = sessions.Where("created_by_job = ? OR user_book_id IN ?", jobID, bookIDs)
		} else {
			sessions = sessions.Where("created_by_job = ?", jobID)
		}
		res := sessions.Delete(&entities.ReadingSession{})
		if res.Error != nil {
			return res.Error
		}
		removed += int(res.RowsAffected)

		if len(bookIDs) > 0 {
			if err := tx.Where("user_book_id IN ?", bookIDs).Delete(&entities.CollectionItem{}).Error; err != nil {
				return err
			}
		}
		if len(collectionIDs) > 0 {
			if err := tx.Where("collection_id IN ?", collectionIDs).Delete(&entities.CollectionItem{}).Error; err != nil {
				return err
			}
			res = tx.Where("id IN ?", collectionIDs).Delete(&entities.Collection{})
			if res.Error != nil {
				return res.Error
			}
			removed += int(res.RowsAffected)
		}

		res = tx.Where("user_id = ? AND created_by_job = ?", userID, jobID).Delete(&entities.WishlistItem{})
		if res.Error != nil {
			return res.Error
		}
		removed += int(res.RowsAffected)

		if len(bookIDs) > 0 {
			res = tx.Where("id IN ?", bookIDs).Delete(&entities.UserBook{})
			if res.Error != nil {
				return res.Error
			}
			removed += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("roll back job %s: %w", jobID, err)
	}
	return removed, nil
}

func (r *Repository) update(ctx context.Context, model any, what, id, userID string, row any) error {
	return r.updateTx(r.db.WithContext(ctx), model, what, id, userID, row)
}

// updateTx overwrites every column except identity, ownership and the
// creating job.
func (r *Repository) updateTx(tx *gorm.DB, model any, what, id, userID string, row any) error {
	res := tx.Model(model).
		Where("id = ? AND user_id = ?", id, userID).
		Select("*").
		Omit("id", "user_id", "created_by_job", "created_at").
		Updates(row)
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", what, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update %s %s: %w", what, id, gorm.ErrRecordNotFound)
	}
	return nil
}
