package entities

import "time"

// BookDetails is the catalogue part of a shelf entry, stored inline with a
// book_ column prefix.
type BookDetails struct {
	ProviderID    string   `gorm:"size:100" json:"provider_id,omitempty"`
	ISBN10        string   `gorm:"size:13;index" json:"isbn10,omitempty"`
	ISBN13        string   `gorm:"size:17;index" json:"isbn13,omitempty"`
	Title         string   `gorm:"size:500;not null" json:"title"`
	Subtitle      string   `gorm:"size:500" json:"subtitle,omitempty"`
	Authors       []string `gorm:"serializer:json" json:"authors,omitempty"`
	Publisher     string   `gorm:"size:500" json:"publisher,omitempty"`
	PublishedDate string   `gorm:"size:32" json:"published_date,omitempty"`
	Description   string   `gorm:"type:text" json:"description,omitempty"`
	PageCount     int      `json:"page_count,omitempty"`
	Categories    []string `gorm:"serializer:json" json:"categories,omitempty"`
	Language      string   `gorm:"size:10" json:"language,omitempty"`
	ThumbnailURL  string   `gorm:"size:1000" json:"thumbnail_url,omitempty"`
	PreviewLink   string   `gorm:"size:1000" json:"preview_link,omitempty"`
	InfoLink      string   `gorm:"size:1000" json:"info_link,omitempty"`
	AverageRating *float64 `json:"average_rating,omitempty"`
	RatingsCount  *int     `json:"ratings_count,omitempty"`
}

// UserBook is a book on a user's shelf.
//
// CreatedByJob holds the id of the import that inserted the row, empty for
// rows created any other way. Updates never touch it.
type UserBook struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	UserID       string      `gorm:"index;size:64;not null" json:"user_id"`
	BookID       string      `gorm:"index;size:100" json:"book_id,omitempty"`
	Book         BookDetails `gorm:"embedded;embeddedPrefix:book_" json:"book"`
	Status       string      `gorm:"size:20;index" json:"status"`
	CurrentPage  int         `json:"current_page"`
	Rating       *int        `json:"rating,omitempty"`
	Review       string      `gorm:"type:text" json:"review,omitempty"`
	Notes        string      `gorm:"type:text" json:"notes,omitempty"`
	Tags         []string    `gorm:"serializer:json" json:"tags,omitempty"`
	IsFavorite   bool        `gorm:"default:false" json:"is_favorite"`
	AcquiredDate *time.Time  `json:"acquired_date,omitempty"`
	StartDate    *time.Time  `json:"start_date,omitempty"`
	FinishDate   *time.Time  `json:"finish_date,omitempty"`
	CreatedByJob string      `gorm:"index;size:36" json:"created_by_job,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (UserBook) TableName() string {
	return "user_books"
}

type WishlistItem struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	UserID       string      `gorm:"index;size:64;not null" json:"user_id"`
	BookID       string      `gorm:"index;size:100" json:"book_id,omitempty"`
	Book         BookDetails `gorm:"embedded;embeddedPrefix:book_" json:"book"`
	Priority     string      `gorm:"size:10" json:"priority"`
	Reason       string      `gorm:"type:text" json:"reason,omitempty"`
	TargetDate   *time.Time  `json:"target_date,omitempty"`
	PriceAlert   *float64    `json:"price_alert,omitempty"`
	CreatedByJob string      `gorm:"index;size:36" json:"created_by_job,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (WishlistItem) TableName() string {
	return "wishlist_items"
}

type Collection struct {
	ID           string           `gorm:"primaryKey;size:36" json:"id"`
	UserID       string           `gorm:"index;size:64;not null" json:"user_id"`
	Name         string           `gorm:"size:200;not null" json:"name"`
	Description  string           `gorm:"type:text" json:"description,omitempty"`
	Items        []CollectionItem `gorm:"foreignKey:CollectionID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedByJob string           `gorm:"index;size:36" json:"created_by_job,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (Collection) TableName() string {
	return "collections"
}

type CollectionItem struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	CollectionID string `gorm:"index;size:36;not null" json:"collection_id"`
	UserBookID   string `gorm:"index;size:36;not null" json:"user_book_id"`
	SortOrder    int    `json:"sort_order"`
}

func (CollectionItem) TableName() string {
	return "collection_items"
}

// ReadingSession rows are never updated once written.
type ReadingSession struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	UserID          string    `gorm:"index;size:64;not null" json:"user_id"`
	UserBookID      string    `gorm:"index;size:36;not null" json:"user_book_id"`
	StartPage       int       `json:"start_page"`
	EndPage         int       `json:"end_page"`
	PagesRead       int       `json:"pages_read"`
	SessionDate     time.Time `gorm:"index" json:"session_date"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	Notes           string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedByJob    string    `gorm:"index;size:36" json:"created_by_job,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (ReadingSession) TableName() string {
	return "reading_sessions"
}
