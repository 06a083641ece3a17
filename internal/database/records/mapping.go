package records

import (
	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/entities"
)

func toBookDetails(b canonical.Book) entities.BookDetails {
	return entities.BookDetails{
		ProviderID:    b.ID,
		ISBN10:        b.ISBN10,
		ISBN13:        b.ISBN13,
		Title:         b.Title,
		Subtitle:      b.Subtitle,
		Authors:       b.Authors,
		Publisher:     b.Publisher,
		PublishedDate: b.PublishedDate,
		Description:   b.Description,
		PageCount:     b.PageCount,
		Categories:    b.Categories,
		Language:      b.Language,
		ThumbnailURL:  b.ThumbnailURL,
		PreviewLink:   b.PreviewLink,
		InfoLink:      b.InfoLink,
		AverageRating: b.AverageRating,
		RatingsCount:  b.RatingsCount,
	}
}

func fromBookDetails(b entities.BookDetails) canonical.Book {
	return canonical.Book{
		ID:            b.ProviderID,
		ISBN10:        b.ISBN10,
		ISBN13:        b.ISBN13,
		Title:         b.Title,
		Subtitle:      b.Subtitle,
		Authors:       b.Authors,
		Publisher:     b.Publisher,
		PublishedDate: b.PublishedDate,
		Description:   b.Description,
		PageCount:     b.PageCount,
		Categories:    b.Categories,
		Language:      b.Language,
		ThumbnailURL:  b.ThumbnailURL,
		PreviewLink:   b.PreviewLink,
		InfoLink:      b.InfoLink,
		AverageRating: b.AverageRating,
		RatingsCount:  b.RatingsCount,
	}
}

func toUserBook(ub canonical.UserBook) entities.UserBook {
	return entities.UserBook{
		ID:           ub.ID,
		UserID:       ub.UserID,
		BookID:       ub.BookID,
		Book:         toBookDetails(ub.Book),
		Status:       string(ub.Status),
		CurrentPage:  ub.CurrentPage,
		Rating:       ub.Rating,
		Review:       ub.Review,
		Notes:        ub.Notes,
		Tags:         ub.Tags,
		IsFavorite:   ub.IsFavorite,
		AcquiredDate: ub.AcquiredDate,
		StartDate:    ub.StartDate,
		FinishDate:   ub.FinishDate,
	}
}

func fromUserBook(e entities.UserBook) canonical.UserBook {
	return canonical.UserBook{
		ID:           e.ID,
		UserID:       e.UserID,
		BookID:       e.BookID,
		Book:         fromBookDetails(e.Book),
		Status:       canonical.Status(e.Status),
		CurrentPage:  e.CurrentPage,
		Rating:       e.Rating,
		Review:       e.Review,
		Notes:        e.Notes,
		Tags:         e.Tags,
		IsFavorite:   e.IsFavorite,
		AcquiredDate: e.AcquiredDate,
		StartDate:    e.StartDate,
		FinishDate:   e.FinishDate,
	}
}

func toWishlistItem(wi canonical.WishlistItem) entities.WishlistItem {
	return entities.WishlistItem{
		ID:         wi.ID,
		UserID:     wi.UserID,
		BookID:     wi.BookID,
		Book:       toBookDetails(wi.Book),
		Priority:   string(wi.Priority),
		Reason:     wi.Reason,
		TargetDate: wi.TargetDate,
		PriceAlert: wi.PriceAlert,
	}
}

func fromWishlistItem(e entities.WishlistItem) canonical.WishlistItem {
	return canonical.WishlistItem{
		ID:         e.ID,
		UserID:     e.UserID,
		BookID:     e.BookID,
		Book:       fromBookDetails(e.Book),
		Priority:   canonical.Priority(e.Priority),
		Reason:     e.Reason,
		TargetDate: e.TargetDate,
		PriceAlert: e.PriceAlert,
	}
}

func toCollection(c canonical.Collection) entities.Collection {
	out := entities.Collection{
		ID:          c.ID,
		UserID:      c.UserID,
		Name:        c.Name,
		Description: c.Description,
	}
	for _, it := range c.Items {
		out.Items = append(out.Items, entities.CollectionItem{
			CollectionID: c.ID,
			UserBookID:   it.UserBookID,
			SortOrder:    it.SortOrder,
		})
	}
	return out
}

func fromCollection(e entities.Collection) canonical.Collection {
	out := canonical.Collection{
		ID:          e.ID,
		UserID:      e.UserID,
		Name:        e.Name,
		Description: e.Description,
		Items:       make([]canonical.CollectionItem, 0, len(e.Items)),
	}
	for _, it := range e.Items {
		out.Items = append(out.Items, canonical.CollectionItem{UserBookID: it.UserBookID, SortOrder: it.SortOrder})
	}
	return out
}

func fromReadingSession(e entities.ReadingSession) canonical.ReadingSession {
	return canonical.ReadingSession{
		ID:              e.ID,
		UserBookID:      e.UserBookID,
		StartPage:       e.StartPage,
		EndPage:         e.EndPage,
		PagesRead:       e.PagesRead,
		SessionDate:     e.SessionDate,
		DurationMinutes: e.DurationMinutes,
		Notes:           e.Notes,
	}
}
