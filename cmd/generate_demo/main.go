// Command generate_demo writes a demo library export built from public domain
// books and optionally imports it into a fresh database.
// Usage: go run ./cmd/generate_demo [-out demo/library.json] [-format json] [-db demo/demo.db]
package main

import (
	"bytes"
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/entrypoint"
	"github.com/mrlokans/bookshelf/internal/exporters"
	"github.com/mrlokans/bookshelf/internal/services"
)

const (
	defaultDemoOutPath = "./demo/library.json"
	demoUserID         = "demo"
)

func main() {
	outPath := flag.String("out", defaultDemoOutPath, "path of the generated export file")
	format := flag.String("format", string(canonical.FormatJSON), "export format: json, csv or goodreads")
	dbPath := flag.String("db", "", "if set, import the generated file into a fresh database at this path")
	flag.Parse()

	f, err := canonical.ParseFormat(*format)
	if err != nil {
		log.Fatalf("Invalid format: %v", err)
	}

	payload, err := exporters.Build(demoDataset(time.Now().UTC()), demoUserID, exporters.Options{Format: f}, time.Now())
	if err != nil {
		log.Fatalf("Failed to build demo export: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if err := os.WriteFile(*outPath, payload.Body, 0644); err != nil {
		log.Fatalf("Failed to write demo export: %v", err)
	}
	log.Printf("Wrote %d demo records to %s", payload.Metadata.TotalRecords, *outPath)

	if *dbPath == "" {
		return
	}

	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}
	cfg := config.NewConfig()
	cfg.Database.Path = *dbPath
	cfg.Audit.Dir = ""
	app, err := entrypoint.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer app.Close()

	ctx := context.Background()
	app.Imports.SetRunner(services.InlineRunner(app.Imports.Process))
	preview, err := app.Imports.Preview(ctx, services.PreviewRequest{
		UserID:   demoUserID,
		Filename: filepath.Base(*outPath),
		Format:   f,
		Body:     bytes.NewReader(payload.Body),
	})
	if err != nil {
		log.Fatalf("Failed to preview demo export: %v", err)
	}
	job, err := app.Imports.Confirm(ctx, services.ConfirmRequest{UserID: demoUserID, UploadID: preview.UploadID})
	if err != nil {
		log.Fatalf("Failed to import demo export: %v", err)
	}
	job, err = app.Imports.Jobs().Get(ctx, job.ID)
	if err != nil {
		log.Fatalf("Failed to load demo job: %v", err)
	}
	log.Printf("Demo import %s: %d books added", job.Status, job.Summary.BooksAdded())
}

func ptr[T any](v T) *T { return &v }

func demoDataset(now time.Time) *canonical.Dataset {
	day := func(daysAgo int) time.Time {
		return now.AddDate(0, 0, -daysAgo).Truncate(24 * time.Hour)
	}

	return &canonical.Dataset{
		UserBooks: []canonical.UserBook{
			{
				ID: "demo-meditations",
				Book: canonical.Book{
					Title:         "Meditations",
					Authors:       []string{"Marcus Aurelius"},
					PublishedDate: "0180",
					PageCount:     254,
					Categories:    []string{"philosophy", "classic"},
				},
				Status:      canonical.StatusCompleted,
				CurrentPage: 254,
				Rating:      ptr(5),
				IsFavorite:  true,
				Tags:        []string{"stoicism"},
				StartDate:   ptr(day(60)),
				FinishDate:  ptr(day(30)),
			},
			{
				ID: "demo-walden",
				Book: canonical.Book{
					Title:         "Walden",
					Authors:       []string{"Henry David Thoreau"},
					ISBN13:        "9780486284958",
					PublishedDate: "1854",
					PageCount:     224,
				},
				Status:      canonical.StatusReading,
				CurrentPage: 96,
				StartDate:   ptr(day(14)),
			},
			{
				ID: "demo-pride",
				Book: canonical.Book{
					Title:         "Pride and Prejudice",
					Authors:       []string{"Jane Austen"},
					PublishedDate: "1813",
					PageCount:     432,
					Categories:    []string{"fiction", "classic"},
				},
				Status: canonical.StatusWantToRead,
			},
			{
				ID: "demo-origin",
				Book: canonical.Book{
					Title:         "On the Origin of Species",
					Authors:       []string{"Charles Darwin"},
					PublishedDate: "1859",
					PageCount:     502,
					Categories:    []string{"science"},
				},
				Status:      canonical.StatusPaused,
				CurrentPage: 140,
				Notes:       "Picking this up again after the holidays.",
			},
		},
		WishlistItems: []canonical.WishlistItem{
			{
				Book:     canonical.Book{Title: "The Art of War", Authors: []string{"Sun Tzu"}},
				Priority: canonical.PriorityHigh,
				Reason:   "Recommended alongside Meditations",
			},
			{
				Book:     canonical.Book{Title: "Frankenstein", Authors: []string{"Mary Shelley"}},
				Priority: canonical.PriorityLow,
			},
		},
		Collections: []canonical.Collection{
			{
				Name:        "Philosophy shelf",
				Description: "Books to reread every few years",
				Items: []canonical.CollectionItem{
					{UserBookID: "demo-meditations", SortOrder: 0},
					{UserBookID: "demo-walden", SortOrder: 1},
				},
			},
		},
		ReadingSessions: []canonical.ReadingSession{
			{UserBookID: "demo-walden", StartPage: 1, EndPage: 48, SessionDate: day(14), DurationMinutes: 55},
			{UserBookID: "demo-walden", StartPage: 49, EndPage: 96, SessionDate: day(7), DurationMinutes: 60},
			{UserBookID: "demo-origin", StartPage: 1, EndPage: 140, SessionDate: day(90), DurationMinutes: 240},
		},
	}
}
