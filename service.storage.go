package main

import (
	"context"
	"sort"
)

// LibraryStorage defines the persistence operations the dev service
// needs. Both backends keep the borrow write and the copy decrement
// together so availability can never drift from the records.
type LibraryStorage interface {
	AddBook(ctx context.Context, book Book) error
	GetBook(ctx context.Context, id string) (Book, error)
	UpdateBook(ctx context.Context, id string, book Book) (Book, error)
	DeleteBook(ctx context.Context, id string) error
	ListBooks(ctx context.Context, page, limit int) ([]Book, int, error)
	RecordBorrow(ctx context.Context, record BorrowRecord) error
	BorrowSummary(ctx context.Context) ([]BorrowSummaryEntry, error)
	Close() error
}

// sortBooks fixes the catalog order for pagination: newest first,
// id as tiebreaker so pages stay stable between requests.
func sortBooks(books []Book) {
	sort.SliceStable(books, func(i, j int) bool {
		if books[i].CreatedAt != books[j].CreatedAt {
			return books[i].CreatedAt > books[j].CreatedAt
		}
		return books[i].ID < books[j].ID
	})
}

// paginate slices one page out of the sorted catalog.
func paginate(books []Book, page, limit int) []Book {
	start := (page - 1) * limit
	if start >= len(books) {
		return []Book{}
	}
	end := start + limit
	if end > len(books) {
		end = len(books)
	}
	return books[start:end]
}
