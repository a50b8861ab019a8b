package main

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// mutation identifies a write operation for the invalidation table.
type mutation string

const (
	MutationCreateBook mutation = "createBook"
	MutationUpdateBook mutation = "updateBook"
	MutationDeleteBook mutation = "deleteBook"
	MutationBorrow     mutation = "borrow"
)

// invalidationRules declares which cached key classes go stale after
// each mutation. KeyClassBookDetail is narrowed to the touched book id
// when the rule is applied. The rules are conservative on purpose:
// the whole list class is wiped rather than working out which pages
// a write actually moved.
var invalidationRules = map[mutation][]string{
	MutationCreateBook: {KeyClassBookList},
	MutationUpdateBook: {KeyClassBookList, KeyClassBookDetail},
	MutationDeleteBook: {KeyClassBookList, KeyClassBookDetail},
	MutationBorrow:     {KeyClassBookList, KeyClassBookDetail, KeyClassBorrowSummary},
}

// Library is the data access layer: every read goes through the cache
// store, every mutation goes to the service then stales the dependent
// cache classes so observing views refetch.
type Library struct {
	logger *zap.Logger
	api    LibraryAPI
	store  *Store
	clock  Clocker

	// pageLimit is the fallback when a caller passes limit <= 0.
	pageLimit int
}

// NewLibrary provides a ready to use data access layer.
func NewLibrary(logger *zap.Logger, api LibraryAPI, store *Store, clock Clocker, pageLimit int) *Library {
	if pageLimit <= 0 {
		pageLimit = 20
	}
	return &Library{
		logger:    logger,
		api:       api,
		store:     store,
		clock:     clock,
		pageLimit: pageLimit,
	}
}

// Store exposes the underlying cache for subscriptions.
func (l *Library) Store() *Store {
	return l.store
}

// Clock exposes the injected clock, used by the borrow flow.
func (l *Library) Clock() Clocker {
	return l.clock
}

func (l *Library) invalidateAfter(m mutation, bookID string) {
	rules := invalidationRules[m]
	classes := make([]string, 0, len(rules))
	for _, class := range rules {
		if class == KeyClassBookDetail {
			class = BookDetailKey(bookID)
		}
		classes = append(classes, class)
	}
	l.store.Invalidate(classes...)
	l.logger.Debug("library: invalidated after mutation", zap.String("mutation", string(m)), zap.Strings("classes", classes))
}

// ListBooks returns one page of the catalog. Out of range paging
// inputs fall back to the defaults. Each book of the fetched page
// also primes its own detail entry, so a detail view opened from the
// list renders without a second request.
func (l *Library) ListBooks(ctx context.Context, page, limit int) (BookList, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = l.pageLimit
	}
	v, err := l.store.Query(ctx, BookListKey(page, limit), func(ctx context.Context) (interface{}, error) {
		list, err := l.api.ListBooks(ctx, page, limit)
		if err != nil {
			return nil, err
		}
		for _, book := range list.Items {
			l.store.Prime(BookDetailKey(book.ID), book)
		}
		return list, nil
	})
	if err != nil {
		return BookList{}, err
	}
	return v.(BookList), nil
}

// GetBook returns one book record, from cache when fresh.
func (l *Library) GetBook(ctx context.Context, id string) (Book, error) {
	v, err := l.store.Query(ctx, BookDetailKey(id), func(ctx context.Context) (interface{}, error) {
		return l.api.GetBook(ctx, id)
	})
	if err != nil {
		return Book{}, err
	}
	return v.(Book), nil
}

// CreateBook validates the draft locally then submits it. A draft
// missing its required fields fails before any request is sent and
// leaves the cache untouched.
func (l *Library) CreateBook(ctx context.Context, draft BookDraft) (Book, error) {
	if err := ValidateBookDraft(&draft); err != nil {
		return Book{}, err
	}
	book, err := l.api.CreateBook(ctx, draft)
	if err != nil {
		return Book{}, err
	}
	l.invalidateAfter(MutationCreateBook, book.ID)
	return book, nil
}

// UpdateBook replaces the client-settable fields of one book.
func (l *Library) UpdateBook(ctx context.Context, id string, draft BookDraft) (Book, error) {
	if err := ValidateBookDraft(&draft); err != nil {
		return Book{}, err
	}
	book, err := l.api.UpdateBook(ctx, id, draft)
	if err != nil {
		return Book{}, err
	}
	l.invalidateAfter(MutationUpdateBook, id)
	return book, nil
}

// DeleteBook removes one book. Its detail entry is dropped outright
// so a later GetBook refetches and surfaces the service's not-found.
func (l *Library) DeleteBook(ctx context.Context, id string) error {
	if err := l.api.DeleteBook(ctx, id); err != nil {
		return err
	}
	l.store.Drop(BookDetailKey(id))
	l.invalidateAfter(MutationDeleteBook, id)
	return nil
}

// Borrow submits a borrow request. Field presence is checked here so
// the scripted commands share the guard; the availability pre-check
// against the fetched copy count lives in the borrow flow, which is
// the only place holding a loaded book.
func (l *Library) Borrow(ctx context.Context, req BorrowRequest) (BorrowRecord, error) {
	if len(req.BookID) == 0 {
		return BorrowRecord{}, &ValidationError{Field: "bookId", Reason: "book id is required"}
	}
	if len(strings.TrimSpace(req.BorrowerName)) == 0 {
		return BorrowRecord{}, &ValidationError{Field: "borrowerName", Reason: "borrower name is required"}
	}
	if req.Quantity < 1 {
		return BorrowRecord{}, &ValidationError{Field: "quantity", Reason: "quantity must be at least 1"}
	}
	if len(req.DueDate) == 0 {
		return BorrowRecord{}, &ValidationError{Field: "dueDate", Reason: "due date is required"}
	}
	record, err := l.api.Borrow(ctx, req)
	if err != nil {
		return BorrowRecord{}, err
	}
	l.invalidateAfter(MutationBorrow, req.BookID)
	return record, nil
}

// BorrowSummary returns the per-book borrow aggregates.
func (l *Library) BorrowSummary(ctx context.Context) ([]BorrowSummaryEntry, error) {
	v, err := l.store.Query(ctx, BorrowSummaryKey(), func(ctx context.Context) (interface{}, error) {
		return l.api.BorrowSummary(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]BorrowSummaryEntry), nil
}
