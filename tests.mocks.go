package main

import (
	"context"
	"time"
)

// This file contains mocks definitions needed to perform unit tests.

// MockLibraryAPI implements LibraryAPI with overridable functions so
// each test scripts exactly the transport behavior it needs. Calls
// counters make "no request was sent" assertions possible.
type MockLibraryAPI struct {
	ListBooksFunc     func(ctx context.Context, page, limit int) (BookList, error)
	GetBookFunc       func(ctx context.Context, id string) (Book, error)
	CreateBookFunc    func(ctx context.Context, draft BookDraft) (Book, error)
	UpdateBookFunc    func(ctx context.Context, id string, draft BookDraft) (Book, error)
	DeleteBookFunc    func(ctx context.Context, id string) error
	BorrowFunc        func(ctx context.Context, req BorrowRequest) (BorrowRecord, error)
	BorrowSummaryFunc func(ctx context.Context) ([]BorrowSummaryEntry, error)

	ListBooksCalls     int
	GetBookCalls       int
	CreateBookCalls    int
	UpdateBookCalls    int
	DeleteBookCalls    int
	BorrowCalls        int
	BorrowSummaryCalls int
}

var _ LibraryAPI = (*MockLibraryAPI)(nil)

// ListBooks mocks the behavior of fetching one catalog page.
func (m *MockLibraryAPI) ListBooks(ctx context.Context, page, limit int) (BookList, error) {
	m.ListBooksCalls++
	return m.ListBooksFunc(ctx, page, limit)
}

// GetBook mocks the behavior of fetching one book record.
func (m *MockLibraryAPI) GetBook(ctx context.Context, id string) (Book, error) {
	m.GetBookCalls++
	return m.GetBookFunc(ctx, id)
}

// CreateBook mocks the behavior of submitting a new book.
func (m *MockLibraryAPI) CreateBook(ctx context.Context, draft BookDraft) (Book, error) {
	m.CreateBookCalls++
	return m.CreateBookFunc(ctx, draft)
}

// UpdateBook mocks the behavior of replacing a book's fields.
func (m *MockLibraryAPI) UpdateBook(ctx context.Context, id string, draft BookDraft) (Book, error) {
	m.UpdateBookCalls++
	return m.UpdateBookFunc(ctx, id, draft)
}

// DeleteBook mocks the behavior of removing a book.
func (m *MockLibraryAPI) DeleteBook(ctx context.Context, id string) error {
	m.DeleteBookCalls++
	return m.DeleteBookFunc(ctx, id)
}

// Borrow mocks the behavior of submitting a borrow request.
func (m *MockLibraryAPI) Borrow(ctx context.Context, req BorrowRequest) (BorrowRecord, error) {
	m.BorrowCalls++
	return m.BorrowFunc(ctx, req)
}

// BorrowSummary mocks the behavior of fetching the borrow aggregates.
func (m *MockLibraryAPI) BorrowSummary(ctx context.Context) ([]BorrowSummaryEntry, error) {
	m.BorrowSummaryCalls++
	return m.BorrowSummaryFunc(ctx)
}

// MockLibraryStorage implements LibraryStorage for handler tests.
type MockLibraryStorage struct {
	AddBookFunc       func(ctx context.Context, book Book) error
	GetBookFunc       func(ctx context.Context, id string) (Book, error)
	UpdateBookFunc    func(ctx context.Context, id string, book Book) (Book, error)
	DeleteBookFunc    func(ctx context.Context, id string) error
	ListBooksFunc     func(ctx context.Context, page, limit int) ([]Book, int, error)
	RecordBorrowFunc  func(ctx context.Context, record BorrowRecord) error
	BorrowSummaryFunc func(ctx context.Context) ([]BorrowSummaryEntry, error)
}

var _ LibraryStorage = (*MockLibraryStorage)(nil)

// AddBook mocks the behavior of book creation by the repository.
func (m *MockLibraryStorage) AddBook(ctx context.Context, book Book) error {
	return m.AddBookFunc(ctx, book)
}

// GetBook mocks the behavior of retrieving a book by the repository.
func (m *MockLibraryStorage) GetBook(ctx context.Context, id string) (Book, error) {
	return m.GetBookFunc(ctx, id)
}

// UpdateBook mocks the behavior of updating a book by the repository.
func (m *MockLibraryStorage) UpdateBook(ctx context.Context, id string, book Book) (Book, error) {
	return m.UpdateBookFunc(ctx, id, book)
}

// DeleteBook mocks the behavior of deleting a book by the repository.
func (m *MockLibraryStorage) DeleteBook(ctx context.Context, id string) error {
	return m.DeleteBookFunc(ctx, id)
}

// ListBooks mocks the behavior of paging the catalog by the repository.
func (m *MockLibraryStorage) ListBooks(ctx context.Context, page, limit int) ([]Book, int, error) {
	return m.ListBooksFunc(ctx, page, limit)
}

// RecordBorrow mocks the behavior of recording a borrow by the repository.
func (m *MockLibraryStorage) RecordBorrow(ctx context.Context, record BorrowRecord) error {
	return m.RecordBorrowFunc(ctx, record)
}

// BorrowSummary mocks the behavior of aggregating borrows by the repository.
func (m *MockLibraryStorage) BorrowSummary(ctx context.Context) ([]BorrowSummaryEntry, error) {
	return m.BorrowSummaryFunc(ctx)
}

// Close mocks the repository teardown.
func (m *MockLibraryStorage) Close() error {
	return nil
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time. This
// equals to `Sun, 02 Jul 2023 00:00:00 UTC` in time.RFC1123 format.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns an already defined time to be used as mock.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// MockUIDHandler implements a fake UIDHandler.
type MockUIDHandler struct {
	MockedUID string
	Valid     bool
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string, valid bool) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id, Valid: valid}
}

// Generate constructs a predictable id to be used as mock.
func (muid *MockUIDHandler) Generate(prefix string) string {
	return prefix + ":" + muid.MockedUID
}

// IsValid mocks IsValid behavior by providing configured status.
func (muid *MockUIDHandler) IsValid(_, _ string) bool {
	return muid.Valid
}
