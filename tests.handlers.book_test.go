package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAPIHandler(storage LibraryStorage) *APIHandler {
	return NewAPIHandler(
		zap.NewNop(),
		DefaultConfig(),
		NewMockClocker(),
		NewMockUIDHandler("fixed", true),
		&Statistics{started: time.Now()},
		storage,
	)
}

// TestCreateBookHandler ensures the service creates a book from a
// valid draft and rejects incomplete ones before any write.
func TestCreateBookHandler(t *testing.T) {
	t.Run("should pass: valid payload", func(t *testing.T) {
		var stored Book
		mockRepo := &MockLibraryStorage{
			AddBookFunc: func(ctx context.Context, book Book) error {
				stored = book
				return nil
			},
		}
		api := newTestAPIHandler(mockRepo)
		draft := BookDraft{Title: "Dune", Author: "Frank Herbert", Copies: 3}
		payload, err := json.Marshal(draft)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/books", bytes.NewReader(payload))
		w := httptest.NewRecorder()
		api.CreateBook(w, req, httprouter.Params{})
		res := w.Result()
		defer res.Body.Close()

		assert.Equal(t, http.StatusCreated, res.StatusCode)
		var book Book
		require.NoError(t, json.NewDecoder(res.Body).Decode(&book))
		assert.Equal(t, "b:fixed", book.ID)
		assert.Equal(t, "Dune", book.Title)
		assert.True(t, book.Available)
		assert.Equal(t, "2023-07-02T00:00:00Z", book.CreatedAt)
		assert.Equal(t, stored.ID, book.ID)
	})

	t.Run("should fail: missing title", func(t *testing.T) {
		mockRepo := &MockLibraryStorage{
			AddBookFunc: func(ctx context.Context, book Book) error {
				t.Fatal("no write must happen for an invalid draft")
				return nil
			},
		}
		api := newTestAPIHandler(mockRepo)
		req := httptest.NewRequest(http.MethodPost, "/books", bytes.NewReader([]byte(`{"author":"Frank Herbert"}`)))
		w := httptest.NewRecorder()
		api.CreateBook(w, req, httprouter.Params{})
		res := w.Result()
		defer res.Body.Close()

		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		var apiErr APIError
		require.NoError(t, json.NewDecoder(res.Body).Decode(&apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		assert.Contains(t, apiErr.Message, "title")
	})

	t.Run("should fail: malformed body", func(t *testing.T) {
		api := newTestAPIHandler(&MockLibraryStorage{})
		req := httptest.NewRequest(http.MethodPost, "/books", bytes.NewReader([]byte(`{not json`)))
		w := httptest.NewRecorder()
		api.CreateBook(w, req, httprouter.Params{})
		res := w.Result()
		defer res.Body.Close()
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("should pass: zero copies created unavailable", func(t *testing.T) {
		mockRepo := &MockLibraryStorage{
			AddBookFunc: func(ctx context.Context, book Book) error { return nil },
		}
		api := newTestAPIHandler(mockRepo)
		req := httptest.NewRequest(http.MethodPost, "/books", bytes.NewReader([]byte(`{"title":"Dune","author":"Frank Herbert","copies":0}`)))
		w := httptest.NewRecorder()
		api.CreateBook(w, req, httprouter.Params{})
		res := w.Result()
		defer res.Body.Close()

		assert.Equal(t, http.StatusCreated, res.StatusCode)
		var book Book
		require.NoError(t, json.NewDecoder(res.Body).Decode(&book))
		assert.False(t, book.Available)
	})
}

// TestGetAllBooksHandler ensures the paged catalog read serves the
// bare page payload with its total.
func TestGetAllBooksHandler(t *testing.T) {
	mockRepo := &MockLibraryStorage{
		ListBooksFunc: func(ctx context.Context, page, limit int) ([]Book, int, error) {
			assert.Equal(t, 2, page)
			assert.Equal(t, 5, limit)
			return []Book{{ID: "b:1", Title: "Dune"}}, 11, nil
		},
	}
	api := newTestAPIHandler(mockRepo)
	req := httptest.NewRequest(http.MethodGet, "/books?page=2&limit=5", nil)
	w := httptest.NewRecorder()
	api.GetAllBooks(w, req, httprouter.Params{})
	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json; charset=UTF-8", res.Header.Get("Content-Type"))
	var list BookList
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	assert.Equal(t, 11, list.Total)
	require.Len(t, list.Items, 1)
}

// TestGetOneBookHandler ensures found and missing books map to their
// statuses.
func TestGetOneBookHandler(t *testing.T) {
	mockRepo := &MockLibraryStorage{
		GetBookFunc: func(ctx context.Context, id string) (Book, error) {
			if id == "b:1" {
				return Book{ID: "b:1", Title: "Dune"}, nil
			}
			return Book{}, ErrBookNotFound
		},
	}
	api := newTestAPIHandler(mockRepo)

	t.Run("should pass: existing book", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/books/b:1", nil)
		w := httptest.NewRecorder()
		api.GetOneBook(w, req, httprouter.Params{{Key: "id", Value: "b:1"}})
		res := w.Result()
		defer res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("should fail: unknown book", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/books/b:404", nil)
		w := httptest.NewRecorder()
		api.GetOneBook(w, req, httprouter.Params{{Key: "id", Value: "b:404"}})
		res := w.Result()
		defer res.Body.Close()

		assert.Equal(t, http.StatusNotFound, res.StatusCode)
		var apiErr APIError
		require.NoError(t, json.NewDecoder(res.Body).Decode(&apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	})
}

// TestUpdateBookHandler ensures an update recomputes availability
// from the copies left.
func TestUpdateBookHandler(t *testing.T) {
	mockRepo := &MockLibraryStorage{
		GetBookFunc: func(ctx context.Context, id string) (Book, error) {
			return Book{ID: id, Title: "Dune", Author: "Frank Herbert", Copies: 3, Available: true}, nil
		},
		UpdateBookFunc: func(ctx context.Context, id string, book Book) (Book, error) {
			return book, nil
		},
	}
	api := newTestAPIHandler(mockRepo)
	payload := []byte(`{"title":"Dune","author":"Frank Herbert","copies":0,"available":true}`)
	req := httptest.NewRequest(http.MethodPut, "/books/b:1", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	api.UpdateBook(w, req, httprouter.Params{{Key: "id", Value: "b:1"}})
	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	var book Book
	require.NoError(t, json.NewDecoder(res.Body).Decode(&book))
	assert.False(t, book.Available, "availability comes from copies, not from the payload")
	assert.Equal(t, "2023-07-02T00:00:00Z", book.UpdatedAt)
}

// TestDeleteOneBookHandler ensures deletion of a missing book is a
// 404 and of an existing one a bare 204.
func TestDeleteOneBookHandler(t *testing.T) {
	mockRepo := &MockLibraryStorage{
		DeleteBookFunc: func(ctx context.Context, id string) error {
			if id == "b:1" {
				return nil
			}
			return ErrBookNotFound
		},
	}
	api := newTestAPIHandler(mockRepo)

	req := httptest.NewRequest(http.MethodDelete, "/books/b:1", nil)
	w := httptest.NewRecorder()
	api.DeleteOneBook(w, req, httprouter.Params{{Key: "id", Value: "b:1"}})
	res := w.Result()
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	req = httptest.NewRequest(http.MethodDelete, "/books/b:404", nil)
	w = httptest.NewRecorder()
	api.DeleteOneBook(w, req, httprouter.Params{{Key: "id", Value: "b:404"}})
	res = w.Result()
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

// TestBorrowBookHandler covers the borrow endpoint: happy path,
// over-borrow conflict and validation rejections.
//
//nolint:funlen
func TestBorrowBookHandler(t *testing.T) {
	t.Run("should pass: copies available", func(t *testing.T) {
		var recorded BorrowRecord
		mockRepo := &MockLibraryStorage{
			RecordBorrowFunc: func(ctx context.Context, record BorrowRecord) error {
				recorded = record
				return nil
			},
		}
		api := newTestAPIHandler(mockRepo)
		payload := []byte(`{"borrowerName":"ada","quantity":2,"dueDate":"2023-07-16"}`)
		req := httptest.NewRequest(http.MethodPost, "/borrows/b:1", bytes.NewReader(payload))
		w := httptest.NewRecorder()
		api.BorrowBook(w, req, httprouter.Params{{Key: "id", Value: "b:1"}})
		res := w.Result()
		defer res.Body.Close()

		assert.Equal(t, http.StatusCreated, res.StatusCode)
		var record BorrowRecord
		require.NoError(t, json.NewDecoder(res.Body).Decode(&record))
		assert.Equal(t, "w:fixed", record.ID)
		assert.Equal(t, "b:1", record.BookID)
		assert.Equal(t, 2, record.Quantity)
		assert.Equal(t, recorded.ID, record.ID)
	})

	t.Run("should fail: not enough copies", func(t *testing.T) {
		mockRepo := &MockLibraryStorage{
			RecordBorrowFunc: func(ctx context.Context, record BorrowRecord) error {
				return ErrNotEnoughCopies
			},
		}
		api := newTestAPIHandler(mockRepo)
		payload := []byte(`{"borrowerName":"ada","quantity":9,"dueDate":"2023-07-16"}`)
		req := httptest.NewRequest(http.MethodPost, "/borrows/b:1", bytes.NewReader(payload))
		w := httptest.NewRecorder()
		api.BorrowBook(w, req, httprouter.Params{{Key: "id", Value: "b:1"}})
		res := w.Result()
		defer res.Body.Close()

		assert.Equal(t, http.StatusConflict, res.StatusCode)
		var apiErr APIError
		require.NoError(t, json.NewDecoder(res.Body).Decode(&apiErr))
		assert.Equal(t, "not enough copies available", apiErr.Message)
	})

	t.Run("should fail: unknown book", func(t *testing.T) {
		mockRepo := &MockLibraryStorage{
			RecordBorrowFunc: func(ctx context.Context, record BorrowRecord) error {
				return ErrBookNotFound
			},
		}
		api := newTestAPIHandler(mockRepo)
		payload := []byte(`{"borrowerName":"ada","quantity":1,"dueDate":"2023-07-16"}`)
		req := httptest.NewRequest(http.MethodPost, "/borrows/b:404", bytes.NewReader(payload))
		w := httptest.NewRecorder()
		api.BorrowBook(w, req, httprouter.Params{{Key: "id", Value: "b:404"}})
		res := w.Result()
		res.Body.Close()
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("should fail: validation rejections", func(t *testing.T) {
		api := newTestAPIHandler(&MockLibraryStorage{
			RecordBorrowFunc: func(ctx context.Context, record BorrowRecord) error {
				t.Fatal("no write must happen for an invalid borrow")
				return nil
			},
		})
		cases := []struct {
			name    string
			payload string
		}{
			{"missing borrower", `{"quantity":1,"dueDate":"2023-07-16"}`},
			{"zero quantity", `{"borrowerName":"ada","quantity":0,"dueDate":"2023-07-16"}`},
			{"bad due date", `{"borrowerName":"ada","quantity":1,"dueDate":"16/07/2023"}`},
			{"past due date", `{"borrowerName":"ada","quantity":1,"dueDate":"2023-07-01"}`},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodPost, "/borrows/b:1", bytes.NewReader([]byte(tc.payload)))
				w := httptest.NewRecorder()
				api.BorrowBook(w, req, httprouter.Params{{Key: "id", Value: "b:1"}})
				res := w.Result()
				res.Body.Close()
				assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			})
		}
	})
}

// TestGetBorrowSummaryHandler ensures the aggregates are served as a
// bare array.
func TestGetBorrowSummaryHandler(t *testing.T) {
	mockRepo := &MockLibraryStorage{
		BorrowSummaryFunc: func(ctx context.Context) ([]BorrowSummaryEntry, error) {
			return []BorrowSummaryEntry{{BookID: "b:1", Title: "Dune", TotalQuantity: 5}}, nil
		},
	}
	api := newTestAPIHandler(mockRepo)
	req := httptest.NewRequest(http.MethodGet, "/borrows/summary", nil)
	w := httptest.NewRecorder()
	api.GetBorrowSummary(w, req, httprouter.Params{})
	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var entries []BorrowSummaryEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, 5, entries[0].TotalQuantity)
}
