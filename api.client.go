package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LibraryAPI is the transport contract against the remote library
// service. Implementations issue one HTTP request per call and map
// every failure to the client error taxonomy; nothing transport-level
// leaks to callers.
type LibraryAPI interface {
	ListBooks(ctx context.Context, page, limit int) (BookList, error)
	GetBook(ctx context.Context, id string) (Book, error)
	CreateBook(ctx context.Context, draft BookDraft) (Book, error)
	UpdateBook(ctx context.Context, id string, draft BookDraft) (Book, error)
	DeleteBook(ctx context.Context, id string) error
	Borrow(ctx context.Context, req BorrowRequest) (BorrowRecord, error)
	BorrowSummary(ctx context.Context) ([]BorrowSummaryEntry, error)
}

var _ LibraryAPI = (*APIClient)(nil) // ensure APIClient implements LibraryAPI.

// APIClient talks to one deployment of the library service.
type APIClient struct {
	logger *zap.Logger
	config *APIConfig
	ids    UIDHandler
	http   *http.Client
}

// NewAPIClient provides a ready to use client for the configured base url.
func NewAPIClient(logger *zap.Logger, config *APIConfig, ids UIDHandler) *APIClient {
	return &APIClient{
		logger: logger,
		config: config,
		ids:    ids,
		http:   &http.Client{Timeout: config.RequestTimeout},
	}
}

// serviceError carries a non-2xx response until the calling operation
// maps it to the public taxonomy.
type serviceError struct {
	status  int
	message string
}

func (e *serviceError) Error() string {
	return fmt.Sprintf("service replied %d: %s", e.status, e.message)
}

// errorBody is the error shape the service sends on rejections.
type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// do performs one request and decodes a 2xx response body into out
// when out is non-nil. Network level failures become TransportError
// right here; non-2xx statuses come back as *serviceError for the
// caller to classify.
func (c *APIClient) do(ctx context.Context, op, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: op, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.config.BaseURL, "/")+path, reader)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	requestID := c.ids.Generate(RequestIDPrefix)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("api: request failed",
			zap.String("op", op),
			zap.String("request.id", requestID),
			zap.Error(err),
		)
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}

	c.logger.Debug("api: request done",
		zap.String("op", op),
		zap.String("request.id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return &serviceError{status: resp.StatusCode, message: eb.Message}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("malformed response body: %w", err)}
	}
	return nil
}

// classify turns a *serviceError into the public error kind for an
// operation scoped to one entity. Other errors pass through.
func classify(op, kind, id string, err error) error {
	var se *serviceError
	if !errors.As(err, &se) {
		return err
	}
	switch se.status {
	case http.StatusNotFound:
		return &NotFoundError{Kind: kind, ID: id}
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return &ConflictError{Message: se.message}
	default:
		return &TransportError{Op: op, Status: se.status}
	}
}

// ListBooks fetches one page of the catalog.
func (c *APIClient) ListBooks(ctx context.Context, page, limit int) (BookList, error) {
	var list BookList
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("limit", fmt.Sprint(limit))
	err := c.do(ctx, "list books", http.MethodGet, "/books?"+q.Encode(), nil, &list)
	if err != nil {
		return list, classify("list books", "book list", "", err)
	}
	if list.Items == nil {
		list.Items = []Book{}
	}
	return list, nil
}

// GetBook fetches a single book record.
func (c *APIClient) GetBook(ctx context.Context, id string) (Book, error) {
	var book Book
	err := c.do(ctx, "get book", http.MethodGet, "/books/"+url.PathEscape(id), nil, &book)
	if err != nil {
		return book, classify("get book", "book", id, err)
	}
	return book, nil
}

// CreateBook submits a new catalog entry.
func (c *APIClient) CreateBook(ctx context.Context, draft BookDraft) (Book, error) {
	var book Book
	err := c.do(ctx, "create book", http.MethodPost, "/books", draft, &book)
	if err != nil {
		return book, classify("create book", "book", "", err)
	}
	return book, nil
}

// UpdateBook replaces the client-settable fields of a book.
func (c *APIClient) UpdateBook(ctx context.Context, id string, draft BookDraft) (Book, error) {
	var book Book
	err := c.do(ctx, "update book", http.MethodPut, "/books/"+url.PathEscape(id), draft, &book)
	if err != nil {
		return book, classify("update book", "book", id, err)
	}
	return book, nil
}

// DeleteBook removes a book record.
func (c *APIClient) DeleteBook(ctx context.Context, id string) error {
	err := c.do(ctx, "delete book", http.MethodDelete, "/books/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return classify("delete book", "book", id, err)
	}
	return nil
}

// Borrow submits a borrow request scoped to one book.
func (c *APIClient) Borrow(ctx context.Context, req BorrowRequest) (BorrowRecord, error) {
	var record BorrowRecord
	err := c.do(ctx, "borrow book", http.MethodPost, "/borrows/"+url.PathEscape(req.BookID), req, &record)
	if err != nil {
		return record, classify("borrow book", "book", req.BookID, err)
	}
	return record, nil
}

// BorrowSummary fetches the per-book borrow aggregates.
func (c *APIClient) BorrowSummary(ctx context.Context) ([]BorrowSummaryEntry, error) {
	entries := []BorrowSummaryEntry{}
	err := c.do(ctx, "borrow summary", http.MethodGet, "/borrows/summary", nil, &entries)
	if err != nil {
		return nil, classify("borrow summary", "borrow summary", "", err)
	}
	return entries, nil
}
