package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Statistics tracks basics service counters since start.
type Statistics struct {
	version string
	started time.Time
	called  uint64
}

// APIHandler holds what the dev service endpoints need.
type APIHandler struct {
	logger     *zap.Logger
	config     *Config
	clock      Clocker
	idsHandler UIDHandler
	stats      *Statistics
	storage    LibraryStorage
}

// NewAPIHandler provides the dev service handler set.
func NewAPIHandler(logger *zap.Logger, config *Config, clock Clocker, ids UIDHandler, stats *Statistics, storage LibraryStorage) *APIHandler {
	return &APIHandler{
		logger:     logger,
		config:     config,
		clock:      clock,
		idsHandler: ids,
		stats:      stats,
		storage:    storage,
	}
}

func decodeBody(r *http.Request, out interface{}) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	return json.NewDecoder(r.Body).Decode(out)
}

// CreateBook registers a new catalog entry.
func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	var draft BookDraft
	if err := decodeBody(r, &draft); err != nil {
		api.logger.Error("failed to create book", zap.String("request.id", requestID), zap.Error(err))
		api.writeError(w, requestID, http.StatusBadRequest, "failed to decode the book payload")
		return
	}
	if err := ValidateBookDraft(&draft); err != nil {
		api.logger.Error("failed to create book", zap.String("request.id", requestID), zap.Error(err))
		api.writeError(w, requestID, http.StatusBadRequest, err.Error())
		return
	}

	now := api.clock.Now().UTC().Format(time.RFC3339)
	book := Book{
		ID:          api.idsHandler.Generate(BookIDPrefix),
		Title:       draft.Title,
		Author:      draft.Author,
		Genre:       draft.Genre,
		ISBN:        draft.ISBN,
		Description: draft.Description,
		Copies:      draft.Copies,
		Available:   draft.Copies > 0,
		Image:       draft.Image,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := api.storage.AddBook(r.Context(), book); err != nil {
		api.logger.Error("failed to create book", zap.String("request.id", requestID), zap.Error(err))
		api.writeError(w, requestID, http.StatusInternalServerError, "failed to create the book")
		return
	}
	api.logger.Info("success to create book", zap.String("book.id", book.ID), zap.String("request.id", requestID))
	api.writeJSON(w, requestID, http.StatusCreated, book)
}

// GetAllBooks serves one page of the catalog with the total count.
func (api *APIHandler) GetAllBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	page, limit := 1, api.config.API.PageLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v >= 1 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	books, total, err := api.storage.ListBooks(r.Context(), page, limit)
	if err != nil {
		api.logger.Error("failed to get all books", zap.String("request.id", requestID), zap.Error(err))
		api.writeError(w, requestID, http.StatusInternalServerError, "failed to get all books")
		return
	}
	api.logger.Info("success to get all books", zap.Int("total", total), zap.String("request.id", requestID))
	api.writeJSON(w, requestID, http.StatusOK, BookList{Items: books, Total: total})
}

// GetOneBook serves a single book record.
func (api *APIHandler) GetOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	id := ps.ByName("id")
	book, err := api.storage.GetBook(r.Context(), id)
	if err == ErrBookNotFound {
		api.logger.Error("book does not exist", zap.String("book.id", id), zap.String("request.id", requestID))
		api.writeError(w, requestID, http.StatusNotFound, "book does not exist")
		return
	}
	if err != nil {
		api.logger.Error("failed to get book", zap.String("book.id", id), zap.String("request.id", requestID), zap.Error(err))
		api.writeError(w, requestID, http.StatusInternalServerError, "failed to get the book")
		return
	}
	api.writeJSON(w, requestID, http.StatusOK, book)
}

// UpdateBook replaces the client-settable fields of a book. The
// availability flag is always recomputed from the copies left; the
// client cannot set it.
func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	id := ps.ByName("id")
	var draft BookDraft
	if err := decodeBody(r, &draft); err != nil {
		api.logger.Error("failed to update book", zap.String("book.id", id), zap.String("request.id", requestID), zap.Error(err))
		api.writeError(w, requestID, http.StatusBadRequest, "failed to decode the book payload")
		return
	}
	if err := ValidateBookDraft(&draft); err != nil {
		api.logger.Error("failed to update book", zap.String("book.id", id), zap.String("request.id", requestID), zap.Error(err))
		api.writeError(w, requestID, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := api.storage.GetBook(r.Context(), id)
	if err == ErrBookNotFound {
		api.writeError(w, requestID, http.StatusNotFound, "book does not exist")
		return
	}
	if err != nil {
		api.logger.Error("failed to update book", zap.String("book.id", id), zap.String("request.id", requestID), zap.Error(err))
		api.writeError(w, requestID, http.StatusInternalServerError, "failed to update the book")
		return
	}

	existing.Title = draft.Title
	existing.Author = draft.Author
	existing.Genre = draft.Genre
	existing.ISBN = draft.ISBN
	existing.Description = draft.Description
	existing.Copies = draft.Copies
	existing.Available = draft.Copies > 0
	existing.Image = draft.Image
	existing.UpdatedAt = api.clock.Now().UTC().Format(time.RFC3339)

	updated, err := api.storage.UpdateBook(r.Context(), id, existing)
	if err != nil {
		api.logger.Error("failed to update book", zap.String("book.id", id), zap.String("request.id", requestID), zap.Error(err))
		api.writeError(w, requestID, http.StatusInternalServerError, "failed to update the book")
		return
	}
	api.logger.Info("success to update book", zap.String("book.id", id), zap.String("request.id", requestID))
	api.writeJSON(w, requestID, http.StatusOK, updated)
}

// DeleteOneBook removes a book record.
func (api *APIHandler) DeleteOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	id := ps.ByName("id")
	err := api.storage.DeleteBook(r.Context(), id)
	if err == ErrBookNotFound {
		api.writeError(w, requestID, http.StatusNotFound, "book does not exist")
		return
	}
	if err != nil {
		api.logger.Error("failed to delete book", zap.String("book.id", id), zap.String("request.id", requestID), zap.Error(err))
		api.writeError(w, requestID, http.StatusInternalServerError, "failed to delete the book")
		return
	}
	api.logger.Info("success to delete book", zap.String("book.id", id), zap.String("request.id", requestID))
	api.writeJSON(w, requestID, http.StatusNoContent, nil)
}

// BorrowBook applies a borrow request against one book. The service
// is the authority on availability: a request racing past a stale
// client-side check is rejected here with a conflict.
func (api *APIHandler) BorrowBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	bookID := ps.ByName("id")
	var req BorrowRequest
	if err := decodeBody(r, &req); err != nil {
		api.logger.Error("failed to borrow book", zap.String("book.id", bookID), zap.String("request.id", requestID), zap.Error(err))
		api.writeError(w, requestID, http.StatusBadRequest, "failed to decode the borrow payload")
		return
	}
	if len(req.BorrowerName) == 0 {
		api.writeError(w, requestID, http.StatusBadRequest, "borrower name is required")
		return
	}
	if req.Quantity < 1 {
		api.writeError(w, requestID, http.StatusBadRequest, "quantity must be at least 1")
		return
	}
	due, err := time.Parse(DueDateLayout, req.DueDate)
	if err != nil {
		api.writeError(w, requestID, http.StatusBadRequest, "due date must be a valid date (YYYY-MM-DD)")
		return
	}
	if due.Before(StartOfDay(api.clock.Now().UTC())) {
		api.writeError(w, requestID, http.StatusBadRequest, "due date must be today or later")
		return
	}

	record := BorrowRecord{
		ID:           api.idsHandler.Generate(BorrowIDPrefix),
		BookID:       bookID,
		BorrowerName: req.BorrowerName,
		Quantity:     req.Quantity,
		DueDate:      req.DueDate,
		BorrowedAt:   api.clock.Now().UTC().Format(time.RFC3339),
	}
	err = api.storage.RecordBorrow(r.Context(), record)
	if err == ErrBookNotFound {
		api.writeError(w, requestID, http.StatusNotFound, "book does not exist")
		return
	}
	if err == ErrNotEnoughCopies {
		api.logger.Warn("borrow rejected", zap.String("book.id", bookID), zap.Int("quantity", req.Quantity), zap.String("request.id", requestID))
		api.writeError(w, requestID, http.StatusConflict, ErrNotEnoughCopies.Error())
		return
	}
	if err != nil {
		api.logger.Error("failed to borrow book", zap.String("book.id", bookID), zap.String("request.id", requestID), zap.Error(err))
		api.writeError(w, requestID, http.StatusInternalServerError, "failed to borrow the book")
		return
	}
	api.logger.Info("success to borrow book",
		zap.String("book.id", bookID),
		zap.Int("quantity", req.Quantity),
		zap.String("request.id", requestID),
	)
	api.writeJSON(w, requestID, http.StatusCreated, record)
}

// GetBorrowSummary serves the per-book borrow aggregates.
func (api *APIHandler) GetBorrowSummary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	entries, err := api.storage.BorrowSummary(r.Context())
	if err != nil {
		api.logger.Error("failed to get borrow summary", zap.String("request.id", requestID), zap.Error(err))
		api.writeError(w, requestID, http.StatusInternalServerError, "failed to get the borrow summary")
		return
	}
	api.writeJSON(w, requestID, http.StatusOK, entries)
}

func (api *APIHandler) writeJSON(w http.ResponseWriter, requestID string, status int, payload interface{}) {
	if err := WriteJSON(w, status, payload); err != nil {
		api.logger.Error("failed to send response", zap.String("request.id", requestID), zap.Error(err))
	}
}

func (api *APIHandler) writeError(w http.ResponseWriter, requestID string, status int, message string) {
	if err := WriteError(w, status, message); err != nil {
		api.logger.Error("failed to send error response", zap.String("request.id", requestID), zap.Error(err))
	}
}
