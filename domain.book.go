package main

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Copies is the number of physical copies of a book. The remote
// service has been observed to emit it as a number, a numeric string
// or null depending on the record's age, so decoding coerces all of
// them. Anything unparseable or negative decodes to 0.
type Copies int

// UnmarshalJSON implements tolerant decoding for the copies field.
func (c *Copies) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		*c = 0
		return nil
	}
	*c = Copies(n)
	return nil
}

// MarshalJSON emits copies as a plain number.
func (c Copies) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(c))
}

// Book represents a catalog entry as served by the library service.
type Book struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Genre       string `json:"genre,omitempty"`
	ISBN        string `json:"isbn,omitempty"`
	Description string `json:"description,omitempty"`
	Copies      Copies `json:"copies"`
	Available   bool   `json:"available"`
	Image       string `json:"image,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// BookDraft carries the client-settable fields for create and update
// requests. Availability is always computed by the service from the
// remaining copies, so the draft deliberately has no such field.
type BookDraft struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Genre       string `json:"genre,omitempty"`
	ISBN        string `json:"isbn,omitempty"`
	Description string `json:"description,omitempty"`
	Copies      Copies `json:"copies"`
	Image       string `json:"image,omitempty"`
}

// BookList is one page of the catalog plus the total record count.
type BookList struct {
	Items []Book `json:"items"`
	Total int    `json:"total"`
}

// BorrowRequest is a submitted intent to borrow copies of one book.
type BorrowRequest struct {
	BookID       string `json:"-"`
	BorrowerName string `json:"borrowerName"`
	Quantity     int    `json:"quantity"`
	DueDate      string `json:"dueDate"`
}

// BorrowRecord is the service's acknowledgement of a borrow.
type BorrowRecord struct {
	ID           string `json:"id"`
	BookID       string `json:"bookId"`
	BorrowerName string `json:"borrowerName"`
	Quantity     int    `json:"quantity"`
	DueDate      string `json:"dueDate"`
	BorrowedAt   string `json:"borrowedAt,omitempty"`
}

// BorrowSummaryEntry aggregates all borrows of one book, with title
// and isbn denormalized for display.
type BorrowSummaryEntry struct {
	BookID        string `json:"bookId"`
	Title         string `json:"title"`
	ISBN          string `json:"isbn,omitempty"`
	TotalQuantity int    `json:"totalQuantity"`
}

// ValidateBookDraft checks the fields a create request must carry.
// It runs on the client before any network call and on the service
// before any write.
func ValidateBookDraft(draft *BookDraft) error {
	if len(strings.TrimSpace(draft.Title)) == 0 {
		return &ValidationError{Field: "title", Reason: "title is required"}
	}
	if len(strings.TrimSpace(draft.Author)) == 0 {
		return &ValidationError{Field: "author", Reason: "author is required"}
	}
	return nil
}
