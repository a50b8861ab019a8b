package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FlowState enumerates the borrow transaction states.
type FlowState int

const (
	FlowIdle FlowState = iota
	FlowLoading
	FlowReady
	FlowLoadError
	FlowSubmitting
	FlowSuccess
)

// DueDateLayout is the calendar date format the service expects.
const DueDateLayout = "2006-01-02"

// BorrowFlow drives one borrow transaction for one book: it loads
// the book's current state, collects borrower name, quantity and due
// date, enforces the client-side pre-check mirroring the service
// rules, submits, and reacts to the outcome. A submit failure
// returns to the ready state with the form still editable; a load
// failure offers retry. The pre-check is advisory only: the service
// remains the authority under concurrent borrows.
type BorrowFlow struct {
	logger  *zap.Logger
	library *Library
	clock   Clocker

	// mu guards the state since loads/submits run off the UI loop.
	mu sync.Mutex

	bookID  string
	state   FlowState
	book    Book
	loadErr error

	borrowerName string
	quantity     int
	dueDate      string
	submitErr    error
}

// NewBorrowFlow provides an idle flow for the given book.
func NewBorrowFlow(logger *zap.Logger, library *Library, bookID string) *BorrowFlow {
	return &BorrowFlow{
		logger:   logger,
		library:  library,
		clock:    library.Clock(),
		bookID:   bookID,
		state:    FlowIdle,
		quantity: 1,
	}
}

// State reports the current flow state.
func (f *BorrowFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Book returns the loaded book. Zero value until the load succeeded.
func (f *BorrowFlow) Book() Book {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.book
}

// LoadErr returns the error of a failed load, nil otherwise.
func (f *BorrowFlow) LoadErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadErr
}

// SubmitErr returns the error of the last failed submission.
func (f *BorrowFlow) SubmitErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitErr
}

// Load fetches the book's current state. It is also the retry path
// out of a failed load.
func (f *BorrowFlow) Load(ctx context.Context) error {
	f.mu.Lock()
	f.state = FlowLoading
	f.loadErr = nil
	f.mu.Unlock()

	book, err := f.library.GetBook(ctx, f.bookID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = FlowLoadError
		f.loadErr = err
		return err
	}
	f.book = book
	f.state = FlowReady
	f.quantity = clampQuantity(f.quantity, int(book.Copies))
	return nil
}

// AvailableCopies is the copy count of the most recently loaded book.
func (f *BorrowFlow) AvailableCopies() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int(f.book.Copies)
}

// SetBorrowerName records the borrower name as typed.
func (f *BorrowFlow) SetBorrowerName(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.borrowerName = name
}

// BorrowerName returns the current borrower name field.
func (f *BorrowFlow) BorrowerName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.borrowerName
}

// SetQuantity coerces out-of-range input into [1, copies] instead of
// rejecting it, so the form stays submittable once the other fields
// are valid. With zero copies the quantity pins to 0 and submission
// stays disabled.
func (f *BorrowFlow) SetQuantity(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quantity = clampQuantity(n, int(f.book.Copies))
}

// Quantity returns the current clamped quantity.
func (f *BorrowFlow) Quantity() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quantity
}

// SetDueDate records the due date as typed (expected YYYY-MM-DD).
func (f *BorrowFlow) SetDueDate(date string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dueDate = date
}

// DueDate returns the current due date field.
func (f *BorrowFlow) DueDate() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dueDate
}

func clampQuantity(n, copies int) int {
	if copies <= 0 {
		return 0
	}
	if n < 1 {
		return 1
	}
	if n > copies {
		return copies
	}
	return n
}

// Validate checks the submission preconditions in their fixed order
// and returns the first failure. No request is sent when it fails.
func (f *BorrowFlow) Validate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateLocked()
}

func (f *BorrowFlow) validateLocked() error {
	if len(f.bookID) == 0 {
		return &ValidationError{Field: "bookId", Reason: "book id is required"}
	}
	if len(strings.TrimSpace(f.borrowerName)) == 0 {
		return &ValidationError{Field: "borrowerName", Reason: "borrower name is required"}
	}
	if len(strings.TrimSpace(f.dueDate)) == 0 {
		return &ValidationError{Field: "dueDate", Reason: "due date is required"}
	}
	if f.state != FlowReady && f.state != FlowSubmitting {
		return &ValidationError{Field: "book", Reason: "book data is not loaded"}
	}
	copies := int(f.book.Copies)
	if copies <= 0 {
		return &ValidationError{Field: "quantity", Reason: "no copies available to borrow"}
	}
	if f.quantity < 1 || f.quantity > copies {
		return &ValidationError{Field: "quantity", Reason: fmt.Sprintf("quantity must be between 1 and %d", copies)}
	}
	due, err := time.ParseInLocation(DueDateLayout, strings.TrimSpace(f.dueDate), f.clock.Now().Location())
	if err != nil {
		return &ValidationError{Field: "dueDate", Reason: "due date must be a valid date (YYYY-MM-DD)"}
	}
	if due.Before(StartOfDay(f.clock.Now())) {
		return &ValidationError{Field: "dueDate", Reason: "due date must be today or later"}
	}
	return nil
}

// CanSubmit reports whether the submit control should be enabled.
func (f *BorrowFlow) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == FlowReady && f.validateLocked() == nil
}

// Submit runs the pre-check then sends the borrow request. On
// success the flow reaches its terminal state and the dependent
// caches are already invalidated by the data access layer. On
// failure the flow returns to ready with the form left editable.
func (f *BorrowFlow) Submit(ctx context.Context) (BorrowRecord, error) {
	f.mu.Lock()
	if f.state != FlowReady {
		err := &ValidationError{Field: "state", Reason: "borrow form is not ready for submission"}
		f.mu.Unlock()
		return BorrowRecord{}, err
	}
	if err := f.validateLocked(); err != nil {
		f.submitErr = err
		f.mu.Unlock()
		return BorrowRecord{}, err
	}
	req := BorrowRequest{
		BookID:       f.bookID,
		BorrowerName: strings.TrimSpace(f.borrowerName),
		Quantity:     f.quantity,
		DueDate:      strings.TrimSpace(f.dueDate),
	}
	f.state = FlowSubmitting
	f.submitErr = nil
	f.mu.Unlock()

	record, err := f.library.Borrow(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.logger.Warn("borrow flow: submission failed", zap.String("book.id", f.bookID), zap.Error(err))
		f.state = FlowReady
		f.submitErr = err
		return BorrowRecord{}, err
	}
	f.state = FlowSuccess
	return record, nil
}
