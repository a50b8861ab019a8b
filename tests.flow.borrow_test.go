package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newReadyFlow(t *testing.T, copies int, api *MockLibraryAPI) *BorrowFlow {
	t.Helper()
	if api.GetBookFunc == nil {
		api.GetBookFunc = func(ctx context.Context, id string) (Book, error) {
			return Book{ID: id, Title: "Dune", Copies: Copies(copies), Available: copies > 0}, nil
		}
	}
	library := newTestLibrary(api)
	flow := NewBorrowFlow(zap.NewNop(), library, "b:1")
	require.NoError(t, flow.Load(context.Background()))
	require.Equal(t, FlowReady, flow.State())
	return flow
}

// TestBorrowFlowLoadFailureOffersRetry ensures a failed load lands in
// the retryable error state and a later load recovers.
func TestBorrowFlowLoadFailureOffersRetry(t *testing.T) {
	calls := 0
	api := &MockLibraryAPI{
		GetBookFunc: func(ctx context.Context, id string) (Book, error) {
			calls++
			if calls == 1 {
				return Book{}, &TransportError{Op: "get book", Err: errors.New("connection refused")}
			}
			return Book{ID: id, Copies: 2, Available: true}, nil
		},
	}
	library := newTestLibrary(api)
	flow := NewBorrowFlow(zap.NewNop(), library, "b:1")

	err := flow.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, FlowLoadError, flow.State())
	assert.Error(t, flow.LoadErr())

	require.NoError(t, flow.Load(context.Background()))
	assert.Equal(t, FlowReady, flow.State())
	assert.NoError(t, flow.LoadErr())
	assert.Equal(t, 2, flow.AvailableCopies())
}

// TestBorrowFlowQuantityClamping ensures out of range quantities are
// coerced into [1, copies] instead of rejected.
func TestBorrowFlowQuantityClamping(t *testing.T) {
	flow := newReadyFlow(t, 3, &MockLibraryAPI{})

	flow.SetQuantity(0)
	assert.Equal(t, 1, flow.Quantity())

	flow.SetQuantity(-4)
	assert.Equal(t, 1, flow.Quantity())

	flow.SetQuantity(99)
	assert.Equal(t, 3, flow.Quantity())

	flow.SetQuantity(2)
	assert.Equal(t, 2, flow.Quantity())
}

// TestBorrowFlowZeroCopiesDisablesSubmission ensures a book with no
// copies keeps the form unsubmittable regardless of the other fields.
func TestBorrowFlowZeroCopiesDisablesSubmission(t *testing.T) {
	flow := newReadyFlow(t, 0, &MockLibraryAPI{})
	flow.SetBorrowerName("ada")
	flow.SetDueDate("2023-07-16")
	flow.SetQuantity(1)

	assert.Equal(t, 0, flow.Quantity())
	assert.False(t, flow.CanSubmit())
	err := flow.Validate()
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "no copies available")
}

// TestBorrowFlowValidationOrder ensures the precondition checks fire
// in their fixed order, each naming its own field.
func TestBorrowFlowValidationOrder(t *testing.T) {
	flow := newReadyFlow(t, 3, &MockLibraryAPI{})

	var ve *ValidationError
	err := flow.Validate()
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "borrowerName", ve.Field)

	flow.SetBorrowerName("ada")
	err = flow.Validate()
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "dueDate", ve.Field)

	flow.SetDueDate("not a date")
	err = flow.Validate()
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "dueDate", ve.Field)
	assert.Contains(t, ve.Reason, "valid date")

	flow.SetDueDate("2023-07-16")
	assert.NoError(t, flow.Validate())
	assert.True(t, flow.CanSubmit())
}

// TestBorrowFlowDueDateDayGranularity ensures today passes while
// yesterday fails, both compared at day precision against the
// injected clock (2023-07-02).
func TestBorrowFlowDueDateDayGranularity(t *testing.T) {
	flow := newReadyFlow(t, 3, &MockLibraryAPI{})
	flow.SetBorrowerName("ada")

	flow.SetDueDate("2023-07-02")
	assert.NoError(t, flow.Validate(), "today must be acceptable")

	flow.SetDueDate("2023-07-01")
	err := flow.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "today or later")
}

// TestBorrowFlowSubmitSuccess ensures a submission reaches the
// terminal state and carries the trimmed form fields.
func TestBorrowFlowSubmitSuccess(t *testing.T) {
	var got BorrowRequest
	api := &MockLibraryAPI{
		BorrowFunc: func(ctx context.Context, req BorrowRequest) (BorrowRecord, error) {
			got = req
			return BorrowRecord{ID: "w:1", BookID: req.BookID, Quantity: req.Quantity, DueDate: req.DueDate}, nil
		},
	}
	flow := newReadyFlow(t, 3, api)
	flow.SetBorrowerName("  ada  ")
	flow.SetQuantity(2)
	flow.SetDueDate("2023-07-16")

	record, err := flow.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FlowSuccess, flow.State())
	assert.Equal(t, "w:1", record.ID)
	assert.Equal(t, "ada", got.BorrowerName)
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, "b:1", got.BookID)
}

// TestBorrowFlowSubmitConflictReturnsToReady ensures a service
// rejection puts the flow back in the editable ready state with the
// failure kept for display.
func TestBorrowFlowSubmitConflictReturnsToReady(t *testing.T) {
	api := &MockLibraryAPI{
		BorrowFunc: func(ctx context.Context, req BorrowRequest) (BorrowRecord, error) {
			return BorrowRecord{}, &ConflictError{Message: "not enough copies available"}
		},
	}
	flow := newReadyFlow(t, 3, api)
	flow.SetBorrowerName("ada")
	flow.SetQuantity(3)
	flow.SetDueDate("2023-07-16")

	_, err := flow.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Equal(t, FlowReady, flow.State())
	assert.Error(t, flow.SubmitErr())
	assert.True(t, flow.CanSubmit(), "form stays editable and resubmittable")
}

// TestBorrowFlowSubmitInvalidSendsNothing ensures an invalid form
// never produces a request.
func TestBorrowFlowSubmitInvalidSendsNothing(t *testing.T) {
	api := &MockLibraryAPI{
		BorrowFunc: func(ctx context.Context, req BorrowRequest) (BorrowRecord, error) {
			t.Fatal("no request must be sent for an invalid form")
			return BorrowRecord{}, nil
		},
	}
	flow := newReadyFlow(t, 3, api)

	_, err := flow.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 0, api.BorrowCalls)
}
