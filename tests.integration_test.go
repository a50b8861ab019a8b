package main

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestStack runs the whole dev service on a temporary bolt file
// and wires a library facade against it, exactly the way the binary
// does, minus the listener lifecycle.
func newTestStack(t *testing.T) *Library {
	t.Helper()
	storage, err := newTestBoltStorage()
	require.NoError(t, err, "failed in creating a test bolt storage")
	t.Cleanup(func() { storage.closeTestBoltStorage() })

	logger := zap.NewNop()
	config := DefaultConfig()
	apiService := NewAPIHandler(logger, config, NewMockClocker(), NewIDsHandler(), &Statistics{started: time.Now()}, storage)
	public := Middlewares{
		apiService.PanicRecoveryMiddleware,
		apiService.RequestsCounterMiddleware,
		apiService.RequestIDMiddleware,
		CORSMiddleware,
		apiService.CoreMiddleware,
	}
	ops := Middlewares{
		apiService.PanicRecoveryMiddleware,
		apiService.RequestIDMiddleware,
		apiService.CoreMiddleware,
	}
	router := apiService.SetupRoutes(httprouter.New(), &MiddlewareMap{public: &public, ops: &ops})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	client := NewAPIClient(logger, &APIConfig{
		BaseURL:        server.URL,
		RequestTimeout: 5 * time.Second,
		PageLimit:      20,
	}, NewIDsHandler())
	return NewLibrary(logger, client, NewStore(logger), NewMockClocker(), 20)
}

// TestIntegrationBookLifecycle walks a book through creation, cached
// reads, update, and deletion against the real service and storage.
func TestIntegrationBookLifecycle(t *testing.T) {
	library := newTestStack(t)
	ctx := context.Background()

	created, err := library.CreateBook(ctx, BookDraft{Title: "Dune", Author: "Frank Herbert", Copies: 3})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.True(t, created.Available)

	list, err := library.ListBooks(ctx, 1, 20)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, 1, list.Total)

	// The list read primed the detail entry: this one is cache-only.
	book, err := library.GetBook(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)

	updated, err := library.UpdateBook(ctx, created.ID, BookDraft{Title: "Dune Messiah", Author: "Frank Herbert", Copies: 2})
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", updated.Title)

	// The update staled the detail entry: the next read refetches the
	// new title instead of serving the cached original.
	book, err = library.GetBook(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", book.Title)
	assert.Equal(t, 2, int(book.Copies))

	require.NoError(t, library.DeleteBook(ctx, created.ID))

	_, err = library.GetBook(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, IsNotFound(err), "a deleted book must surface not-found, not its stale cached copy")

	list, err = library.ListBooks(ctx, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}

// TestIntegrationBorrowFlow runs the borrow transaction end to end:
// load, submit, availability decrement and summary refresh.
func TestIntegrationBorrowFlow(t *testing.T) {
	library := newTestStack(t)
	ctx := context.Background()

	created, err := library.CreateBook(ctx, BookDraft{Title: "Dune", Author: "Frank Herbert", Copies: 2})
	require.NoError(t, err)

	flow := NewBorrowFlow(zap.NewNop(), library, created.ID)
	require.NoError(t, flow.Load(ctx))
	assert.Equal(t, 2, flow.AvailableCopies())

	flow.SetBorrowerName("ada")
	flow.SetQuantity(2)
	flow.SetDueDate("2023-07-16")
	require.True(t, flow.CanSubmit())

	record, err := flow.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, FlowSuccess, flow.State())
	assert.Equal(t, 2, record.Quantity)

	// The borrow staled the book detail: the refetched copy shows the
	// decremented stock and the recomputed availability.
	book, err := library.GetBook(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, int(book.Copies))
	assert.False(t, book.Available)

	entries, err := library.BorrowSummary(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, created.ID, entries[0].BookID)
	assert.Equal(t, 2, entries[0].TotalQuantity)
}

// TestIntegrationOverBorrowConflict ensures a borrow racing past a
// stale client-side availability check is rejected by the service
// with the conflict message kept verbatim, and changes nothing.
func TestIntegrationOverBorrowConflict(t *testing.T) {
	library := newTestStack(t)
	ctx := context.Background()

	created, err := library.CreateBook(ctx, BookDraft{Title: "Dune", Author: "Frank Herbert", Copies: 1})
	require.NoError(t, err)

	// A competing borrower takes the last copy after this flow loaded.
	flow := NewBorrowFlow(zap.NewNop(), library, created.ID)
	require.NoError(t, flow.Load(ctx))
	_, err = library.Borrow(ctx, BorrowRequest{
		BookID:       created.ID,
		BorrowerName: "grace",
		Quantity:     1,
		DueDate:      "2023-07-16",
	})
	require.NoError(t, err)

	flow.SetBorrowerName("ada")
	flow.SetQuantity(1)
	flow.SetDueDate("2023-07-16")

	_, err = flow.Submit(ctx)
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Equal(t, "not enough copies available", err.Error())
	assert.Equal(t, FlowReady, flow.State(), "a rejected submission leaves the form editable")

	entries, err := library.BorrowSummary(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].TotalQuantity, "the rejected borrow must not count")
}

// TestIntegrationSubscriberNotifications ensures a mutation through
// the facade reaches a cache subscriber, the signal the interactive
// views refetch on.
func TestIntegrationSubscriberNotifications(t *testing.T) {
	library := newTestStack(t)
	ctx := context.Background()

	sub := library.Store().Subscribe(KeyClassBookList, KeyClassBorrowSummary)
	defer library.Store().Unsubscribe(sub)

	_, err := library.CreateBook(ctx, BookDraft{Title: "Dune", Author: "Frank Herbert", Copies: 1})
	require.NoError(t, err)

	select {
	case class := <-sub.C:
		assert.Equal(t, KeyClassBookList, class)
	case <-time.After(time.Second):
		t.Fatal("expected a list invalidation notification")
	}
}
