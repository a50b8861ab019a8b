package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Predefined queue IDs, one per mutation kind.
const (
	CreateQueue = "creation"
	UpdateQueue = "updating"
	DeleteQueue = "deletion"
	BorrowQueue = "borrowing"
)

// MutationEvent is one applied write, queued for the mirror.
type MutationEvent struct {
	Book   Book          `json:"book,omitempty"`
	Borrow *BorrowRecord `json:"borrow,omitempty"`
}

// Ensure *redisQueue implements Queuer.
var _ Queuer = (*redisQueue)(nil)

// Queuer describes the mutation event queue.
type Queuer interface {
	Push(ctx context.Context, qid string, event MutationEvent) error
	Pop(ctx context.Context, qids ...string) (string, MutationEvent, error)
}

// redisQueue implements the Queuer interface on redis lists.
type redisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) Queuer {
	return &redisQueue{client: client}
}

// Push enqueues an event onto the queue identified by qid.
func (q *redisQueue) Push(ctx context.Context, qid string, event MutationEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, qid, eventBytes).Err()
}

// Pop returns the first dequeued event from the list of queue ids.
func (q *redisQueue) Pop(ctx context.Context, qids ...string) (string, MutationEvent, error) {
	var event MutationEvent
	var qid string
	infos, err := q.client.BLPop(ctx, 0*time.Second, qids...).Result()
	if err != nil {
		return qid, event, err
	}

	if err = json.Unmarshal([]byte(infos[1]), &event); err != nil {
		return qid, event, err
	}
	qid = infos[0]
	return qid, event, nil
}

// Ensure *queueingStorage implements LibraryStorage.
var _ LibraryStorage = (*queueingStorage)(nil)

// queueingStorage decorates a LibraryStorage so every applied write
// also emits a mutation event. Reads pass straight through. Emission
// failures are logged, never surfaced: the mirror is best effort and
// must not fail a write the primary already accepted.
type queueingStorage struct {
	logger  *zap.Logger
	storage LibraryStorage
	queue   Queuer
}

// NewQueueingStorage wraps storage with mutation event emission.
func NewQueueingStorage(logger *zap.Logger, storage LibraryStorage, queue Queuer) LibraryStorage {
	return &queueingStorage{logger: logger, storage: storage, queue: queue}
}

func (qs *queueingStorage) push(ctx context.Context, qid string, event MutationEvent) {
	if err := qs.queue.Push(ctx, qid, event); err != nil {
		qs.logger.Error("storage: failed to push mutation event", zap.String("qid", qid), zap.Error(err))
	}
}

func (qs *queueingStorage) AddBook(ctx context.Context, book Book) error {
	if err := qs.storage.AddBook(ctx, book); err != nil {
		return err
	}
	qs.push(ctx, CreateQueue, MutationEvent{Book: book})
	return nil
}

func (qs *queueingStorage) GetBook(ctx context.Context, id string) (Book, error) {
	return qs.storage.GetBook(ctx, id)
}

func (qs *queueingStorage) UpdateBook(ctx context.Context, id string, book Book) (Book, error) {
	updated, err := qs.storage.UpdateBook(ctx, id, book)
	if err != nil {
		return updated, err
	}
	qs.push(ctx, UpdateQueue, MutationEvent{Book: updated})
	return updated, nil
}

func (qs *queueingStorage) DeleteBook(ctx context.Context, id string) error {
	if err := qs.storage.DeleteBook(ctx, id); err != nil {
		return err
	}
	qs.push(ctx, DeleteQueue, MutationEvent{Book: Book{ID: id}})
	return nil
}

func (qs *queueingStorage) ListBooks(ctx context.Context, page, limit int) ([]Book, int, error) {
	return qs.storage.ListBooks(ctx, page, limit)
}

func (qs *queueingStorage) RecordBorrow(ctx context.Context, record BorrowRecord) error {
	if err := qs.storage.RecordBorrow(ctx, record); err != nil {
		return err
	}
	qs.push(ctx, BorrowQueue, MutationEvent{Borrow: &record})
	return nil
}

func (qs *queueingStorage) BorrowSummary(ctx context.Context) ([]BorrowSummaryEntry, error) {
	return qs.storage.BorrowSummary(ctx)
}

func (qs *queueingStorage) Close() error {
	return qs.storage.Close()
}
