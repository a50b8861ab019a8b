package main

import (
	"context"

	"go.uber.org/zap"
)

// Consumer drains mutation event queues.
type Consumer interface {
	Consume(ctx context.Context, qids ...string) error
}

// boltMirrorConsumer replays mutation events from the redis-backed
// primary into a bolt store, keeping a local write-behind backup of
// the catalog and its borrows.
type boltMirrorConsumer struct {
	logger *zap.Logger
	queue  Queuer
	mirror LibraryStorage
}

func NewBoltMirrorConsumer(logger *zap.Logger, q Queuer, mirror LibraryStorage) Consumer {
	return &boltMirrorConsumer{logger, q, mirror}
}

// Consume loops popping events until the context is done. A failed
// replay is logged and skipped: the mirror trails the primary, it
// never blocks it.
func (bc *boltMirrorConsumer) Consume(ctx context.Context, qids ...string) error {
	for {
		qid, event, err := bc.queue.Pop(ctx, qids...)
		if err != nil && ctx.Err() != nil {
			bc.logger.Info("consumer: queue pop call: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}

		if err != nil {
			bc.logger.Error("consumer: error on queue pop call", zap.Error(err))
			continue
		}

		switch qid {
		case CreateQueue, UpdateQueue:
			// AddBook is an upsert on both backends, so create and
			// update events replay the same way.
			err = bc.mirror.AddBook(ctx, event.Book)
		case DeleteQueue:
			err = bc.mirror.DeleteBook(ctx, event.Book.ID)
			if err == ErrBookNotFound {
				err = nil
			}
		case BorrowQueue:
			if event.Borrow != nil {
				err = bc.mirror.RecordBorrow(ctx, *event.Borrow)
			}
		default:
			bc.logger.Error("consumer: unknown queue id", zap.String("qid", qid))
			continue
		}

		if err != nil {
			bc.logger.Error("consumer: failed to mirror event", zap.String("qid", qid), zap.Error(err))
			continue
		}
		bc.logger.Debug("consumer: mirrored event", zap.String("qid", qid))
	}
}
