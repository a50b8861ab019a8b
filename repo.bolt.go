package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

type boltLibraryStorage struct {
	logger *zap.Logger
	client *bolt.DB
	config *BoltDBConfig
}

// GetBoltDBClient sets up the database file and its buckets then
// provides a ready to use client.
func GetBoltDBClient(config *Config) (*bolt.DB, error) {
	db, err := bolt.Open(config.BoltDB.FilePath, 0o600, &bolt.Options{Timeout: config.BoltDB.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{config.BoltDB.BooksBucket, config.BoltDB.BorrowsBucket, config.BoltDB.TotalsBucket} {
			if _, errB := tx.CreateBucketIfNotExists([]byte(name)); errB != nil {
				return fmt.Errorf("failed to create %s bucket: %v", name, errB)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up buckets: %v", err)
	}
	return db, nil
}

// NewBoltLibraryStorage provides an instance of bolt-based library storage.
func NewBoltLibraryStorage(logger *zap.Logger, boltConfig *BoltDBConfig, client *bolt.DB) LibraryStorage {
	return &boltLibraryStorage{
		logger: logger,
		client: client,
		config: boltConfig,
	}
}

// Close shuts down the bolt-based library storage.
func (bs *boltLibraryStorage) Close() error {
	return bs.client.Close()
}

// AddBook inserts a new book record into the bolt store.
func (bs *boltLibraryStorage) AddBook(_ context.Context, book Book) error {
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return err
	}
	return bs.client.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bs.config.BooksBucket)).Put([]byte(book.ID), bookBytes)
	})
}

// GetBook retrieves a book record based on its ID from the bolt store.
func (bs *boltLibraryStorage) GetBook(_ context.Context, id string) (Book, error) {
	var book Book
	tx, err := bs.client.Begin(false)
	if err != nil {
		return book, err
	}
	defer tx.Rollback()

	result := tx.Bucket([]byte(bs.config.BooksBucket)).Get([]byte(id))
	if result == nil {
		return book, ErrBookNotFound
	}
	err = json.Unmarshal(result, &book)
	return book, err
}

// UpdateBook replaces an existing book record.
func (bs *boltLibraryStorage) UpdateBook(_ context.Context, id string, book Book) (Book, error) {
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return book, err
	}
	err = bs.client.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bs.config.BooksBucket))
		if bucket.Get([]byte(id)) == nil {
			return ErrBookNotFound
		}
		return bucket.Put([]byte(id), bookBytes)
	})
	return book, err
}

// DeleteBook removes a book record based on its ID.
func (bs *boltLibraryStorage) DeleteBook(_ context.Context, id string) error {
	return bs.client.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bs.config.BooksBucket))
		if bucket.Get([]byte(id)) == nil {
			return ErrBookNotFound
		}
		return bucket.Delete([]byte(id))
	})
}

// ListBooks retrieves one page of the catalog plus the total count.
func (bs *boltLibraryStorage) ListBooks(_ context.Context, page, limit int) ([]Book, int, error) {
	tx, err := bs.client.Begin(false)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()

	c := tx.Bucket([]byte(bs.config.BooksBucket)).Cursor()
	books := []Book{}
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var book Book
		if err = json.Unmarshal(v, &book); err != nil {
			return nil, 0, err
		}
		books = append(books, book)
	}
	total := len(books)
	sortBooks(books)
	return paginate(books, page, limit), total, nil
}

// RecordBorrow applies a borrow in a single write transaction: the
// availability check, the copy decrement, the borrow record and the
// summary total all commit or roll back together.
func (bs *boltLibraryStorage) RecordBorrow(_ context.Context, record BorrowRecord) error {
	return bs.client.Update(func(tx *bolt.Tx) error {
		booksBucket := tx.Bucket([]byte(bs.config.BooksBucket))
		raw := booksBucket.Get([]byte(record.BookID))
		if raw == nil {
			return ErrBookNotFound
		}
		var book Book
		if err := json.Unmarshal(raw, &book); err != nil {
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
		if err = booksBucket.Put([]byte(book.ID), bookBytes); err != nil {
			return err
		}

		recordBytes, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err = tx.Bucket([]byte(bs.config.BorrowsBucket)).Put([]byte(record.ID), recordBytes); err != nil {
			return err
		}

		totalsBucket := tx.Bucket([]byte(bs.config.TotalsBucket))
		entry := BorrowSummaryEntry{BookID: book.ID, Title: book.Title, ISBN: book.ISBN}
		if prev := totalsBucket.Get([]byte(book.ID)); prev != nil {
			if err = json.Unmarshal(prev, &entry); err != nil {
				return err
			}
		}
		entry.Title = book.Title
		entry.ISBN = book.ISBN
		entry.TotalQuantity += record.Quantity
		entryBytes, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return totalsBucket.Put([]byte(book.ID), entryBytes)
	})
}

// BorrowSummary returns the per-book aggregates, most borrowed first.
func (bs *boltLibraryStorage) BorrowSummary(_ context.Context) ([]BorrowSummaryEntry, error) {
	tx, err := bs.client.Begin(false)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	c := tx.Bucket([]byte(bs.config.TotalsBucket)).Cursor()
	entries := []BorrowSummaryEntry{}
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var entry BorrowSummaryEntry
		if err = json.Unmarshal(v, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalQuantity > entries[j].TotalQuantity
	})
	return entries, nil
}
