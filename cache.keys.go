package main

import "fmt"

// Cache key classes. A class is a key prefix: invalidating a class
// marks every key under it stale. Individual keys are themselves
// valid classes, which is how a single book detail gets invalidated.
const (
	KeyClassBookList      = "books/list"
	KeyClassBookDetail    = "books/detail"
	KeyClassBorrowSummary = "borrows/summary"
)

// BookListKey identifies one page of the catalog query.
func BookListKey(page, limit int) string {
	return fmt.Sprintf("%s?page=%d&limit=%d", KeyClassBookList, page, limit)
}

// BookDetailKey identifies a single book query.
func BookDetailKey(id string) string {
	return KeyClassBookDetail + "/" + id
}

// BorrowSummaryKey identifies the borrow summary query. The summary
// takes no arguments so class and key coincide.
func BorrowSummaryKey() string {
	return KeyClassBorrowSummary
}
