package main

import "sort"

// LibraryStats are the headline numbers of the home view.
type LibraryStats struct {
	Books          int
	Copies         int
	AvailableBooks int
}

// ComputeLibraryStats tallies a fetched page of the catalog.
func ComputeLibraryStats(books []Book) LibraryStats {
	stats := LibraryStats{Books: len(books)}
	for _, b := range books {
		stats.Copies += int(b.Copies)
		if b.Available {
			stats.AvailableBooks++
		}
	}
	return stats
}

// RecentBooks returns the n newest books by creation timestamp. The
// timestamps are service-assigned ISO strings so a plain string sort
// orders them correctly.
func RecentBooks(books []Book, n int) []Book {
	out := make([]Book, len(books))
	copy(out, books)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt > out[j].CreatedAt
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// TopBorrowed returns the n most borrowed books from the summary.
func TopBorrowed(entries []BorrowSummaryEntry, n int) []BorrowSummaryEntry {
	out := make([]BorrowSummaryEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalQuantity > out[j].TotalQuantity
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
