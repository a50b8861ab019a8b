package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	labelStyle    = lipgloss.NewStyle().Width(14).Foreground(lipgloss.Color("99"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (m *tuiModel) View() string {
	var body string
	switch m.view {
	case viewHome:
		body = m.viewHomeScreen()
	case viewList:
		body = m.viewListScreen()
	case viewDetail:
		body = m.viewDetailScreen()
	case viewForm:
		body = m.viewFormScreen()
	case viewBorrow:
		body = m.viewBorrowScreen()
	case viewSummary:
		body = m.viewSummaryScreen()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("bookmate"),
		body,
		m.statusLine(),
		m.helpLine(),
	)
}

func (m *tuiModel) statusLine() string {
	switch {
	case m.errMsg != "":
		return errStyle.Render(m.errMsg)
	case m.loading:
		return m.spin.View() + dimStyle.Render(" loading...")
	case m.status != "":
		return okStyle.Render(m.status)
	}
	return ""
}

func (m *tuiModel) helpLine() string {
	switch m.view {
	case viewForm:
		return dimStyle.Render("tab/shift+tab move · ctrl+s save · esc cancel")
	case viewBorrow:
		return dimStyle.Render("tab move · enter borrow · esc cancel")
	case viewList:
		return dimStyle.Render("j/k move · ←/→ page · enter open · n new · e edit · d delete · o borrow · s summary · q quit")
	default:
		return dimStyle.Render("h home · b books · s summary · n new · q quit")
	}
}

func (m *tuiModel) viewHomeScreen() string {
	stats := ComputeLibraryStats(m.list.Items)
	borrowed := 0
	for _, entry := range m.summary {
		borrowed += entry.TotalQuantity
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Library overview") + "\n\n")
	b.WriteString(fmt.Sprintf("  books on this page : %d (of %d)\n", stats.Books, m.list.Total))
	b.WriteString(fmt.Sprintf("  copies in stock    : %d\n", stats.Copies))
	b.WriteString(fmt.Sprintf("  available titles   : %d\n", stats.AvailableBooks))
	b.WriteString(fmt.Sprintf("  borrowed overall   : %d\n", borrowed))

	recent := RecentBooks(m.list.Items, 3)
	if len(recent) > 0 {
		b.WriteString("\n" + headerStyle.Render("Recently added") + "\n")
		for _, book := range recent {
			b.WriteString("  " + book.Title + dimStyle.Render(" by "+book.Author) + "\n")
		}
	}
	top := TopBorrowed(m.summary, 3)
	if len(top) > 0 {
		b.WriteString("\n" + headerStyle.Render("Most borrowed") + "\n")
		for _, entry := range top {
			b.WriteString(fmt.Sprintf("  %s %s\n", entry.Title, dimStyle.Render("× "+strconv.Itoa(entry.TotalQuantity))))
		}
	}
	return boxStyle.Render(b.String())
}

func (m *tuiModel) viewListScreen() string {
	if len(m.list.Items) == 0 && !m.loading {
		return boxStyle.Render(dimStyle.Render("no books yet, press n to add one"))
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Books — page %d (%d total)", m.page, m.list.Total)) + "\n\n")
	for i, book := range m.list.Items {
		line := fmt.Sprintf("%-34s %-22s %s", truncate(book.Title, 32), truncate(book.Author, 20), availability(book))
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}
	return boxStyle.Render(b.String())
}

func (m *tuiModel) viewDetailScreen() string {
	if m.detail.ID == "" {
		return boxStyle.Render(dimStyle.Render("fetching book..."))
	}
	book := m.detail
	var b strings.Builder
	b.WriteString(headerStyle.Render(book.Title) + "\n\n")
	b.WriteString(labelStyle.Render("author") + book.Author + "\n")
	if book.Genre != "" {
		b.WriteString(labelStyle.Render("genre") + book.Genre + "\n")
	}
	if book.ISBN != "" {
		b.WriteString(labelStyle.Render("isbn") + book.ISBN + "\n")
	}
	b.WriteString(labelStyle.Render("availability") + availability(book) + "\n")
	if book.Description != "" {
		b.WriteString("\n" + book.Description + "\n")
	}
	return boxStyle.Render(b.String())
}

var formLabels = [fieldCount]string{"title", "author", "genre", "isbn", "description", "copies", "image"}

func (m *tuiModel) viewFormScreen() string {
	header := "New book"
	if m.editingID != "" {
		header = "Edit book"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(header) + "\n\n")
	for i, in := range m.form.inputs {
		b.WriteString(labelStyle.Render(formLabels[i]) + in.View() + "\n")
	}
	return boxStyle.Render(b.String())
}

var borrowLabels = [borrowFieldCount]string{"borrower", "quantity", "due date"}

func (m *tuiModel) viewBorrowScreen() string {
	var b strings.Builder
	book := m.flow.Book()
	b.WriteString(headerStyle.Render("Borrow — "+book.Title) + "\n\n")
	switch m.flow.State() {
	case FlowLoading, FlowIdle:
		b.WriteString(dimStyle.Render("fetching availability...") + "\n")
	case FlowLoadError:
		b.WriteString(errStyle.Render("could not load this book, press r to retry") + "\n")
	default:
		b.WriteString(labelStyle.Render("available") + strconv.Itoa(m.flow.AvailableCopies()) + "\n\n")
		for i, in := range m.borrowForm.inputs {
			b.WriteString(labelStyle.Render(borrowLabels[i]) + in.View() + "\n")
		}
		if m.flow.AvailableCopies() == 0 {
			b.WriteString("\n" + errStyle.Render("no copies available to borrow") + "\n")
		}
	}
	return boxStyle.Render(b.String())
}

func (m *tuiModel) viewSummaryScreen() string {
	if len(m.summary) == 0 && !m.loading {
		return boxStyle.Render(dimStyle.Render("nothing borrowed yet"))
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Borrow summary") + "\n\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-34s %-18s %s", "title", "isbn", "borrowed")) + "\n")
	for _, entry := range m.summary {
		b.WriteString(fmt.Sprintf("  %-34s %-18s %d\n", truncate(entry.Title, 32), truncate(entry.ISBN, 16), entry.TotalQuantity))
	}
	return boxStyle.Render(b.String())
}

func availability(book Book) string {
	if !book.Available || book.Copies == 0 {
		return errStyle.Render("unavailable")
	}
	return okStyle.Render(fmt.Sprintf("%d in stock", int(book.Copies)))
}

func truncate(s string, n int) string {
	return runewidth.Truncate(s, n, "…")
}
