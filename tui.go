package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// viewKind identifies which screen is active.
type viewKind int

const (
	viewHome viewKind = iota
	viewList
	viewDetail
	viewForm
	viewBorrow
	viewSummary
)

// Messages delivered through the bubbletea loop. Every asynchronous
// completion has its own type so Update can route it precisely.
type (
	booksLoadedMsg struct {
		list BookList
		err  error
	}
	bookLoadedMsg struct {
		book Book
		err  error
	}
	summaryLoadedMsg struct {
		entries []BorrowSummaryEntry
		err     error
	}
	mutationDoneMsg struct {
		action string
		err    error
	}
	borrowFlowLoadedMsg struct{ err error }
	borrowDoneMsg       struct {
		record BorrowRecord
		err    error
	}
	// invalidatedMsg bridges a cache subscription notice into the
	// event loop so the active view refetches what went stale.
	invalidatedMsg struct{ class string }
)

// bookForm carries the create/edit inputs. The field order drives
// focus cycling.
type bookForm struct {
	inputs []textinput.Model
	focus  int
}

// Form field positions.
const (
	fieldTitle = iota
	fieldAuthor
	fieldGenre
	fieldISBN
	fieldDescription
	fieldCopies
	fieldImage
	fieldCount
)

// Borrow form field positions.
const (
	borrowFieldName = iota
	borrowFieldQuantity
	borrowFieldDueDate
	borrowFieldCount
)

type tuiModel struct {
	logger  *zap.Logger
	library *Library
	sub     *Subscription

	view    viewKind
	width   int
	height  int
	spin    spinner.Model
	loading bool
	errMsg  string
	status  string

	// list state
	page   int
	limit  int
	list   BookList
	cursor int

	// detail state
	detailID string
	detail   Book

	// create/edit state
	form      bookForm
	editingID string

	// borrow state
	flow       *BorrowFlow
	borrowForm bookForm

	// summary state
	summary []BorrowSummaryEntry
}

// NewTUIModel provides the initial model on the home view.
func NewTUIModel(logger *zap.Logger, library *Library, pageLimit int) *tuiModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &tuiModel{
		logger:  logger,
		library: library,
		sub:     library.Store().Subscribe(KeyClassBookList, KeyClassBookDetail, KeyClassBorrowSummary),
		view:    viewHome,
		spin:    sp,
		page:    1,
		limit:   pageLimit,
	}
}

// RunTUI drives the terminal front end until the user quits.
func RunTUI(logger *zap.Logger, library *Library, pageLimit int) error {
	model := NewTUIModel(logger, library, pageLimit)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	library.Store().Unsubscribe(model.sub)
	return err
}

func (m *tuiModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.loadBooks(), m.loadSummary(), m.waitInvalidation())
}

// waitInvalidation blocks on the cache subscription and resurfaces
// the notice as a message. Update always re-arms it.
func (m *tuiModel) waitInvalidation() tea.Cmd {
	sub := m.sub
	return func() tea.Msg {
		class, ok := <-sub.C
		if !ok {
			return nil
		}
		return invalidatedMsg{class: class}
	}
}

func (m *tuiModel) loadBooks() tea.Cmd {
	page, limit := m.page, m.limit
	return func() tea.Msg {
		list, err := m.library.ListBooks(context.Background(), page, limit)
		return booksLoadedMsg{list: list, err: err}
	}
}

func (m *tuiModel) loadBook(id string) tea.Cmd {
	return func() tea.Msg {
		book, err := m.library.GetBook(context.Background(), id)
		return bookLoadedMsg{book: book, err: err}
	}
}

func (m *tuiModel) loadSummary() tea.Cmd {
	return func() tea.Msg {
		entries, err := m.library.BorrowSummary(context.Background())
		return summaryLoadedMsg{entries: entries, err: err}
	}
}

func (m *tuiModel) loadBorrowFlow() tea.Cmd {
	flow := m.flow
	return func() tea.Msg {
		err := flow.Load(context.Background())
		return borrowFlowLoadedMsg{err: err}
	}
}

func (m *tuiModel) submitBorrow() tea.Cmd {
	flow := m.flow
	return func() tea.Msg {
		record, err := flow.Submit(context.Background())
		return borrowDoneMsg{record: record, err: err}
	}
}

func (m *tuiModel) deleteBook(id string) tea.Cmd {
	return func() tea.Msg {
		err := m.library.DeleteBook(context.Background(), id)
		return mutationDoneMsg{action: "delete", err: err}
	}
}

func (m *tuiModel) saveBook() tea.Cmd {
	draft := m.draftFromForm()
	editingID := m.editingID
	return func() tea.Msg {
		var err error
		if editingID == "" {
			_, err = m.library.CreateBook(context.Background(), draft)
			return mutationDoneMsg{action: "create", err: err}
		}
		_, err = m.library.UpdateBook(context.Background(), editingID, draft)
		return mutationDoneMsg{action: "update", err: err}
	}
}

func (m *tuiModel) draftFromForm() BookDraft {
	copies, _ := strconv.Atoi(strings.TrimSpace(m.form.inputs[fieldCopies].Value()))
	if copies < 0 {
		copies = 0
	}
	return BookDraft{
		Title:       strings.TrimSpace(m.form.inputs[fieldTitle].Value()),
		Author:      strings.TrimSpace(m.form.inputs[fieldAuthor].Value()),
		Genre:       strings.TrimSpace(m.form.inputs[fieldGenre].Value()),
		ISBN:        strings.TrimSpace(m.form.inputs[fieldISBN].Value()),
		Description: strings.TrimSpace(m.form.inputs[fieldDescription].Value()),
		Copies:      Copies(copies),
		Image:       strings.TrimSpace(m.form.inputs[fieldImage].Value()),
	}
}

func newFormInput(placeholder string) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 256
	in.Width = 40
	return in
}

func (m *tuiModel) openCreateForm() {
	m.editingID = ""
	m.openForm(BookDraft{Copies: 1})
}

func (m *tuiModel) openEditForm(book Book) {
	m.editingID = book.ID
	m.openForm(BookDraft{
		Title:       book.Title,
		Author:      book.Author,
		Genre:       book.Genre,
		ISBN:        book.ISBN,
		Description: book.Description,
		Copies:      book.Copies,
		Image:       book.Image,
	})
}

func (m *tuiModel) openForm(draft BookDraft) {
	inputs := make([]textinput.Model, fieldCount)
	inputs[fieldTitle] = newFormInput("title (required)")
	inputs[fieldAuthor] = newFormInput("author (required)")
	inputs[fieldGenre] = newFormInput("genre")
	inputs[fieldISBN] = newFormInput("isbn")
	inputs[fieldDescription] = newFormInput("description")
	inputs[fieldCopies] = newFormInput("copies")
	inputs[fieldImage] = newFormInput("cover image url")
	inputs[fieldTitle].SetValue(draft.Title)
	inputs[fieldAuthor].SetValue(draft.Author)
	inputs[fieldGenre].SetValue(draft.Genre)
	inputs[fieldISBN].SetValue(draft.ISBN)
	inputs[fieldDescription].SetValue(draft.Description)
	inputs[fieldCopies].SetValue(strconv.Itoa(int(draft.Copies)))
	inputs[fieldImage].SetValue(draft.Image)
	inputs[fieldTitle].Focus()
	m.form = bookForm{inputs: inputs}
	m.view = viewForm
	m.errMsg = ""
	m.status = ""
}

func (m *tuiModel) openBorrowForm(book Book) tea.Cmd {
	m.flow = NewBorrowFlow(m.logger, m.library, book.ID)
	inputs := make([]textinput.Model, borrowFieldCount)
	inputs[borrowFieldName] = newFormInput("borrower name")
	inputs[borrowFieldQuantity] = newFormInput("quantity")
	inputs[borrowFieldDueDate] = newFormInput("due date YYYY-MM-DD")
	inputs[borrowFieldQuantity].SetValue("1")
	inputs[borrowFieldDueDate].SetValue(m.library.Clock().Now().Add(14 * 24 * time.Hour).Format(DueDateLayout))
	inputs[borrowFieldName].Focus()
	m.borrowForm = bookForm{inputs: inputs}
	m.view = viewBorrow
	m.errMsg = ""
	m.status = ""
	m.loading = true
	return m.loadBorrowFlow()
}

// syncFlowFields pushes the borrow inputs into the flow so the
// clamped quantity can be written back to the field.
func (m *tuiModel) syncFlowFields() {
	if m.flow == nil {
		return
	}
	m.flow.SetBorrowerName(m.borrowForm.inputs[borrowFieldName].Value())
	raw := strings.TrimSpace(m.borrowForm.inputs[borrowFieldQuantity].Value())
	if raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			m.flow.SetQuantity(n)
			if clamped := m.flow.Quantity(); clamped != n {
				m.borrowForm.inputs[borrowFieldQuantity].SetValue(strconv.Itoa(clamped))
			}
		}
	}
	m.flow.SetDueDate(m.borrowForm.inputs[borrowFieldDueDate].Value())
}

func (m *tuiModel) refetchActive() tea.Cmd {
	switch m.view {
	case viewHome:
		return tea.Batch(m.loadBooks(), m.loadSummary())
	case viewList:
		return m.loadBooks()
	case viewDetail:
		return m.loadBook(m.detailID)
	case viewSummary:
		return m.loadSummary()
	}
	return nil
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case invalidatedMsg:
		// Something this terminal or the flow mutated went stale:
		// refetch whatever the active view observes and re-arm.
		return m, tea.Batch(m.refetchActive(), m.waitInvalidation())

	case booksLoadedMsg:
		m.loading = false
		if msg.err != nil {
			if m.view == viewList || m.view == viewHome {
				m.errMsg = humanError(msg.err)
			}
			return m, nil
		}
		m.errMsg = ""
		m.list = msg.list
		if m.cursor >= len(m.list.Items) {
			m.cursor = max(0, len(m.list.Items)-1)
		}
		return m, nil

	case bookLoadedMsg:
		if m.view != viewDetail {
			// The user already navigated away: a late response must
			// not repaint an unmounted screen.
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.errMsg = humanError(msg.err)
			return m, nil
		}
		m.errMsg = ""
		m.detail = msg.book
		return m, nil

	case summaryLoadedMsg:
		m.loading = false
		if msg.err != nil {
			if m.view == viewSummary || m.view == viewHome {
				m.errMsg = humanError(msg.err)
			}
			return m, nil
		}
		if m.view == viewSummary || m.view == viewHome {
			m.errMsg = ""
		}
		m.summary = msg.entries
		return m, nil

	case mutationDoneMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = humanError(msg.err)
			return m, nil
		}
		m.errMsg = ""
		m.status = "book " + msg.action + "d"
		if m.view == viewForm {
			m.view = viewList
		}
		return m, m.loadBooks()

	case borrowFlowLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = humanError(msg.err)
			return m, nil
		}
		m.errMsg = ""
		m.syncFlowFields()
		return m, nil

	case borrowDoneMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = humanError(msg.err)
			return m, nil
		}
		m.errMsg = ""
		m.status = "borrowed " + strconv.Itoa(msg.record.Quantity) + " of " + m.flow.Book().Title
		m.view = viewSummary
		return m, m.loadSummary()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Typing views route most keys into the focused input.
	if m.view == viewForm {
		return m.handleFormKey(msg)
	}
	if m.view == viewBorrow {
		return m.handleBorrowKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "h":
		m.view = viewHome
		m.errMsg = ""
		m.loading = true
		return m, tea.Batch(m.loadBooks(), m.loadSummary())
	case "b":
		m.view = viewList
		m.errMsg = ""
		m.loading = true
		return m, m.loadBooks()
	case "s":
		m.view = viewSummary
		m.errMsg = ""
		m.loading = true
		return m, m.loadSummary()
	case "n":
		m.openCreateForm()
		return m, nil
	case "r":
		// Manual retry of whatever failed on this screen.
		m.errMsg = ""
		m.loading = true
		return m, m.refetchActive()
	case "esc":
		if m.view == viewDetail || m.view == viewSummary {
			m.view = viewList
			return m, m.loadBooks()
		}
		return m, nil
	}

	if m.view != viewList && m.view != viewDetail {
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		if m.view == viewList && m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.view == viewList && m.cursor < len(m.list.Items)-1 {
			m.cursor++
		}
	case "left":
		if m.view == viewList && m.page > 1 {
			m.page--
			m.loading = true
			return m, m.loadBooks()
		}
	case "right":
		if m.view == viewList && m.page*m.limit < m.list.Total {
			m.page++
			m.loading = true
			return m, m.loadBooks()
		}
	case "enter":
		if m.view == viewList && m.cursor < len(m.list.Items) {
			m.detailID = m.list.Items[m.cursor].ID
			m.detail = Book{}
			m.view = viewDetail
			m.loading = true
			m.errMsg = ""
			return m, m.loadBook(m.detailID)
		}
	case "e":
		if book, ok := m.selectedBook(); ok {
			m.openEditForm(book)
		}
	case "d":
		if book, ok := m.selectedBook(); ok {
			m.loading = true
			if m.view == viewDetail {
				m.view = viewList
			}
			return m, m.deleteBook(book.ID)
		}
	case "o":
		if book, ok := m.selectedBook(); ok {
			return m, m.openBorrowForm(book)
		}
	}
	return m, nil
}

func (m *tuiModel) selectedBook() (Book, bool) {
	if m.view == viewDetail {
		if m.detail.ID == "" {
			return Book{}, false
		}
		return m.detail, true
	}
	if m.cursor < len(m.list.Items) {
		return m.list.Items[m.cursor], true
	}
	return Book{}, false
}

func (m *tuiModel) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = viewList
		m.errMsg = ""
		return m, m.loadBooks()
	case "tab", "enter", "down":
		m.form.focus = (m.form.focus + 1) % fieldCount
		m.focusFormField()
		return m, nil
	case "shift+tab", "up":
		m.form.focus = (m.form.focus + fieldCount - 1) % fieldCount
		m.focusFormField()
		return m, nil
	case "ctrl+s":
		draft := m.draftFromForm()
		if err := ValidateBookDraft(&draft); err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		m.loading = true
		m.errMsg = ""
		return m, m.saveBook()
	}
	var cmd tea.Cmd
	m.form.inputs[m.form.focus], cmd = m.form.inputs[m.form.focus].Update(msg)
	return m, cmd
}

func (m *tuiModel) focusFormField() {
	for i := range m.form.inputs {
		if i == m.form.focus {
			m.form.inputs[i].Focus()
		} else {
			m.form.inputs[i].Blur()
		}
	}
}

func (m *tuiModel) handleBorrowKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = viewList
		m.errMsg = ""
		return m, m.loadBooks()
	case "r":
		if m.flow != nil && m.flow.State() == FlowLoadError {
			m.loading = true
			m.errMsg = ""
			return m, m.loadBorrowFlow()
		}
	case "tab", "down":
		m.borrowForm.focus = (m.borrowForm.focus + 1) % borrowFieldCount
		m.focusBorrowField()
		return m, nil
	case "shift+tab", "up":
		m.borrowForm.focus = (m.borrowForm.focus + borrowFieldCount - 1) % borrowFieldCount
		m.focusBorrowField()
		return m, nil
	case "enter":
		m.syncFlowFields()
		if !m.flow.CanSubmit() {
			if err := m.flow.Validate(); err != nil {
				m.errMsg = err.Error()
			}
			return m, nil
		}
		m.loading = true
		m.errMsg = ""
		return m, m.submitBorrow()
	}
	var cmd tea.Cmd
	m.borrowForm.inputs[m.borrowForm.focus], cmd = m.borrowForm.inputs[m.borrowForm.focus].Update(msg)
	m.syncFlowFields()
	return m, cmd
}

func (m *tuiModel) focusBorrowField() {
	for i := range m.borrowForm.inputs {
		if i == m.borrowForm.focus {
			m.borrowForm.inputs[i].Focus()
		} else {
			m.borrowForm.inputs[i].Blur()
		}
	}
}

// humanError renders a failure for the status area. Typed failures
// carry a user-facing message already, anything else gets a generic
// line with the retry hint.
func humanError(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err), IsConflict(err):
		return err.Error()
	case IsNotFound(err):
		return err.Error()
	default:
		return "request failed, press r to retry"
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
