// Package tui implements the interactive triage view over stored leak records.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/service"
	"github.com/decimal-labs/leakwatch/internal/tui/themes"
)

// defaultLimit bounds how many records one triage session loads.
const defaultLimit = 500

// Config holds TUI configuration.
type Config struct {
	Store  service.LeakStore
	Theme  themes.Theme
	Query  model.SearchQuery
	Width  int
	Height int
	// Unmasked shows identifier values in full from the start.
	Unmasked bool
}

// Model holds the triage TUI state.
type Model struct {
	store      service.LeakStore
	lastError  error
	theme      themes.Theme
	help       help.Model
	keymap     KeyMap
	query      model.SearchQuery
	flash      string
	records    []*model.LeakRecord
	history    []model.SightingLog
	historyFor model.Fingerprint
	width      int
	height     int
	cursor     int
	offset     int
	mask       bool
	showDetail bool
	loading    bool
	quitting   bool
}

// New creates a model for cfg. Records load on Init.
func New(cfg Config) Model {
	query := cfg.Query
	if query.Limit <= 0 {
		query.Limit = defaultLimit
	}
	width, height := cfg.Width, cfg.Height
	if width <= 0 {
		width = 100
	}
	if height <= 0 {
		height = 24
	}
	return Model{
		store:   cfg.Store,
		theme:   cfg.Theme,
		help:    help.New(),
		keymap:  DefaultKeyMap(),
		query:   query,
		width:   width,
		height:  height,
		mask:    !cfg.Unmasked,
		loading: true,
	}
}

// Init starts the initial load.
func (m Model) Init() tea.Cmd {
	return m.loadRecords()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.scrollToCursor()
		return m, nil

	case recordsLoadedMsg:
		m.loading = false
		m.lastError = msg.err
		if msg.err == nil {
			m.records = msg.records
			m.cursor = min(m.cursor, max(len(m.records)-1, 0))
			m.scrollToCursor()
		}
		return m, m.detailCmd()

	case historyLoadedMsg:
		if rec := m.selected(); rec != nil && rec.Fingerprint == msg.fingerprint {
			m.lastError = msg.err
			m.history = msg.history
			m.historyFor = msg.fingerprint
		}
		return m, nil

	case statusUpdatedMsg:
		m.lastError = msg.err
		if msg.err != nil {
			return m, nil
		}
		for i, rec := range m.records {
			if rec.Fingerprint == msg.record.Fingerprint {
				m.records[i] = msg.record
				break
			}
		}
		m.flash = fmt.Sprintf("%s marked %s", msg.record.Fingerprint.Short(), msg.record.Status)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.flash = ""
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keymap.ToggleMask):
		m.mask = !m.mask
		return m, nil

	case key.Matches(msg, m.keymap.ToggleDetail):
		m.showDetail = !m.showDetail
		m.scrollToCursor()
		return m, m.detailCmd()

	case key.Matches(msg, m.keymap.Refresh):
		m.loading = true
		return m, m.loadRecords()

	case key.Matches(msg, m.keymap.Reviewed):
		return m, m.statusCmd(model.StatusReviewed)
	case key.Matches(msg, m.keymap.Archive):
		return m, m.statusCmd(model.StatusArchived)
	case key.Matches(msg, m.keymap.Reopen):
		return m, m.statusCmd(model.StatusNew)

	case key.Matches(msg, m.keymap.Up):
		return m.moveTo(m.cursor - 1)
	case key.Matches(msg, m.keymap.Down):
		return m.moveTo(m.cursor + 1)
	case key.Matches(msg, m.keymap.PageUp):
		return m.moveTo(m.cursor - m.listHeight())
	case key.Matches(msg, m.keymap.PageDown):
		return m.moveTo(m.cursor + m.listHeight())
	case key.Matches(msg, m.keymap.Home):
		return m.moveTo(0)
	case key.Matches(msg, m.keymap.End):
		return m.moveTo(len(m.records) - 1)
	}
	return m, nil
}

func (m Model) moveTo(index int) (tea.Model, tea.Cmd) {
	if len(m.records) == 0 {
		return m, nil
	}
	index = max(0, min(index, len(m.records)-1))
	if index == m.cursor {
		return m, nil
	}
	m.cursor = index
	m.scrollToCursor()
	return m, m.detailCmd()
}

func (m Model) statusCmd(status model.Status) tea.Cmd {
	rec := m.selected()
	if rec == nil || rec.Status == status {
		return nil
	}
	return m.setStatus(rec.Fingerprint, status)
}

// detailCmd loads history for the selected record when the detail pane is
// open and the cached history belongs to another record.
func (m Model) detailCmd() tea.Cmd {
	rec := m.selected()
	if !m.showDetail || rec == nil || rec.Fingerprint == m.historyFor {
		return nil
	}
	return m.loadHistory(rec.Fingerprint)
}

func (m Model) selected() *model.LeakRecord {
	if m.cursor < 0 || m.cursor >= len(m.records) {
		return nil
	}
	return m.records[m.cursor]
}

// listHeight is the number of record rows that fit on screen.
func (m Model) listHeight() int {
	// title, subtitle, table header, status line, help footer
	chrome := 6
	if m.showDetail {
		return max(3, (m.height-chrome)/3)
	}
	return max(1, m.height-chrome)
}

func (m *Model) scrollToCursor() {
	rows := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	m.offset = max(0, m.offset)
}

// Selected returns the record under the cursor, or nil.
func (m Model) Selected() *model.LeakRecord {
	return m.selected()
}

// Records returns the loaded records.
func (m Model) Records() []*model.LeakRecord {
	return m.records
}
