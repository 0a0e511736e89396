package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/decimal-labs/leakwatch/internal/model"
)

const storeTimeout = 30 * time.Second

// loadRecords runs the configured query against the store.
func (m Model) loadRecords() tea.Cmd {
	store, query := m.store, m.query
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		var records []*model.LeakRecord
		for rec, err := range store.Search(ctx, query) {
			if err != nil {
				return recordsLoadedMsg{err: fmt.Errorf("failed to load leak records: %w", err)}
			}
			records = append(records, rec)
		}
		return recordsLoadedMsg{records: records}
	}
}

// loadHistory fetches the audit log for one record.
func (m Model) loadHistory(fp model.Fingerprint) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		history, err := store.History(ctx, fp)
		if err != nil {
			err = fmt.Errorf("failed to load history for %s: %w", fp.Short(), err)
		}
		return historyLoadedMsg{fingerprint: fp, history: history, err: err}
	}
}

// setStatus records a review decision and reads the record back.
func (m Model) setStatus(fp model.Fingerprint, status model.Status) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		if err := store.SetStatus(ctx, fp, status); err != nil {
			return statusUpdatedMsg{err: fmt.Errorf("failed to mark %s %s: %w", fp.Short(), status, err)}
		}
		rec, err := store.Lookup(ctx, fp)
		if err != nil {
			return statusUpdatedMsg{err: fmt.Errorf("failed to reload %s: %w", fp.Short(), err)}
		}
		return statusUpdatedMsg{record: rec}
	}
}
