package tui

import "github.com/decimal-labs/leakwatch/internal/model"

type recordsLoadedMsg struct {
	err     error
	records []*model.LeakRecord
}

type historyLoadedMsg struct {
	err         error
	fingerprint model.Fingerprint
	history     []model.SightingLog
}

type statusUpdatedMsg struct {
	err    error
	record *model.LeakRecord
}
