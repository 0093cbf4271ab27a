package sync

import (
	"time"

	"github.com/tallybridge/backend/internal/domain/mirror"
)

// PushResult is the outcome of a safe push, alter, or undo operation.
// Success with a non-empty Warning means the write is durable locally but not
// yet confirmed by the remote system (offline fallback).
type PushResult struct {
	Success bool
	Message string
	Warning string
	Error   string
	// Voucher is the locally persisted voucher for push operations, nil when
	// nothing was persisted.
	Voucher *mirror.Voucher
}

func pushSuccess(message string, voucher *mirror.Voucher) *PushResult {
	return &PushResult{Success: true, Message: message, Voucher: voucher}
}

func pushQueued(message, warning string, voucher *mirror.Voucher) *PushResult {
	return &PushResult{Success: true, Message: message, Warning: warning, Voucher: voucher}
}

func pushFailure(message, errText string) *PushResult {
	return &PushResult{Success: false, Message: message, Error: errText}
}

// PassStats counts what one pull pass did.
type PassStats struct {
	Fetched int
	Created int
	Updated int
	Skipped int
}

// DrainStats counts what one offline-queue drain did.
type DrainStats struct {
	Attempted int
	Synced    int
	Remaining int
}

// SyncReport summarizes one full synchronization run: the offline-queue drain
// followed by the four pull passes.
type SyncReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Drain      DrainStats
	Ledgers    PassStats
	Vouchers   PassStats
	StockItems PassStats
	Bills      PassStats
}

// TotalFetched returns the number of remote rows seen across all passes.
func (r *SyncReport) TotalFetched() int {
	return r.Ledgers.Fetched + r.Vouchers.Fetched + r.StockItems.Fetched + r.Bills.Fetched
}
