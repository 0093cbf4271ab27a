package sync

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tallybridge/backend/internal/domain/mirror"
	"github.com/tallybridge/backend/internal/domain/remote"
	"github.com/tallybridge/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Engine Configuration
// ---------------------------------------------------------------------------

// Config holds synchronization engine settings.
type Config struct {
	// RetryAttempts is the number of attempts per remote write, transport
	// faults only. Rejections are never retried.
	RetryAttempts int
	// RetryBaseDelay is the first backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration
	// RetryMaxDelay caps the backoff delay.
	RetryMaxDelay time.Duration
	// PullLookbackDays bounds the voucher pull window ending today.
	PullLookbackDays int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		RetryAttempts:    3,
		RetryBaseDelay:   2 * time.Second,
		RetryMaxDelay:    10 * time.Second,
		PullLookbackDays: 30,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = d.RetryAttempts
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = d.RetryBaseDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = d.RetryMaxDelay
	}
	if c.PullLookbackDays <= 0 {
		c.PullLookbackDays = d.PullLookbackDays
	}
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// Engine keeps the local mirror consistent with the remote accounting system.
// It pulls authoritative records into the mirror, pushes locally originated
// vouchers with an offline fallback, and drains the offline queue.
//
// Single-writer model: the mutex serializes every operation, so at most one
// sync run or push touches the store at a time.
type Engine struct {
	connector remote.Connector
	store     mirror.Store
	config    Config
	logger    *zap.Logger

	mu gosync.Mutex

	// sleep is swapped out in tests to make backoff instantaneous.
	sleep func(time.Duration)
}

// NewEngine creates a synchronization engine.
func NewEngine(connector remote.Connector, store mirror.Store, config Config, logger *zap.Logger) *Engine {
	config.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		connector: connector,
		store:     store,
		config:    config,
		logger:    logger,
		sleep:     time.Sleep,
	}
}

// ---------------------------------------------------------------------------
// Transport Retry
// ---------------------------------------------------------------------------

// retryTransport runs fn up to the configured attempt count, sleeping a
// doubling, capped, jittered delay between attempts. Only transport faults are
// retried; every other error returns immediately.
func (e *Engine) retryTransport(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= e.config.RetryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !remote.IsTransportFault(lastErr) {
			return lastErr
		}
		if attempt < e.config.RetryAttempts {
			delay := e.backoffDelay(attempt)
			e.logger.Warn("transport fault, backing off",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", e.config.RetryAttempts),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			e.sleep(delay)
		}
	}
	return lastErr
}

// backoffDelay returns base * 2^(attempt-1) capped at the max, plus jitter.
func (e *Engine) backoffDelay(attempt int) time.Duration {
	delay := e.config.RetryBaseDelay * time.Duration(1<<(attempt-1))
	if delay > e.config.RetryMaxDelay {
		delay = e.config.RetryMaxDelay
	}
	return delay + time.Duration(rand.Int63n(int64(500*time.Millisecond)))
}

// ---------------------------------------------------------------------------
// Push With Fallback
// ---------------------------------------------------------------------------

// PushVoucherSafe pushes a new voucher to the remote system with an offline
// fallback. Three outcomes:
//   - remote Accepted: the voucher is persisted locally as SYNCED
//   - remote Rejected or Ignored: nothing is persisted locally, failure
//   - transport retries exhausted: the voucher is persisted locally as
//     PENDING with a synthesized identifier, success with a warning
//
// A local persistence failure after a confirmed remote accept is logged but
// still reported as success: the system of record already holds the voucher
// and the next pull pass repairs the mirror.
func (e *Engine) PushVoucherSafe(ctx context.Context, p remote.CreateVoucherPayload) *PushResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p.VoucherNumber == "" {
		p.VoucherNumber = fmt.Sprintf("TB-%d", time.Now().UnixNano())
	}

	var result *remote.ImportResult
	err := e.retryTransport(ctx, "create_voucher", func() error {
		var callErr error
		result, callErr = e.connector.CreateVoucher(ctx, p)
		return callErr
	})

	switch {
	case err != nil && remote.IsTransportFault(err):
		voucher := mirror.NewPendingVoucher(p.VoucherNumber, p.Date, p.Kind, p.PartyName, p.Amount, p.Narration)
		if persistErr := e.store.Vouchers().Create(ctx, voucher); persistErr != nil {
			e.logger.Error("offline fallback persistence failed",
				zap.String("voucher_number", p.VoucherNumber),
				zap.Error(persistErr),
			)
			return pushFailure("voucher could not be queued locally", persistErr.Error())
		}
		e.logger.Warn("remote unreachable, voucher queued locally",
			zap.String("voucher_number", p.VoucherNumber),
			zap.String("remote_id", voucher.RemoteID),
			zap.Error(err),
		)
		return pushQueued(
			fmt.Sprintf("voucher %s saved locally, awaiting remote sync", p.VoucherNumber),
			"remote accounting system unreachable, queued for offline retry",
			voucher,
		)

	case err != nil:
		return pushFailure("voucher push failed", err.Error())
	}

	switch {
	case result.Accepted():
		voucher := mirror.NewSyncedVoucher(result.RemoteID, p.VoucherNumber, p.Date, p.Kind, p.PartyName, p.Amount, p.Narration)
		if persistErr := e.store.Vouchers().Create(ctx, voucher); persistErr != nil {
			// The remote system of record accepted the voucher. Mirror
			// staleness is corrected by the next pull pass.
			e.logger.Warn("local mirror write failed after confirmed remote accept",
				zap.String("voucher_number", p.VoucherNumber),
				zap.Error(persistErr),
			)
		}
		return pushSuccess(fmt.Sprintf("voucher %s synced", p.VoucherNumber), voucher)

	case result.Rejected():
		return pushFailure("remote rejected the voucher", strings.Join(result.LineErrors, "; "))

	default:
		// Silently ignored responses are a known failure mode of the remote
		// system, not a success.
		return pushFailure("remote silently ignored the voucher", "no errors and no mutation counters in the response")
	}
}

// ---------------------------------------------------------------------------
// Offline Queue Drain
// ---------------------------------------------------------------------------

// RetryOfflineQueue re-pushes every PENDING voucher. On remote acceptance the
// voucher flips to SYNCED keeping its local row. A transport fault aborts the
// drain early since the remote system is unreachable for the remaining queue
// too; rejections and ignores leave the voucher PENDING for the next drain.
func (e *Engine) RetryOfflineQueue(ctx context.Context) (DrainStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drainOfflineQueue(ctx)
}

func (e *Engine) drainOfflineQueue(ctx context.Context) (DrainStats, error) {
	var stats DrainStats
	pending, err := e.store.Vouchers().FindByStatus(ctx, mirror.SyncStatusPending)
	if err != nil {
		return stats, fmt.Errorf("load offline queue: %w", err)
	}
	stats.Remaining = len(pending)

	for i := range pending {
		voucher := &pending[i]
		stats.Attempted++

		p, err := remote.NewCreateVoucherPayload(voucher.Kind, voucher.PartyName, voucher.Amount, voucher.Date, voucher.Narration)
		if err != nil {
			e.logger.Error("queued voucher no longer forms a valid payload",
				zap.String("voucher_number", voucher.VoucherNumber),
				zap.Error(err),
			)
			continue
		}
		p.VoucherNumber = voucher.VoucherNumber

		var result *remote.ImportResult
		err = e.retryTransport(ctx, "drain_offline_queue", func() error {
			var callErr error
			result, callErr = e.connector.CreateVoucher(ctx, p)
			return callErr
		})
		if err != nil {
			if remote.IsTransportFault(err) {
				e.logger.Warn("offline queue drain aborted, remote unreachable",
					zap.Int("remaining", stats.Remaining),
					zap.Error(err),
				)
				return stats, nil
			}
			e.logger.Error("offline queue drain push failed",
				zap.String("voucher_number", voucher.VoucherNumber),
				zap.Error(err),
			)
			continue
		}
		if !result.Accepted() {
			e.logger.Warn("queued voucher not accepted, left pending",
				zap.String("voucher_number", voucher.VoucherNumber),
				zap.String("outcome", result.Outcome.String()),
				zap.Strings("line_errors", result.LineErrors),
			)
			continue
		}

		now := time.Now()
		if err := voucher.MarkSynced(result.RemoteID, now); err != nil {
			e.logger.Error("queued voucher refused sync transition",
				zap.String("voucher_number", voucher.VoucherNumber),
				zap.Error(err),
			)
			continue
		}
		if err := e.store.Vouchers().Update(ctx, voucher); err != nil {
			return stats, fmt.Errorf("persist drained voucher %s: %w", voucher.VoucherNumber, err)
		}
		stats.Synced++
		stats.Remaining--
		e.logger.Info("queued voucher synced",
			zap.String("voucher_number", voucher.VoucherNumber),
			zap.String("remote_id", voucher.RemoteID),
		)
	}
	return stats, nil
}

// ---------------------------------------------------------------------------
// Pull Reconciliation
// ---------------------------------------------------------------------------

// SyncNow performs one full synchronization run: offline-queue drain, then the
// four pull passes. All remote collections are fetched first; the local writes
// of all four passes share one transaction, so a failure in any pass rolls
// back the whole run and the prior mirror state is preserved.
func (e *Engine) SyncNow(ctx context.Context) (*SyncReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := &SyncReport{StartedAt: time.Now()}

	drain, err := e.drainOfflineQueue(ctx)
	if err != nil {
		return nil, err
	}
	report.Drain = drain

	var ledgerRows, voucherRows, stockRows, billRows []remote.Row
	to := time.Now()
	from := to.AddDate(0, 0, -e.config.PullLookbackDays)

	err = e.retryTransport(ctx, "pull_fetch", func() error {
		var fetchErr error
		if ledgerRows, fetchErr = e.connector.FetchLedgers(ctx); fetchErr != nil {
			return fetchErr
		}
		if voucherRows, fetchErr = e.connector.FetchVouchers(ctx, from, to); fetchErr != nil {
			return fetchErr
		}
		if stockRows, fetchErr = e.connector.FetchStockItems(ctx); fetchErr != nil {
			return fetchErr
		}
		billRows, fetchErr = e.connector.FetchOutstandingBills(ctx)
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("pull fetch: %w", err)
	}

	now := time.Now()
	err = e.store.WithinTx(ctx, func(tx mirror.Store) error {
		var passErr error
		if report.Ledgers, passErr = e.reconcileLedgers(ctx, tx, ledgerRows, now); passErr != nil {
			return passErr
		}
		if report.StockItems, passErr = e.reconcileStockItems(ctx, tx, stockRows, now); passErr != nil {
			return passErr
		}
		if report.Bills, passErr = e.reconcileBills(ctx, tx, billRows, now); passErr != nil {
			return passErr
		}
		report.Vouchers, passErr = e.reconcileVouchers(ctx, tx, voucherRows, now)
		return passErr
	})
	if err != nil {
		return nil, fmt.Errorf("pull reconciliation: %w", err)
	}

	report.FinishedAt = time.Now()
	e.logger.Info("sync run completed",
		zap.Int("drained", report.Drain.Synced),
		zap.Int("queue_remaining", report.Drain.Remaining),
		zap.Int("rows_fetched", report.TotalFetched()),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (e *Engine) reconcileLedgers(ctx context.Context, tx mirror.Store, rows []remote.Row, now time.Time) (PassStats, error) {
	stats := PassStats{Fetched: len(rows)}
	for _, row := range rows {
		name := row.Get("NAME", "LEDGERNAME", "LEDGER_NAME")
		if name == "" {
			stats.Skipped++
			continue
		}
		parent := row.Get("PARENT", "PARENTGROUP")
		opening := parseRemoteDecimal(row.Get("OPENINGBALANCE", "OPENING_BALANCE"))
		closing := parseRemoteDecimal(row.Get("CLOSINGBALANCE", "CLOSING_BALANCE"))
		taxNumber := row.Get("PARTYGSTIN", "INCOMETAXNUMBER")
		phone := row.Get("LEDGERPHONE", "PHONE")
		email := row.Get("EMAIL")
		address := row.Get("ADDRESS", "LEDGER_ADDRESS")

		ledger, err := tx.Ledgers().FindByName(ctx, name)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			ledger = mirror.NewPartyLedger(name, parent)
			ledger.Refresh(parent, opening, closing, taxNumber, phone, email, address, now)
			if err := tx.Ledgers().Create(ctx, ledger); err != nil {
				return stats, fmt.Errorf("create ledger %q: %w", name, err)
			}
			stats.Created++
		case err != nil:
			return stats, fmt.Errorf("lookup ledger %q: %w", name, err)
		default:
			ledger.Refresh(parent, opening, closing, taxNumber, phone, email, address, now)
			if err := tx.Ledgers().Update(ctx, ledger); err != nil {
				return stats, fmt.Errorf("update ledger %q: %w", name, err)
			}
			stats.Updated++
		}
	}
	return stats, nil
}

func (e *Engine) reconcileStockItems(ctx context.Context, tx mirror.Store, rows []remote.Row, now time.Time) (PassStats, error) {
	stats := PassStats{Fetched: len(rows)}
	for _, row := range rows {
		name := row.Get("NAME", "STOCKITEMNAME", "STOCK_ITEM_NAME")
		if name == "" {
			stats.Skipped++
			continue
		}
		parent := row.Get("PARENT", "PARENTGROUP", "CATEGORY")
		qty, unit := parseRemoteQuantity(row.Get("CLOSINGBALANCE", "CLOSINGQTY", "CLOSING_BALANCE"))
		if unit == "" {
			unit = row.Get("BASEUNITS", "UNIT")
		}
		rate := parseRemoteDecimal(row.Get("LASTRATE", "RATE", "CLOSINGRATE"))

		item, err := tx.StockItems().FindByName(ctx, name)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			item = mirror.NewStockItem(name, parent)
			item.Refresh(parent, qty, rate, unit, now)
			if err := tx.StockItems().Create(ctx, item); err != nil {
				return stats, fmt.Errorf("create stock item %q: %w", name, err)
			}
			stats.Created++
		case err != nil:
			return stats, fmt.Errorf("lookup stock item %q: %w", name, err)
		default:
			item.Refresh(parent, qty, rate, unit, now)
			if err := tx.StockItems().Update(ctx, item); err != nil {
				return stats, fmt.Errorf("update stock item %q: %w", name, err)
			}
			stats.Updated++
		}
	}
	return stats, nil
}

func (e *Engine) reconcileBills(ctx context.Context, tx mirror.Store, rows []remote.Row, now time.Time) (PassStats, error) {
	stats := PassStats{Fetched: len(rows)}
	for _, row := range rows {
		reference := row.Get("NAME", "BILLREF", "BILL_REF", "REFERENCE")
		if reference == "" {
			stats.Skipped++
			continue
		}
		party := row.Get("PARTYNAME", "PARTYLEDGERNAME", "PARTY_NAME", "LEDGERNAME")
		amount := parseRemoteDecimal(row.Get("CLOSINGBALANCE", "AMOUNT", "BILLAMOUNT"))
		var dueDate *time.Time
		if d, ok := parseRemoteDate(row.Get("BILLCREDITPERIOD", "DUEDATE", "DUE_DATE", "BILLDATE")); ok {
			dueDate = &d
		}

		bill, err := tx.Bills().FindByReference(ctx, reference)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			bill = mirror.NewOutstandingBill(reference, party)
			bill.Refresh(party, amount, dueDate, now)
			if err := tx.Bills().Create(ctx, bill); err != nil {
				return stats, fmt.Errorf("create bill %q: %w", reference, err)
			}
			stats.Created++
		case err != nil:
			return stats, fmt.Errorf("lookup bill %q: %w", reference, err)
		default:
			bill.Refresh(party, amount, dueDate, now)
			if err := tx.Bills().Update(ctx, bill); err != nil {
				return stats, fmt.Errorf("update bill %q: %w", reference, err)
			}
			stats.Updated++
		}
	}
	return stats, nil
}

// reconcileVouchers keys pulled vouchers by (voucher number, date). A local
// voucher still PENDING is never overwritten: the pulled row predates its
// remote acceptance and carrying its data over would lose the queued write.
func (e *Engine) reconcileVouchers(ctx context.Context, tx mirror.Store, rows []remote.Row, now time.Time) (PassStats, error) {
	stats := PassStats{Fetched: len(rows)}
	for _, row := range rows {
		number := row.Get("VOUCHERNUMBER", "VOUCHER_NUMBER", "VCHNUMBER")
		date, dateOK := parseRemoteDate(row.Get("DATE", "VOUCHERDATE", "VOUCHER_DATE"))
		if number == "" || !dateOK {
			stats.Skipped++
			continue
		}
		kind, kindOK := mirror.ParseVoucherKind(row.Get("VOUCHERTYPENAME", "VCHTYPE", "VOUCHER_TYPE"))
		if !kindOK {
			stats.Skipped++
			continue
		}
		remoteID := row.Get("MASTERID", "ALTERID", "GUID")
		party := row.Get("PARTYLEDGERNAME", "PARTYNAME", "PARTY_LEDGER_NAME")
		amount := parseRemoteDecimal(row.Get("AMOUNT", "VOUCHERAMOUNT"))
		narration := row.Get("NARRATION")

		voucher, err := tx.Vouchers().FindByNumberAndDate(ctx, number, date)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			voucher = mirror.NewSyncedVoucher(remoteID, number, date, kind, party, amount, narration)
			if err := tx.Vouchers().Create(ctx, voucher); err != nil {
				return stats, fmt.Errorf("create voucher %q: %w", number, err)
			}
			stats.Created++
		case err != nil:
			return stats, fmt.Errorf("lookup voucher %q: %w", number, err)
		case voucher.IsPending():
			stats.Skipped++
		default:
			if remoteID != "" {
				voucher.RemoteID = remoteID
			}
			voucher.PartyName = party
			voucher.Amount = amount
			voucher.Narration = narration
			voucher.LastSyncedAt = &now
			voucher.UpdatedAt = now
			if err := tx.Vouchers().Update(ctx, voucher); err != nil {
				return stats, fmt.Errorf("update voucher %q: %w", number, err)
			}
			stats.Updated++
		}
	}
	return stats, nil
}

// ---------------------------------------------------------------------------
// Undo and Ledger Alteration
// ---------------------------------------------------------------------------

// UndoVoucherSafe deletes a voucher remotely and, only after the remote system
// confirms the deletion, removes the local row. Any remote failure leaves the
// local row untouched and carries the remote error verbatim.
func (e *Engine) UndoVoucherSafe(ctx context.Context, id uuid.UUID) *PushResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	voucher, err := e.store.Vouchers().FindByID(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return pushFailure("voucher not found", mirror.ErrVoucherNotFound.Error())
	}
	if err != nil {
		return pushFailure("voucher lookup failed", err.Error())
	}

	p, err := remote.NewDeleteVoucherPayload(voucher.Kind, voucher.VoucherNumber, voucher.Date)
	if err != nil {
		return pushFailure("voucher cannot be deleted remotely", err.Error())
	}

	var result *remote.ImportResult
	err = e.retryTransport(ctx, "delete_voucher", func() error {
		var callErr error
		result, callErr = e.connector.DeleteVoucher(ctx, p)
		return callErr
	})
	if err != nil {
		return pushFailure("remote delete failed, local voucher kept", err.Error())
	}
	if !result.Accepted() {
		return pushFailure("remote did not confirm the delete, local voucher kept",
			strings.Join(result.LineErrors, "; "))
	}

	if err := e.store.Vouchers().Delete(ctx, voucher.ID); err != nil {
		// Remote deletion is confirmed; the stale local row disappears on the
		// next pull pass.
		e.logger.Warn("local delete failed after confirmed remote delete",
			zap.String("voucher_number", voucher.VoucherNumber),
			zap.Error(err),
		)
	}
	return pushSuccess(fmt.Sprintf("voucher %s deleted", voucher.VoucherNumber), nil)
}

// AlterLedgerSafe pushes a ledger field correction. There is no offline
// fallback for ledger alters: an unreachable remote is a plain failure.
func (e *Engine) AlterLedgerSafe(ctx context.Context, ledgerName string, fields remote.LedgerFieldSet) *PushResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	var result *remote.ImportResult
	err := e.retryTransport(ctx, "alter_ledger", func() error {
		var callErr error
		result, callErr = e.connector.UpdateLedgerFields(ctx, ledgerName, fields)
		return callErr
	})
	if err != nil {
		return pushFailure("ledger update failed", err.Error())
	}

	switch {
	case result.Accepted():
		return pushSuccess(fmt.Sprintf("ledger %s updated", ledgerName), nil)
	case result.Rejected():
		return pushFailure("remote rejected the ledger update", strings.Join(result.LineErrors, "; "))
	default:
		return pushFailure("remote silently ignored the ledger update", "no errors and no mutation counters in the response")
	}
}

// ---------------------------------------------------------------------------
// Remote Value Parsing
// ---------------------------------------------------------------------------

var remoteDateFormats = []string{"20060102", "2006-01-02", "2-Jan-2006", "02-Jan-2006"}

// parseRemoteDate parses the date formats remote exports are known to use.
func parseRemoteDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range remoteDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseRemoteDecimal parses a remote numeric value. Thousands separators are
// dropped and a trailing Dr/Cr marker is honored, Cr negating the value.
// Unparsable input yields zero.
func parseRemoteDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	negate := false
	switch {
	case strings.HasSuffix(s, " Dr"):
		s = strings.TrimSuffix(s, " Dr")
	case strings.HasSuffix(s, " Cr"):
		s = strings.TrimSuffix(s, " Cr")
		negate = true
	}
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	if negate {
		return d.Neg()
	}
	return d
}

// parseRemoteQuantity splits a remote quantity like "12 Nos" into the numeric
// balance and the unit of measure.
func parseRemoteQuantity(s string) (decimal.Decimal, string) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return decimal.Zero, ""
	}
	qty := parseRemoteDecimal(fields[0])
	return qty, strings.Join(fields[1:], " ")
}
