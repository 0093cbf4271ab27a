package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tallybridge/backend/internal/domain/mirror"
	"github.com/tallybridge/backend/internal/domain/remote"
	"github.com/tallybridge/backend/internal/infrastructure/persistence"
	"github.com/tallybridge/backend/internal/infrastructure/persistence/models"
)

// fakeConnector scripts remote behavior per operation and counts calls.
type fakeConnector struct {
	mu gosync.Mutex

	createResult *remote.ImportResult
	createErr    error
	createCalls  int
	lastCreate   remote.CreateVoucherPayload

	deleteResult *remote.ImportResult
	deleteErr    error
	deleteCalls  int

	alterResult *remote.ImportResult
	alterErr    error
	alterCalls  int

	ledgerRows  []remote.Row
	voucherRows []remote.Row
	stockRows   []remote.Row
	billRows    []remote.Row
	fetchErr    error
}

func (f *fakeConnector) FetchLedgers(ctx context.Context) ([]remote.Row, error) {
	return f.ledgerRows, f.fetchErr
}

func (f *fakeConnector) FetchVouchers(ctx context.Context, from, to time.Time) ([]remote.Row, error) {
	return f.voucherRows, f.fetchErr
}

func (f *fakeConnector) FetchStockItems(ctx context.Context) ([]remote.Row, error) {
	return f.stockRows, f.fetchErr
}

func (f *fakeConnector) FetchOutstandingBills(ctx context.Context) ([]remote.Row, error) {
	return f.billRows, f.fetchErr
}

func (f *fakeConnector) CreateVoucher(ctx context.Context, p remote.CreateVoucherPayload) (*remote.ImportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastCreate = p
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createResult, nil
}

func (f *fakeConnector) AlterVoucher(ctx context.Context, p remote.AlterVoucherPayload) (*remote.ImportResult, error) {
	return f.createResult, f.createErr
}

func (f *fakeConnector) DeleteVoucher(ctx context.Context, p remote.DeleteVoucherPayload) (*remote.ImportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return f.deleteResult, nil
}

func (f *fakeConnector) UpdateLedgerFields(ctx context.Context, ledgerName string, fields remote.LedgerFieldSet) (*remote.ImportResult, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alterCalls++
	if f.alterErr != nil {
		return nil, f.alterErr
	}
	return f.alterResult, nil
}

func (f *fakeConnector) EnsureLedger(ctx context.Context, name, parentGroup string) error {
	return nil
}

func (f *fakeConnector) LookupLedger(ctx context.Context, name string) ([]string, error) {
	return []string{name}, nil
}

var _ remote.Connector = (*fakeConnector)(nil)

func setupEngineTest(t *testing.T, connector *fakeConnector) (*Engine, mirror.Store) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.MirrorModels()...))

	store := persistence.NewGormStore(db)
	engine := NewEngine(connector, store, DefaultConfig(), zap.NewNop())
	engine.sleep = func(time.Duration) {}
	return engine, store
}

func acceptedResult(remoteID string) *remote.ImportResult {
	return &remote.ImportResult{Outcome: remote.OutcomeAccepted, Created: 1, RemoteID: remoteID}
}

func receiptPayload(t *testing.T, party string, amount int64) remote.CreateVoucherPayload {
	p, err := remote.NewCreateVoucherPayload(
		mirror.VoucherKindReceipt, party, decimal.NewFromInt(amount),
		time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC), "on account",
	)
	require.NoError(t, err)
	return p
}

func TestPushVoucherSafe_AcceptedPersistsSynced(t *testing.T) {
	connector := &fakeConnector{createResult: acceptedResult("12345")}
	engine, store := setupEngineTest(t, connector)

	result := engine.PushVoucherSafe(context.Background(), receiptPayload(t, "Sharma", 1000))

	require.True(t, result.Success)
	assert.Empty(t, result.Warning)
	assert.Equal(t, 1, connector.createCalls)

	require.NotNil(t, result.Voucher)
	stored, err := store.Vouchers().FindByID(context.Background(), result.Voucher.ID)
	require.NoError(t, err)
	assert.Equal(t, mirror.SyncStatusSynced, stored.Status)
	assert.Equal(t, "12345", stored.RemoteID)
	assert.Equal(t, "Sharma", stored.PartyName)
	assert.True(t, stored.Amount.Equal(decimal.NewFromInt(1000)))
}

func TestPushVoucherSafe_SynthesizesVoucherNumber(t *testing.T) {
	connector := &fakeConnector{createResult: acceptedResult("1")}
	engine, _ := setupEngineTest(t, connector)

	result := engine.PushVoucherSafe(context.Background(), receiptPayload(t, "Sharma", 1000))

	require.True(t, result.Success)
	assert.Regexp(t, `^TB-\d+$`, connector.lastCreate.VoucherNumber)
}

func TestPushVoucherSafe_UnreachableQueuesPending(t *testing.T) {
	connector := &fakeConnector{createErr: remote.ErrRemoteUnavailable}
	engine, store := setupEngineTest(t, connector)

	result := engine.PushVoucherSafe(context.Background(), receiptPayload(t, "Sharma", 1000))

	require.True(t, result.Success)
	assert.NotEmpty(t, result.Warning)
	assert.Equal(t, 3, connector.createCalls)

	pending, err := store.Vouchers().FindByStatus(context.Background(), mirror.SyncStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].IsPending())
	assert.Contains(t, pending[0].RemoteID, mirror.PendingIDPrefix)
}

func TestPushVoucherSafe_RejectedPersistsNothing(t *testing.T) {
	connector := &fakeConnector{createResult: &remote.ImportResult{
		Outcome:    remote.OutcomeRejected,
		LineErrors: []string{"Invalid ledger"},
	}}
	engine, store := setupEngineTest(t, connector)

	result := engine.PushVoucherSafe(context.Background(), receiptPayload(t, "Nobody", 1000))

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "Invalid ledger")
	// rejections are never retried
	assert.Equal(t, 1, connector.createCalls)

	for _, status := range []mirror.SyncStatus{mirror.SyncStatusSynced, mirror.SyncStatusPending, mirror.SyncStatusError} {
		rows, err := store.Vouchers().FindByStatus(context.Background(), status)
		require.NoError(t, err)
		assert.Empty(t, rows)
	}
}

func TestPushVoucherSafe_IgnoredIsFailure(t *testing.T) {
	connector := &fakeConnector{createResult: &remote.ImportResult{Outcome: remote.OutcomeIgnored}}
	engine, store := setupEngineTest(t, connector)

	result := engine.PushVoucherSafe(context.Background(), receiptPayload(t, "Sharma", 1000))

	require.False(t, result.Success)
	assert.Contains(t, result.Message, "ignored")

	rows, err := store.Vouchers().FindByStatus(context.Background(), mirror.SyncStatusSynced)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRetryOfflineQueue_DrainsToSynced(t *testing.T) {
	connector := &fakeConnector{createResult: acceptedResult("777")}
	engine, store := setupEngineTest(t, connector)

	queued := mirror.NewPendingVoucher("TB-1", time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC),
		mirror.VoucherKindReceipt, "Sharma", decimal.NewFromInt(1000), "")
	require.NoError(t, store.Vouchers().Create(context.Background(), queued))

	stats, err := engine.RetryOfflineQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Attempted)
	assert.Equal(t, 1, stats.Synced)
	assert.Equal(t, 0, stats.Remaining)

	drained, err := store.Vouchers().FindByID(context.Background(), queued.ID)
	require.NoError(t, err)
	assert.Equal(t, mirror.SyncStatusSynced, drained.Status)
	// the synthesized identifier was replaced by the real one
	assert.Equal(t, "777", drained.RemoteID)
	assert.NotNil(t, drained.LastSyncedAt)
}

func TestRetryOfflineQueue_AbortsWhenUnreachable(t *testing.T) {
	connector := &fakeConnector{createErr: remote.ErrRemoteUnavailable}
	engine, store := setupEngineTest(t, connector)

	for _, number := range []string{"TB-1", "TB-2"} {
		v := mirror.NewPendingVoucher(number, time.Now(), mirror.VoucherKindReceipt, "Sharma", decimal.NewFromInt(10), "")
		require.NoError(t, store.Vouchers().Create(context.Background(), v))
	}

	stats, err := engine.RetryOfflineQueue(context.Background())
	require.NoError(t, err)
	// the first voucher exhausts its retries, then the drain stops instead of
	// hammering an unreachable remote for the rest of the queue
	assert.Equal(t, 3, connector.createCalls)
	assert.Equal(t, 1, stats.Attempted)
	assert.Equal(t, 0, stats.Synced)
	assert.Equal(t, 2, stats.Remaining)

	pending, err := store.Vouchers().FindByStatus(context.Background(), mirror.SyncStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestRetryOfflineQueue_RejectionLeavesPending(t *testing.T) {
	connector := &fakeConnector{createResult: &remote.ImportResult{
		Outcome:    remote.OutcomeRejected,
		LineErrors: []string{"Invalid ledger"},
	}}
	engine, store := setupEngineTest(t, connector)

	v := mirror.NewPendingVoucher("TB-1", time.Now(), mirror.VoucherKindReceipt, "Sharma", decimal.NewFromInt(10), "")
	require.NoError(t, store.Vouchers().Create(context.Background(), v))

	stats, err := engine.RetryOfflineQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Attempted)
	assert.Equal(t, 0, stats.Synced)
	assert.Equal(t, 1, stats.Remaining)

	kept, err := store.Vouchers().FindByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.True(t, kept.IsPending())
}

func pullFixture() *fakeConnector {
	return &fakeConnector{
		createResult: acceptedResult(""),
		ledgerRows: []remote.Row{
			{"NAME": "Sharma", "PARENT": "Sundry Debtors", "CLOSINGBALANCE": "1,500.00 Dr", "PARTYGSTIN": "27AAPFU0939F1ZV"},
			{"NAME": "Verma Traders", "PARENT": "Sundry Creditors", "CLOSINGBALANCE": "800.00 Cr"},
			{"PARENT": "Sundry Debtors"}, // no natural key
		},
		voucherRows: []remote.Row{
			{
				"VOUCHERNUMBER": "101", "DATE": "20260410", "VOUCHERTYPENAME": "Receipt",
				"PARTYLEDGERNAME": "Sharma", "AMOUNT": "1000", "MASTERID": "9001",
			},
		},
		stockRows: []remote.Row{
			{"NAME": "Widget", "PARENT": "Finished Goods", "CLOSINGBALANCE": "12 Nos", "LASTRATE": "250"},
		},
		billRows: []remote.Row{
			{"NAME": "INV-42", "PARTYNAME": "Sharma", "CLOSINGBALANCE": "500", "DUEDATE": "20200301"},
		},
	}
}

func TestSyncNow_PullCreatesMirrorRows(t *testing.T) {
	connector := pullFixture()
	engine, store := setupEngineTest(t, connector)
	ctx := context.Background()

	report, err := engine.SyncNow(ctx)
	require.NoError(t, err)

	assert.Equal(t, PassStats{Fetched: 3, Created: 2, Skipped: 1}, report.Ledgers)
	assert.Equal(t, PassStats{Fetched: 1, Created: 1}, report.Vouchers)
	assert.Equal(t, PassStats{Fetched: 1, Created: 1}, report.StockItems)
	assert.Equal(t, PassStats{Fetched: 1, Created: 1}, report.Bills)

	sharma, err := store.Ledgers().FindByName(ctx, "Sharma")
	require.NoError(t, err)
	assert.True(t, sharma.ClosingBalance.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "27AAPFU0939F1ZV", sharma.TaxNumber)

	verma, err := store.Ledgers().FindByName(ctx, "Verma Traders")
	require.NoError(t, err)
	// Cr marker negates
	assert.True(t, verma.ClosingBalance.Equal(decimal.NewFromInt(-800)))

	voucher, err := store.Vouchers().FindByNumberAndDate(ctx, "101", time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, mirror.SyncStatusSynced, voucher.Status)
	assert.Equal(t, "9001", voucher.RemoteID)

	widget, err := store.StockItems().FindByName(ctx, "Widget")
	require.NoError(t, err)
	assert.True(t, widget.ClosingQty.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, "Nos", widget.Unit)

	bill, err := store.Bills().FindByReference(ctx, "INV-42")
	require.NoError(t, err)
	assert.True(t, bill.IsReceivable())
	assert.True(t, bill.Overdue)
}

func TestSyncNow_RepeatedPullIsIdempotent(t *testing.T) {
	connector := pullFixture()
	engine, store := setupEngineTest(t, connector)
	ctx := context.Background()

	_, err := engine.SyncNow(ctx)
	require.NoError(t, err)

	report, err := engine.SyncNow(ctx)
	require.NoError(t, err)
	// unchanged remote data updates in place, never duplicates
	assert.Equal(t, 0, report.Ledgers.Created)
	assert.Equal(t, 2, report.Ledgers.Updated)
	assert.Equal(t, 0, report.Vouchers.Created)

	ledgers, err := store.Ledgers().FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, ledgers, 2)
}

func TestSyncNow_PullNeverOverwritesPendingVoucher(t *testing.T) {
	connector := pullFixture()
	connector.createErr = remote.ErrRemoteUnavailable // drain cannot flip it first
	engine, store := setupEngineTest(t, connector)
	ctx := context.Background()

	date := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	queued := mirror.NewPendingVoucher("101", date, mirror.VoucherKindReceipt, "Sharma", decimal.NewFromInt(999), "local edit")
	require.NoError(t, store.Vouchers().Create(ctx, queued))

	report, err := engine.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Vouchers.Skipped)

	kept, err := store.Vouchers().FindByID(ctx, queued.ID)
	require.NoError(t, err)
	assert.True(t, kept.IsPending())
	assert.True(t, kept.Amount.Equal(decimal.NewFromInt(999)))
	assert.Equal(t, "local edit", kept.Narration)
}

func TestSyncNow_FetchFailureReportsError(t *testing.T) {
	connector := pullFixture()
	connector.fetchErr = remote.ErrRemoteUnavailable
	engine, _ := setupEngineTest(t, connector)

	_, err := engine.SyncNow(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrRemoteUnavailable)
}

func TestUndoVoucherSafe_ConfirmedDeleteRemovesLocalRow(t *testing.T) {
	connector := &fakeConnector{deleteResult: &remote.ImportResult{Outcome: remote.OutcomeAccepted, Deleted: 1}}
	engine, store := setupEngineTest(t, connector)
	ctx := context.Background()

	voucher := mirror.NewSyncedVoucher("9001", "101", time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		mirror.VoucherKindReceipt, "Sharma", decimal.NewFromInt(1000), "")
	require.NoError(t, store.Vouchers().Create(ctx, voucher))

	result := engine.UndoVoucherSafe(ctx, voucher.ID)
	require.True(t, result.Success)
	assert.Equal(t, 1, connector.deleteCalls)

	_, err := store.Vouchers().FindByID(ctx, voucher.ID)
	assert.Error(t, err)
}

func TestUndoVoucherSafe_RemoteFailureKeepsLocalRow(t *testing.T) {
	connector := &fakeConnector{deleteResult: &remote.ImportResult{
		Outcome:    remote.OutcomeRejected,
		LineErrors: []string{"Voucher does not exist"},
	}}
	engine, store := setupEngineTest(t, connector)
	ctx := context.Background()

	voucher := mirror.NewSyncedVoucher("9001", "101", time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		mirror.VoucherKindReceipt, "Sharma", decimal.NewFromInt(1000), "")
	require.NoError(t, store.Vouchers().Create(ctx, voucher))

	result := engine.UndoVoucherSafe(ctx, voucher.ID)
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "Voucher does not exist")

	kept, err := store.Vouchers().FindByID(ctx, voucher.ID)
	require.NoError(t, err)
	assert.Equal(t, mirror.SyncStatusSynced, kept.Status)
}

func TestUndoVoucherSafe_UnknownVoucher(t *testing.T) {
	engine, _ := setupEngineTest(t, &fakeConnector{})

	result := engine.UndoVoucherSafe(context.Background(), uuid.New())
	require.False(t, result.Success)
	assert.Contains(t, result.Message, "not found")
}

func TestAlterLedgerSafe_InvalidFieldFailsBeforeNetwork(t *testing.T) {
	connector := &fakeConnector{alterResult: acceptedResult("")}
	engine, _ := setupEngineTest(t, connector)

	result := engine.AlterLedgerSafe(context.Background(), "Sharma", remote.LedgerFieldSet{"status": "inactive"})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "status")
	assert.Contains(t, result.Error, "EMAIL")
	assert.Equal(t, 0, connector.alterCalls)
}

func TestAlterLedgerSafe_Accepted(t *testing.T) {
	connector := &fakeConnector{alterResult: acceptedResult("")}
	engine, _ := setupEngineTest(t, connector)

	result := engine.AlterLedgerSafe(context.Background(), "Sharma", remote.LedgerFieldSet{"EMAIL": "s@example.com"})
	require.True(t, result.Success)
	assert.Equal(t, 1, connector.alterCalls)
}
