package tally

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tallybridge/backend/internal/domain/mirror"
	"github.com/tallybridge/backend/internal/domain/remote"
)

// maxResponseSize is the maximum allowed response size from the remote
// accounting system (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Report and row-tag names of the remote export operations. The protocol is
// externally fixed and unversioned; these names are part of it.
const (
	reportLedgers   = "List of Accounts"
	reportVouchers  = "Day Book"
	reportStock     = "Stock Summary"
	reportBills     = "Bills Outstanding"
	rowTagLedger    = "LEDGER"
	rowTagVoucher   = "VOUCHER"
	rowTagStockItem = "STOCKITEM"
	rowTagBill      = "BILL"
)

// Client composes the protocol codec and an HTTP transport into the typed
// connector operations.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a protocol client with the given configuration.
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}, nil
}

// post sends an XML payload to the remote endpoint and returns the raw
// response body. Connection failures and timeouts surface as
// ErrRemoteUnavailable, HTTP error statuses as ErrRemoteRequestFailed; both
// belong to the retryable transport fault class.
func (c *Client) post(ctx context.Context, payload string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.EndpointURL, strings.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("tally: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", remote.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: %v", remote.ErrRemoteUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: HTTP %d", remote.ErrRemoteRequestFailed, resp.StatusCode)
	}
	return string(body), nil
}

// postImport sends a write payload and classifies the response. A transport
// fault classification is converted to an error so callers have a single
// retry path for every transport-level failure.
func (c *Client) postImport(ctx context.Context, payload string) (*remote.ImportResult, error) {
	body, err := c.post(ctx, payload)
	if err != nil {
		return nil, err
	}
	result := Classify(body)
	if result.Outcome == remote.OutcomeTransportFault {
		return nil, fmt.Errorf("%w: %s", remote.ErrInvalidResponse, result.FaultReason)
	}
	return result, nil
}

// fetch runs an export request and flattens the response rows.
func (c *Client) fetch(ctx context.Context, report, rowTag string, staticVars map[string]string) ([]remote.Row, error) {
	body, err := c.post(ctx, BuildExportEnvelope(report, c.config.Company, staticVars))
	if err != nil {
		return nil, err
	}
	rows, err := ParseRows(body, rowTag)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetched remote collection",
		zap.String("report", report),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// FetchLedgers pulls the full party ledger collection.
func (c *Client) FetchLedgers(ctx context.Context) ([]remote.Row, error) {
	return c.fetch(ctx, reportLedgers, rowTagLedger, nil)
}

// FetchVouchers pulls vouchers dated within [from, to].
func (c *Client) FetchVouchers(ctx context.Context, from, to time.Time) ([]remote.Row, error) {
	return c.fetch(ctx, reportVouchers, rowTagVoucher, map[string]string{
		"SVFROMDATE": from.Format(wireDateFormat),
		"SVTODATE":   to.Format(wireDateFormat),
	})
}

// FetchStockItems pulls the full stock item collection.
func (c *Client) FetchStockItems(ctx context.Context) ([]remote.Row, error) {
	return c.fetch(ctx, reportStock, rowTagStockItem, nil)
}

// FetchOutstandingBills pulls the open receivable and payable bills.
func (c *Client) FetchOutstandingBills(ctx context.Context) ([]remote.Row, error) {
	return c.fetch(ctx, reportBills, rowTagBill, nil)
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// CreateVoucher posts a voucher create. It ensures the party ledger exists
// remotely (auto-creating it under the voucher-kind-appropriate parent group),
// ensures the cash/bank counter-ledger exists, builds the double-entry line
// pair for the kind, and clamps the date when the remote company runs in
// restricted mode.
func (c *Client) CreateVoucher(ctx context.Context, p remote.CreateVoucherPayload) (*remote.ImportResult, error) {
	if err := c.EnsureLedger(ctx, p.PartyName, c.parentGroupFor(p.Kind)); err != nil {
		return nil, err
	}
	if err := c.EnsureLedger(ctx, c.config.CashLedger, defaultCashGroup); err != nil {
		return nil, err
	}

	date := c.clampDate(p.Date)
	w := VoucherWrite{
		Action:    "Create",
		Kind:      p.Kind.String(),
		Number:    p.VoucherNumber,
		Date:      date,
		Narration: p.Narration,
		Lines:     voucherLines(p.Kind, p.PartyName, c.config.CashLedger, p.Amount),
	}
	return c.postImport(ctx, BuildVoucherEnvelope(c.config.Company, w))
}

// AlterVoucher posts a voucher alteration keyed by kind, number and date.
func (c *Client) AlterVoucher(ctx context.Context, p remote.AlterVoucherPayload) (*remote.ImportResult, error) {
	w := VoucherWrite{
		Action:    "Alter",
		Kind:      p.Kind.String(),
		Number:    p.VoucherNumber,
		Date:      p.Date,
		Narration: p.Narration,
		Lines:     voucherLines(p.Kind, p.PartyName, c.config.CashLedger, p.Amount),
	}
	return c.postImport(ctx, BuildVoucherEnvelope(c.config.Company, w))
}

// DeleteVoucher posts a voucher deletion.
func (c *Client) DeleteVoucher(ctx context.Context, p remote.DeleteVoucherPayload) (*remote.ImportResult, error) {
	return c.postImport(ctx, BuildVoucherDeleteEnvelope(c.config.Company, p.Kind.String(), p.VoucherNumber, p.Date))
}

// UpdateLedgerFields alters a ledger's fields. The field set is validated
// against the remote allow-list before any network call; an unrecognized name
// fails fast with the offending fields and the full allowed set.
func (c *Client) UpdateLedgerFields(ctx context.Context, ledgerName string, fields remote.LedgerFieldSet) (*remote.ImportResult, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	return c.postImport(ctx, BuildLedgerAlterEnvelope(c.config.Company, ledgerName, fields.Normalized()))
}

// EnsureLedger creates the named ledger under the given parent group if no
// remote ledger resolves to the name.
func (c *Client) EnsureLedger(ctx context.Context, name, parentGroup string) error {
	_, err := c.LookupLedger(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, remote.ErrLedgerNotFound) {
		return err
	}

	c.logger.Info("creating missing remote ledger",
		zap.String("ledger", name),
		zap.String("parent_group", parentGroup),
	)
	result, err := c.postImport(ctx, BuildLedgerCreateEnvelope(c.config.Company, name, parentGroup))
	if err != nil {
		return err
	}
	if !result.Accepted() {
		return fmt.Errorf("tally: failed to create ledger %q: %s", name, strings.Join(result.LineErrors, "; "))
	}
	return nil
}

// LookupLedger resolves a ledger name over the full remote ledger list in
// tiers: exact case-insensitive match, then prefix match, then substring
// match. The first non-empty tier wins; substring matching alone produces too
// many false positives for common short names. When every tier is empty the
// lookup fails with remote.ErrLedgerNotFound.
func (c *Client) LookupLedger(ctx context.Context, name string) ([]string, error) {
	rows, err := c.FetchLedgers(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	var exact, prefix, substring []string
	for _, row := range rows {
		candidate := row.Get("NAME", "LEDGERNAME", "LEDGER_NAME")
		if candidate == "" {
			continue
		}
		lower := strings.ToLower(candidate)
		switch {
		case lower == needle:
			exact = append(exact, candidate)
		case strings.HasPrefix(lower, needle):
			prefix = append(prefix, candidate)
		case strings.Contains(lower, needle):
			substring = append(substring, candidate)
		}
	}

	switch {
	case len(exact) > 0:
		return exact, nil
	case len(prefix) > 0:
		return prefix, nil
	case len(substring) > 0:
		return substring, nil
	default:
		return nil, fmt.Errorf("%w: %q", remote.ErrLedgerNotFound, name)
	}
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// parentGroupFor maps a voucher kind to the parent group a missing party
// ledger is auto-created under.
func (c *Client) parentGroupFor(kind mirror.VoucherKind) string {
	switch kind {
	case mirror.VoucherKindSales, mirror.VoucherKindReceipt:
		return c.config.DebtorGroup
	default:
		return c.config.CreditorGroup
	}
}

// clampDate rewrites the day-of-month to the configured safe value when the
// remote company accepts only an allow-list of calendar days. Year and month
// are preserved.
func (c *Client) clampDate(date time.Time) time.Time {
	if !c.config.RestrictedMode || c.config.DayAllowed(date.Day()) {
		return date
	}
	clamped := time.Date(date.Year(), date.Month(), c.config.RestrictedDay, 0, 0, 0, 0, date.Location())
	c.logger.Info("rewrote voucher date for restricted-mode company",
		zap.Time("original", date),
		zap.Time("clamped", clamped),
	)
	return clamped
}

// voucherLines builds the double-entry pair for a voucher kind. The debit leg
// is deemed positive and carries the negated amount; the credit leg carries
// the amount. Receipt debits cash and credits the party, Payment the reverse;
// Sales debits the party, Purchase credits it.
func voucherLines(kind mirror.VoucherKind, party, cash string, amount decimal.Decimal) []LedgerLine {
	debit := func(name string) LedgerLine {
		return LedgerLine{LedgerName: name, Amount: amount.Neg(), DeemedPositive: true}
	}
	credit := func(name string) LedgerLine {
		return LedgerLine{LedgerName: name, Amount: amount, DeemedPositive: false}
	}

	switch kind {
	case mirror.VoucherKindReceipt:
		return []LedgerLine{debit(cash), credit(party)}
	case mirror.VoucherKindPayment:
		return []LedgerLine{debit(party), credit(cash)}
	case mirror.VoucherKindSales:
		return []LedgerLine{debit(party), credit(cash)}
	default: // Purchase
		return []LedgerLine{debit(cash), credit(party)}
	}
}

// Ensure Client implements the Connector interface
var _ remote.Connector = (*Client)(nil)
