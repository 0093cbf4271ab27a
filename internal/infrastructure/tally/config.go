package tally

import (
	"fmt"
	"net/url"

	"github.com/tallybridge/backend/internal/domain/remote"
)

// Default ledger and group names used when the configuration leaves them
// unset. They match the remote system's stock chart of accounts.
const (
	defaultCashLedger    = "Cash"
	defaultCashGroup     = "Cash-in-Hand"
	defaultDebtorGroup   = "Sundry Debtors"
	defaultCreditorGroup = "Sundry Creditors"
	defaultTimeoutSecs   = 15
	defaultRestrictedDay = 1
)

// Config holds the connection settings for the remote accounting system.
type Config struct {
	// EndpointURL is the single XML-over-HTTP endpoint of the remote system.
	EndpointURL string
	// Company scopes every request to one remote company.
	Company string
	// TimeoutSeconds bounds every protocol call, reads and writes alike.
	TimeoutSeconds int

	// CashLedger is the cash/bank counter-ledger used for the second leg of
	// every pushed voucher.
	CashLedger string
	// DebtorGroup is the parent group for party ledgers auto-created by
	// Sales/Receipt pushes; CreditorGroup for Purchase/Payment pushes.
	DebtorGroup   string
	CreditorGroup string

	// RestrictedMode marks a remote company that accepts only the
	// AllowedDays calendar days per month; voucher dates outside the
	// allow-list are rewritten to RestrictedDay.
	RestrictedMode bool
	AllowedDays    []int
	RestrictedDay  int
}

// Validate checks required settings and fills in defaults.
func (c *Config) Validate() error {
	if c.EndpointURL == "" {
		return fmt.Errorf("%w: endpoint URL is required", remote.ErrNotConfigured)
	}
	if _, err := url.ParseRequestURI(c.EndpointURL); err != nil {
		return fmt.Errorf("%w: invalid endpoint URL %q: %v", remote.ErrNotConfigured, c.EndpointURL, err)
	}
	if c.Company == "" {
		return fmt.Errorf("%w: company name is required", remote.ErrNotConfigured)
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSecs
	}
	if c.CashLedger == "" {
		c.CashLedger = defaultCashLedger
	}
	if c.DebtorGroup == "" {
		c.DebtorGroup = defaultDebtorGroup
	}
	if c.CreditorGroup == "" {
		c.CreditorGroup = defaultCreditorGroup
	}
	if c.RestrictedDay <= 0 || c.RestrictedDay > 28 {
		c.RestrictedDay = defaultRestrictedDay
	}
	if c.RestrictedMode && len(c.AllowedDays) == 0 {
		c.AllowedDays = []int{c.RestrictedDay}
	}
	return nil
}

// DayAllowed reports whether the given day-of-month is accepted by a
// restricted-mode remote company.
func (c *Config) DayAllowed(day int) bool {
	for _, d := range c.AllowedDays {
		if d == day {
			return true
		}
	}
	return false
}
