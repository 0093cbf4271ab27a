package remote

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallybridge/backend/internal/domain/mirror"
)

// CreateVoucherPayload carries the fields of a voucher create. Construct it
// with NewCreateVoucherPayload so an invalid payload never reaches the wire.
type CreateVoucherPayload struct {
	Kind          mirror.VoucherKind
	PartyName     string
	Amount        decimal.Decimal
	Date          time.Time
	Narration     string
	VoucherNumber string
}

// NewCreateVoucherPayload validates and builds a voucher create payload.
func NewCreateVoucherPayload(kind mirror.VoucherKind, party string, amount decimal.Decimal, date time.Time, narration string) (CreateVoucherPayload, error) {
	if !kind.IsValid() {
		return CreateVoucherPayload{}, fmt.Errorf("%w: voucher kind %q", ErrInvalidPayload, kind)
	}
	if strings.TrimSpace(party) == "" {
		return CreateVoucherPayload{}, fmt.Errorf("%w: party name is required", ErrInvalidPayload)
	}
	if !amount.IsPositive() {
		return CreateVoucherPayload{}, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidPayload, amount)
	}
	if date.IsZero() {
		return CreateVoucherPayload{}, fmt.Errorf("%w: date is required", ErrInvalidPayload)
	}
	return CreateVoucherPayload{
		Kind:      kind,
		PartyName: strings.TrimSpace(party),
		Amount:    amount,
		Date:      date,
		Narration: narration,
	}, nil
}

// AlterVoucherPayload identifies an existing remote voucher by
// (kind, number, date) and carries the replacement fields.
type AlterVoucherPayload struct {
	Kind          mirror.VoucherKind
	VoucherNumber string
	Date          time.Time
	PartyName     string
	Amount        decimal.Decimal
	Narration     string
}

// NewAlterVoucherPayload validates and builds a voucher alter payload.
func NewAlterVoucherPayload(kind mirror.VoucherKind, number string, date time.Time, party string, amount decimal.Decimal, narration string) (AlterVoucherPayload, error) {
	if !kind.IsValid() {
		return AlterVoucherPayload{}, fmt.Errorf("%w: voucher kind %q", ErrInvalidPayload, kind)
	}
	if strings.TrimSpace(number) == "" {
		return AlterVoucherPayload{}, fmt.Errorf("%w: voucher number is required", ErrInvalidPayload)
	}
	if date.IsZero() {
		return AlterVoucherPayload{}, fmt.Errorf("%w: date is required", ErrInvalidPayload)
	}
	if !amount.IsPositive() {
		return AlterVoucherPayload{}, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidPayload, amount)
	}
	return AlterVoucherPayload{
		Kind:          kind,
		VoucherNumber: strings.TrimSpace(number),
		Date:          date,
		PartyName:     strings.TrimSpace(party),
		Amount:        amount,
		Narration:     narration,
	}, nil
}

// DeleteVoucherPayload carries the minimal identifying fields of a remote
// voucher delete.
type DeleteVoucherPayload struct {
	Kind          mirror.VoucherKind
	VoucherNumber string
	Date          time.Time
}

// NewDeleteVoucherPayload validates and builds a voucher delete payload.
func NewDeleteVoucherPayload(kind mirror.VoucherKind, number string, date time.Time) (DeleteVoucherPayload, error) {
	if !kind.IsValid() {
		return DeleteVoucherPayload{}, fmt.Errorf("%w: voucher kind %q", ErrInvalidPayload, kind)
	}
	if strings.TrimSpace(number) == "" {
		return DeleteVoucherPayload{}, fmt.Errorf("%w: voucher number is required", ErrInvalidPayload)
	}
	if date.IsZero() {
		return DeleteVoucherPayload{}, fmt.Errorf("%w: date is required", ErrInvalidPayload)
	}
	return DeleteVoucherPayload{
		Kind:          kind,
		VoucherNumber: strings.TrimSpace(number),
		Date:          date,
	}, nil
}

// LedgerFieldSet maps remote ledger field names to replacement values for a
// ledger alter operation.
type LedgerFieldSet map[string]string

// allowedLedgerFields is the fixed set of field names the remote system
// recognizes on a ledger alter. Anything else must fail before the network
// call: the remote system silently drops unknown elements, which has caused
// data loss in this domain before.
var allowedLedgerFields = map[string]struct{}{
	"NAME":            {},
	"PARENT":          {},
	"ADDRESS":         {},
	"LEDGERPHONE":     {},
	"EMAIL":           {},
	"INCOMETAXNUMBER": {},
	"PARTYGSTIN":      {},
	"OPENINGBALANCE":  {},
	"NARRATION":       {},
}

// AllowedLedgerFields returns the sorted allow-list of remote-recognized
// ledger field names.
func AllowedLedgerFields() []string {
	fields := make([]string, 0, len(allowedLedgerFields))
	for f := range allowedLedgerFields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// FieldValidationError reports the field names a ledger alter payload carried
// that the remote system does not recognize, together with the full allowed
// set so the caller can self-correct.
type FieldValidationError struct {
	Invalid []string
	Allowed []string
}

// Error implements the error interface
func (e *FieldValidationError) Error() string {
	return fmt.Sprintf("unrecognized ledger fields [%s]; allowed fields are [%s]",
		strings.Join(e.Invalid, ", "), strings.Join(e.Allowed, ", "))
}

// Unwrap allows errors.Is matching against ErrInvalidPayload.
func (e *FieldValidationError) Unwrap() error {
	return ErrInvalidPayload
}

// Validate checks the field set against the remote allow-list. Field names are
// matched case-insensitively; an empty set is invalid.
func (f LedgerFieldSet) Validate() error {
	if len(f) == 0 {
		return fmt.Errorf("%w: ledger field set is empty", ErrInvalidPayload)
	}
	var invalid []string
	for name := range f {
		if _, ok := allowedLedgerFields[strings.ToUpper(name)]; !ok {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return &FieldValidationError{Invalid: invalid, Allowed: AllowedLedgerFields()}
	}
	return nil
}

// Normalized returns a copy of the field set with upper-cased field names, the
// form the wire protocol expects.
func (f LedgerFieldSet) Normalized() LedgerFieldSet {
	out := make(LedgerFieldSet, len(f))
	for name, value := range f {
		out[strings.ToUpper(name)] = value
	}
	return out
}
