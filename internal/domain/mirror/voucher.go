package mirror

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SyncStatus represents the synchronization state of a locally held voucher
// relative to the remote accounting system.
type SyncStatus string

const (
	// SyncStatusSynced means the remote system has confirmed acceptance.
	SyncStatusSynced SyncStatus = "SYNCED"
	// SyncStatusPending means the voucher was durably written locally but has
	// never been confirmed by the remote system. Pending vouchers form the
	// offline queue and are retried on every drain.
	SyncStatusPending SyncStatus = "PENDING"
	// SyncStatusError marks a voucher set aside after repeated drain failures
	// for manual inspection. Requeueing moves it back to PENDING.
	SyncStatusError SyncStatus = "ERROR"
)

// IsValid checks if the status is a valid SyncStatus
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusSynced, SyncStatusPending, SyncStatusError:
		return true
	}
	return false
}

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether the transition s -> target is allowed.
// SYNCED is terminal: once the remote system has confirmed a voucher there is
// no path back.
func (s SyncStatus) CanTransitionTo(target SyncStatus) bool {
	switch s {
	case SyncStatusPending:
		return target == SyncStatusSynced || target == SyncStatusPending || target == SyncStatusError
	case SyncStatusError:
		return target == SyncStatusPending
	case SyncStatusSynced:
		return false
	}
	return false
}

// VoucherKind represents the double-entry voucher type
type VoucherKind string

const (
	VoucherKindSales    VoucherKind = "Sales"
	VoucherKindPurchase VoucherKind = "Purchase"
	VoucherKindReceipt  VoucherKind = "Receipt"
	VoucherKindPayment  VoucherKind = "Payment"
)

// IsValid checks if the kind is a valid VoucherKind
func (k VoucherKind) IsValid() bool {
	switch k {
	case VoucherKindSales, VoucherKindPurchase, VoucherKindReceipt, VoucherKindPayment:
		return true
	}
	return false
}

// String returns the string representation of VoucherKind
func (k VoucherKind) String() string {
	return string(k)
}

// ParseVoucherKind maps a remote voucher-type string to a VoucherKind.
// The remote system reports kinds with arbitrary casing.
func ParseVoucherKind(s string) (VoucherKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sales":
		return VoucherKindSales, true
	case "purchase":
		return VoucherKindPurchase, true
	case "receipt":
		return VoucherKindReceipt, true
	case "payment":
		return VoucherKindPayment, true
	}
	return "", false
}

// PendingIDPrefix prefixes locally synthesized voucher identifiers assigned
// while the remote system is unreachable. The real identifier replaces it once
// the offline queue drains successfully.
const PendingIDPrefix = "PENDING-"

// NewPendingRemoteID synthesizes a locally unique remote identifier for a
// voucher that has not yet been accepted by the remote system.
func NewPendingRemoteID(now time.Time) string {
	return fmt.Sprintf("%s%d", PendingIDPrefix, now.UnixNano())
}

// Voucher is a double-entry transaction record mirrored from (or queued for)
// the remote accounting system.
type Voucher struct {
	ID            uuid.UUID       `json:"id"`
	RemoteID      string          `json:"remote_id"` // remote identifier; PENDING-<ns> until confirmed
	VoucherNumber string          `json:"voucher_number"`
	Date          time.Time       `json:"date"`
	Kind          VoucherKind     `json:"kind"`
	PartyName     string          `json:"party_name"`
	Amount        decimal.Decimal `json:"amount"` // signed double-entry net
	Narration     string          `json:"narration"`
	Status        SyncStatus      `json:"status"`
	LastSyncedAt  *time.Time      `json:"last_synced_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewSyncedVoucher creates a voucher confirmed accepted by the remote system.
func NewSyncedVoucher(remoteID, number string, date time.Time, kind VoucherKind, party string, amount decimal.Decimal, narration string) *Voucher {
	now := time.Now()
	return &Voucher{
		ID:            uuid.New(),
		RemoteID:      remoteID,
		VoucherNumber: number,
		Date:          date,
		Kind:          kind,
		PartyName:     party,
		Amount:        amount,
		Narration:     narration,
		Status:        SyncStatusSynced,
		LastSyncedAt:  &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewPendingVoucher creates a voucher queued locally while the remote system
// is unreachable. The remote identifier is synthesized.
func NewPendingVoucher(number string, date time.Time, kind VoucherKind, party string, amount decimal.Decimal, narration string) *Voucher {
	now := time.Now()
	return &Voucher{
		ID:            uuid.New(),
		RemoteID:      NewPendingRemoteID(now),
		VoucherNumber: number,
		Date:          date,
		Kind:          kind,
		PartyName:     party,
		Amount:        amount,
		Narration:     narration,
		Status:        SyncStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsPending reports whether the voucher is awaiting remote confirmation.
func (v *Voucher) IsPending() bool {
	return v.Status == SyncStatusPending
}

// MarkSynced transitions the voucher to SYNCED after the remote system
// confirmed acceptance. The synthesized identifier is replaced only when the
// remote system assigned a real one; it is never re-synthesized.
func (v *Voucher) MarkSynced(remoteID string, at time.Time) error {
	if !v.Status.CanTransitionTo(SyncStatusSynced) {
		return fmt.Errorf("%w: cannot transition %s voucher to %s", ErrInvalidTransition, v.Status, SyncStatusSynced)
	}
	if remoteID != "" {
		v.RemoteID = remoteID
	}
	v.Status = SyncStatusSynced
	v.LastSyncedAt = &at
	v.UpdatedAt = at
	return nil
}

// Requeue moves an ERROR voucher back to the offline queue.
func (v *Voucher) Requeue(at time.Time) error {
	if !v.Status.CanTransitionTo(SyncStatusPending) {
		return fmt.Errorf("%w: cannot transition %s voucher to %s", ErrInvalidTransition, v.Status, SyncStatusPending)
	}
	v.Status = SyncStatusPending
	v.UpdatedAt = at
	return nil
}
