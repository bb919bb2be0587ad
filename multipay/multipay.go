// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package multipay

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/porta-network/porta-staking/ledger"
	"github.com/porta-network/porta-staking/log"
	"github.com/porta-network/porta-staking/porta"
)

var logger = log.WithContext("pkg", "multipay")

var (
	ErrDuplicateReference  = errors.New("payment reference is not unique")
	ErrInsufficientBalance = errors.New("batch exceeds available balance")
)

// Item a single payment of a batch.
type Item struct {
	Recipient    porta.Address `json:"recipient"`
	Amount       uint64        `json:"amount"`
	PayReference uint64        `json:"payReference"`
}

// record a finalized payment, keyed by its reference.
type record struct {
	Recipient   porta.Address
	Amount      uint64
	Processed   bool
	SourceEvent string
}

// Multipay executes batched payments against the asset ledger, honoring each
// payment reference at most once over the ledger's lifetime. Batches apply
// all-or-nothing, which makes a failed batch safely retriable unchanged.
type Multipay struct {
	id    porta.Address
	funds ledger.AssetLedger

	lock    sync.Mutex
	records map[uint64]*record
}

// New creates a disbursement ledger paying out of the given account.
func New(id porta.Address, funds ledger.AssetLedger) *Multipay {
	return &Multipay{
		id:      id,
		funds:   funds,
		records: make(map[uint64]*record),
	}
}

// ID returns the ledger account payments are drawn from.
func (m *Multipay) ID() porta.Address { return m.id }

// TransferMany pays every item of the batch, or none of them.
// A reference seen before, in this batch or any earlier one, rejects the
// whole batch with ErrDuplicateReference. A cumulative amount exceeding the
// available balance rejects it with ErrInsufficientBalance.
func (m *Multipay) TransferMany(asset porta.Asset, items []Item) error {
	return m.TransferManyTagged(asset, items, "")
}

// TransferManyTagged is TransferMany with an opaque correlation id recorded
// on every payment, used by reconciliation to tie payments to source events.
func (m *Multipay) TransferManyTagged(asset porta.Asset, items []Item, sourceEvent string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	var total uint64
	seen := make(map[uint64]bool, len(items))
	for _, item := range items {
		if seen[item.PayReference] {
			return ErrDuplicateReference
		}
		if rec, ok := m.records[item.PayReference]; ok && rec.Processed {
			return ErrDuplicateReference
		}
		seen[item.PayReference] = true
		total += item.Amount
	}
	if m.funds.BalanceOf(asset, m.id) < total {
		return ErrInsufficientBalance
	}

	// balance was checked up front, so no transfer below can fail and the
	// batch applies atomically under the ledger lock
	for _, item := range items {
		if err := m.funds.Transfer(asset, m.id, item.Recipient, item.Amount); err != nil {
			return errors.WithMessage(err, "batch transfer")
		}
		m.records[item.PayReference] = &record{
			Recipient:   item.Recipient,
			Amount:      item.Amount,
			Processed:   true,
			SourceEvent: sourceEvent,
		}
	}

	logger.Debug("batch paid", "items", len(items), "total", total)
	return nil
}

// IsPaymentProcessed reports whether a payment to recipient under the given
// reference has been finalized.
func (m *Multipay) IsPaymentProcessed(recipient porta.Address, payReference uint64) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	rec, ok := m.records[payReference]
	return ok && rec.Processed && rec.Recipient == recipient
}
