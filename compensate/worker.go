// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package compensate

import (
	"context"
	"time"

	"github.com/porta-network/porta-staking/cache"
	"github.com/porta-network/porta-staking/log"
	"github.com/porta-network/porta-staking/metrics"
	"github.com/porta-network/porta-staking/multipay"
	"github.com/porta-network/porta-staking/porta"
)

var logger = log.WithContext("pkg", "compensate")

var (
	metricEventsDiscovered = metrics.Counter("reconcile_events_discovered_total")
	metricPaymentsSettled  = metrics.Counter("reconcile_payments_settled_total")
	metricPassErrors       = metrics.Counter("reconcile_pass_errors_total")
	metricRefConflicts     = metrics.Counter("reconcile_reference_conflicts_total")
	metricLastMarker       = metrics.Gauge("reconcile_last_marker")
)

// VaultLister names the vaults whose claim events are reconciled.
type VaultLister interface {
	ListVaults() []porta.Address
}

// Options reconciliation tunables, externally supplied.
type Options struct {
	Asset        porta.Asset
	BatchSize    int
	Cooldown     time.Duration // between remote fetches, respects feed rate limits
	PassInterval time.Duration // between full reconciliation passes
}

// Worker discovers under-paid claim events, computes the owed delta and
// drives the disbursement ledger in bounded batches. All progress lives in
// the durable store; the ledger's reference check makes retries harmless.
type Worker struct {
	opts   Options
	feed   EventFeed
	source RewardSource
	store  *Store
	payer  *multipay.Multipay
	vaults VaultLister
	seen   *cache.LRU
}

// NewWorker wires a reconciliation worker.
func NewWorker(opts Options, feed EventFeed, source RewardSource, store *Store, payer *multipay.Multipay, vaults VaultLister) *Worker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	seen, _ := cache.NewLRU(4096)
	return &Worker{
		opts:   opts,
		feed:   feed,
		source: source,
		store:  store,
		payer:  payer,
		vaults: vaults,
		seen:   seen,
	}
}

// Run executes reconciliation passes until the context is canceled.
// Transient failures are logged and retried on the next pass.
func (w *Worker) Run(ctx context.Context) error {
	logger.Debug("enter reconciliation loop")
	defer logger.Debug("leave reconciliation loop")

	for {
		if err := w.RunPass(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metricPassErrors.Add(1)
			logger.Warn("reconciliation pass failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.opts.PassInterval):
		}
	}
}

// RunPass performs a single discover/compute/pay cycle.
func (w *Worker) RunPass(ctx context.Context) error {
	if err := w.discover(ctx); err != nil {
		return err
	}

	open, err := w.store.Uncompensated()
	if err != nil {
		return err
	}
	open, err = w.skipAlreadyPaid(open)
	if err != nil {
		return err
	}
	if err := w.computeDeltas(open); err != nil {
		return err
	}

	// reload: computing deltas settles records that owe nothing
	open, err = w.store.Uncompensated()
	if err != nil {
		return err
	}
	return w.payDeltas(ctx, open)
}

// discover pulls new claim events from the feed and records them durably,
// advancing each vault's confirmed marker only after its page is persisted.
// Markers are per vault: vaults progress through the feed at different
// positions and one vault's advance must not hide another's older events.
func (w *Worker) discover(ctx context.Context) error {
	for _, vaultID := range w.vaults.ListVaults() {
		marker, err := w.store.LastMarker(vaultID)
		if err != nil {
			return err
		}

		events, err := w.feed.Fetch(ctx, vaultID, marker)
		if err != nil {
			// remote-fetch failures are retriable, state is untouched
			logger.Warn("event fetch failed", "vault", vaultID, "err", err)
			continue
		}

		maxMarker := marker
		for _, ev := range events {
			if ev.Marker > maxMarker {
				maxMarker = ev.Marker
			}
			if w.seen.Contains(ev.ID) {
				continue
			}
			known, err := w.store.HasCompensation(ev.ID)
			if err != nil {
				return err
			}
			if known {
				w.seen.Remember(ev.ID)
				continue
			}
			if err := w.store.InsertCompensation(&Compensation{
				EventID:   ev.ID,
				Vault:     ev.Vault,
				Recipient: ev.Recipient,
				Marker:    ev.Marker,
				Observed:  ev.Amount,
			}); err != nil {
				return err
			}
			w.seen.Remember(ev.ID)
			metricEventsDiscovered.Add(1)
			logger.Info("new claim event", "id", ev.ID, "recipient", ev.Recipient, "marker", ev.Marker)
		}

		if maxMarker > marker {
			if err := w.store.SetLastMarker(vaultID, maxMarker); err != nil {
				return err
			}
			metricLastMarker.Set(int64(maxMarker))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.opts.Cooldown):
		}
	}
	return nil
}

// skipAlreadyPaid drops records the disbursement ledger has already honored.
func (w *Worker) skipAlreadyPaid(open []*Compensation) ([]*Compensation, error) {
	remaining := open[:0]
	for _, c := range open {
		if w.payer.IsPaymentProcessed(c.Recipient, c.Marker) {
			if err := w.store.MarkCompensated(c.EventID); err != nil {
				return nil, err
			}
			logger.Debug("already paid", "recipient", c.Recipient, "marker", c.Marker)
			continue
		}
		remaining = append(remaining, c)
	}
	return remaining, nil
}

// computeDeltas fills in the reimbursement owed per open record. Records
// that owe nothing (delta <= 0) are settled immediately.
func (w *Worker) computeDeltas(open []*Compensation) error {
	for _, c := range open {
		if c.Reimbursement != nil {
			continue
		}
		expected, err := w.source.ExpectedReward(c.Vault, c.Recipient, c.Marker)
		if err != nil {
			logger.Warn("expected reward lookup failed", "event", c.EventID, "err", err)
			continue
		}
		delta := int64(expected) - int64(c.Observed)
		if err := w.store.SetReimbursement(c.EventID, delta); err != nil {
			return err
		}
		c.Reimbursement = &delta
		if delta <= 0 {
			if err := w.store.MarkCompensated(c.EventID); err != nil {
				return err
			}
			logger.Debug("nothing owed", "event", c.EventID, "delta", delta)
		}
	}
	return nil
}

// payDeltas submits owed reimbursements in bounded batches, settling each
// record only after its batch succeeded. Duplicate-reference rejections from
// stale retries count as success.
func (w *Worker) payDeltas(ctx context.Context, open []*Compensation) error {
	var payable []*Compensation
	for _, c := range open {
		if c.Reimbursement != nil && *c.Reimbursement > 0 {
			payable = append(payable, c)
		}
	}

	for len(payable) > 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n := w.opts.BatchSize
		if n > len(payable) {
			n = len(payable)
		}
		batch := payable[:n]
		payable = payable[n:]

		items := make([]multipay.Item, len(batch))
		for i, c := range batch {
			items[i] = multipay.Item{
				Recipient:    c.Recipient,
				Amount:       uint64(*c.Reimbursement),
				PayReference: c.Marker,
			}
		}

		err := w.payer.TransferManyTagged(w.opts.Asset, items, batch[0].EventID)
		switch err {
		case nil:
		case multipay.ErrDuplicateReference:
			// a stale retry: pay item by item so already-honored
			// references settle as successes
			if err := w.payItemized(batch); err != nil {
				return err
			}
			continue
		default:
			// transient disbursement failure: durable state unchanged,
			// the batch is resubmitted on the next pass
			return err
		}

		for _, c := range batch {
			if err := w.store.MarkCompensated(c.EventID); err != nil {
				return err
			}
		}
		metricPaymentsSettled.Add(int64(len(batch)))
		logger.Info("batch compensated", "items", len(batch))
	}
	return nil
}

func (w *Worker) payItemized(batch []*Compensation) error {
	for _, c := range batch {
		item := multipay.Item{
			Recipient:    c.Recipient,
			Amount:       uint64(*c.Reimbursement),
			PayReference: c.Marker,
		}
		err := w.payer.TransferManyTagged(w.opts.Asset, []multipay.Item{item}, c.EventID)
		if err == multipay.ErrDuplicateReference {
			if !w.payer.IsPaymentProcessed(c.Recipient, c.Marker) {
				// the reference was consumed by a different recipient.
				// Flag for operator review rather than settling a record
				// nothing was paid against.
				logger.Warn("payment reference consumed by another recipient",
					"event", c.EventID, "recipient", c.Recipient, "marker", c.Marker)
				metricRefConflicts.Add(1)
				if err := w.store.MarkConflicted(c.EventID); err != nil {
					return err
				}
				continue
			}
			err = nil // stale retry of this very payment
		}
		if err != nil {
			return err
		}
		if err := w.store.MarkCompensated(c.EventID); err != nil {
			return err
		}
		metricPaymentsSettled.Add(1)
	}
	return nil
}
