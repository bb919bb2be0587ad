// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/porta-network/porta-staking/accrual"
	"github.com/porta-network/porta-staking/clock"
	"github.com/porta-network/porta-staking/ledger"
	"github.com/porta-network/porta-staking/log"
	"github.com/porta-network/porta-staking/porta"
)

var logger = log.WithContext("pkg", "vault")

// Rejections of requested operations. Each aborts the whole operation with
// no partial state change.
var (
	ErrCampaignInactive  = errors.New("cannot deposit in deactivated campaign")
	ErrCapacityExceeded  = errors.New("campaign max tokens reached")
	ErrBelowMinimum      = errors.New("stake below wallet minimum")
	ErrAboveMaximum      = errors.New("stake above wallet maximum")
	ErrLockActive        = errors.New("minimum stake duration not satisfied")
	ErrInsufficientStake = errors.New("withdraw exceeds staked amount")
	ErrCampaignRunning   = errors.New("campaign is running or scheduled")
	ErrUnauthorized      = errors.New("caller is not the admin")
)

// Authority resolves the current administrative authority.
// Vaults delegate instead of storing their own copy, so an authority
// transfer is a single write visible to every vault at once.
type Authority interface {
	Holder() porta.Address
}

// position per-owner stake bookkeeping.
type position struct {
	Amount         uint64
	DepositedAt    uint64 // last deposit that reset the lock
	LockedUntil    uint64
	AccruedFrom    uint64 // reward accrual origin
	PaidReward     uint64 // reward paid out since AccruedFrom
	ClaimedThruDay uint64 // vesting day index already settled
}

// AccountInfo read-only snapshot of an owner's stake.
type AccountInfo struct {
	StakeAmount           uint64 `json:"stakeAmount"`
	ClaimableRewardAmount uint64 `json:"claimableRewardAmount"`
	LiveRewardAmount      uint64 `json:"liveRewardAmount"`
	UnlocksAt             uint64 `json:"unlocksAt"`
}

// Vault owns one campaign's deposits and enforces its lock and reward rules.
// Every mutating operation is atomic with respect to all others on the vault.
type Vault struct {
	id    porta.Address
	asset porta.Asset
	cfg   Config
	auth  Authority
	clock clock.Clock
	funds ledger.AssetLedger

	lock        sync.Mutex
	positions   map[porta.Address]*position
	totalStaked uint64
	finalized   bool
}

// New creates a vault bound to its ledger account, asset and authority.
// The config must have been validated by the caller.
func New(id porta.Address, asset porta.Asset, cfg Config, auth Authority, clk clock.Clock, funds ledger.AssetLedger) *Vault {
	return &Vault{
		id:        id,
		asset:     asset,
		cfg:       cfg,
		auth:      auth,
		clock:     clk,
		funds:     funds,
		positions: make(map[porta.Address]*position),
	}
}

// ID returns the vault's ledger account address.
func (v *Vault) ID() porta.Address { return v.id }

// Asset returns the staked asset.
func (v *Vault) Asset() porta.Asset { return v.asset }

// CampaignConfig returns the campaign parameters.
func (v *Vault) CampaignConfig() Config { return v.cfg }

// Status returns the campaign phase at the current time.
func (v *Vault) Status() Status {
	return v.statusAt(v.clock.Now())
}

func (v *Vault) statusAt(now uint64) Status {
	switch {
	case now < v.cfg.StartTime:
		return Scheduled
	case now < v.cfg.EndTime:
		return Active
	default:
		return Ended
	}
}

// Finalized reports whether the operator has closed the vault.
func (v *Vault) Finalized() bool {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.finalized
}

// TotalStaked returns the principal currently held across all positions.
func (v *Vault) TotalStaked() uint64 {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.totalStaked
}

// DepositStake stakes amount for owner. The owner's pending claim is settled
// first, then the lock clock restarts from now.
func (v *Vault) DepositStake(owner porta.Address, amount uint64) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	now := v.clock.Now()
	if v.statusAt(now) != Active || v.finalized {
		return ErrCampaignInactive
	}
	// totalStaked never exceeds MaxTotalStake, so the subtraction is safe
	// and the comparison cannot wrap for any amount
	if amount > v.cfg.MaxTotalStake-v.totalStaked {
		return ErrCapacityExceeded
	}

	pos := v.positions[owner]
	newAmount := amount
	if pos != nil {
		newAmount += pos.Amount
	}
	if newAmount < v.cfg.MinStakeAmount {
		return ErrBelowMinimum
	}
	if v.cfg.MaxStakeAmount > 0 && newAmount > v.cfg.MaxStakeAmount {
		return ErrAboveMaximum
	}

	// the principal moves first: a failed deposit must leave the pending
	// claim untouched, with no partial effect
	if err := v.funds.Transfer(v.asset, owner, v.id, amount); err != nil {
		return errors.WithMessage(err, "deposit principal")
	}

	// settle pending reward before the lock clock resets, so accrual is
	// always computed against a single origin
	if pos != nil {
		if _, err := v.settleClaim(owner, pos, now); err != nil {
			// hand the principal back; the vault just received it, so the
			// refund cannot fail
			if rerr := v.funds.Transfer(v.asset, v.id, owner, amount); rerr != nil {
				logger.Error("principal refund failed", "owner", owner, "err", rerr)
			}
			return err
		}
	}

	if pos == nil {
		pos = &position{}
		v.positions[owner] = pos
	}
	pos.Amount = newAmount
	pos.DepositedAt = now
	pos.AccruedFrom = now
	pos.PaidReward = 0
	pos.LockedUntil = now + v.cfg.MinStakeDuration
	v.totalStaked += amount

	logger.Debug("stake deposited", "owner", owner, "amount", amount, "total", v.totalStaked)
	return nil
}

// WithdrawStake withdraws amount of principal plus the full claimable reward
// owed at now. The minimum stake duration must have elapsed.
func (v *Vault) WithdrawStake(owner porta.Address, amount uint64) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	now := v.clock.Now()
	pos := v.positions[owner]
	if pos == nil || amount > pos.Amount {
		return ErrInsufficientStake
	}
	if now < pos.LockedUntil {
		return ErrLockActive
	}

	reward := v.claimable(pos, now)
	if err := v.funds.Transfer(v.asset, v.id, owner, amount+reward); err != nil {
		return errors.WithMessage(err, "withdraw payout")
	}

	pos.Amount -= amount
	v.totalStaked -= amount
	if pos.Amount == 0 {
		delete(v.positions, owner)
	} else {
		pos.PaidReward += reward
		if cut, ok := accrual.LastCutoff(now); ok {
			day := accrual.DayIndex(cut)
			if day > pos.ClaimedThruDay {
				pos.ClaimedThruDay = day
			}
		}
		v.rebase(pos, now)
	}

	logger.Debug("stake withdrawn", "owner", owner, "amount", amount, "reward", reward)
	return nil
}

// ClaimReward pays out any newly vested reward. Claiming carries no lock
// requirement and is a no-op when nothing has vested since the last claim.
func (v *Vault) ClaimReward(owner porta.Address) (uint64, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	pos := v.positions[owner]
	if pos == nil {
		return 0, nil
	}
	return v.settleClaim(owner, pos, v.clock.Now())
}

// AccountInfo returns a read-only snapshot of owner's stake at the current time.
func (v *Vault) AccountInfo(owner porta.Address) AccountInfo {
	v.lock.Lock()
	defer v.lock.Unlock()

	pos := v.positions[owner]
	if pos == nil {
		return AccountInfo{}
	}
	now := v.clock.Now()
	return AccountInfo{
		StakeAmount:           pos.Amount,
		ClaimableRewardAmount: v.claimable(pos, now),
		LiveRewardAmount:      v.live(pos, now),
		UnlocksAt:             pos.LockedUntil,
	}
}

// LiveReward returns reward accrued up to now, including the unvested
// partial day. Informational only, not withdrawable.
func (v *Vault) LiveReward(owner porta.Address) uint64 {
	return v.LiveRewardAt(owner, v.clock.Now())
}

// LiveRewardAt returns the live reward the current position would have
// accrued at ts. Used by reconciliation to recompute expected payouts.
func (v *Vault) LiveRewardAt(owner porta.Address, ts uint64) uint64 {
	v.lock.Lock()
	defer v.lock.Unlock()

	pos := v.positions[owner]
	if pos == nil {
		return 0
	}
	return v.live(pos, ts)
}

// ClaimableReward returns the vested, withdrawable subset of the live reward.
func (v *Vault) ClaimableReward(owner porta.Address) uint64 {
	v.lock.Lock()
	defer v.lock.Unlock()

	pos := v.positions[owner]
	if pos == nil {
		return 0
	}
	return v.claimable(pos, v.clock.Now())
}

// LockedUntil returns the time owner's principal unlocks, 0 for no position.
func (v *Vault) LockedUntil(owner porta.Address) uint64 {
	v.lock.Lock()
	defer v.lock.Unlock()

	if pos := v.positions[owner]; pos != nil {
		return pos.LockedUntil
	}
	return 0
}

// FinalWithdraw sweeps the vault's residual balance to the caller after the
// campaign has ended. Principal and live reward still owed to open positions
// stay reserved in the vault.
func (v *Vault) FinalWithdraw(caller porta.Address) (uint64, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	if caller != v.auth.Holder() {
		return 0, ErrUnauthorized
	}
	now := v.clock.Now()
	if v.statusAt(now) != Ended {
		return 0, ErrCampaignRunning
	}

	var reserved uint64
	for _, pos := range v.positions {
		reserved += pos.Amount + v.live(pos, now)
	}

	balance := v.funds.BalanceOf(v.asset, v.id)
	if balance <= reserved {
		v.finalized = true
		return 0, nil
	}
	excess := balance - reserved
	if err := v.funds.Transfer(v.asset, v.id, caller, excess); err != nil {
		return 0, errors.WithMessage(err, "final withdraw")
	}
	v.finalized = true

	logger.Info("vault finalized", "vault", v.id, "swept", excess, "reserved", reserved)
	return excess, nil
}

// live computes reward accrued from the accrual origin to ts, clamped at the
// campaign end, net of what was already paid.
func (v *Vault) live(pos *position, ts uint64) uint64 {
	return v.accrued(pos, ts)
}

// claimable computes reward accrued only through the last vesting cutoff.
func (v *Vault) claimable(pos *position, ts uint64) uint64 {
	cut, ok := accrual.LastCutoff(ts)
	if !ok {
		return 0
	}
	return v.accrued(pos, cut)
}

func (v *Vault) accrued(pos *position, ts uint64) uint64 {
	if ts > v.cfg.EndTime {
		ts = v.cfg.EndTime
	}
	if ts <= pos.AccruedFrom {
		return 0
	}
	gross := accrual.Reward(pos.Amount, v.cfg.AnnualRateBps, ts-pos.AccruedFrom)
	if gross <= pos.PaidReward {
		return 0
	}
	return gross - pos.PaidReward
}

// settleClaim pays the newly vested reward and records it against the
// position. Caller must hold the vault lock.
func (v *Vault) settleClaim(owner porta.Address, pos *position, now uint64) (uint64, error) {
	reward := v.claimable(pos, now)
	if reward == 0 {
		return 0, nil
	}
	if err := v.funds.Transfer(v.asset, v.id, owner, reward); err != nil {
		return 0, errors.WithMessage(err, "claim payout")
	}
	pos.PaidReward += reward
	if cut, ok := accrual.LastCutoff(now); ok {
		day := accrual.DayIndex(cut)
		if day > pos.ClaimedThruDay {
			pos.ClaimedThruDay = day
		}
	}
	logger.Debug("reward claimed", "owner", owner, "reward", reward)
	return reward, nil
}

// rebase moves the accrual origin forward to the last settled cutoff after a
// partial withdrawal, so future accrual is computed on the reduced amount.
func (v *Vault) rebase(pos *position, now uint64) {
	cut, ok := accrual.LastCutoff(now)
	if !ok {
		return
	}
	if cut > v.cfg.EndTime {
		cut = v.cfg.EndTime
	}
	if cut > pos.AccruedFrom {
		pos.AccruedFrom = cut
		pos.PaidReward = 0
	}
}
