// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porta-network/porta-staking/clock"
	"github.com/porta-network/porta-staking/ledger"
	"github.com/porta-network/porta-staking/porta"
)

const testAsset = porta.Asset("PORTA")

type fixedAuthority struct {
	holder porta.Address
}

func (a *fixedAuthority) Holder() porta.Address { return a.holder }

func days(n uint64) uint64  { return n * 86400 }
func hours(n uint64) uint64 { return n * 3600 }

// newTestVault sets up a funded vault the way the hub would: the clock starts
// six hours before a vesting cutoff and the campaign opens at the following
// cutoff plus 18 hours (i.e. "tomorrow" from setup).
func newTestVault(t *testing.T, cfg Config) (*Vault, *clock.Manual, *ledger.Mem, porta.Address, porta.Address) {
	t.Helper()

	admin := porta.BytesToAddress([]byte("admin"))
	owner := porta.BytesToAddress([]byte("owner"))
	id := porta.BytesToAddress([]byte("vault1"))

	clk := clock.NewManual(porta.RewardAnchor - hours(6))
	funds := ledger.NewMem()
	funds.Mint(testAsset, id, 10000)     // reward buffer
	funds.Mint(testAsset, owner, 1e6)    // participant wallet
	v := New(id, testAsset, cfg, &fixedAuthority{admin}, clk, funds)
	return v, clk, funds, owner, admin
}

func defaultConfig(start uint64) Config {
	return Config{
		Title:            "The title",
		AnnualRateBps:    5000,
		MaxTotalStake:    10000,
		StartTime:        start,
		EndTime:          start + days(20),
		MinStakeDuration: days(1),
		MinStakeAmount:   100,
		MaxStakeAmount:   500000,
	}
}

func TestDepositOutsideWindow(t *testing.T) {
	start := porta.RewardAnchor + hours(18)
	v, clk, _, owner, _ := newTestVault(t, defaultConfig(start))

	assert.Equal(t, Scheduled, v.Status())
	assert.Equal(t, ErrCampaignInactive, v.DepositStake(owner, 1000))

	clk.Set(start + days(30))
	assert.Equal(t, Ended, v.Status())
	assert.Equal(t, ErrCampaignInactive, v.DepositStake(owner, 1000))
}

func TestLiveRewardAccrual(t *testing.T) {
	start := porta.RewardAnchor + hours(18)
	v, clk, _, owner, _ := newTestVault(t, defaultConfig(start))

	clk.Set(start)
	require.NoError(t, v.DepositStake(owner, 10000))

	clk.Advance(days(10))
	assert.Equal(t, uint64(136), v.LiveReward(owner))

	clk.Advance(hours(4))
	assert.Equal(t, uint64(139), v.LiveReward(owner))
}

func TestClaimAfterCutoff(t *testing.T) {
	start := porta.RewardAnchor + hours(18)
	v, clk, funds, owner, _ := newTestVault(t, defaultConfig(start))

	clk.Set(start)
	require.NoError(t, v.DepositStake(owner, 10000))

	clk.Advance(days(10))

	live := v.LiveReward(owner)
	claimable := v.ClaimableReward(owner)
	assert.Equal(t, uint64(136), live)
	assert.LessOrEqual(t, claimable, live)

	lockedBefore := v.LockedUntil(owner)
	balanceBefore := funds.BalanceOf(testAsset, owner)

	paid, err := v.ClaimReward(owner)
	require.NoError(t, err)
	assert.Equal(t, claimable, paid)
	assert.Equal(t, balanceBefore+claimable, funds.BalanceOf(testAsset, owner))

	// live drops by exactly the amount paid, the lock does not move
	assert.Equal(t, live-paid, v.LiveReward(owner))
	assert.Equal(t, lockedBefore, v.LockedUntil(owner))

	// a second claim before the next cutoff is a no-op, not an error
	paid, err = v.ClaimReward(owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), paid)
}

func TestWithdrawLock(t *testing.T) {
	start := porta.RewardAnchor + hours(18)
	v, clk, funds, owner, _ := newTestVault(t, defaultConfig(start))

	clk.Set(start)
	require.NoError(t, v.DepositStake(owner, 10000))

	clk.Advance(hours(23))
	assert.Equal(t, ErrLockActive, v.WithdrawStake(owner, 10000))
	assert.Equal(t, uint64(10000), v.TotalStaked())

	clk.Advance(hours(1)) // exactly at lockedUntil
	claimable := v.ClaimableReward(owner)
	assert.Greater(t, claimable, uint64(0))

	balanceBefore := funds.BalanceOf(testAsset, owner)
	require.NoError(t, v.WithdrawStake(owner, 10000))
	assert.Equal(t, balanceBefore+10000+claimable, funds.BalanceOf(testAsset, owner))
	assert.Equal(t, uint64(0), v.TotalStaked())
	assert.Equal(t, ErrInsufficientStake, v.WithdrawStake(owner, 1))
}

func TestWithdrawAfterCampaignEnd(t *testing.T) {
	start := porta.RewardAnchor + hours(18)
	cfg := defaultConfig(start)
	cfg.EndTime = start + days(4)
	cfg.MinStakeDuration = days(3)
	v, clk, _, owner, _ := newTestVault(t, cfg)

	clk.Set(start + days(2))
	require.NoError(t, v.DepositStake(owner, 10000))

	clk.Advance(days(3))
	assert.Equal(t, Ended, v.Status())
	require.NoError(t, v.WithdrawStake(owner, 10000))
}

func TestCapacity(t *testing.T) {
	start := porta.RewardAnchor + hours(18)
	v, clk, _, owner, _ := newTestVault(t, defaultConfig(start))

	clk.Set(start)
	assert.Equal(t, ErrCapacityExceeded, v.DepositStake(owner, 10001))
	require.NoError(t, v.DepositStake(owner, 10000))
	assert.Equal(t, ErrCapacityExceeded, v.DepositStake(owner, 1))
	assert.Equal(t, uint64(10000), v.TotalStaked())
}

func TestCapacityHugeAmount(t *testing.T) {
	start := porta.RewardAnchor + hours(18)
	v, clk, _, owner, _ := newTestVault(t, defaultConfig(start))

	clk.Set(start)
	require.NoError(t, v.DepositStake(owner, 5000))

	// an amount near the uint64 ceiling must not slip past the capacity
	// gate through wraparound
	assert.Equal(t, ErrCapacityExceeded, v.DepositStake(owner, math.MaxUint64))
	assert.Equal(t, uint64(5000), v.TotalStaked())
}

func TestFailedDepositLeavesClaimIntact(t *testing.T) {
	start := porta.RewardAnchor + hours(18)
	cfg := defaultConfig(start)
	cfg.MaxTotalStake = 1000000
	cfg.MaxStakeAmount = 0
	v, clk, funds, _, _ := newTestVault(t, cfg)

	bob := porta.BytesToAddress([]byte("bob"))
	funds.Mint(testAsset, bob, 10000)

	clk.Set(start)
	require.NoError(t, v.DepositStake(bob, 6000))

	clk.Advance(days(3))
	claimable := v.ClaimableReward(bob)
	require.Greater(t, claimable, uint64(0))
	infoBefore := v.AccountInfo(bob)

	// bob only has 4000 left, so the principal transfer fails and the
	// deposit must leave the pending claim unpaid and the lock untouched
	err := v.DepositStake(bob, 4500)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	assert.Equal(t, uint64(4000), funds.BalanceOf(testAsset, bob))
	assert.Equal(t, infoBefore, v.AccountInfo(bob))
	assert.Equal(t, uint64(6000), v.TotalStaked())
}

func TestWalletBounds(t *testing.T) {
	start := porta.RewardAnchor + hours(18)
	cfg := defaultConfig(start)
	cfg.MaxStakeAmount = 5000
	v, clk, _, owner, _ := newTestVault(t, cfg)

	clk.Set(start)
	assert.Equal(t, ErrBelowMinimum, v.DepositStake(owner, 50))
	assert.Equal(t, ErrAboveMaximum, v.DepositStake(owner, 5001))

	require.NoError(t, v.DepositStake(owner, 4000))
	// resulting position would exceed the per-wallet maximum
	assert.Equal(t, ErrAboveMaximum, v.DepositStake(owner, 1500))
}

func TestAccountInfo(t *testing.T) {
	start := porta.RewardAnchor + hours(18)
	v, clk, _, owner, _ := newTestVault(t, defaultConfig(start))

	clk.Set(start)
	require.NoError(t, v.DepositStake(owner, 10000))

	info := v.AccountInfo(owner)
	assert.Equal(t, uint64(10000), info.StakeAmount)
	assert.Equal(t, uint64(0), info.ClaimableRewardAmount)
	assert.Equal(t, uint64(0), info.LiveRewardAmount)
	assert.Equal(t, start+days(1), info.UnlocksAt)

	clk.Advance(days(3))
	info = v.AccountInfo(owner)
	assert.Equal(t, uint64(30), info.ClaimableRewardAmount)
	assert.Equal(t, uint64(41), info.LiveRewardAmount)

	// accrual stops at campaign end, claimable catches up with live
	clk.Advance(days(25))
	info = v.AccountInfo(owner)
	assert.Equal(t, uint64(273), info.ClaimableRewardAmount)
	assert.Equal(t, uint64(273), info.LiveRewardAmount)

	// unknown owners read as zero
	assert.Equal(t, AccountInfo{}, v.AccountInfo(porta.BytesToAddress([]byte("nobody"))))
}

func TestClaimableNeverExceedsLive(t *testing.T) {
	start := porta.RewardAnchor + hours(18)
	v, clk, _, owner, _ := newTestVault(t, defaultConfig(start))

	clk.Set(start)
	require.NoError(t, v.DepositStake(owner, 10000))

	prevLive := uint64(0)
	for i := 0; i < 200; i++ {
		clk.Advance(hours(5))
		info := v.AccountInfo(owner)
		assert.LessOrEqual(t, info.ClaimableRewardAmount, info.LiveRewardAmount)
		assert.GreaterOrEqual(t, info.LiveRewardAmount, prevLive)
		prevLive = info.LiveRewardAmount
	}
}

func TestFinalWithdraw(t *testing.T) {
	start := porta.RewardAnchor + hours(18)
	v, clk, funds, owner, admin := newTestVault(t, defaultConfig(start))

	clk.Set(start)
	require.NoError(t, v.DepositStake(owner, 100))

	_, err := v.FinalWithdraw(owner)
	assert.Equal(t, ErrUnauthorized, err)

	_, err = v.FinalWithdraw(admin)
	assert.Equal(t, ErrCampaignRunning, err)

	clk.Advance(days(30))

	live := v.LiveReward(owner)
	vaultBalance := funds.BalanceOf(testAsset, v.ID())

	swept, err := v.FinalWithdraw(admin)
	require.NoError(t, err)
	assert.Equal(t, vaultBalance-100-live, swept)
	assert.Equal(t, swept, funds.BalanceOf(testAsset, admin))
	assert.Equal(t, 100+live, funds.BalanceOf(testAsset, v.ID()))
	assert.True(t, v.Finalized())

	// owed funds stayed reserved and the position can still exit
	require.NoError(t, v.WithdrawStake(owner, 100))
	assert.Equal(t, uint64(0), funds.BalanceOf(testAsset, v.ID()))
}

func TestPartialWithdraw(t *testing.T) {
	start := porta.RewardAnchor + hours(18)
	v, clk, funds, owner, _ := newTestVault(t, defaultConfig(start))

	clk.Set(start)
	require.NoError(t, v.DepositStake(owner, 10000))

	clk.Advance(days(10))
	claimable := v.ClaimableReward(owner)

	balanceBefore := funds.BalanceOf(testAsset, owner)
	require.NoError(t, v.WithdrawStake(owner, 4000))
	assert.Equal(t, balanceBefore+4000+claimable, funds.BalanceOf(testAsset, owner))
	assert.Equal(t, uint64(6000), v.TotalStaked())

	// nothing claimable right after the auto-claim settled everything vested
	assert.Equal(t, uint64(0), v.ClaimableReward(owner))

	// accrual continues on the reduced amount
	clk.Advance(days(2))
	assert.Greater(t, v.LiveReward(owner), uint64(0))
}

func TestDepositSettlesAndResetsLock(t *testing.T) {
	start := porta.RewardAnchor + hours(18)
	v, clk, funds, owner, _ := newTestVault(t, defaultConfig(start))

	clk.Set(start)
	require.NoError(t, v.DepositStake(owner, 5000))

	clk.Advance(days(5))
	claimable := v.ClaimableReward(owner)
	assert.Greater(t, claimable, uint64(0))

	balanceBefore := funds.BalanceOf(testAsset, owner)
	require.NoError(t, v.DepositStake(owner, 1000))

	// pending claim was settled, net of the new principal leaving the wallet
	assert.Equal(t, balanceBefore+claimable-1000, funds.BalanceOf(testAsset, owner))

	info := v.AccountInfo(owner)
	assert.Equal(t, uint64(6000), info.StakeAmount)
	assert.Equal(t, uint64(0), info.LiveRewardAmount)
	assert.Equal(t, start+days(5)+days(1), info.UnlocksAt)
}
