// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accrual

import (
	"math/big"

	"github.com/porta-network/porta-staking/porta"
)

var rewardDenominator = new(big.Int).Mul(
	new(big.Int).SetUint64(porta.BasisPointsDenominator),
	new(big.Int).SetUint64(porta.SecondsPerYear),
)

// Reward computes the reward owed on amount staked for the given number of
// seconds at an annual rate expressed in basis points.
// The result is floored, so it never exceeds the exact continuous-rate value.
func Reward(amount, annualRateBps, seconds uint64) uint64 {
	x := new(big.Int).SetUint64(amount)
	x.Mul(x, new(big.Int).SetUint64(annualRateBps))
	x.Mul(x, new(big.Int).SetUint64(seconds))
	x.Div(x, rewardDenominator)
	return x.Uint64()
}

// DayIndex returns the number of daily vesting cutoffs passed at ts.
// Cutoffs fall at 18:00 UTC, anchored at porta.RewardAnchor.
func DayIndex(ts uint64) uint64 {
	if ts < porta.RewardAnchor {
		return 0
	}
	return 1 + (ts-porta.RewardAnchor)/porta.SecondsPerDay
}

// LastCutoff returns the most recent vesting cutoff at or before ts.
// The second return value is false when no cutoff has passed yet.
func LastCutoff(ts uint64) (uint64, bool) {
	day := DayIndex(ts)
	if day == 0 {
		return 0, false
	}
	return porta.RewardAnchor + (day-1)*porta.SecondsPerDay, true
}

// NextCutoff returns the first vesting cutoff strictly after ts.
func NextCutoff(ts uint64) uint64 {
	if ts < porta.RewardAnchor {
		return porta.RewardAnchor
	}
	return porta.RewardAnchor + DayIndex(ts)*porta.SecondsPerDay
}
