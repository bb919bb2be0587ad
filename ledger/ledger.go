// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"errors"

	"github.com/porta-network/porta-staking/porta"
)

// ErrInsufficientBalance is returned when a transfer exceeds the sender's balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

// AssetLedger holds fungible balances and performs atomic transfers.
// The staking core only calls it; implementations live outside the core.
type AssetLedger interface {
	// BalanceOf returns the balance of holder for the given asset.
	BalanceOf(asset porta.Asset, holder porta.Address) uint64
	// Transfer moves amount from one holder to another atomically.
	// It fails with ErrInsufficientBalance and no state change if the
	// sender's balance is too low.
	Transfer(asset porta.Asset, from, to porta.Address, amount uint64) error
}
