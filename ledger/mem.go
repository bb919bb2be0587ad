// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"sync"

	"github.com/porta-network/porta-staking/porta"
)

type balanceKey struct {
	asset  porta.Asset
	holder porta.Address
}

// Mem an in-memory asset ledger, used by solo mode and tests.
type Mem struct {
	lock     sync.Mutex
	balances map[balanceKey]uint64
}

// NewMem creates an empty in-memory ledger.
func NewMem() *Mem {
	return &Mem{balances: make(map[balanceKey]uint64)}
}

// BalanceOf returns the balance of holder for the given asset.
func (m *Mem) BalanceOf(asset porta.Asset, holder porta.Address) uint64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.balances[balanceKey{asset, holder}]
}

// Transfer moves amount between holders, all or nothing.
func (m *Mem) Transfer(asset porta.Asset, from, to porta.Address, amount uint64) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	fromKey := balanceKey{asset, from}
	if m.balances[fromKey] < amount {
		return ErrInsufficientBalance
	}
	m.balances[fromKey] -= amount
	m.balances[balanceKey{asset, to}] += amount
	return nil
}

// Mint credits holder with amount out of thin air.
func (m *Mem) Mint(asset porta.Asset, holder porta.Address, amount uint64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.balances[balanceKey{asset, holder}] += amount
}
