// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/porta-network/porta-staking/accrual"
	"github.com/porta-network/porta-staking/clock"
	"github.com/porta-network/porta-staking/ledger"
	"github.com/porta-network/porta-staking/log"
	"github.com/porta-network/porta-staking/porta"
	"github.com/porta-network/porta-staking/vault"
)

var logger = log.WithContext("pkg", "registry")

var (
	ErrInsufficientFunding = errors.New("insufficient tokens for campaign")
	ErrCampaignRunning     = errors.New("campaign is running or scheduled")
	ErrUnauthorized        = errors.New("caller is not the admin")
	ErrUnknownVault        = errors.New("unknown vault")
)

// Authority the single administrative authority record shared by the
// registry and every vault it creates. Vaults resolve the admin through it
// instead of keeping a copy, so a transfer is one write visible everywhere.
type Authority struct {
	lock   sync.Mutex
	holder porta.Address
}

// Holder returns the current authority holder.
func (a *Authority) Holder() porta.Address {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.holder
}

func (a *Authority) transfer(newHolder porta.Address) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.holder = newHolder
}

// Registry creates and tracks stake vaults. It holds the operator's reward
// funds and commits a worst-case reserve to each campaign at creation.
type Registry struct {
	id    porta.Address
	asset porta.Asset
	auth  *Authority
	clock clock.Clock
	funds ledger.AssetLedger

	lock    sync.Mutex
	vaults  []*vault.Vault
	created uint64
}

// New creates a registry holding funds at the given ledger account.
func New(id porta.Address, asset porta.Asset, admin porta.Address, clk clock.Clock, funds ledger.AssetLedger) *Registry {
	return &Registry{
		id:    id,
		asset: asset,
		auth:  &Authority{holder: admin},
		clock: clk,
		funds: funds,
	}
}

// ID returns the registry's ledger account address.
func (r *Registry) ID() porta.Address { return r.id }

// Asset returns the staked asset.
func (r *Registry) Asset() porta.Asset { return r.asset }

// Admin returns the current authority holder.
func (r *Registry) Admin() porta.Address { return r.auth.Holder() }

// RequiredReserve returns the worst-case reward payout of a campaign, the
// amount committed to its vault at creation.
func RequiredReserve(cfg *vault.Config) uint64 {
	return accrual.Reward(cfg.MaxTotalStake, cfg.AnnualRateBps, cfg.EndTime-cfg.StartTime)
}

// NewCampaign validates the config, checks funding sufficiency and creates a
// vault bound to the registry's authority. The worst-case reward reserve
// moves to the vault's account atomically with creation.
func (r *Registry) NewCampaign(caller porta.Address, cfg vault.Config) (*vault.Vault, error) {
	if caller != r.auth.Holder() {
		return nil, ErrUnauthorized
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	reserve := RequiredReserve(&cfg)
	if r.funds.BalanceOf(r.asset, r.id) < reserve {
		return nil, ErrInsufficientFunding
	}

	id := porta.DeriveAddress(r.id, r.created)
	v := vault.New(id, r.asset, cfg, r.auth, r.clock, r.funds)
	if err := r.funds.Transfer(r.asset, r.id, id, reserve); err != nil {
		return nil, errors.WithMessage(err, "campaign reserve")
	}
	r.created++
	r.vaults = append(r.vaults, v)

	logger.Info("campaign created", "vault", id, "title", cfg.Title, "reserve", reserve)
	return v, nil
}

// ListVaults returns all vault identifiers in creation order.
func (r *Registry) ListVaults() []porta.Address {
	r.lock.Lock()
	defer r.lock.Unlock()

	ids := make([]porta.Address, len(r.vaults))
	for i, v := range r.vaults {
		ids[i] = v.ID()
	}
	return ids
}

// Vaults returns all tracked vaults in creation order.
func (r *Registry) Vaults() []*vault.Vault {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]*vault.Vault(nil), r.vaults...)
}

// Vault looks a tracked vault up by its identifier.
func (r *Registry) Vault(id porta.Address) (*vault.Vault, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, v := range r.vaults {
		if v.ID() == id {
			return v, nil
		}
	}
	return nil, ErrUnknownVault
}

// AdminWithdraw transfers idle principal out of the registry's account.
// It is rejected while any tracked vault is scheduled or active.
func (r *Registry) AdminWithdraw(caller porta.Address, amount uint64) error {
	if caller != r.auth.Holder() {
		return ErrUnauthorized
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	for _, v := range r.vaults {
		if s := v.Status(); s == vault.Scheduled || s == vault.Active {
			return ErrCampaignRunning
		}
	}
	if err := r.funds.Transfer(r.asset, r.id, caller, amount); err != nil {
		return errors.WithMessage(err, "admin withdraw")
	}

	logger.Info("admin withdraw", "admin", caller, "amount", amount)
	return nil
}

// TransferAuthority hands the administrative authority to a new holder.
// Every vault created by the registry observes the change at once.
func (r *Registry) TransferAuthority(caller, newHolder porta.Address) error {
	if caller != r.auth.Holder() {
		return ErrUnauthorized
	}
	r.auth.transfer(newHolder)
	logger.Info("authority transferred", "from", caller, "to", newHolder)
	return nil
}
