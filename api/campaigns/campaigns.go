// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package campaigns

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/porta-network/porta-staking/api/restutil"
	"github.com/porta-network/porta-staking/porta"
	"github.com/porta-network/porta-staking/registry"
	"github.com/porta-network/porta-staking/vault"
)

// Campaigns exposes the registry and its vaults over HTTP.
type Campaigns struct {
	registry *registry.Registry
}

// New creates the campaigns resource.
func New(reg *registry.Registry) *Campaigns {
	return &Campaigns{registry: reg}
}

// Summary list entry of a campaign.
type Summary struct {
	ID          porta.Address `json:"id"`
	Title       string        `json:"title"`
	Status      string        `json:"status"`
	TotalStaked uint64        `json:"totalStaked"`
	StartTime   uint64        `json:"startTime"`
	EndTime     uint64        `json:"endTime"`
}

// Detail full campaign view.
type Detail struct {
	Summary
	Config    vault.Config `json:"config"`
	Finalized bool         `json:"finalized"`
}

func summarize(v *vault.Vault) Summary {
	cfg := v.CampaignConfig()
	return Summary{
		ID:          v.ID(),
		Title:       cfg.Title,
		Status:      v.Status().String(),
		TotalStaked: v.TotalStaked(),
		StartTime:   cfg.StartTime,
		EndTime:     cfg.EndTime,
	}
}

func (c *Campaigns) handleList(w http.ResponseWriter, _ *http.Request) error {
	vaults := c.registry.Vaults()
	out := make([]Summary, len(vaults))
	for i, v := range vaults {
		out[i] = summarize(v)
	}
	return restutil.WriteJSON(w, out)
}

// CreateRequest campaign creation parameters plus the calling admin.
type CreateRequest struct {
	Caller porta.Address `json:"caller"`
	Config vault.Config  `json:"config"`
}

func (c *Campaigns) handleCreate(w http.ResponseWriter, r *http.Request) error {
	var req CreateRequest
	if err := restutil.ParseJSON(r, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	v, err := c.registry.NewCampaign(req.Caller, req.Config)
	if err != nil {
		return convertRegistryError(err)
	}
	return restutil.WriteJSON(w, summarize(v))
}

func (c *Campaigns) vault(r *http.Request) (*vault.Vault, error) {
	id, err := porta.ParseAddress(mux.Vars(r)["id"])
	if err != nil {
		return nil, restutil.BadRequest(errors.WithMessage(err, "id"))
	}
	v, err := c.registry.Vault(*id)
	if err != nil {
		return nil, restutil.NotFound(err)
	}
	return v, nil
}

func (c *Campaigns) handleGet(w http.ResponseWriter, r *http.Request) error {
	v, err := c.vault(r)
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, Detail{
		Summary:   summarize(v),
		Config:    v.CampaignConfig(),
		Finalized: v.Finalized(),
	})
}

func (c *Campaigns) handleGetAccount(w http.ResponseWriter, r *http.Request) error {
	v, err := c.vault(r)
	if err != nil {
		return err
	}
	addr, err := porta.ParseAddress(mux.Vars(r)["addr"])
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "addr"))
	}
	return restutil.WriteJSON(w, v.AccountInfo(*addr))
}

// StakeRequest deposit or withdrawal parameters.
type StakeRequest struct {
	Owner  porta.Address `json:"owner"`
	Amount uint64        `json:"amount"`
}

func (c *Campaigns) handleDeposit(w http.ResponseWriter, r *http.Request) error {
	v, err := c.vault(r)
	if err != nil {
		return err
	}
	var req StakeRequest
	if err := restutil.ParseJSON(r, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := v.DepositStake(req.Owner, req.Amount); err != nil {
		return convertVaultError(err)
	}
	return restutil.WriteJSON(w, v.AccountInfo(req.Owner))
}

func (c *Campaigns) handleWithdraw(w http.ResponseWriter, r *http.Request) error {
	v, err := c.vault(r)
	if err != nil {
		return err
	}
	var req StakeRequest
	if err := restutil.ParseJSON(r, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := v.WithdrawStake(req.Owner, req.Amount); err != nil {
		return convertVaultError(err)
	}
	return restutil.WriteJSON(w, v.AccountInfo(req.Owner))
}

// ClaimRequest reward claim parameters.
type ClaimRequest struct {
	Owner porta.Address `json:"owner"`
}

func (c *Campaigns) handleClaim(w http.ResponseWriter, r *http.Request) error {
	v, err := c.vault(r)
	if err != nil {
		return err
	}
	var req ClaimRequest
	if err := restutil.ParseJSON(r, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	reward, err := v.ClaimReward(req.Owner)
	if err != nil {
		return convertVaultError(err)
	}
	return restutil.WriteJSON(w, map[string]uint64{"reward": reward})
}

func (c *Campaigns) handleFinalWithdraw(w http.ResponseWriter, r *http.Request) error {
	v, err := c.vault(r)
	if err != nil {
		return err
	}
	var req ClaimRequest
	if err := restutil.ParseJSON(r, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	swept, err := v.FinalWithdraw(req.Owner)
	if err != nil {
		return convertVaultError(err)
	}
	return restutil.WriteJSON(w, map[string]uint64{"swept": swept})
}

func convertVaultError(err error) error {
	switch err {
	case vault.ErrUnauthorized:
		return restutil.Forbidden(err)
	case vault.ErrCampaignInactive,
		vault.ErrCapacityExceeded,
		vault.ErrBelowMinimum,
		vault.ErrAboveMaximum,
		vault.ErrLockActive,
		vault.ErrInsufficientStake,
		vault.ErrCampaignRunning:
		return restutil.BadRequest(err)
	}
	return err
}

func convertRegistryError(err error) error {
	switch err {
	case registry.ErrUnauthorized:
		return restutil.Forbidden(err)
	case registry.ErrInsufficientFunding, registry.ErrCampaignRunning:
		return restutil.BadRequest(err)
	case registry.ErrUnknownVault:
		return restutil.NotFound(err)
	}
	return restutil.BadRequest(err)
}

// Mount attaches the resource to the router under the path prefix.
func (c *Campaigns) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		HandlerFunc(restutil.WrapHandlerFunc(c.handleList))
	sub.Path("").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(c.handleCreate))
	sub.Path("/{id}").
		Methods(http.MethodGet).
		HandlerFunc(restutil.WrapHandlerFunc(c.handleGet))
	sub.Path("/{id}/accounts/{addr}").
		Methods(http.MethodGet).
		HandlerFunc(restutil.WrapHandlerFunc(c.handleGetAccount))
	sub.Path("/{id}/deposits").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(c.handleDeposit))
	sub.Path("/{id}/withdrawals").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(c.handleWithdraw))
	sub.Path("/{id}/claims").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(c.handleClaim))
	sub.Path("/{id}/final-withdrawals").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(c.handleFinalWithdraw))
}
