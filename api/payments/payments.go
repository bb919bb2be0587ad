// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package payments

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/porta-network/porta-staking/api/restutil"
	"github.com/porta-network/porta-staking/multipay"
	"github.com/porta-network/porta-staking/porta"
)

// Payments exposes batch payment lookups over HTTP.
type Payments struct {
	payer *multipay.Multipay
}

// New creates the payments resource.
func New(payer *multipay.Multipay) *Payments {
	return &Payments{payer: payer}
}

type status struct {
	Recipient    porta.Address `json:"recipient"`
	PayReference uint64        `json:"payReference"`
	Processed    bool          `json:"processed"`
}

func (p *Payments) handleGetStatus(w http.ResponseWriter, r *http.Request) error {
	recipient, err := porta.ParseAddress(mux.Vars(r)["recipient"])
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "recipient"))
	}
	ref, err := strconv.ParseUint(mux.Vars(r)["ref"], 10, 64)
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "ref"))
	}
	return restutil.WriteJSON(w, status{
		Recipient:    *recipient,
		PayReference: ref,
		Processed:    p.payer.IsPaymentProcessed(*recipient, ref),
	})
}

// Mount attaches the resource to the router under the path prefix.
func (p *Payments) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{recipient}/{ref}").
		Methods(http.MethodGet).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleGetStatus))
}
