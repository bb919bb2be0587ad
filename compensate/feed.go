// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package compensate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/porta-network/porta-staking/porta"
)

// ClaimEvent a reward-claim event observed on the external feed.
type ClaimEvent struct {
	ID        string        `json:"id"`
	Vault     porta.Address `json:"vault"`
	Recipient porta.Address `json:"recipient"`
	Marker    uint64        `json:"marker"`
	Amount    uint64        `json:"amount"`
}

// EventFeed supplies claim events ordered by a monotonically increasing
// position marker. The feed is an external, rate-limited collaborator;
// callers space their fetches with a cooldown.
type EventFeed interface {
	Fetch(ctx context.Context, vault porta.Address, fromMarker uint64) ([]ClaimEvent, error)
}

// RewardSource recomputes the reward a recipient was owed at a marker.
type RewardSource interface {
	ExpectedReward(vault, recipient porta.Address, marker uint64) (uint64, error)
}

// HTTPFeed fetches claim events from a remote JSON endpoint.
type HTTPFeed struct {
	endpoint string
	client   *http.Client
}

// NewHTTPFeed creates a feed client for the given endpoint.
func NewHTTPFeed(endpoint string) *HTTPFeed {
	return &HTTPFeed{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type feedResponse struct {
	Status string       `json:"status"`
	Result []ClaimEvent `json:"result"`
}

// Fetch returns all claim events of the vault at or after fromMarker.
func (f *HTTPFeed) Fetch(ctx context.Context, vault porta.Address, fromMarker uint64) ([]ClaimEvent, error) {
	q := url.Values{}
	q.Set("vault", vault.String())
	q.Set("from", fmt.Sprintf("%d", fromMarker))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.WithMessage(err, "feed request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.WithMessage(err, "feed fetch")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("feed fetch: unexpected status %d", resp.StatusCode)
	}

	var decoded feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.WithMessage(err, "feed decode")
	}
	return decoded.Result, nil
}
