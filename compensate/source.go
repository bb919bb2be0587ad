// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package compensate

import (
	"github.com/porta-network/porta-staking/porta"
	"github.com/porta-network/porta-staking/registry"
)

// RegistrySource recomputes expected rewards against locally tracked vaults.
// The marker is read as the time of the claim; the expected value is the
// live reward the position held the instant before it.
type RegistrySource struct {
	registry *registry.Registry
}

// NewRegistrySource creates a reward source over the registry's vaults.
func NewRegistrySource(r *registry.Registry) *RegistrySource {
	return &RegistrySource{registry: r}
}

// ExpectedReward implements RewardSource.
func (s *RegistrySource) ExpectedReward(vaultID, recipient porta.Address, marker uint64) (uint64, error) {
	v, err := s.registry.Vault(vaultID)
	if err != nil {
		return 0, err
	}
	return v.LiveRewardAt(recipient, marker-1), nil
}
