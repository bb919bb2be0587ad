// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package porta

// Constants of the staking ledger.
const (
	SecondsPerDay  uint64 = 24 * 60 * 60
	SecondsPerYear uint64 = 365 * SecondsPerDay

	// BasisPointsDenominator divisor turning basis points into a ratio.
	BasisPointsDenominator uint64 = 10000

	// RewardAnchor the first daily vesting cutoff (2021-09-26 18:00:00 UTC).
	// Every later cutoff is a whole number of days after this instant.
	RewardAnchor uint64 = 1632679200
)

// Asset identifier of a fungible asset held by an AssetLedger.
type Asset string
