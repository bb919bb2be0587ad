// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import "github.com/pkg/errors"

// Config campaign parameters, fixed at creation.
type Config struct {
	Title            string `yaml:"title" json:"title"`
	AnnualRateBps    uint64 `yaml:"annualRateBps" json:"annualRateBps"`
	MaxTotalStake    uint64 `yaml:"maxTotalStake" json:"maxTotalStake"`
	StartTime        uint64 `yaml:"startTime" json:"startTime"`
	EndTime          uint64 `yaml:"endTime" json:"endTime"`
	MinStakeDuration uint64 `yaml:"minStakeDuration" json:"minStakeDuration"`
	MinStakeAmount   uint64 `yaml:"minStakeAmount" json:"minStakeAmount"`
	MaxStakeAmount   uint64 `yaml:"maxStakeAmount" json:"maxStakeAmount"`
}

// Validate checks structural soundness of the campaign parameters.
func (c *Config) Validate() error {
	if c.StartTime >= c.EndTime {
		return errors.New("campaign start must precede end")
	}
	if c.MaxTotalStake == 0 {
		return errors.New("campaign max total stake must be positive")
	}
	if c.MaxStakeAmount > 0 && c.MinStakeAmount > c.MaxStakeAmount {
		return errors.New("wallet minimum exceeds wallet maximum")
	}
	return nil
}

// Status campaign phase as observed through the clock.
type Status int

const (
	// Scheduled the campaign has not started yet.
	Scheduled Status = iota
	// Active deposits are being accepted.
	Active
	// Ended the campaign window has passed.
	Ended
)

func (s Status) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case Active:
		return "active"
	case Ended:
		return "ended"
	}
	return "unknown"
}
