// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"time"

	cli "gopkg.in/urfave/cli.v1"
)

var (
	dataDirFlag = cli.StringFlag{
		Name:   "data-dir",
		Value:  defaultDataDir(),
		Usage:  "directory for service databases",
		EnvVar: "PORTA_DATA_DIR",
	}
	apiAddrFlag = cli.StringFlag{
		Name:   "api-addr",
		Value:  "localhost:8669",
		Usage:  "API service listening address",
		EnvVar: "PORTA_API_ADDR",
	}
	apiCorsFlag = cli.StringFlag{
		Name:   "api-cors",
		Value:  "",
		Usage:  "comma separated list of domains from which to accept cross origin requests to API",
		EnvVar: "PORTA_API_CORS",
	}
	verbosityFlag = cli.IntFlag{
		Name:   "verbosity",
		Value:  3,
		Usage:  "log verbosity (0-4)",
		EnvVar: "PORTA_VERBOSITY",
	}
	assetFlag = cli.StringFlag{
		Name:   "asset",
		Value:  "PORTA",
		Usage:  "symbol of the staked asset",
		EnvVar: "PORTA_ASSET",
	}
	adminFlag = cli.StringFlag{
		Name:   "admin",
		Usage:  "address holding campaign administration authority",
		EnvVar: "PORTA_ADMIN",
	}
	apiURLFlag = cli.StringFlag{
		Name:   "api-url",
		Value:  "http://localhost:8669",
		Usage:  "base URL of a running service",
		EnvVar: "PORTA_API_URL",
	}
	campaignFlag = cli.StringSliceFlag{
		Name:  "campaign",
		Usage: "campaign config file to launch at startup, can be used multiple times",
	}
	feedEndpointFlag = cli.StringFlag{
		Name:   "feed-endpoint",
		Usage:  "claim event feed URL, enables the reconciliation worker",
		EnvVar: "PORTA_FEED_ENDPOINT",
	}
	initialMarkerFlag = cli.Uint64Flag{
		Name:  "initial-marker",
		Usage: "marker the reconciliation worker starts from on a fresh database",
	}
	batchSizeFlag = cli.IntFlag{
		Name:  "batch-size",
		Value: 16,
		Usage: "number of compensations settled per payment batch",
	}
	cooldownFlag = cli.DurationFlag{
		Name:  "cooldown",
		Value: 5 * time.Second,
		Usage: "pause between feed queries within a pass",
	}
	passIntervalFlag = cli.DurationFlag{
		Name:  "pass-interval",
		Value: 12 * time.Hour,
		Usage: "time between reconciliation passes",
	}
	soloFlag = cli.BoolFlag{
		Name:  "solo",
		Usage: "run with an in-memory ledger seeded with test funds",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:   "enable-metrics",
		Usage:  "enables metrics collection and the /metrics endpoint",
		EnvVar: "PORTA_METRICS",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:   "enable-api-logs",
		Usage:  "enables API requests logging",
		EnvVar: "PORTA_API_LOGS",
	}
	pprofFlag = cli.BoolFlag{
		Name:  "pprof",
		Usage: "turn on go-pprof",
	}
)
