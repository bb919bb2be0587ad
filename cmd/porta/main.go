// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/porta-network/porta-staking/api"
	"github.com/porta-network/porta-staking/api/campaigns"
	"github.com/porta-network/porta-staking/clock"
	"github.com/porta-network/porta-staking/compensate"
	"github.com/porta-network/porta-staking/ledger"
	"github.com/porta-network/porta-staking/log"
	"github.com/porta-network/porta-staking/metrics"
	"github.com/porta-network/porta-staking/multipay"
	"github.com/porta-network/porta-staking/porta"
	"github.com/porta-network/porta-staking/registry"
)

var (
	version   string
	gitCommit string
	gitTag    string
	logger    = log.WithContext("pkg", "main")

	hubID   = porta.BytesToAddress([]byte("porta-staking-hub"))
	payerID = porta.BytesToAddress([]byte("porta-staking-payer"))
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Porta",
		Usage:     "Staking campaign service of the Porta Network",
		Copyright: "2021 Porta Network",
		Flags: []cli.Flag{
			dataDirFlag,
			apiAddrFlag,
			apiCorsFlag,
			verbosityFlag,
			assetFlag,
			adminFlag,
			campaignFlag,
			feedEndpointFlag,
			initialMarkerFlag,
			batchSizeFlag,
			cooldownFlag,
			passIntervalFlag,
			soloFlag,
			enableMetricsFlag,
			enableAPILogsFlag,
			pprofFlag,
		},
		Action: runAction,
		Commands: []cli.Command{
			{
				Name:      "campaign",
				Usage:     "inspect campaign config files",
				ArgsUsage: "FILE [FILE...]",
				Subcommands: []cli.Command{
					{
						Name:      "validate",
						Usage:     "validate config files and print the reserve each campaign requires",
						ArgsUsage: "FILE [FILE...]",
						Action:    validateAction,
					},
					{
						Name:      "create",
						Usage:     "launch campaigns from config files on a running service",
						ArgsUsage: "FILE [FILE...]",
						Flags: []cli.Flag{
							apiURLFlag,
							adminFlag,
						},
						Action: createAction,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func validateAction(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("no config files given")
	}
	for _, path := range ctx.Args() {
		cfg, err := loadCampaignConfig(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("%s: %q requires a reserve of %d\n", path, cfg.Title, registry.RequiredReserve(cfg))
	}
	return nil
}

func createAction(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("no config files given")
	}
	if !ctx.IsSet(adminFlag.Name) {
		return fmt.Errorf("--%s is required", adminFlag.Name)
	}
	caller, err := porta.ParseAddress(ctx.String(adminFlag.Name))
	if err != nil {
		return fmt.Errorf("parse admin address: %w", err)
	}

	endpoint := ctx.String(apiURLFlag.Name)
	for _, path := range ctx.Args() {
		cfg, err := loadCampaignConfig(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		sum, err := postCampaign(endpoint, campaigns.CreateRequest{Caller: *caller, Config: *cfg})
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("%s: campaign %q launched as %v\n", path, cfg.Title, sum.ID)
	}
	return nil
}

func runAction(cliCtx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	initLogger(cliCtx)
	if cliCtx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	dataDir := makeDataDir(cliCtx)
	asset := porta.Asset(cliCtx.String(assetFlag.Name))
	admin := parseAdmin(cliCtx)

	funds := ledger.NewMem()
	if cliCtx.Bool(soloFlag.Name) {
		funds.Mint(asset, hubID, 1_000_000_000)
		funds.Mint(asset, payerID, 1_000_000_000)
		funds.Mint(asset, admin, 1_000_000_000)
		logger.Info("solo mode, ledger seeded with test funds", "asset", asset)
	}

	reg := registry.New(hubID, asset, admin, clock.System(), funds)
	payer := multipay.New(payerID, funds)

	for _, path := range cliCtx.StringSlice(campaignFlag.Name) {
		cfg, err := loadCampaignConfig(path)
		if err != nil {
			fatal(fmt.Sprintf("load campaign config [%v]: %v", path, err))
		}
		v, err := reg.NewCampaign(admin, *cfg)
		if err != nil {
			fatal(fmt.Sprintf("launch campaign [%v]: %v", path, err))
		}
		logger.Info("campaign launched", "id", v.ID(), "title", cfg.Title)
	}

	handler := api.New(reg, payer, api.Options{
		AllowedOrigins:  cliCtx.String(apiCorsFlag.Name),
		PprofOn:         cliCtx.Bool(pprofFlag.Name),
		EnableReqLogger: cliCtx.Bool(enableAPILogsFlag.Name),
		EnableMetrics:   cliCtx.Bool(enableMetricsFlag.Name),
	})

	listener, err := net.Listen("tcp", cliCtx.String(apiAddrFlag.Name))
	if err != nil {
		fatal(fmt.Sprintf("listen API addr [%v]: %v", cliCtx.String(apiAddrFlag.Name), err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	goes, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{Handler: handler}
	goes.Go(func() error {
		if err := srv.Serve(listener); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	goes.Go(func() error {
		<-ctx.Done()
		logger.Info("stopping API server...")
		return srv.Shutdown(context.Background())
	})

	if endpoint := cliCtx.String(feedEndpointFlag.Name); endpoint != "" {
		store, err := compensate.OpenStore(
			filepath.Join(dataDir, "reconcile.db"),
			cliCtx.Uint64(initialMarkerFlag.Name),
		)
		if err != nil {
			fatal(fmt.Sprintf("open reconcile store: %v", err))
		}
		defer func() { logger.Info("closing reconcile store..."); store.Close() }()

		worker := compensate.NewWorker(compensate.Options{
			Asset:        asset,
			BatchSize:    cliCtx.Int(batchSizeFlag.Name),
			Cooldown:     cliCtx.Duration(cooldownFlag.Name),
			PassInterval: cliCtx.Duration(passIntervalFlag.Name),
		}, compensate.NewHTTPFeed(endpoint), compensate.NewRegistrySource(reg), store, payer, reg)
		goes.Go(func() error {
			if err := worker.Run(ctx); err != context.Canceled {
				return err
			}
			return nil
		})
	}

	goes.Go(func() error {
		houseKeeping(ctx)
		return nil
	})

	printStartupMessage(listener, asset, admin)

	return goes.Wait()
}

func printStartupMessage(listener net.Listener, asset porta.Asset, admin porta.Address) {
	if !stdoutIsTerminal() {
		logger.Info("service started", "api", listener.Addr(), "asset", asset, "admin", admin)
		return
	}
	fmt.Printf(`Starting %v
    Version     %v
    Asset       %v
    Admin       %v
    Hub         %v
    API portal  http://%v/
`, "Porta Staking", fullVersion(), asset, admin, hubID, listener.Addr())
}
