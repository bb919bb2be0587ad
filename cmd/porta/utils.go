// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mattn/go-isatty"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"

	"github.com/porta-network/porta-staking/api/campaigns"
	"github.com/porta-network/porta-staking/log"
	"github.com/porta-network/porta-staking/porta"
	"github.com/porta-network/porta-staking/vault"
)

func fatal(args ...interface{}) {
	var w io.Writer
	if runtime.GOOS == "windows" {
		// The SameFile check below doesn't work on Windows.
		// stdout is unlikely to get redirected though, so just print there.
		w = os.Stdout
	} else {
		outf, _ := os.Stdout.Stat()
		errf, _ := os.Stderr.Stat()
		if outf != nil && errf != nil && os.SameFile(outf, errf) {
			w = os.Stderr
		} else {
			w = io.MultiWriter(os.Stdout, os.Stderr)
		}
	}
	fmt.Fprint(w, "Fatal: ")
	fmt.Fprintln(w, args...)
	os.Exit(1)
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".porta-staking")
	}
	return ""
}

func initLogger(ctx *cli.Context) {
	var lvl slog.Level
	switch verbosity := ctx.Int(verbosityFlag.Name); {
	case verbosity >= 4:
		lvl = slog.LevelDebug
	case verbosity == 3:
		lvl = slog.LevelInfo
	case verbosity == 2:
		lvl = slog.LevelWarn
	default:
		lvl = slog.LevelError
	}
	log.Init(os.Stderr, lvl)
}

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func parseAdmin(ctx *cli.Context) porta.Address {
	if !ctx.IsSet(adminFlag.Name) {
		if ctx.Bool(soloFlag.Name) {
			return porta.BytesToAddress([]byte("solo-admin"))
		}
		fatal("--admin address is required outside solo mode")
	}
	addr, err := porta.ParseAddress(ctx.String(adminFlag.Name))
	if err != nil {
		fatal(fmt.Sprintf("parse admin address: %v", err))
	}
	return *addr
}

func loadCampaignConfig(path string) (*vault.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg vault.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func postCampaign(endpoint string, req campaigns.CreateRequest) (*campaigns.Summary, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(endpoint, "/")+"/campaigns", "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("service rejected campaign: %s", strings.TrimSpace(string(body)))
	}
	var sum campaigns.Summary
	if err := json.Unmarshal(body, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

func makeDataDir(ctx *cli.Context) string {
	dir := ctx.String(dataDirFlag.Name)
	if dir == "" {
		fatal(fmt.Sprintf("unable to infer default data dir, use -%s to specify one", dataDirFlag.Name))
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		fatal(fmt.Sprintf("create data dir [%v]: %v", dir, err))
	}
	return dir
}
