// Command chaind is the composition root wiring chaindb's persistent store
// to chain's validation state machine behind a minimal liveness endpoint,
// grounded on the teacher's cmd/rubin-node/main.go flag parsing and
// dry-run/print-config shape.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"ledgerd.dev/chain/chain"
	"ledgerd.dev/chain/chaindb"
	"ledgerd.dev/chain/chainlog"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg := DefaultConfig()

	fs := flag.NewFlagSet("chaind", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.Network, "network", cfg.Network, "network name (devnet/testnet/mainnet)")
	fs.StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "node data directory")
	fs.StringVar(&cfg.BindAddr, "bind", cfg.BindAddr, "liveness endpoint bind address host:port")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")
	fs.IntVar(&cfg.EntryCache, "entry-cache", cfg.EntryCache, "header entry LRU cache size")
	fs.IntVar(&cfg.CoinCache, "coin-cache", cfg.CoinCache, "coin record LRU cache size (0 disables)")
	fs.BoolVar(&cfg.Witness, "witness", cfg.Witness, "enable witness data storage")
	fs.BoolVar(&cfg.Prune, "prune", cfg.Prune, "enable block pruning")
	fs.BoolVar(&cfg.IndexAddress, "index-address", cfg.IndexAddress, "maintain the address index")
	fs.BoolVar(&cfg.ForceWitness, "force-witness", cfg.ForceWitness, "acknowledge enabling witness storage on an existing store")
	fs.BoolVar(&cfg.ForcePrune, "force-prune", cfg.ForcePrune, "acknowledge enabling pruning on an existing store")
	fs.UintVar(&cfg.KeepBlocks, "keep-blocks", cfg.KeepBlocks, "blocks of undo history retained when pruning")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := ValidateConfig(cfg); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		fmt.Fprintf(stderr, "datadir create failed: %v\n", err)
		return 2
	}

	if err := printConfig(stdout, cfg); err != nil {
		fmt.Fprintf(stderr, "config encode failed: %v\n", err)
		return 1
	}
	if cfg.DryRun {
		return 0
	}

	logger := chainlog.New(stdout, chainlog.ParseLevel(cfg.LogLevel))

	dbPath := filepath.Join(cfg.DataDir, "chain.db")
	db, err := chaindb.Open(cfg.dbConfig(dbPath))
	if err != nil {
		fmt.Fprintf(stderr, "chaindb open failed: %v\n", err)
		return 2
	}
	defer db.Close()

	params := devnetParams()
	params.StoreFlags = cfg.storeFlags()

	// No verify.Verifier is wired here: script/signature interpretation is
	// an external, pluggable boundary (spec.md §6), left nil until a host
	// supplies one via script.AsScriptChecker and verify.NewPool.
	c, err := chain.New(db, params, nil)
	if err != nil {
		fmt.Fprintf(stderr, "chain init failed: %v\n", err)
		return 2
	}

	tip := c.Tip()
	logger.Infof("chain opened network=%s tip_height=%d tip_hash=%s", params.Name, tip.Height, tip.Hash)

	srv := newLivenessServer(cfg.BindAddr, params.Name, c, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Infof("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("liveness server failed: %v", err)
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("liveness server shutdown: %v", err)
	}
	fmt.Fprintln(stdout, "chaind stopped")
	return 0
}

func printConfig(w io.Writer, cfg Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
