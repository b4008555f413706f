package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"ledgerd.dev/chain/chaindb"
)

// Config is the process's full configuration surface, named and shaped
// after the teacher's node.Config: a flat set of primitives a flag.FlagSet
// binds directly to, validated once before anything opens the store.
type Config struct {
	Network  string
	DataDir  string
	BindAddr string
	LogLevel string

	EntryCache int
	CoinCache  int

	SPV          bool
	Witness      bool
	Prune        bool
	IndexTx      bool
	IndexAddress bool
	ForceWitness bool
	ForcePrune   bool
	KeepBlocks   uint

	DryRun bool
}

func DefaultConfig() Config {
	return Config{
		Network:    "devnet",
		DataDir:    defaultDataDir(),
		BindAddr:   "127.0.0.1:8732",
		LogLevel:   "info",
		EntryCache: 5000,
		IndexTx:    true,
		KeepBlocks: 288,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".ledgerd"
	}
	return home + "/.ledgerd"
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("datadir is required")
	}
	if _, _, err := net.SplitHostPort(cfg.BindAddr); err != nil {
		return fmt.Errorf("invalid bind address: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	if cfg.Prune && cfg.KeepBlocks == 0 {
		return errors.New("keep-blocks must be > 0 when pruning is enabled")
	}
	return nil
}

func (cfg Config) storeFlags() chaindb.ChainFlags {
	return chaindb.ChainFlags{
		SPV:          cfg.SPV,
		Witness:      cfg.Witness,
		Prune:        cfg.Prune,
		IndexTx:      cfg.IndexTx,
		IndexAddress: cfg.IndexAddress,
	}
}

func (cfg Config) dbConfig(path string) chaindb.Config {
	return chaindb.Config{
		Path:         path,
		EntryCache:   cfg.EntryCache,
		CoinCache:    cfg.CoinCache,
		Flags:        cfg.storeFlags(),
		ForceWitness: cfg.ForceWitness,
		ForcePrune:   cfg.ForcePrune,
		KeepBlocks:   uint32(cfg.KeepBlocks),
	}
}
