// Package state contains CLI commands inspecting a persisted trie
// database.
package state

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eth-state/triedb/config"
	"github.com/eth-state/triedb/pkg/services/metrics"
	"github.com/eth-state/triedb/pkg/storage"
	"github.com/eth-state/triedb/pkg/triedb"
)

// NewCommands returns the state command set.
func NewCommands() []cli.Command {
	cfgFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "config-path, c",
			Usage: "path to the YAML configuration file",
			Value: "config.yaml",
		},
	}
	accountFlags := append([]cli.Flag{
		cli.StringFlag{
			Name:  "address, a",
			Usage: "account address, hex encoded",
		},
	}, cfgFlags...)
	storageFlags := append([]cli.Flag{
		cli.StringFlag{
			Name:  "key, k",
			Usage: "storage slot key, hex encoded",
		},
	}, accountFlags...)
	return []cli.Command{{
		Name:  "state",
		Usage: "Inspect the persisted world state",
		Subcommands: []cli.Command{
			{
				Name:   "latest",
				Usage:  "Print the latest persisted block number and state root",
				Action: latestState,
				Flags:  cfgFlags,
			},
			{
				Name:   "account",
				Usage:  "Print an account of the latest persisted state",
				Action: getAccount,
				Flags:  accountFlags,
			},
			{
				Name:   "storage",
				Usage:  "Print a storage slot of the latest persisted state",
				Action: getStorage,
				Flags:  storageFlags,
			},
		},
	}}
}

func latestState(ctx *cli.Context) error {
	db, closer, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer closer()
	block, root, ok := db.LatestPersistState()
	if !ok {
		return cli.NewExitError("no state has been persisted yet", 1)
	}
	fmt.Fprintf(ctx.App.Writer, "block:\t%d\nroot:\t%s\n", block, root)
	return nil
}

func getAccount(ctx *cli.Context) error {
	addr, err := parseAddress(ctx.String("address"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	db, closer, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer closer()
	acct, err := db.GetAccount(addr)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to get account: %w", err), 1)
	}
	if acct == nil {
		return cli.NewExitError("account not found", 1)
	}
	fmt.Fprintf(ctx.App.Writer, "nonce:\t%d\nbalance:\t%s\nstorage root:\t%s\ncode hash:\t%x\n",
		acct.Nonce, acct.Balance, acct.Root, acct.CodeHash)
	return nil
}

func getStorage(ctx *cli.Context) error {
	addr, err := parseAddress(ctx.String("address"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	key, err := hex.DecodeString(strings.TrimPrefix(ctx.String("key"), "0x"))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("invalid key: %w", err), 1)
	}
	db, closer, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer closer()
	value, err := db.GetStorage(addr, key)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to get storage: %w", err), 1)
	}
	fmt.Fprintf(ctx.App.Writer, "%x\n", value)
	return nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}
	return common.HexToAddress(s), nil
}

// openDB opens the store named in the configuration read-only and starts
// the metrics service when enabled. The returned closer shuts both down.
func openDB(ctx *cli.Context) (*triedb.TrieDB, func(), error) {
	cfg, err := config.Load(ctx.String("config-path"))
	if err != nil {
		return nil, nil, cli.NewExitError(err, 1)
	}
	cfg.DB.LevelDBOptions.ReadOnly = true
	cfg.DB.BoltDBOptions.ReadOnly = true
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, cli.NewExitError(fmt.Errorf("invalid LogLevel: %w", err), 1)
	}
	store, err := storage.NewStore(cfg.DB)
	if err != nil {
		return nil, nil, cli.NewExitError(fmt.Errorf("failed to open store: %w", err), 1)
	}
	db, err := triedb.New(store, triedb.WithLogger(log))
	if err != nil {
		closeErr := store.Close()
		if closeErr != nil {
			err = fmt.Errorf("%w, failed to close store: %v", err, closeErr)
		}
		return nil, nil, cli.NewExitError(err, 1)
	}
	prometheus := metrics.NewPrometheusService(cfg.Prometheus, log)
	go prometheus.Start()
	closer := func() {
		prometheus.ShutDown()
		if err := db.Close(); err != nil {
			log.Error("failed to close database", zap.Error(err))
		}
		_ = log.Sync()
	}
	return db, closer, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}
