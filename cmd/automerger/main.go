package main

import (
	"context"
	"crypto/ecdsa"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/automerger/config"
	"github.com/alejandrodnm/automerger/internal/adapters/dedup"
	"github.com/alejandrodnm/automerger/internal/adapters/keystore"
	"github.com/alejandrodnm/automerger/internal/adapters/notify"
	"github.com/alejandrodnm/automerger/internal/adapters/onchain"
	"github.com/alejandrodnm/automerger/internal/adapters/polymarket"
	"github.com/alejandrodnm/automerger/internal/adapters/relay"
	"github.com/alejandrodnm/automerger/internal/adapters/storage"
	"github.com/alejandrodnm/automerger/internal/application/merger"
	"github.com/alejandrodnm/automerger/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one merge cycle and exit")
	dryRun := flag.Bool("dry-run", false, "detect, encode and sign but never submit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print one table row per group (default: compact 1-line)")
	encryptKey := flag.String("encrypt-key", "", "encrypt PRIVATE_KEY with KEY_PASSWORD into this file and exit")
	flag.Parse()

	if *encryptKey != "" {
		if err := writeKeyFile(*encryptKey); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("encrypted key written to %s\n", *encryptKey)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	key, err := keystore.Load(keystore.Config{
		RawPrivateKey:    cfg.Secrets.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.KeyFile,
		KeyPassword:      cfg.Secrets.KeyPassword,
	})
	if err != nil {
		slog.Error("failed to load key", "err", err)
		os.Exit(1)
	}

	slog.Info("automerger starting",
		"config", *configPath,
		"wallet", cfg.Wallet.ProxyWallet,
		"mode", cfg.Relay.Mode,
		"interval", cfg.Interval(),
		"dedup", cfg.Dedup.Backend,
		"dry_run", *dryRun,
		"once", *once,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, key, *once, *dryRun, *table); err != nil {
		slog.Error("automerger exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("automerger stopped cleanly")
}

func run(ctx context.Context, cfg *config.Config, key *ecdsa.PrivateKey, once, dryRun, table bool) error {
	addrs, err := contractAddresses(cfg.Contracts)
	if err != nil {
		return err
	}
	enc := onchain.NewEncoder(addrs)

	client := polymarket.NewClient(cfg.API.DataBase, cfg.API.GammaBase)
	client.SetPositionsQuery(polymarket.PositionsQuery{
		PageLimit:     cfg.Detector.PageLimit,
		SizeThreshold: cfg.MinSize(),
	})

	store, err := dedupStore(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := store.(interface{ Close() error }); ok {
		defer c.Close()
	}

	var journal ports.Journal
	if !cfg.Storage.Disabled {
		j, err := storage.NewSQLiteJournal(cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("open journal %s: %w", cfg.Storage.DSN, err)
		}
		defer j.Close()
		journal = j
	}

	g, ctx := errgroup.WithContext(ctx)

	var submitter ports.MergeSubmitter
	switch cfg.Relay.Mode {
	case "onchain":
		factory := common.HexToAddress(relay.DefaultProxyFactory)
		if cfg.Relay.ProxyFactory != "" {
			factory = common.HexToAddress(cfg.Relay.ProxyFactory)
		}
		direct, err := onchain.DialDirectSubmitter(ctx, cfg.API.RPCURL, key, factory, enc, dryRun)
		if err != nil {
			return err
		}
		submitter = direct

	default:
		creds := relay.NewCredentials()
		if cfg.Secrets.PolymarketSession != "" {
			creds.StoreCookie(cfg.Secrets.PolymarketSession)
		}
		if cfg.Secrets.RelayBearerToken != "" {
			refresher := relay.NewRefresher(relay.RefresherConfig{
				LoginURL:    cfg.API.LoginURL,
				BearerToken: cfg.Secrets.RelayBearerToken,
				Interval:    cfg.RefreshInterval(),
			}, creds)
			if once {
				if _, err := refresher.Refresh(ctx); err != nil {
					slog.Warn("relay session refresh failed", "err", err)
				}
			} else {
				g.Go(func() error { return refresher.Run(ctx) })
			}
		}

		vmode, err := relay.ParseVMode(cfg.Relay.VMode)
		if err != nil {
			return err
		}
		sc := relay.SubmitterConfig{
			ProxyWallet: common.HexToAddress(cfg.Wallet.ProxyWallet),
			GasLimit:    cfg.Relay.ProxyGasLimit,
			NonceType:   relay.Scheme(cfg.Relay.NonceType),
			DryRun:      dryRun,
		}
		if cfg.Relay.RelayAccount != "" {
			sc.RelayAccount = common.HexToAddress(cfg.Relay.RelayAccount)
		}
		if cfg.Relay.ProxyFactory != "" {
			sc.ProxyFactory = common.HexToAddress(cfg.Relay.ProxyFactory)
		}
		if cfg.Relay.RelayHub != "" {
			sc.RelayHub = common.HexToAddress(cfg.Relay.RelayHub)
		}
		rc := relay.NewClient(cfg.API.RelayerBase, creds, cfg.SubmitTimeout())
		submitter = relay.NewSubmitter(rc, relay.NewSigner(key, vmode), enc, sc)
	}

	det := merger.New(merger.Config{
		ProxyWallet:   cfg.Wallet.ProxyWallet,
		Interval:      cfg.Interval(),
		SnapshotDelay: cfg.SnapshotDelay(),
		SubmitSpacing: cfg.SubmitSpacing(),
		MaxBackoff:    cfg.MaxBackoff(),
		MinSize:       cfg.MinSize(),
		PairMerges:    cfg.Detector.PairMerges,
		DryRun:        dryRun,
	}, client, client, store, submitter, journal, notify.NewConsole(table))

	if once {
		res := det.RunOnce(ctx)
		return res.Err
	}

	g.Go(func() error { return det.Run(ctx) })
	return g.Wait()
}

func contractAddresses(c config.ContractsConfig) (onchain.Addresses, error) {
	addrs, err := onchain.DefaultAddresses()
	if err != nil {
		return onchain.Addresses{}, err
	}
	if c.Collateral != "" {
		addrs.Collateral = common.HexToAddress(c.Collateral)
	}
	if c.ConditionalTokens != "" {
		addrs.ConditionalTokens = common.HexToAddress(c.ConditionalTokens)
	}
	if c.ConvertTarget != "" {
		addrs.ConvertTarget = common.HexToAddress(c.ConvertTarget)
	}
	return addrs, nil
}

func dedupStore(ctx context.Context, cfg *config.Config) (ports.DedupStore, error) {
	if cfg.Dedup.Backend != "redis" {
		return dedup.NewMemory(cfg.Cooldown()), nil
	}
	return dedup.NewRedis(ctx, dedup.RedisConfig{
		Addr:      cfg.Dedup.RedisAddr,
		Password:  cfg.Secrets.RedisPassword,
		DB:        cfg.Dedup.RedisDB,
		KeyPrefix: cfg.Dedup.KeyPrefix,
	}, cfg.Cooldown())
}

// writeKeyFile cifra PRIVATE_KEY con KEY_PASSWORD (del entorno o .env).
func writeKeyFile(path string) error {
	_ = godotenv.Load()
	data, err := keystore.Encrypt(os.Getenv("PRIVATE_KEY"), os.Getenv("KEY_PASSWORD"))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
