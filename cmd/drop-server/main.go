package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/merkledrop-labs/merkledrop-go/pkg/asset"
	"github.com/merkledrop-labs/merkledrop-go/pkg/config"
	"github.com/merkledrop-labs/merkledrop-go/pkg/distributor"
	"github.com/merkledrop-labs/merkledrop-go/pkg/logger"
	"github.com/merkledrop-labs/merkledrop-go/pkg/server"
	"github.com/merkledrop-labs/merkledrop-go/pkg/store"
	badgerstore "github.com/merkledrop-labs/merkledrop-go/pkg/store/badger"
	memorystore "github.com/merkledrop-labs/merkledrop-go/pkg/store/memory"
	redisstore "github.com/merkledrop-labs/merkledrop-go/pkg/store/redis"
)

func main() {
	app := &cli.App{
		Name:  "drop-server",
		Usage: "Merkle airdrop claim server",
		Description: `Serves claims against a committed distribution root.

Each claim request carries a claimant, an amount and a merkle proof. The
server verifies the proof against the committed root, pays the caller from
the configured token pool and records the caller as claimed, at most once
per caller.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvDropPort},
			},
			&cli.StringFlag{
				Name:     "root",
				Usage:    "Committed distribution root (32-byte hex)",
				EnvVars:  []string{config.EnvDropMerkleRoot},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "store",
				Value:   string(config.StoreTypeMemory),
				Usage:   "Claim store backend: memory, badger or redis",
				EnvVars: []string{config.EnvDropStoreType},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Value:   "./drop-data",
				Usage:   "Data directory for the badger store",
				EnvVars: []string{config.EnvDropDataDir},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis server address (host:port) for the redis store",
				EnvVars: []string{config.EnvDropRedisAddress},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Value:   0,
				Usage:   "Redis database number (0-15)",
				EnvVars: []string{config.EnvDropRedisDB},
			},
			&cli.StringFlag{
				Name:    "pool",
				Value:   "0",
				Usage:   "Initial token pool supply (decimal or 0x-hex)",
				EnvVars: []string{config.EnvDropPoolSupply},
			},
			&cli.IntFlag{
				Name:    "max-proof-len",
				Value:   32,
				Usage:   "Reject claims whose proof exceeds this many elements (0 disables)",
				EnvVars: []string{config.EnvDropMaxProofLen},
			},
			&cli.Float64Flag{
				Name:    "claim-rate",
				Value:   0,
				Usage:   "Claims per second admitted by the rate limiter (0 disables)",
				EnvVars: []string{config.EnvDropClaimRate},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvDropVerbose},
			},
		},
		Action: runDropServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runDropServer(c *cli.Context) error {
	cfg := &config.ServerConfig{
		Port:         c.Int("port"),
		MerkleRoot:   c.String("root"),
		StoreType:    config.StoreType(c.String("store")),
		DataDir:      c.String("data-dir"),
		RedisAddress: c.String("redis-address"),
		RedisDB:      c.Int("redis-db"),
		PoolSupply:   c.String("pool"),
		MaxProofLen:  c.Int("max-proof-len"),
		ClaimRate:    c.Float64("claim-rate"),
		Verbose:      c.Bool("verbose"),
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	zlog, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Verbose})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = zlog.Sync() }()

	claims, err := openClaimStore(cfg, zlog)
	if err != nil {
		return err
	}
	defer func() { _ = claims.Close() }()

	if err := claims.HealthCheck(); err != nil {
		return fmt.Errorf("claim store health check failed: %w", err)
	}

	supply, err := parseSupply(cfg.PoolSupply)
	if err != nil {
		return fmt.Errorf("invalid pool supply: %w", err)
	}

	dist, err := distributor.New(distributor.Config{
		Root:   cfg.Root(),
		Asset:  asset.NewTokenLedger(supply),
		Claims: claims,
		Logger: zlog,
	})
	if err != nil {
		return fmt.Errorf("failed to create distributor: %w", err)
	}

	srv := server.NewServer(dist, server.Config{
		Port:        cfg.Port,
		MaxProofLen: cfg.MaxProofLen,
		ClaimRate:   cfg.ClaimRate,
		Logger:      zlog,
	})
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	zlog.Sugar().Infow("Drop server running",
		"port", cfg.Port,
		"root", cfg.MerkleRoot,
		"store", cfg.StoreType.String(),
		"pool", supply.Dec(),
	)

	// Block until interrupted
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zlog.Sugar().Infow("Shutting down")
	return srv.Stop()
}

func openClaimStore(cfg *config.ServerConfig, zlog *zap.Logger) (store.IClaimStore, error) {
	switch cfg.StoreType {
	case config.StoreTypeMemory:
		zlog.Sugar().Warnw("Using in-memory claim store, all claim flags are lost on restart")
		return memorystore.NewMemoryClaimStore(), nil
	case config.StoreTypeBadger:
		return badgerstore.NewBadgerClaimStore(cfg.DataDir, zlog)
	case config.StoreTypeRedis:
		return redisstore.NewRedisClaimStore(&redisstore.RedisConfig{
			Address: cfg.RedisAddress,
			DB:      cfg.RedisDB,
		}, zlog)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.StoreType)
	}
}

func parseSupply(v string) (*uint256.Int, error) {
	if v == "" || v == "0" {
		return uint256.NewInt(0), nil
	}
	if len(v) > 2 && (v[:2] == "0x" || v[:2] == "0X") {
		return uint256.FromHex(v)
	}
	return uint256.FromDecimal(v)
}
