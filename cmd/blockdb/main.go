// Command blockdb serves a blockdb database over the remote protocol.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mwantia/blockdb"
	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/config"
	"github.com/mwantia/blockdb/extension/encrypt"
	"github.com/mwantia/blockdb/hierarchy"
	"github.com/mwantia/blockdb/log"
	"github.com/mwantia/blockdb/server"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "blockdb: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to a YAML config file")
	listen := flag.String("listen", "", "Address to listen on, overrides the config")
	hierarchyFile := flag.String("hierarchy", "", "Hierarchy file ensured on start and on change, overrides the config")
	genKey := flag.Bool("generate-key", false, "Print a new secret key for encrypted blocks and exit")
	flag.Parse()

	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *genKey {
		key, err := encrypt.GenerateSecretKey()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *hierarchyFile != "" {
		cfg.HierarchyFile = *hierarchyFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.NewLogger("blockdb", cfg.Level(), cfg.LogFile, cfg.NoTerminalLog)
	logger.JSON = cfg.LogJSON

	opts := []backend.Option{backend.WithLogger(logger)}
	if cfg.SecretKey != "" {
		opts = append(opts, backend.WithSecretKey(cfg.SecretKey))
	}

	sb, err := cfg.Backend.Build(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create backend '%s': %w", cfg.Backend.Type, err)
	}

	dbOpts := []blockdb.Option{
		blockdb.WithLogger(logger),
		blockdb.WithLockOptions(cfg.Lock),
	}
	if cfg.HierarchyFile != "" {
		tree, err := readHierarchy(cfg.HierarchyFile)
		if err != nil {
			return err
		}
		dbOpts = append(dbOpts, blockdb.WithHierarchy(tree))
	}

	db, err := blockdb.Open(ctx, sb, dbOpts...)
	if err != nil {
		return err
	}
	defer db.Close(context.WithoutCancel(ctx))

	srv, err := server.NewServer(db,
		server.WithLogger(logger),
		server.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
	)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	defer lis.Close()

	var watcher *hierarchyWatcher
	if cfg.HierarchyFile != "" {
		if watcher, err = newHierarchyWatcher(cfg.HierarchyFile, db.Root(), logger); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx, lis)
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	return g.Wait()
}

func readHierarchy(path string) (hierarchy.Tree, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hierarchy '%s': %w", path, err)
	}

	return hierarchy.Parse(b)
}
