// Command rangesync-demo exercises the rangesync/transport stack end to
// end: `serve` hosts a reconciliation endpoint over an in-memory store
// seeded with random keys, and `sync` dials it and reports how many
// rounds convergence took. It exists to give the ambient CLI stack
// (cobra/pflag/viper) and the transport package a runnable home; it is
// not part of the reconciliation library itself.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/orbitsync/rangesync/memstore"
	"github.com/orbitsync/rangesync/rangesync"
	"github.com/orbitsync/rangesync/transport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "rangesync-demo",
		Short:        "Demonstrates rangesync set reconciliation over TCP",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-level", "info", "zap log level: debug, info, warn, error")
	viper.SetEnvPrefix("RANGESYNC")
	viper.AutomaticEnv()
	_ = viper.BindPFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd(), newSyncCmd())
	return root
}

func newLogger(flags *pflag.FlagSet) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	return cfg.Build()
}

func newServeCmd() *cobra.Command {
	var (
		addr       string
		seedCount  int
		maxSetSize int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host a reconciliation endpoint over a randomly seeded in-memory store",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.Flags())
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			store := memstore.New()
			seedStore(store, seedCount, "srv")

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}
			logger.Info("listening", zap.String("addr", ln.Addr().String()))

			srv := transport.NewServer(store, memstore.StringCodec{},
				transport.WithLogger(logger),
				transport.WithPeerOptions(rangesync.WithMaxSetSize(maxSetSize)),
			)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return srv.Serve(ctx, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7532", "address to listen on")
	cmd.Flags().IntVar(&seedCount, "seed", 1000, "number of random entries to seed the store with")
	cmd.Flags().IntVar(&maxSetSize, "max-set-size", rangesync.DefaultMaxSetSize, "max_set_size tunable")
	return cmd
}

func newSyncCmd() *cobra.Command {
	var (
		addr      string
		seedCount int
		maxRounds int
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Dial a rangesync-demo serve endpoint and reconcile a local random store against it",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.Flags())
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			store := memstore.New()
			seedStore(store, seedCount, "cli")

			client := transport.NewClient(memstore.StringCodec{},
				transport.WithClientLogger(logger),
				transport.WithClientMaxRounds(maxRounds),
			)
			peer := rangesync.NewPeer(store)

			start := time.Now()
			stats, err := client.Dial(context.Background(), addr, peer, rangesync.AcceptAll)
			if err != nil {
				return err
			}
			n, err := store.Len()
			if err != nil {
				return err
			}
			fmt.Printf("converged in %d rounds (%s), local store now holds %d entries\n",
				stats.Rounds, time.Since(start), n)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7532", "server address to dial")
	cmd.Flags().IntVar(&seedCount, "seed", 1000, "number of random entries to seed the local store with")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 64, "abort if convergence takes more than this many rounds")
	return cmd
}

func seedStore(store *memstore.Store, n int, prefix string) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("%s-%08x", prefix, r.Uint32())
		_ = store.Put(memstore.NewStringEntry(key, key))
	}
}
