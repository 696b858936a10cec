package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/canmaster/internal/cliconfig"
	"github.com/bft-labs/canmaster/internal/driver/basic"
	"github.com/bft-labs/canmaster/pkg/can"
	"github.com/bft-labs/canmaster/pkg/lifecycle"
	"github.com/bft-labs/canmaster/pkg/log"
	"github.com/bft-labs/canmaster/pkg/params"
)

const helpDescription = `
Run a CANopen master on a SocketCAN interface.

The master is brought up through init, configure and activate, then runs
until SIGINT, SIGTERM or SIGHUP stops its event loop. Options come from
flags, CANMASTER_* environment variables and the [parameters] table of the
config file, in that order of precedence.
`

var exampleUsage = strings.TrimSpace(`
  canmaster --can-interface can0 --node-id 1
  canmaster --virtual --driver-config nodes.yaml --metrics-addr :9100
  canmaster --config $HOME/.canmaster/config.toml --watch
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "canmaster",
		Short:   "Run a CANopen master",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			loader := &cliconfig.Loader{Base: cfg, Path: cfgFile, Changed: changed}
			loaded, err := loader.Load()
			if err != nil {
				return err
			}

			logger := log.NewZerologAdapter(log.ParseLevel(loaded.LogLevel))
			logger.Info("configuration", log.Any("config", loaded))

			return run(cmd.Context(), loaded, loader, logger)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.canmaster/config.toml)")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (disabled when empty)")
	root.Flags().BoolVar(&cfg.Virtual, "virtual", cfg.Virtual, "use an in-memory CAN bus instead of SocketCAN")
	root.Flags().BoolVar(&cfg.Watch, "watch", cfg.Watch, "restart the master when the config file changes")

	root.Flags().StringVar(&cfg.ContainerName, "container-name", cfg.ContainerName, "name of the device container")
	root.Flags().StringVar(&cfg.MasterDCF, "master-dcf", cfg.MasterDCF, "path to the master DCF")
	root.Flags().StringVar(&cfg.MasterBin, "master-bin", cfg.MasterBin, "path to the concise master DCF")
	root.Flags().StringVar(&cfg.CANInterface, "can-interface", cfg.CANInterface, "CAN interface name")
	root.Flags().IntVar(&cfg.NodeID, "node-id", cfg.NodeID, "node id of the master")
	root.Flags().DurationVar(&cfg.NonTransmitTimeout, "non-transmit-timeout", cfg.NonTransmitTimeout, "timeout before a send is abandoned")
	root.Flags().DurationVar(&cfg.JoinTimeout, "join-timeout", cfg.JoinTimeout, "how long deactivate waits for the event loop (0 waits forever)")
	root.Flags().StringVar(&cfg.BlobFile, "driver-config", cfg.BlobFile, "YAML file with the driver configuration")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "canmaster:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliconfig.Config, loader *cliconfig.Loader, logger *log.ZerologAdapter) (err error) {
	store := params.NewStore()
	p, err := cfg.Parameters()
	if err != nil {
		return err
	}
	store.Merge(p)

	opts := []lifecycle.Option{lifecycle.WithLogger(logger)}
	if cfg.Virtual {
		opts = append(opts, lifecycle.WithBus(can.NewVirtualBus(cfg.CANInterface)))
	} else {
		opts = append(opts, lifecycle.WithBus(can.SocketCAN(logger)))
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, lifecycle.WithMetrics(lifecycle.NewMetrics(reg)))

		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	ctrl := lifecycle.New(store, basic.New(logger), opts...)
	defer func() {
		if serr := ctrl.Shutdown(); serr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown: %w", serr))
		}
	}()

	for _, op := range []func() error{ctrl.Init, ctrl.Configure, ctrl.Activate} {
		if err := op(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reload := make(chan struct{}, 1)
	if cfg.Watch && loader.Path != "" && cliconfig.FileExists(loader.Path) {
		w := params.NewFileWatcher(loader.Path, func() error {
			next, err := loader.Load()
			if err != nil {
				return err
			}
			p, err := next.Parameters()
			if err != nil {
				return err
			}
			store.Merge(p)
			select {
			case reload <- struct{}{}:
			default:
			}
			return nil
		}, logger)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("config watcher stopped", log.Err(err))
			}
		}()
	}

	for {
		select {
		case <-ctrl.Done():
			logger.Info("event loop stopped")
			return nil
		case <-ctx.Done():
			return nil
		case <-reload:
			logger.Info("restarting master with reloaded parameters")
			for _, op := range []func() error{ctrl.Deactivate, ctrl.Cleanup, ctrl.Configure, ctrl.Activate} {
				if err := op(); err != nil {
					return fmt.Errorf("restart: %w", err)
				}
			}
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", log.String("addr", addr), log.Err(err))
		}
	}()
	logger.Info("serving metrics", log.String("addr", addr))
	return srv
}
