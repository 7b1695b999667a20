package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mezonai/walletd/api"
	"github.com/mezonai/walletd/config"
	"github.com/mezonai/walletd/esplora"
	"github.com/mezonai/walletd/events"
	"github.com/mezonai/walletd/exception"
	"github.com/mezonai/walletd/logx"
	"github.com/mezonai/walletd/monitoring"
	"github.com/mezonai/walletd/store"
	"github.com/mezonai/walletd/viewmodel"
	"github.com/mezonai/walletd/wallet"
	"github.com/mezonai/walletd/worker"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type runFlags struct {
	offline      bool
	offlineFunds uint64
	listenAddr   string
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the wallet daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(runOpts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runOpts.offline, "offline", false, "use a simulated wallet instead of Esplora")
	runCmd.Flags().Uint64Var(&runOpts.offlineFunds, "offline-funds", 100000, "balance in sats of the simulated wallet")
	runCmd.Flags().StringVarP(&runOpts.listenAddr, "listen", "l", "", "override api.listen_addr")
}

func loadConfiguration() (*config.Config, *config.WorkerConfig, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}

	workerCfg := config.DefaultWorker()
	if cfg.WorkerConfig != "" {
		loaded, err := config.LoadWorkerConfig(cfg.WorkerConfig)
		if err != nil {
			return nil, nil, err
		}
		workerCfg = loaded
	}
	return cfg, workerCfg, nil
}

func buildEngine(cfg *config.Config, st store.WalletStore, offline bool, funds uint64) (wallet.Engine, error) {
	params, err := wallet.ParamsForNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	if offline {
		logx.Warn("CMD", "Running with a simulated wallet, nothing is broadcast")
		return wallet.NewMemoryEngine(wallet.MemoryOptions{Params: params, Funds: funds, Fee: 141}), nil
	}

	chain := esplora.NewClient(cfg.Esplora.URL, cfg.EsploraTimeout())
	return wallet.NewHDEngine(wallet.HDConfig{
		Params:             params,
		ExternalDescriptor: cfg.Descriptors.External,
		InternalDescriptor: cfg.Descriptors.Internal,
		StopGap:            cfg.Esplora.StopGap,
		ParallelRequests:   cfg.Esplora.ParallelRequests,
		FeeRate:            cfg.Wallet.FeeRate,
		SendTo:             cfg.Wallet.SendTo,
	}, st, chain)
}

func startMetricsServer(addr string) *http.Server {
	monitoring.InitMetrics()
	mux := http.NewServeMux()
	monitoring.RegisterMetrics(mux)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	exception.SafeGoWithPanic("metrics-server", func() {
		logx.Info("CMD", "Metrics listening on ", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Error("CMD", "Metrics server stopped: ", err)
		}
	})
	return srv
}

func runDaemon(opts runFlags) error {
	cfg, workerCfg, err := loadConfiguration()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.listenAddr != "" {
		cfg.API.ListenAddr = opts.listenAddr
	}

	logx.Init(logx.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Stdout:     cfg.Log.Stdout,
		Level:      cfg.Log.Level,
	})
	defer logx.Close()

	st, err := store.CreateStore(&store.StoreConfig{
		Type:      store.StoreType(cfg.Store.Type),
		Directory: cfg.Store.Directory,
	})
	if err != nil {
		return fmt.Errorf("failed to open wallet store: %w", err)
	}
	defer st.MustClose()

	engine, err := buildEngine(cfg, st, opts.offline, opts.offlineFunds)
	if err != nil {
		return fmt.Errorf("failed to create wallet engine: %w", err)
	}

	bus := events.NewEventBusWithBuffer(workerCfg.SubscriberBuffer)
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vm := viewmodel.New(viewmodel.Options{ClearErrorAfter: workerCfg.ErrorClearAfter()})
	defer vm.Close()
	if err := vm.Restore(st); err != nil {
		logx.Warn("CMD", "Restore view-model: ", err)
	}
	// detached from the signal ctx so events from the drain still land
	vmSub := vm.Attach(context.Background(), bus)

	w := worker.New(engine, bus, worker.Options{
		HeartbeatInterval: workerCfg.HeartbeatInterval(),
		AppData:           st,
	})
	if err := w.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	apiServer := api.NewAPIServer(w.Dispatcher(), bus, vm, cfg.API.ListenAddr)
	if err := apiServer.Start(); err != nil {
		stopWorker(context.Background(), w, vmSub)
		return fmt.Errorf("failed to start api: %w", err)
	}
	metricsServer := startMetricsServer(cfg.Metrics.ListenAddr)
	exception.SafeGo("system-metrics", func() { monitoring.RunSystemMetrics(ctx, monitoring.DefaultSystemInterval) })

	logx.Info("CMD", fmt.Sprintf("walletd running | network=%s | api=%s | offline=%v", cfg.Network, apiServer.Addr(), opts.offline))
	<-ctx.Done()
	logx.Info("CMD", "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		logx.Warn("CMD", "API stop: ", err)
	}
	stopWorker(shutdownCtx, w, vmSub)
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logx.Warn("CMD", "Metrics stop: ", err)
	}
	return nil
}

// stopWorker drains the worker and then the view-model's backlog so the
// final snapshot reflects every command that ran.
func stopWorker(ctx context.Context, w *worker.Worker, vmSub *events.Subscription) {
	if err := w.Shutdown(ctx); err != nil {
		logx.Warn("CMD", "Worker did not drain: ", err)
	}
	if err := vmSub.Drain(ctx); err != nil {
		logx.Warn("CMD", "View-model did not drain: ", err)
	}
}
