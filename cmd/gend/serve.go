package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gend/internal/common/fsutil"
	"gend/internal/config"
	"gend/internal/engine"
	"gend/internal/gateway"
	"gend/internal/registry"
	"gend/internal/session"
	"gend/internal/stats"
	"gend/pkg/types"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		configPath   string
		addr         string
		registryPath string
		modelsDir    string
		defaultModel string
		device       string
		dtype        string
		maxNewTokens int
		ctxSize      int
		threads      int
		logLevel     string
		statsDB      string
		corsOrigins  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the generation session daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{}
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				cfg = loaded
			}
			// Flags and env defaults override file values when set.
			overrideStr(cmd, "addr", &cfg.Addr, addr)
			overrideStr(cmd, "registry", &cfg.RegistryPath, registryPath)
			overrideStr(cmd, "models-dir", &cfg.ModelsDir, modelsDir)
			overrideStr(cmd, "default-model", &cfg.DefaultModel, defaultModel)
			overrideStr(cmd, "device", &cfg.Device, device)
			overrideStr(cmd, "dtype", &cfg.Dtype, dtype)
			overrideStr(cmd, "log-level", &cfg.LogLevel, logLevel)
			overrideStr(cmd, "stats-db", &cfg.StatsDBPath, statsDB)
			overrideInt(cmd, "max-new-tokens", &cfg.MaxNewTokens, maxNewTokens)
			overrideInt(cmd, "ctx-size", &cfg.CtxSize, ctxSize)
			overrideInt(cmd, "threads", &cfg.Threads, threads)
			if cmd.Flags().Changed("cors-origins") || len(cfg.CORSOrigins) == 0 {
				cfg.CORSOrigins = splitCSV(corsOrigins)
			}
			if cfg.Addr == "" {
				cfg.Addr = ":8080"
			}
			return serve(cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", envStr("GEND_CONFIG", ""), "Path to config file (yaml, json or toml)")
	cmd.Flags().StringVar(&addr, "addr", envStr("GEND_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&registryPath, "registry", envStr("GEND_REGISTRY", ""), "Path to the model registry file")
	cmd.Flags().StringVar(&modelsDir, "models-dir", envStr("GEND_MODELS_DIR", "~/models/llm"), "Directory holding model weights")
	cmd.Flags().StringVar(&defaultModel, "default-model", envStr("GEND_DEFAULT_MODEL", ""), "Model id to select at startup")
	cmd.Flags().StringVar(&device, "device", envStr("GEND_DEVICE", ""), "Preferred execution backend: gpu or cpu")
	cmd.Flags().StringVar(&dtype, "dtype", envStr("GEND_DTYPE", ""), "Precision override: fp32, q4 or q4f16")
	cmd.Flags().IntVar(&maxNewTokens, "max-new-tokens", envInt("GEND_MAX_NEW_TOKENS", 0), "Generation token cap (0 uses the built-in default)")
	cmd.Flags().IntVar(&ctxSize, "ctx-size", envInt("GEND_CTX_SIZE", 4096), "Model context window")
	cmd.Flags().IntVar(&threads, "threads", envInt("GEND_THREADS", 0), "Decode threads (0 = auto)")
	cmd.Flags().StringVar(&logLevel, "log-level", envStr("GEND_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	cmd.Flags().StringVar(&statsDB, "stats-db", envStr("GEND_STATS_DB", ""), "Path to the run-statistics SQLite database (empty disables)")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", envStr("GEND_CORS_ORIGINS", ""), "Comma-separated allowed CORS origins (empty disables CORS)")
	return cmd
}

func overrideStr(cmd *cobra.Command, flag string, dst *string, val string) {
	if cmd.Flags().Changed(flag) || *dst == "" {
		*dst = val
	}
}

func overrideInt(cmd *cobra.Command, flag string, dst *int, val int) {
	if cmd.Flags().Changed(flag) || *dst == 0 {
		*dst = val
	}
}

func serve(cfg config.Config) error {
	log := newLogger(cfg.LogLevel)

	reg := &registry.Registry{}
	if cfg.RegistryPath != "" {
		loaded, err := registry.LoadFile(cfg.RegistryPath)
		if err != nil {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = loaded
		log.Info().Int("models", reg.Len()).Str("path", cfg.RegistryPath).Msg("registry loaded")
	} else {
		log.Warn().Msg("no registry file configured; waiting for model_registry command")
	}

	if cfg.ModelsDir != "" {
		if dir, err := fsutil.ExpandHome(cfg.ModelsDir); err == nil && !fsutil.PathExists(dir) {
			log.Warn().Str("dir", dir).Msg("models directory does not exist; loads will fail until it does")
		}
	}
	eng := engine.NewRuntime(cfg.ModelsDir, cfg.CtxSize, cfg.Threads)

	var store *stats.Store
	if cfg.StatsDBPath != "" {
		s, err := stats.Open(cfg.StatsDBPath, log)
		if err != nil {
			return fmt.Errorf("failed to open stats store: %w", err)
		}
		store = s
		defer store.Close()
	}

	events := gateway.NewBroadcaster()

	sessCfg := session.Config{
		Registry:     reg,
		Engine:       eng,
		Publisher:    session.MultiPublisher{events, session.NewLogPublisher(log)},
		Logger:       log,
		MaxNewTokens: cfg.MaxNewTokens,
	}
	if store != nil {
		sessCfg.Stats = store
	}
	if cfg.Device != "" {
		sessCfg.DefaultDevice = types.Device(cfg.Device)
	}
	sess := session.New(sessCfg)
	worker := session.NewWorker(sess, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go worker.Run(ctx)

	if cfg.DefaultModel != "" {
		spec := types.SetModelSpec{ModelID: cfg.DefaultModel, Dtype: types.Dtype(cfg.Dtype)}
		data, _ := json.Marshal(spec)
		if err := worker.Dispatch(types.Command{Type: types.CmdSetModel, Data: data}); err != nil {
			log.Warn().Err(err).Str("model", cfg.DefaultModel).Msg("failed to select default model")
		}
	}

	gateway.SetLogger(log)
	gateway.SetBaseContext(ctx)
	gateway.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins,
		[]string{"GET", "POST", "OPTIONS"}, []string{"Content-Type", "X-Log-Level"})

	var reader gateway.StatsReader
	if store != nil {
		reader = store
	}
	mux := gateway.NewMux(worker, events, reader)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Bool("llama", engine.Built()).Msg("gend listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		cancel()
		worker.Wait()
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	// The worker sees ctx cancellation and unloads before exiting.
	worker.Wait()
	log.Info().Msg("gend stopped")
	return nil
}
