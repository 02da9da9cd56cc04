package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"apiflow/config"
	"apiflow/engine"
	"apiflow/httpcaller"
	"apiflow/rpc"
	"apiflow/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the RPC façade's HTTP listener",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	workflows, apis, runs, tenants, closeStore, err := buildStores(cfg)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer closeStore()

	evaluator := &engine.ExpressionEvaluator{}
	caller := httpcaller.New(httpcaller.NewResponseCache())
	stepRunner := engine.NewStepRunner(evaluator, caller, cfg.LoopParallelism)
	executor := engine.NewExecutor(evaluator, stepRunner)

	facade := rpc.NewFacade(executor, workflows, apis, runs, tenants)
	server := rpc.NewServer(cfg.ListenAddr, facade)

	if err := server.Start(); err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	slog.Info("apiflow serving", "addr", cfg.ListenAddr, "store", cfg.StoreBackend)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("apiflow shutting down")
	return server.Stop(context.Background())
}

func buildStores(cfg *config.Config) (
	store.EntityStore[engine.Workflow],
	store.EntityStore[engine.ApiConfig],
	store.RunResults,
	*store.Tenants[engine.TenantInfo],
	func(),
	error,
) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := store.OpenPostgres(store.PostgresConfig{ConnectionString: cfg.PostgresDSN, MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetimeMs: 300000})
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		workflows, err := store.NewPostgres[engine.Workflow](db, "workflows")
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		apis, err := store.NewPostgres[engine.ApiConfig](db, "api_configs")
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		runs, err := store.NewPostgresRunResults(db)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		tenantBackend, err := store.NewPostgres[engine.TenantInfo](db, "tenants")
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		closeFn := func() { closeDB(db) }
		return workflows, apis, runs, store.NewTenants(tenantBackend), closeFn, nil

	case config.BackendFile:
		workflows, err := store.NewFile[engine.Workflow](cfg.StoreDir + "/workflows.json")
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		apis, err := store.NewFile[engine.ApiConfig](cfg.StoreDir + "/api_configs.json")
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		runsBackend, err := store.NewFile[engine.RunResult](cfg.StoreDir + "/run_results.json")
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		tenantBackend, err := store.NewFile[engine.TenantInfo](cfg.StoreDir + "/tenants.json")
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		return workflows, apis, store.NewFileRunResults(runsBackend), store.NewTenants(tenantBackend), func() {}, nil

	default:
		workflows := store.NewMemory[engine.Workflow]()
		apis := store.NewMemory[engine.ApiConfig]()
		runs := store.NewMemoryRunResults()
		tenantBackend := store.NewMemory[engine.TenantInfo]()
		return workflows, apis, runs, store.NewTenants(tenantBackend), func() {}, nil
	}
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Error("failed to close database handle", "error", err.Error())
	}
}
