package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/tripdesk/travel-approval/internal/config"
	"github.com/tripdesk/travel-approval/internal/directory"
	httpapi "github.com/tripdesk/travel-approval/internal/interfaces/http"
	"github.com/tripdesk/travel-approval/internal/models"
	"github.com/tripdesk/travel-approval/internal/registry"
	"github.com/tripdesk/travel-approval/internal/repository"
	"github.com/tripdesk/travel-approval/internal/voucher"
	"github.com/tripdesk/travel-approval/internal/worker"
	"github.com/tripdesk/travel-approval/internal/workflow"
	"github.com/tripdesk/travel-approval/pkg/database"
	"github.com/tripdesk/travel-approval/pkg/utils"
)

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting travel approval workflow service",
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	stepRepo := repository.NewStepRepository(db, logger)
	instanceRepo := repository.NewInstanceRepository(db, logger)
	auditRepo := repository.NewAuditRepository(db, logger)

	// Step registry
	stepRegistry := registry.New(stepRepo, logger)

	// Collaborators. The static directory stands in for the employee
	// directory and notification services until real integrations land.
	staticDir := directory.NewStaticDirectory(logger)
	staticDir.SetRoleApprover(models.RoleTravelDesk, "travel-desk")
	staticDir.SetRoleApprover(models.RoleHR, "hr-desk")
	staticDir.SetRoleApprover(models.RoleFinance, "finance-desk")
	approvers := directory.NewCachingDirectory(staticDir, cfg.Workflow.DirectoryTTL, logger)

	// Voucher export
	var vouchers workflow.VoucherGenerator
	if cfg.Voucher.Enabled {
		vouchers = voucher.NewGenerator(voucher.Config{
			OutputDir:   cfg.Voucher.OutputDir,
			CompanyName: cfg.Voucher.CompanyName,
		}, logger)
	}

	// Execution coordinator
	engine := workflow.NewEngine(
		instanceRepo,
		auditRepo,
		stepRegistry,
		staticDir,
		approvers,
		staticDir,
		vouchers,
		workflow.EngineConfig{
			DefaultManagerID: cfg.Workflow.DefaultManagerID,
			SweepBatchSize:   cfg.Workflow.SweepBatchSize,
		},
		logger,
	)

	// Background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workers := worker.NewManager(logger)
	workers.Register(worker.NewTimeoutSweeper(engine, cfg.Workflow.SweepInterval, logger))
	if err := workers.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	// HTTP server
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, engine, stepRegistry, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
	}

	workers.StopAll()
	logger.Info("Shutdown complete")
}
