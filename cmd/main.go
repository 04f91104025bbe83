package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"carbon-nft-system/internal/blockchain"
	"carbon-nft-system/internal/config"
	"carbon-nft-system/internal/core"
	"carbon-nft-system/internal/handler"
	"carbon-nft-system/internal/models"
	"carbon-nft-system/internal/repository"
	"carbon-nft-system/internal/scheduler"
	"carbon-nft-system/internal/service"
	"carbon-nft-system/pkg/logger"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	// 市场参数在启动时构建并校验，配置非法直接拒绝启动
	params, err := buildParams(&cfg.Marketplace)
	if err != nil {
		logger.Fatal("Invalid marketplace config:", err)
	}

	db, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer closeDatabase(db)

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	listingRepo := repository.NewListingRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	eventRepo := repository.NewEventRepository(db)
	blockRepo := repository.NewBlockRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	enabledChains := cfg.GetEnabledChains()
	chainIDs := make([]string, 0, len(enabledChains))
	for _, chain := range enabledChains {
		chainIDs = append(chainIDs, chain.ID)
	}

	states := service.NewStates(chainIDs, cfg.Uploads.WeeklyLimit, graderPolicy(cfg.Graders.Addresses), params)

	registrySvc := service.NewRegistryService(states, userRepo, tokenRepo)
	exchangeSvc := service.NewExchangeService(states, listingRepo, saleRepo, tokenRepo)
	statsSvc := service.NewStatsService(states, saleRepo, snapshotRepo)
	processor := service.NewEventProcessor(registrySvc, exchangeSvc, eventRepo, blockRepo)
	replaySvc := service.NewReplayService(states, eventRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 先重放事件日志重建内存状态，再接入新事件
	for _, chainID := range chainIDs {
		if err := replaySvc.Rebuild(ctx, chainID); err != nil {
			logger.Fatal("Failed to rebuild state from event log:", err)
		}
	}

	for _, chainCfg := range enabledChains {
		go startChainListener(ctx, chainCfg, processor, blockRepo)
	}

	var snapshotScheduler *scheduler.SnapshotScheduler
	if cfg.Snapshot.Enabled {
		snapshotScheduler = scheduler.NewSnapshotScheduler(statsSvc, cfg.Chains, cfg.Snapshot.CronExpr)
		if err := snapshotScheduler.Start(); err != nil {
			logger.Fatal("Failed to start scheduler:", err)
		}
		defer snapshotScheduler.Stop()
	}

	router := setupHTTPRouter(registrySvc, exchangeSvc, statsSvc)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting on port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error:", err)
	}

	logger.Info("Server stopped")
}

// buildParams 把配置里的市场参数转换成核心参数对象
func buildParams(cfg *config.MarketplaceConfig) (*core.Params, error) {
	multipliers := make(map[core.Grade]int64, len(cfg.GradeMultipliers))
	for name, bps := range cfg.GradeMultipliers {
		// viper会把YAML的map键转成小写
		grade, err := core.ParseGrade(strings.ToUpper(name))
		if err != nil {
			return nil, err
		}
		multipliers[grade] = bps
	}
	return core.NewParams(cfg.FeeBasisPoints, cfg.RoyaltyBasisPoints, cfg.RoyaltyBeneficiary, multipliers)
}

// graderPolicy 评级权限：配置的地址白名单
func graderPolicy(addresses []string) core.GraderPolicy {
	graders := make(map[string]bool, len(addresses))
	for _, addr := range addresses {
		graders[common.HexToAddress(addr).Hex()] = true
	}
	return func(caller, owner string) bool {
		return graders[caller]
	}
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Token{},
		&models.Listing{},
		&models.Sale{},
		&models.ContractEvent{},
		&models.ProcessedBlock{},
		&models.MarketSnapshot{},
	); err != nil {
		return nil, err
	}

	return db, nil
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database instance:", err)
		return
	}
	sqlDB.Close()
}

func startChainListener(ctx context.Context, chainCfg config.ChainConfig, processor *service.EventProcessor, blockRepo *repository.BlockRepository) {
	client, err := blockchain.NewClient(&chainCfg)
	if err != nil {
		logger.Error("Failed to create blockchain client:", err)
		return
	}
	defer client.Close()

	lastProcessedBlock, err := blockRepo.GetLastProcessed(ctx, chainCfg.ID)
	if err != nil {
		logger.Error("Failed to get last processed block:", err)
		return
	}

	startBlock := lastProcessedBlock
	if startBlock == 0 && chainCfg.StartBlock > 0 {
		startBlock = chainCfg.StartBlock
	}

	logger.WithFields(map[string]interface{}{
		"chain_id":             chainCfg.ID,
		"start_block":          startBlock,
		"last_processed_block": lastProcessedBlock,
	}).Info("启动链监听器")

	listener := blockchain.NewEventListener(&chainCfg, client, blockRepo)
	defer listener.Stop()
	go listener.Start(ctx, startBlock)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-listener.GetEventChannel():
			timestamp, err := client.GetBlockTimestamp(ctx, event.BlockNum)
			if err != nil {
				logger.Error("Failed to get block timestamp:", err)
				continue
			}

			if err := processor.Process(ctx, chainCfg.ID, event, timestamp); err != nil {
				logger.Error("Failed to process event:", err)
			}
		}
	}
}

func setupHTTPRouter(registrySvc *service.RegistryService, exchangeSvc *service.ExchangeService, statsSvc *service.StatsService) http.Handler {
	router := http.NewServeMux()

	tokenHandler := handler.NewTokenHandler(registrySvc)
	userHandler := handler.NewUserHandler(registrySvc)
	listingHandler := handler.NewListingHandler(exchangeSvc)
	saleHandler := handler.NewSaleHandler(exchangeSvc)
	statsHandler := handler.NewStatsHandler(statsSvc)

	router.HandleFunc("/api/tokens/", tokenHandler.GetToken)
	router.HandleFunc("/api/users/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/uploads") {
			userHandler.GetUploadQuota(w, r)
			return
		}
		userHandler.GetUserTokens(w, r)
	})
	router.HandleFunc("/api/listings", listingHandler.ListActive)
	router.HandleFunc("/api/listings/", listingHandler.GetQuote)
	router.HandleFunc("/api/sales", saleHandler.ListSales)
	router.HandleFunc("/api/stats", statsHandler.GetStats)
	router.HandleFunc("/api/snapshots", statsHandler.ListSnapshots)
	router.HandleFunc("/health", handler.HandleHealth)

	return router
}
