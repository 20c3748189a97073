package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/urfu-lab/studyhub/apps/mlservice/config"
	mlhttp "github.com/urfu-lab/studyhub/apps/mlservice/http"
	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/auth"
	"github.com/urfu-lab/studyhub/core/chat"
	"github.com/urfu-lab/studyhub/core/features"
	cachesvc "github.com/urfu-lab/studyhub/services/cache"
	"github.com/urfu-lab/studyhub/services/coreapi"
	llmsvc "github.com/urfu-lab/studyhub/services/llm"
	logsvc "github.com/urfu-lab/studyhub/services/logger"
	gormrepos "github.com/urfu-lab/studyhub/storage/database/gorm"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load when present")
	flag.Parse()

	conf, err := config.Load(*envFile)
	must(err)

	level := zerolog.InfoLevel
	if conf.Debug {
		level = zerolog.DebugLevel
	}
	zl, logFile, err := logsvc.NewZerolog(logsvc.FileConfig{
		Dir:         conf.LoggerConfig.Dir,
		FileName:    "ml_service.log",
		MaxFileSize: conf.MaxFileSize,
	}, level)
	must(err)
	defer func() {
		if err := logFile.Close(); err != nil {
			log.Printf("closing log file: %v", err)
		}
	}()
	logger := logsvc.NewZerologLogger(zl)
	defer logger.Info("ML service stopped")

	run(conf, logger, zl)
}

func run(conf *config.Config, logger core.Logger, zl zerolog.Logger) {
	ctx := context.Background()
	logger.Info(fmt.Sprintf("ML service initializing : llm provider %q", conf.Provider))

	// =========================================================================
	// Storage

	db, err := gormrepos.Open(conf.DSN(), conf.Debug)
	if err != nil {
		logger.Error("connecting to the database", err)
		return
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer func() {
			if err := sqlDB.Close(); err != nil {
				logger.Error("Failed to close", err)
			}
		}()
	}
	if err = gormrepos.Migrate(db); err != nil {
		logger.Error("migrating the database", err)
		return
	}

	var userCache chat.UserCache
	if conf.RedisAddr != "" {
		rdb, err := cachesvc.Connect(ctx, conf.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, user cache disabled", err)
		} else {
			defer rdb.Close()
			userCache = cachesvc.NewRedisUserCache(rdb, conf.UserCacheTTL, logger)
		}
	}

	// =========================================================================
	// LLM

	var completer chat.Completer
	switch conf.Provider {
	case config.ProviderGemini:
		gemini, err := llmsvc.NewGeminiClient(ctx, conf.GeminiAPIKey, conf.GeminiModel, conf.MaxNewTokens, conf.Timeout)
		if err != nil {
			logger.Error("creating the gemini client", err)
			return
		}
		defer closeQuietly(gemini)
		completer = gemini
	default:
		completer = llmsvc.NewHFClient(llmsvc.HFBaseURL, conf.HFAPIKey, conf.HFModel, conf.MaxNewTokens, conf.Timeout)
	}
	completer = llmsvc.NewThrottled(completer, conf.LLMRate, conf.LLMBurst)

	// =========================================================================
	// Start API Service

	coreClient := coreapi.NewClient(conf.ServerURL, conf.CoreCacheTTL)
	server := mlhttp.NewServer(&mlhttp.Options{
		Address:     conf.Address,
		Debug:       conf.Debug,
		CORSOrigins: conf.CORSOrigins,
		UserRate:    conf.UserRate,
		UserBurst:   conf.UserBurst,
		Logger:      logger,
		AccessLog:   zl,
		Tokens:      auth.NewManager(conf.SecretKey, 0, ""),
		ChatSvc:     chat.NewService(gormrepos.NewChatRepository(db), completer, userCache, conf.HistoryExchanges),
		AuthProxy:   coreClient,
		Collector:   features.NewCollector(coreClient),
	})

	signal.Notify(server.ShutdownSignal(), syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info(fmt.Sprintf("listening on %s", conf.Address))
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		ctx, cancel := context.WithTimeout(ctx, conf.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
