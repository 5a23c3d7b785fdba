package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"go-table-identity/internal/core/auth"
	"go-table-identity/internal/core/config"
	"go-table-identity/internal/core/logger"
	"go-table-identity/internal/core/server"
	"go-table-identity/internal/core/tablestorage"
	"go-table-identity/internal/domain"
	"go-table-identity/internal/repo"
	"go-table-identity/internal/service"
	"go-table-identity/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, cleanup := logger.New(logger.Options{
		Level: cfg.Log.Level,
		JSON:  cfg.Log.JSON,
		File:  logger.FileRotate(cfg.Log.File),
	})
	defer cleanup()
	defer logger.RedirectStdLog(log)()

	table := mustOpenTable(cfg, log)
	users := repo.NewUserStore(table,
		repo.WithPartitionKey(cfg.Storage.PartitionKey),
		repo.WithRoleMatch(repo.RoleMatch(cfg.Storage.RoleMatch)),
		repo.WithLogger(log),
	)
	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}
	svc := service.NewUserService(users, repo.NewRoleStore(), domain.LowerInvariantNormalizer{}, jwter, log)

	r := router.NewAPIEngine(log, svc, jwter)

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(addr, r,
		server.Seconds(cfg.App.HTTP.ReadTimeoutSec),
		server.Seconds(cfg.App.HTTP.WriteTimeoutSec),
		server.Seconds(cfg.App.HTTP.IdleTimeoutSec),
	)

	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("identity api starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
		zap.String("table", table.Name()),
		zap.String("partition", users.PartitionKey()),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("identity api start FAILED", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("identity api stopped gracefully")
}

func mustOpenTable(cfg *config.Config, l *zap.Logger) tablestorage.Table {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	t, err := tablestorage.Open(ctx, tablestorage.Opts{
		Driver:           cfg.Storage.Driver,
		ConnectionString: cfg.Storage.ConnectionString,
		TableName:        cfg.Storage.TableName,
		CreateTable:      cfg.Storage.CreateTable,
		Logger:           l,
	})
	if err != nil {
		l.Fatal("table open", zap.Error(err))
	}
	return t
}
