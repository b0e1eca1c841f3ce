package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manish-shre/KKMS/internal/asset"
	"github.com/manish-shre/KKMS/internal/config"
	"github.com/manish-shre/KKMS/internal/handler"
	"github.com/manish-shre/KKMS/internal/logger"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/resource"
	"github.com/manish-shre/KKMS/internal/service"
	"github.com/manish-shre/KKMS/internal/store"
	"github.com/manish-shre/KKMS/internal/toast"

	sdk "github.com/matrixorigin/moi-go-sdk"
)

func main() {
	configFile := flag.String("config", "", "config file path (e.g. etc/config-dev.yaml)")
	flag.Parse()

	cfg := config.Load(*configFile)
	logger.Init(cfg.Log)
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "err", err)
		os.Exit(1)
	}
	if cfg.DevSecret() {
		logger.Warn("auth.dev_secret", "msg", "tokens are signed with the public development secret")
	}

	db, err := cfg.OpenGormDB()
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		logger.Error("db migrate failed", "err", err)
		os.Exit(1)
	}

	var (
		feed    store.Feed
		revoked service.RevocationList
	)
	if rdb := cfg.NewRedisClient(); rdb != nil {
		defer rdb.Close()
		feed = store.NewRedisFeed(rdb, "kkms:")
		revoked = service.NewRedisRevocations(rdb)
		logger.Info("redis enabled", "addr", cfg.Redis.Addr)
	} else {
		feed = store.NewMemoryFeed()
		revoked = service.NewMemoryRevocations()
	}

	disk := asset.NewDisk(cfg.Storage.Root, cfg.Storage.PublicBaseURL, cfg.Storage.CacheControl)
	hub := toast.NewHub()
	toasts := toast.Multi{toast.Log{}, hub}

	notifications := store.NewTable[model.Notification](db, "notifications", feed,
		store.PartitionBy("user_id", func(n *model.Notification) string { return n.UserID }))
	members := resource.NewMembers(store.NewTable[model.Member](db, "members", feed), disk, toasts)
	events := resource.NewEvents(store.NewTable[model.Event](db, "events", feed), disk, toasts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := members.List(ctx); err != nil {
		logger.Warn("initial member load failed", "err", err)
	}
	if err := events.List(ctx); err != nil {
		logger.Warn("initial event load failed", "err", err)
	}

	mailboxes := resource.NewMailboxes(notifications)
	defer mailboxes.Close()

	auth := service.NewAuthService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, revoked)

	var catalog *service.CatalogSync
	raw, err := cfg.NewRawClient()
	if err != nil {
		logger.Warn("sdk client init failed, catalog sync disabled", "err", err)
	} else {
		catalog = service.NewCatalogSync(raw, service.CatalogTables{
			DatabaseID: sdk.DatabaseID(cfg.MOI.DatabaseID),
			Members:    sdk.TableID(cfg.MOI.MembersTableID),
			Events:     sdk.TableID(cfg.MOI.EventsTableID),
		})
		logger.Info("catalog sync enabled", "database", cfg.MOI.DatabaseID)
	}

	r := handler.NewRouter(handler.Deps{
		AllowOrigins: cfg.Server.AllowOrigins,
		Auth:         auth,
		Profiles:     service.NewProfileService(db, disk, auth, toasts),
		Messages:     service.NewMessageService(db, store.NewTable[model.Message](db, "messages", feed), notifications),
		Dashboard:    service.NewDashboardService(members, events),
		Catalog:      catalog,
		Members:      members,
		Events:       events,
		Mailboxes:    mailboxes,
		Toasts:       hub,
		Disk:         disk,
	})

	srv := &http.Server{Addr: cfg.Addr(), Handler: r}
	// open SSE streams end when their subscriptions close
	srv.RegisterOnShutdown(mailboxes.Close)
	srv.RegisterOnShutdown(hub.Close)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "err", err)
	}
}
