package main

import (
	"fmt"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/db"
	"github.com/zulandar/signalbox/internal/delivery"
	"github.com/zulandar/signalbox/internal/directory"
	"github.com/zulandar/signalbox/internal/messaging"
	"github.com/zulandar/signalbox/internal/router"
	"github.com/zulandar/signalbox/internal/service"
	"github.com/zulandar/signalbox/internal/store"
	"github.com/zulandar/signalbox/internal/tmux"
	"gorm.io/gorm"
)

const defaultConfigPath = "signalbox.yaml"

// app is the wired service for one CLI invocation.
type app struct {
	cfg *config.Config
	db  *gorm.DB
	svc *service.Service
}

// openApp loads config (a missing file means defaults), opens and migrates
// storage and wires the service.
func openApp(configPath string) (*app, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	st := store.NewGorm(gormDB)
	dir := directory.New(st, directory.WithDefaultGroup(cfg.DefaultGroup))
	l := messaging.New(st)
	r := router.New(dir, l, delivery.New(cfg.Delivery))
	r.SetNotify(messaging.NotifyConfig{Command: cfg.Delivery.Notify})
	svc := service.New(dir, l, r, service.TmuxLocator(tmux.DefaultTmux))

	return &app{cfg: cfg, db: gormDB, svc: svc}, nil
}

// Close waits for background pane assignments, then closes storage.
func (a *app) Close() {
	a.svc.Wait()
	db.Close(a.db)
}
