package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pathsense/go-pathsense/internal/config"
	"github.com/pathsense/go-pathsense/internal/log"
	"github.com/pathsense/go-pathsense/pkg/history"
	"github.com/pathsense/go-pathsense/pkg/navigation"
	"github.com/pathsense/go-pathsense/pkg/vision"
	"github.com/pathsense/go-pathsense/pkg/web"
)

func main() {
	addr := flag.String("addr", config.Addr(), "Listen address")
	staticDir := flag.String("static", "./web", "Static client directory (empty to disable)")
	dbPath := flag.String("db", config.DBPath(), "SQLite reading log path (empty to disable)")
	logLevel := flag.String("log-level", config.LogLevel(), "Log level (debug, info, warn, error)")
	autostart := flag.String("autostart", "", "Start navigation immediately (demo or camera)")
	flag.Parse()

	log.Init(*logLevel)

	fmt.Println("🦯 pathsense navigation server")
	fmt.Printf("   Listen: %s\n", *addr)
	fmt.Println()

	engineCfg := navigation.DefaultConfig()
	engineCfg.UpdateIntervalMS = config.IntEnv("PATHSENSE_UPDATE_INTERVAL_MS", engineCfg.UpdateIntervalMS)
	if errs := engineCfg.Validate(); errs != nil {
		log.Error("invalid engine configuration", "errors", errs)
		os.Exit(1)
	}

	engine := navigation.NewEngine(engineCfg)
	analyzer := vision.NewAnalyzer(vision.DefaultConfig())

	var store *history.Store
	if *dbPath != "" {
		var err error
		store, err = history.Open(*dbPath)
		if err != nil {
			log.Error("failed to open reading log", "path", *dbPath, "err", err)
			os.Exit(1)
		}
		defer store.Close()
		log.Info("reading log open", "path", *dbPath)
	} else {
		log.Warn("reading log disabled, history API unavailable")
	}

	server := web.New(web.Options{
		Addr:      *addr,
		StaticDir: *staticDir,
		Engine:    engine,
		Analyzer:  analyzer,
		Store:     store,
	})

	if *autostart != "" {
		mode := navigation.ParseMode(*autostart)
		engine.Start(mode)
		log.Info("navigation autostarted", "mode", mode)
	}

	// Shut down cleanly on Ctrl+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 Shutting down...")
		engine.Stop()
		if err := server.Shutdown(); err != nil {
			log.Error("shutdown failed", "err", err)
		}
	}()

	if err := server.Start(); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
