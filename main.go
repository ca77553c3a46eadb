package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voxelview/logging"
	"voxelview/server"
)

// voxelview 世界服务器入口：HTTP + WebSocket，每个房间一个 Tick 协程
func main() {
	var cfgPath, addr string
	var console bool
	flag.StringVar(&cfgPath, "config", "", "path to server.yaml (defaults if empty)")
	flag.StringVar(&addr, "addr", "", "listen address, overrides the config, e.g. :4000")
	flag.BoolVar(&console, "console", true, "also log to stderr")
	flag.Parse()

	cfg, err := server.LoadConfig(cfgPath)
	if err != nil {
		panic(err)
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if err := logging.InitLogger(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel, Console: console}); err != nil {
		panic(err)
	}
	defer logging.SyncLogger()
	log := logging.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *server.Store
	if cfg.DBPath != "" {
		store, err = server.OpenStore(logging.Named("store"), cfg.DBPath)
		if err != nil {
			log.Fatalf("open store: %v", err)
		}
		defer store.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rooms, err := server.NewRoomManager(ctx, cfg, store, server.NewCollectors(reg), logging.Named("rooms"))
	if err != nil {
		log.Fatalf("rooms: %v", err)
	}
	// 先预创建默认房间
	_ = rooms.GetOrCreateRoom(cfg.DefaultRoom)

	admin := server.NewAdmin(rooms, logging.Named("admin"))
	mux := http.NewServeMux()
	mux.Handle("/ws", server.NewWSHandler(rooms, logging.Named("ws")))
	mux.HandleFunc("/admin/config", admin.HandleConfig)
	mux.HandleFunc("/admin/stats", admin.HandleStats)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Infof("voxelview listening on %s (generator=%s, chunks %v..%v)",
			cfg.Addr, cfg.World.Generator, cfg.World.MinChunk, cfg.World.MaxChunk)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("http shutdown", "err", err)
	}
	for _, r := range rooms.Rooms() {
		<-r.Done()
	}
}
