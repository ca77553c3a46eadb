package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"voxelview/client"
	"voxelview/logging"
)

// viewer 无界面客户端入口：加入房间、运行帧循环，并从 stdin 读取输入指令（见 client.ParseCommand）
func main() {
	var (
		cfgPath  = flag.String("config", "", "path to viewer.yaml (defaults if empty)")
		endpoint = flag.String("endpoint", "", "server endpoint, overrides the config")
		room     = flag.String("room", "", "room to join, overrides the config")
		name     = flag.String("name", "", "display name, overrides the config")
		metrics  = flag.String("metrics", "", "serve Prometheus metrics on this address, e.g. :9100")
		console  = flag.Bool("console", true, "also log to stderr")
	)
	flag.Parse()

	cfg, err := client.LoadConfig(*cfgPath)
	if err != nil {
		panic(err)
	}
	for dst, src := range map[*string]string{&cfg.Endpoint: *endpoint, &cfg.Room: *room, &cfg.Name: *name, &cfg.MetricsAddr: *metrics} {
		if src != "" {
			*dst = src
		}
	}
	if cfg.PeerID == "" {
		cfg.PeerID = uuid.NewString()
	}
	if err := logging.InitLogger(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel, Console: *console}); err != nil {
		panic(err)
	}
	defer logging.SyncLogger()
	log := logging.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var loopMetrics *client.LoopMetrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		loopMetrics = client.NewLoopMetrics(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warnw("metrics listener", "err", err)
			}
		}()
		defer srv.Close()
	}

	sink := &inputSwitch{}
	go func() {
		err := client.RunScript(ctx, os.Stdin, sink, func(line int, err error) {
			log.Warnw("bad command", "line", line, "err", err)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warnw("stdin", "err", err)
		}
	}()

	backoff := 500 * time.Millisecond
	const maxBackoff = 10 * time.Second
	for ctx.Err() == nil {
		joined, err := session(ctx, log, cfg, loopMetrics, sink)
		if ctx.Err() != nil {
			break
		}
		if joined {
			backoff = 500 * time.Millisecond
		}
		log.Warnw("session ended, reconnecting", "err", err, "in", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
		}
		backoff = min(backoff*2, maxBackoff)
	}
	log.Info("viewer stopped")
}

// session 运行一次连接：新建 transport 与 App，启动帧循环并连接、加入房间
// 连接失败或 ctx 结束时返回
func session(ctx context.Context, log *zap.SugaredLogger, cfg client.Config, m *client.LoopMetrics, sink *inputSwitch) (joined bool, err error) {
	network := client.NewNetwork(logging.Named("net"), client.NetworkOptions{PeerID: cfg.PeerID, Name: cfg.Name}, m)
	defer network.Close()
	app := client.NewApp(logging.Named("app"), cfg, client.Deps{Transport: network, Metrics: m})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sink.cur.Store(app.Inputs)
	defer sink.cur.Store(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		app.Run(runCtx)
	}()
	defer func() { cancel(); <-done }()

	errs := app.Start(runCtx)
	for {
		select {
		case err := <-errs:
			if err != nil {
				return joined, err
			}
			joined = true
			log.Infow("joined", "endpoint", cfg.Endpoint, "room", cfg.Room, "peer", cfg.PeerID)
		case <-ctx.Done():
			return joined, ctx.Err()
		}
	}
}

// inputSwitch 把脚本事件转发给当前会话的输入
type inputSwitch struct {
	cur atomic.Pointer[client.Inputs]
}

func (s *inputSwitch) Push(e client.Event) {
	if in := s.cur.Load(); in != nil {
		in.Push(e)
	}
}
