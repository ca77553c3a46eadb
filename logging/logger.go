package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 全局 SugaredLogger，InitLogger 之前丢弃所有输出
var Log = zap.NewNop().Sugar()

// Options 日志输出配置
type Options struct {
	File    string // 滚动日志文件，如 "app.log"；为空则不写文件
	Level   string // debug, info, warn, error
	Console bool   // 同时输出到 stderr
}

// InitLogger 初始化 zap 日志到本地文件（lumberjack 滚动）
func InitLogger(opts Options) error {
	level := zapcore.DebugLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			return err
		}
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
		EncodeName:    zapcore.FullNameEncoder,
	}
	encoder := zapcore.NewConsoleEncoder(encCfg)

	var cores []zapcore.Core
	if opts.File != "" {
		// 文件滚动策略：10MB 每文件，保留3个备份，7 天
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(lj), level))
	}
	if opts.Console || len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	Log = logger.Sugar()
	return nil
}

// Named 返回 Log 的子 logger，如 Named("net")
func Named(name string) *zap.SugaredLogger {
	return Log.Named(name)
}

// SyncLogger 清理和同步缓冲
func SyncLogger() {
	if Log != nil {
		_ = Log.Sync()
	}
}
