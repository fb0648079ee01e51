// Loggers log events. A minimal Logger interface with a registry of named
// creators keeps the sink itself pluggable; the default creator is backed
// by zap for structured, leveled logging and lumberjack for file rotation.
package engine

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the sink every component logs through.
type Logger interface {
	Debugf(f string, v ...any)
	Infof(f string, v ...any)
	Warnf(f string, v ...any)
	Errorf(f string, v ...any)
	Close()
}

var (
	loggersLock    sync.RWMutex
	loggerCreators = make(map[string]func(cfg *LogConfig) Logger)
)

// LogConfig is the configuration a Logger creator receives.
type LogConfig struct {
	Target  string // file path, "" means stderr
	Rotate  string // "day", "size", ...
	MaxSize int    // megabytes, for size-based rotation
	MaxAge  int    // days
	Fields  []string
}

func RegisterLogger(sign string, create func(cfg *LogConfig) Logger) {
	loggersLock.Lock()
	defer loggersLock.Unlock()
	if _, ok := loggerCreators[sign]; ok {
		BugExitln("logger sign conflicted: " + sign)
	}
	loggerCreators[sign] = create
}

func CreateLogger(sign string, cfg *LogConfig) Logger {
	loggersLock.Lock()
	defer loggersLock.Unlock()
	if create := loggerCreators[sign]; create != nil {
		return create(cfg)
	}
	return nil
}

func init() {
	RegisterLogger("zap", newZapLogger)
	RegisterLogger("noop", func(cfg *LogConfig) Logger { return noopLogger{} })
}

// zapLogger is the default Logger: structured, leveled, optionally
// rotated through lumberjack when Target is a file path.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

func newZapLogger(cfg *LogConfig) Logger {
	var ws zapcore.WriteSyncer
	if cfg != nil && cfg.Target != "" {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename: cfg.Target,
			MaxSize:  maxOr(cfg.MaxSize, 100),
			MaxAge:   maxOr(cfg.MaxAge, 28),
			Compress: true,
		})
	} else {
		ws = zapcore.AddSync(os.Stderr)
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), ws, zap.DebugLevel)
	logger := zap.New(core)
	return &zapLogger{sugar: logger.Sugar()}
}

func maxOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func (l *zapLogger) Debugf(f string, v ...any) { l.sugar.Debugf(f, v...) }
func (l *zapLogger) Infof(f string, v ...any)  { l.sugar.Infof(f, v...) }
func (l *zapLogger) Warnf(f string, v ...any)  { l.sugar.Warnf(f, v...) }
func (l *zapLogger) Errorf(f string, v ...any) { l.sugar.Errorf(f, v...) }
func (l *zapLogger) Close()                    { _ = l.sugar.Sync() }

type noopLogger struct{}

func (noopLogger) Debugf(f string, v ...any) {}
func (noopLogger) Infof(f string, v ...any)  {}
func (noopLogger) Warnf(f string, v ...any)  {}
func (noopLogger) Errorf(f string, v ...any) {}
func (noopLogger) Close()                    {}
