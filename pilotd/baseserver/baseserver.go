package baseserver

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/gamepilot/gamepilot/internals/assert"
	"github.com/gamepilot/gamepilot/internals/conf"
	"github.com/gamepilot/gamepilot/internals/env"
)

// BaseServer bundles the pieces every daemon component needs: parsed config,
// validated environment, and the shared logger.
type BaseServer struct {
	Config  *conf.Config
	Env     *env.EnvStruct
	Logger  *slog.Logger
	logFile *os.File
}

func New() *BaseServer {
	environment := env.Get()
	config := conf.GetConfig()
	logger, logFile := initLogger(config, environment)

	return &BaseServer{
		Config:  config,
		Env:     environment,
		Logger:  logger,
		logFile: logFile,
	}
}

// Close releases the log file handle. Call at daemon exit.
func (b *BaseServer) Close() {
	if b.logFile != nil {
		_ = b.logFile.Close()
	}
}

func initLogger(config *conf.Config, environment *env.EnvStruct) (*slog.Logger, *os.File) {
	logPath := filepath.Join(config.Server.DataDir, "log.txt")
	err := os.MkdirAll(filepath.Dir(logPath), 0o755)
	assert.AssertNil(err, "[PILOTD] Failed to initialize log directory")
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	assert.AssertNil(err, "[PILOTD] Failed to open log file")

	logWriter := io.MultiWriter(os.Stdout, logFile)
	handler := tint.NewHandler(logWriter, &tint.Options{
		Level:   logLevel(environment.LOG_LEVEL),
		NoColor: !isatty.IsTerminal(os.Stdout.Fd()),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, logFile
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
