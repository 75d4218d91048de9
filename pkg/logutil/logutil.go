// Copyright 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logutil wires the process wide zap logger.  Libraries log
// through the package level helpers; binaries call SetupLogger once
// from their config.
package logutil

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/prophile/poolalloc/pkg/common/poolerr"
)

// LogConfig is the logging section of a config file.
type LogConfig struct {
	// Level is the minimum enabled level, debug/info/warn/error.
	Level string `toml:"level"`
	// Format is the encoder, console or json.
	Format string `toml:"format"`
	// Filename routes output to a rotated file instead of stderr.
	Filename string `toml:"filename"`
	// MaxSize is the size in MB to rotate at.
	MaxSize int `toml:"max-size"`
	// MaxDays is how long rotated files are kept.
	MaxDays int `toml:"max-days"`
	// MaxBackups is how many rotated files are kept.
	MaxBackups int `toml:"max-backups"`
}

type ZapSink struct {
	enc zapcore.Encoder
	out zapcore.WriteSyncer
}

var globalLogger atomic.Value

// GetGlobalLogger returns the process logger, setting up a console
// info logger on first use if SetupLogger was never called.
func GetGlobalLogger() *zap.Logger {
	if l, ok := globalLogger.Load().(*zap.Logger); ok && l != nil {
		return l
	}
	SetupLogger(&LogConfig{Level: "info", Format: "console"})
	return globalLogger.Load().(*zap.Logger)
}

// SetupLogger initializes the global logger from cfg.  A bad level or
// format is a startup failure and panics.
func SetupLogger(cfg *LogConfig) {
	level := cfg.getLevel()
	var cores []zapcore.Core
	for _, sink := range cfg.getSinks() {
		cores = append(cores, zapcore.NewCore(sink.enc, sink.out, level))
	}
	logger := zap.New(zapcore.NewTee(cores...), cfg.getOptions()...)
	globalLogger.Store(logger)
}

func (cfg *LogConfig) getLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		panic(poolerr.NewBadConfig("unknown log level: %s", cfg.Level))
	}
	return level
}

func (cfg *LogConfig) getOptions() []zap.Option {
	return []zap.Option{zap.AddStacktrace(zapcore.FatalLevel), zap.AddCaller()}
}

func (cfg *LogConfig) getSinks() []ZapSink {
	return []ZapSink{{cfg.getEncoder(), cfg.getSyncer()}}
}

func (cfg *LogConfig) getEncoder() zapcore.Encoder {
	return getLoggerEncoder(cfg.Format)
}

func (cfg *LogConfig) getSyncer() zapcore.WriteSyncer {
	if cfg.Filename != "" {
		return getFileSyncer(cfg.Filename, cfg.MaxSize, cfg.MaxDays, cfg.MaxBackups)
	}
	return getConsoleSyncer()
}

func getConsoleSyncer() zapcore.WriteSyncer {
	return zapcore.Lock(os.Stderr)
}

func getFileSyncer(filename string, maxSize, maxDays, maxBackups int) zapcore.WriteSyncer {
	if stat, err := os.Stat(filename); err == nil && stat.IsDir() {
		panic("log file can't be a directory")
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSize,
		MaxAge:     maxDays,
		MaxBackups: maxBackups,
		LocalTime:  true,
	})
}

func getLoggerEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "name",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000 -0700"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	switch format {
	case "json", "":
		return zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		return zapcore.NewConsoleEncoder(encoderConfig)
	default:
		panic(poolerr.NewInternalError("unsupported log format: %s", format))
	}
}
