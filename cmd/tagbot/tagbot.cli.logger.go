package main

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/itsatony/go-tagbot"
)

// newLogger builds the process logger from the log section. With a file set,
// output goes to a size-rotated file instead of w. The returned func flushes
// and closes the sink.
func newLogger(settings tagbot.LogSettings, w io.Writer) (*zap.Logger, func(), error) {
	level, err := zap.ParseAtomicLevel(settings.Level)
	if err != nil {
		return nil, nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if settings.Format == tagbot.LogFormatConsole {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	sink := zapcore.AddSync(w)
	closeSink := func() {}
	if settings.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   settings.File,
			MaxSize:    settings.MaxSizeMB,
			MaxBackups: settings.MaxBackups,
			MaxAge:     settings.MaxAgeDays,
			Compress:   true,
		}
		sink = zapcore.AddSync(rotator)
		closeSink = func() { _ = rotator.Close() }
	}

	logger := zap.New(zapcore.NewCore(encoder, sink, level), zap.AddCaller())
	return logger, func() {
		_ = logger.Sync()
		closeSink()
	}, nil
}
