package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const ModeProduction = "production"

// Setup builds the process logger and installs it as the zap global. When
// file is set, JSON lines are also written to a rotating file.
func Setup(mode string, file string) (*zap.Logger, error) {
	var zapConfig zap.Config
	if mode == ModeProduction {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	var logger *zap.Logger
	if file != "" {
		rotating := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
		}

		stdoutEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		if mode == ModeProduction {
			stdoutEncoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(rotating),
				zapConfig.Level,
			),
			zapcore.NewCore(stdoutEncoder, zapcore.AddSync(os.Stdout), zapConfig.Level),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			return nil, err
		}
	}

	zap.ReplaceGlobals(logger)
	return logger, nil
}
