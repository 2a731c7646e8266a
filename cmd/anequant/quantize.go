package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/anequant/internal/logger"
	"github.com/samcharles93/anequant/internal/quantizer"
)

func quantizeCmd() *cli.Command {
	flags := commonModelFlags()
	flags = append(flags, quantizeFlags()...)
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:  "quantize",
		Usage: "Quantize a model to W8A8, falling back to weight-only if needed",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			applyQuantizeConfig(cmd, cfg)

			log := newLogger()
			ctx = logger.WithContext(ctx, log)

			modelsDir := resolveModelsDir(modelsPath, cfg, cmd.IsSet("models-path"))
			srcPath, err := locateModel(modelsDir, modelName)
			if err != nil {
				return err
			}
			outPath := resolveOutputPath(outputPath, modelsDir, modelName)

			pipeline := &quantizer.Pipeline{
				Engine:          quantizer.NewLinearEngine(),
				Log:             log,
				Out:             os.Stdout,
				WeightThreshold: weightThreshold,
				WeightsOnly:     weightsOnly,
			}

			res, err := pipeline.Run(ctx, srcPath, outPath)
			if err != nil {
				return err
			}
			log.Info("done",
				"scheme", res.Tier.String(),
				"output", res.OutputPath,
			)
			return nil
		},
	}
}

func newLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	switch logFormat {
	case "json":
		return logger.JSON(os.Stderr, level)
	case "text":
		return logger.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	default:
		return logger.Pretty(os.Stderr, level)
	}
}
