package main

import "github.com/urfave/cli/v3"

var (
	modelName       string
	modelsPath      string
	outputPath      string
	weightThreshold uint64
	weightsOnly     bool
	logLevel        string
	logFormat       string
	debug           bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model-name",
			Aliases:     []string{"m"},
			Usage:       "name of the model to quantize",
			Value:       defaultModelName,
			Destination: &modelName,
		},
		&cli.StringFlag{
			Name:        "models-path",
			Aliases:     []string{"path"},
			Usage:       "directory containing model bundles",
			Destination: &modelsPath,
		},
	}
}

func quantizeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "output bundle path (default: <models-path>/<model-name>-w8a8.mbc)",
			Destination: &outputPath,
		},
		&cli.Uint64Flag{
			Name:        "weight-threshold",
			Usage:       "minimum element count for a tensor to be quantized",
			Destination: &weightThreshold,
		},
		&cli.BoolFlag{
			Name:        "weights-only",
			Usage:       "skip activation quantization, quantize weights only",
			Destination: &weightsOnly,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
