package quantizer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/samcharles93/anequant/internal/bundle"
	"github.com/samcharles93/anequant/internal/logger"
)

// Tier tags which configuration produced the result.
type Tier int

const (
	TierFull Tier = iota
	TierWeightOnly
)

func (t Tier) String() string {
	if t == TierFull {
		return "w8a8"
	}
	return "w8"
}

// Result is the outcome of one pipeline run.
type Result struct {
	Tier       Tier
	Model      *bundle.Model
	SourcePath string
	OutputPath string

	// Report is nil when size reporting was skipped.
	Report *SizeReport
}

// Pipeline runs the load → quantize → validate → save → report sequence.
// The quantize step is the only recoverable one: a full-tier failure is
// retried once with the weight-only configuration.
type Pipeline struct {
	Engine Engine
	Log    logger.Logger

	// Out receives the size comparison report. Defaults to stdout.
	Out io.Writer

	// WeightThreshold overrides the per-config minimum element count when non-zero.
	WeightThreshold uint64

	// WeightsOnly skips the full W8A8 tier entirely.
	WeightsOnly bool
}

// Run quantizes the model at srcPath and persists the result at outPath.
func (p *Pipeline) Run(ctx context.Context, srcPath, outPath string) (*Result, error) {
	log := p.Log
	if log == nil {
		log = logger.Default()
	}

	log.Info("loading model", "path", srcPath)
	src, err := p.Engine.Load(srcPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", srcPath, err)
	}
	log.Info("model loaded",
		"name", src.Name,
		"arch", src.Arch,
		"tensors", len(src.Tensors),
		"spec_version", src.SpecVersion,
	)

	quantized, tier, err := p.quantize(ctx, src, log)
	if err != nil {
		return nil, err
	}

	// Advisory sanity check: never gates success.
	if quantized.SpecVersion != src.SpecVersion {
		log.Warn("spec version changed during quantization",
			"original", src.SpecVersion,
			"quantized", quantized.SpecVersion,
		)
	} else {
		log.Debug("spec version unchanged", "spec_version", src.SpecVersion)
	}

	log.Info("saving quantized model", "path", outPath)
	if err := p.Engine.Save(quantized, outPath); err != nil {
		return nil, fmt.Errorf("save %s: %w", outPath, err)
	}

	res := &Result{
		Tier:       tier,
		Model:      quantized,
		SourcePath: srcPath,
		OutputPath: outPath,
	}

	if report := CompareSizes(srcPath, outPath); report != nil {
		res.Report = report
		out := p.Out
		if out == nil {
			out = os.Stdout
		}
		report.Write(out)
	}

	return res, nil
}

func (p *Pipeline) quantize(ctx context.Context, src *bundle.Model, log logger.Logger) (*bundle.Model, Tier, error) {
	full := FullConfig()
	fallback := FallbackConfig()
	if p.WeightThreshold != 0 {
		full.WeightThreshold = p.WeightThreshold
		fallback.WeightThreshold = p.WeightThreshold
	}

	if !p.WeightsOnly {
		log.Info("applying quantization",
			"scheme", full.Name(),
			"mode", string(full.Mode),
			"weight_bits", full.Bits,
			"activation_bits", full.Bits,
		)
		quantized, err := p.Engine.Quantize(ctx, src, full)
		if err == nil {
			log.Info("quantization complete", "scheme", full.Name())
			return quantized, TierFull, nil
		}
		log.Warn("full W8A8 not supported, falling back to weight-only quantization", "error", err)
	}

	log.Info("applying quantization",
		"scheme", fallback.Name(),
		"mode", string(fallback.Mode),
		"weight_bits", fallback.Bits,
	)
	quantized, err := p.Engine.Quantize(ctx, src, fallback)
	if err != nil {
		return nil, TierWeightOnly, fmt.Errorf("weight-only quantization: %w", err)
	}
	log.Info("quantization complete", "scheme", fallback.Name())
	return quantized, TierWeightOnly, nil
}
