package quantizer

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/samcharles93/anequant/internal/bundle"
)

// SizeReport compares the on-disk footprint of two directory bundles.
type SizeReport struct {
	OriginalBytes  int64
	QuantizedBytes int64
}

// Reduction returns the size reduction as a percentage of the original.
// A 100MB original quantized to 26MB yields 74.0.
func (r *SizeReport) Reduction() float64 {
	if r.OriginalBytes == 0 {
		return 0
	}
	return (1 - float64(r.QuantizedBytes)/float64(r.OriginalBytes)) * 100
}

// CompareSizes builds a size report for srcPath and outPath. Reporting only
// applies when both paths are directory bundles; otherwise it returns nil
// and the caller reports nothing.
func CompareSizes(srcPath, outPath string) *SizeReport {
	if !bundle.IsDir(srcPath) || !bundle.IsDir(outPath) {
		return nil
	}
	origBytes, err := bundle.DirSize(srcPath)
	if err != nil {
		return nil
	}
	quantBytes, err := bundle.DirSize(outPath)
	if err != nil {
		return nil
	}
	return &SizeReport{OriginalBytes: origBytes, QuantizedBytes: quantBytes}
}

// Write renders the report as a table.
func (r *SizeReport) Write(w io.Writer) {
	tbl := tablewriter.NewWriter(w)
	tbl.Header("Model", "Size (MB)")
	tbl.Append([]string{"Original", fmt.Sprintf("%.2f", megabytes(r.OriginalBytes))})
	tbl.Append([]string{"Quantized", fmt.Sprintf("%.2f", megabytes(r.QuantizedBytes))})
	tbl.Append([]string{"Reduction", fmt.Sprintf("%.1f%%", r.Reduction())})
	tbl.Render()
}

func megabytes(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
