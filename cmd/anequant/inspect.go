package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/anequant/internal/bundle"
	"github.com/samcharles93/anequant/pkg/mbf"
)

func inspectCmd() *cli.Command {
	var (
		modelArg     string
		showAll      bool
		showSections bool
		showTensors  bool
		showQuant    bool
		showManifest bool
		tensorLimit  int
		tensorFilter string
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the contents of a compiled model bundle",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "path to an .mbc bundle or .mbf container",
				Destination: &modelArg,
				Required:    true,
			},
			&cli.BoolFlag{Name: "all", Usage: "show everything", Destination: &showAll},
			&cli.BoolFlag{Name: "sections", Usage: "show section directory", Destination: &showSections},
			&cli.BoolFlag{Name: "tensors", Usage: "list tensor index", Destination: &showTensors},
			&cli.BoolFlag{Name: "quant", Usage: "show quantization records", Destination: &showQuant},
			&cli.BoolFlag{Name: "manifest", Usage: "print the bundle manifest", Destination: &showManifest},
			&cli.IntFlag{Name: "tensors-limit", Usage: "limit tensor listing (0 = no limit)", Value: 50, Destination: &tensorLimit},
			&cli.StringFlag{Name: "tensor-filter", Usage: "substring filter for tensor listing", Destination: &tensorFilter},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx

			containerPath := modelArg
			st, err := os.Stat(modelArg)
			if err != nil {
				return err
			}
			if st.IsDir() {
				containerPath = filepath.Join(modelArg, bundle.ContainerFile)
				if showAll || showManifest {
					if err := printManifest(modelArg); err != nil {
						return err
					}
				}
			}

			f, err := mbf.Open(containerPath)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			printHeader(containerPath, f)

			if showAll || showSections {
				printSections(f)
			}
			if showAll || showTensors {
				if err := printTensors(f, tensorLimit, tensorFilter); err != nil {
					return err
				}
			}
			if showAll || showQuant {
				if err := printQuant(f); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func printManifest(dir string) error {
	m, err := bundle.ReadManifest(dir)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	fmt.Printf("manifest: name=%s uuid=%s spec_version=%d created=%s\n",
		m.Name, m.UUID, m.SpecVersion, m.CreatedAt.Format("2006-01-02 15:04:05"))
	if m.Quant != nil {
		fmt.Printf("quant: mode=%s weight_bits=%d activation_bits=%d tensors=%d\n",
			m.Quant.Mode, m.Quant.WeightBits, m.Quant.ActivationBits, m.Quant.TensorCount)
	}
	return nil
}

func printHeader(path string, f *mbf.File) {
	h := f.Header
	fmt.Printf("%s: mbf v%d.%d, %d sections, %d bytes, flags=0x%x\n",
		path, h.Major, h.Minor, h.SectionCount, h.FileSize, h.Flags)
}

func printSections(f *mbf.File) {
	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.Header("Type", "Version", "Offset", "Size")
	for _, s := range f.Sections {
		tbl.Append([]string{
			sectionTypeName(mbf.SectionType(s.Type)),
			strconv.FormatUint(uint64(s.Version), 10),
			strconv.FormatUint(s.Offset, 10),
			strconv.FormatUint(s.Size, 10),
		})
	}
	tbl.Render()
}

func printTensors(f *mbf.File, limit int, filter string) error {
	sec := f.Section(mbf.SectionTensorIndex)
	if sec == nil {
		fmt.Println("no tensor index section")
		return nil
	}
	ti, err := mbf.ParseTensorIndexSection(f.SectionData(sec))
	if err != nil {
		return err
	}

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.Header("Name", "DType", "Shape", "Bytes")
	shown := 0
	for i := 0; i < ti.Count(); i++ {
		name, err := ti.Name(i)
		if err != nil {
			return err
		}
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		if limit > 0 && shown >= limit {
			fmt.Printf("... (%d more tensors, use --tensors-limit 0 to show all)\n", ti.Count()-i)
			break
		}
		ent, err := ti.Entry(i)
		if err != nil {
			return err
		}
		shape, err := ti.Shape(i)
		if err != nil {
			return err
		}
		tbl.Append([]string{
			name,
			ent.DType.String(),
			formatShape(shape),
			strconv.FormatUint(ent.DataSize, 10),
		})
		shown++
	}
	tbl.Render()
	return nil
}

func printQuant(f *mbf.File) error {
	sec := f.Section(mbf.SectionQuantInfo)
	if sec == nil {
		fmt.Println("no quantization section (model is unquantized)")
		return nil
	}
	qi, err := mbf.ParseQuantInfoSection(f.SectionData(sec))
	if err != nil {
		return err
	}

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.Header("Tensor", "Domain", "Method", "Min Clip", "Max Clip", "Scale")
	for _, r := range qi.Records() {
		tbl.Append([]string{
			strconv.FormatUint(uint64(r.TensorIndex), 10),
			domainName(r.Domain),
			methodName(r.Method),
			fmt.Sprintf("%g", r.MinClip),
			fmt.Sprintf("%g", r.MaxClip),
			fmt.Sprintf("%g", r.Scale()),
		})
	}
	tbl.Render()
	return nil
}

func sectionTypeName(t mbf.SectionType) string {
	switch t {
	case mbf.SectionModelInfo:
		return "modelinfo"
	case mbf.SectionQuantInfo:
		return "quantinfo"
	case mbf.SectionTensorIndex:
		return "tensorindex"
	case mbf.SectionTensorData:
		return "tensordata"
	default:
		return fmt.Sprintf("0x%04x", uint32(t))
	}
}

func domainName(d mbf.QuantDomain) string {
	switch d {
	case mbf.DomainWeights:
		return "weights"
	case mbf.DomainActivations:
		return "activations"
	default:
		return strconv.Itoa(int(d))
	}
}

func methodName(m mbf.QuantMethod) string {
	if m == mbf.MethodLinearInt8 {
		return "linear-int8"
	}
	return strconv.Itoa(int(m))
}

func formatShape(shape []uint64) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.FormatUint(d, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
