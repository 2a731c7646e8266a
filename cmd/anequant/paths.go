package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	envModelsDir     = "ANEQUANT_MODELS_DIR"
	defaultModelName = "all-MiniLM-L6-v2"
	defaultModelsDir = "models"

	quantizedSuffix = "-w8a8.mbc"
)

// osStat is a small seam for tests.
var osStat = os.Stat

// resolveModelsDir picks the models directory: the flag wins, then the
// config file, then the environment, then ./models.
func resolveModelsDir(flagValue string, cfg Config, flagSet bool) string {
	if flagSet && strings.TrimSpace(flagValue) != "" {
		return filepath.Clean(flagValue)
	}
	if cfg.ModelsDir != "" {
		return filepath.Clean(cfg.ModelsDir)
	}
	if env := strings.TrimSpace(os.Getenv(envModelsDir)); env != "" {
		return filepath.Clean(env)
	}
	return defaultModelsDir
}

// modelCandidates returns the paths tried for a model name, in priority
// order: the compiled bundle, the raw model directory, then a bare
// safetensors file.
func modelCandidates(modelsDir, name string) []string {
	return []string{
		filepath.Join(modelsDir, name+".mbc"),
		filepath.Join(modelsDir, name),
		filepath.Join(modelsDir, "model.safetensors"),
	}
}

// locateModel resolves a model name to a source path. Candidates are
// probed in order and the first that exists wins; later candidates are
// never touched. When nothing exists the error names the primary
// candidate and lists what the models directory actually contains.
func locateModel(modelsDir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("model name is empty")
	}

	candidates := modelCandidates(modelsDir, name)
	for _, candidate := range candidates {
		if _, err := osStat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("model %q not found at %s%s", name, candidates[0], listDirHint(modelsDir))
}

// listDirHint summarizes the models directory for a not-found error.
func listDirHint(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Sprintf("; models directory %s is not readable: %v", dir, err)
	}
	if len(ents) == 0 {
		return fmt.Sprintf("; models directory %s is empty", dir)
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() {
			name += string(filepath.Separator)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("; models directory %s contains: %s", dir, strings.Join(names, ", "))
}

// resolveOutputPath defaults the output bundle to <models-dir>/<name>-w8a8.mbc.
func resolveOutputPath(outFlag, modelsDir, name string) string {
	if strings.TrimSpace(outFlag) != "" {
		return filepath.Clean(outFlag)
	}
	return filepath.Join(modelsDir, name+quantizedSuffix)
}
