package utils

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrNoMatchingFile = errors.New("no matching file")

type Config struct {
	DataDir     string
	OutputDir   string
	PlotDir     string
	PatientFile string
	MatrixFile  string
	Glob20      string
	GlobMin80   string
	GeneMap     string
	Comparisons []string

	TopN            int
	RankCap         int
	MinPairs        int
	MinLoci         int
	Aggregate       string
	Permutations    int
	Seed            uint64
	FillMissingZero bool
	Threads         int
}

func DefaultConfig() Config {
	return Config{
		DataDir:   "data",
		OutputDir: "output",
		PlotDir:   "plots",
		TopN:      10,
		RankCap:   21,
		MinPairs:  2,
		MinLoci:   2,
		Aggregate: "sum",
		Seed:      1,
		Threads:   4,
	}
}

func ReadConfig(configPath string) (Config, error) {
	configFile, err := os.Open(configPath)
	if err != nil {
		return Config{}, err
	}
	defer configFile.Close()
	cfg := DefaultConfig()

	scanner := bufio.NewScanner(configFile)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		var convErr error
		switch key {
		case "DataDir":
			cfg.DataDir = value
		case "OutputDir":
			cfg.OutputDir = value
		case "PlotDir":
			cfg.PlotDir = value
		case "PatientFile":
			cfg.PatientFile = value
		case "MatrixFile":
			cfg.MatrixFile = value
		case "Glob20":
			cfg.Glob20 = value
		case "GlobMin80":
			cfg.GlobMin80 = value
		case "GeneMap":
			cfg.GeneMap = value
		case "Comparison":
			cfg.Comparisons = append(cfg.Comparisons, value)
		case "TopN":
			cfg.TopN, convErr = strconv.Atoi(value)
		case "RankCap":
			cfg.RankCap, convErr = strconv.Atoi(value)
		case "MinPairs":
			cfg.MinPairs, convErr = strconv.Atoi(value)
		case "MinLoci":
			cfg.MinLoci, convErr = strconv.Atoi(value)
		case "Aggregate":
			cfg.Aggregate = strings.ToLower(value)
		case "Permutations":
			cfg.Permutations, convErr = strconv.Atoi(value)
		case "Seed":
			cfg.Seed, convErr = strconv.ParseUint(value, 10, 64)
		case "FillMissingZero":
			cfg.FillMissingZero, convErr = strconv.ParseBool(value)
		case "Threads":
			cfg.Threads, convErr = strconv.Atoi(value)
		}
		if convErr != nil {
			return cfg, fmt.Errorf("config %s line %d: bad value for %s: %w", configPath, lineNo, key, convErr)
		}
	}

	if err := scanner.Err(); err != nil {
		return cfg, err
	}

	return cfg, nil

}

// FindFiles lists files in dir whose name contains keyword (case-insensitive)
// and ends with one of exts. Office lock files are skipped.
func FindFiles(dir, keyword string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	keyword = strings.ToLower(keyword)
	var found []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "~$") {
			continue
		}
		lower := strings.ToLower(name)
		if !strings.Contains(lower, keyword) {
			continue
		}
		if len(exts) > 0 && !hasExt(lower, exts) {
			continue
		}
		found = append(found, filepath.Join(dir, name))
	}
	sort.Strings(found)
	return found, nil
}

func FindFile(dir, keyword string, exts ...string) (string, error) {
	files, err := FindFiles(dir, keyword, exts...)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w: no file containing '%s' found in directory '%s'", ErrNoMatchingFile, keyword, dir)
	}
	return files[0], nil
}

// ResolveFile returns path if set, otherwise discovers a file by keyword.
func ResolveFile(path, dir, keyword string, exts ...string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return path, nil
	}
	return FindFile(dir, keyword, exts...)
}

func hasExt(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func EnsureDir(outputDir string) error {
	outInfo, outErr := os.Stat(outputDir)
	if outErr != nil {
		if os.IsNotExist(outErr) {
			fmt.Printf("Output directory: %s does not exist. Attempting to create it.\n", outputDir)
			if createErr := os.MkdirAll(outputDir, 0755); createErr != nil {
				return fmt.Errorf("failed to create output directory %s: %w", outputDir, createErr)
			}
			return nil
		}
		return fmt.Errorf("error accessing output directory %s: %w", outputDir, outErr)
	} else if !outInfo.IsDir() {
		return fmt.Errorf("output directory %s file path is not a directory", outputDir)
	}
	return nil
}

func CreateResultsDir(outputDir, name string) (string, error) {
	baseDir := filepath.Join(outputDir, name)
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return "", fmt.Errorf("error creating results directory: %w", err)
	}

	now := time.Now()
	resultsDir := filepath.Join(baseDir, fmt.Sprintf("%02d_%02d_%04d_%02d_%02d_%02d", now.Day(), now.Month(), now.Year(), now.Hour(), now.Minute(), now.Second()))

	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return "", fmt.Errorf("error creating results directory: %w", err)
	}
	fmt.Printf("Created results directory at %s ..\n\n", resultsDir)

	return resultsDir, nil
}

// BaseName strips directory and every extension (a.csv.gz -> a).
func BaseName(path string) string {
	base := filepath.Base(path)
	for {
		ext := filepath.Ext(base)
		if ext == "" || ext == base {
			return base
		}
		base = strings.TrimSuffix(base, ext)
	}
}
