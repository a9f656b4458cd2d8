// Command phrasexbuild builds a phrasex index directory from a YAML
// config file plus one or more glob patterns of newline-delimited phrase
// corpus files.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"github.com/geocoder-oss/phrasex"
)

// config is the YAML-loadable build configuration; command-line flags
// override fields present in the file, matching how multi-flag build
// tools in this corpus layer file config under flags.
type config struct {
	MaxEditDistance int      `yaml:"max_edit_distance"`
	OutDir          string   `yaml:"out_dir"`
	Corpus          []string `yaml:"corpus"` // doublestar glob patterns
	LogFile         string   `yaml:"log_file"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "phrasexbuild:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("phrasexbuild", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML build config")
	outDir := fs.String("out", "", "output directory (overrides config out_dir)")
	maxD := fs.Int("max-edit-distance", -1, "build-time max edit distance (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *outDir != "" {
		cfg.OutDir = *outDir
	}
	if *maxD >= 0 {
		cfg.MaxEditDistance = *maxD
	}
	if cfg.OutDir == "" {
		return fmt.Errorf("no output directory configured")
	}

	log := newLogger(cfg.LogFile)
	defer log.Sync()

	files, err := expandCorpus(cfg.Corpus)
	if err != nil {
		return err
	}
	log.Info("resolved corpus files", zap.Int("count", len(files)))

	b := phrasex.NewBuilder(cfg.MaxEditDistance)
	total := 0
	for _, path := range files {
		n, err := insertFile(b, path)
		if err != nil {
			log.Warn("error inserting phrases from file", zap.String("path", path), zap.Error(err))
		}
		total += n
	}
	log.Info("phrases inserted", zap.Int("count", total))

	start := time.Now()
	idx, err := b.Finalize(cfg.OutDir)
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	defer idx.Close()
	log.Info("build finalized",
		zap.String("dir", cfg.OutDir),
		zap.Int("word_count", idx.Metadata().WordCount),
		zap.Int("phrase_count", idx.Metadata().PhraseCount),
		zap.String("build_id", idx.Metadata().BuildID),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func loadConfig(path string) (config, error) {
	var cfg config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// expandCorpus resolves every glob pattern against the working directory,
// deduplicating matches across overlapping patterns.
func expandCorpus(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, pat := range patterns {
		matches, err := doublestar.FilepathGlob(pat)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pat, err)
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out, nil
}

func insertFile(b *phrasex.Builder, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	if err := b.InsertPhrasesFromLines(lines); err != nil {
		return len(lines), err
	}
	return len(lines), nil
}

func newLogger(logFile string) *zap.Logger {
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	var ws zapcore.WriteSyncer
	if logFile == "" {
		ws = zapcore.AddSync(os.Stderr)
	} else {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		})
	}
	core := zapcore.NewCore(enc, ws, zap.InfoLevel)
	return zap.New(core)
}
