package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	SupportedSchema = "v1"
	EnvPrefix       = "BATCHSCORE__"
)

type Paths struct {
	Dataset   string `koanf:"dataset"`
	ModelsDir string `koanf:"models_dir"`
	Output    string `koanf:"output"`
}

// Artifacts are file names inside Paths.ModelsDir.
type Artifacts struct {
	Prepro          string   `koanf:"prepro"`
	Meta            string   `koanf:"meta"`
	Normalizer      string   `koanf:"normalizer"`
	ModelCandidates []string `koanf:"model_candidates"` // first existing wins
}

type Model struct {
	// EnforceNClasses turns a n_classes / output width disagreement into a
	// fatal error instead of a warning.
	EnforceNClasses bool `koanf:"enforce_n_classes"`
}

type Log struct {
	Level string `koanf:"level"` // empty keeps BATCHSCORE_LOG_LEVEL
	JSON  bool   `koanf:"json"`
}

type Metrics struct {
	Port     int    `koanf:"port"`     // 0 = no HTTP listener
	Textfile string `koanf:"textfile"` // node-exporter .prom file, written after the run
}

type Stdout struct {
	PrintCounter bool `koanf:"print_counter"`
}

type Config struct {
	SchemaVersion string    `koanf:"schema_version"`
	Paths         Paths     `koanf:"paths"`
	Artifacts     Artifacts `koanf:"artifacts"`
	Model         Model     `koanf:"model"`
	Log           Log       `koanf:"log"`
	Metrics       Metrics   `koanf:"metrics"`
	Sinks         []string  `koanf:"sinks"`
	Stdout        Stdout    `koanf:"stdout"`
}

// Options controls where Load looks. Zero value reads no YAML file and
// ".env" from the working directory.
type Options struct {
	File    string
	EnvFile string
	// FileRequired makes a missing File an error, as when it is named on
	// the command line.
	FileRequired bool
}

// ---------------------------------------------------------------------------
// Loader
// ---------------------------------------------------------------------------

// Load merges, lowest precedence first: built-in defaults, the YAML file
// (if present), BATCHSCORE__ keys from the .env file, then process env
// (prefix `BATCHSCORE__`, delimiter `__`).
func Load(opts Options) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, err
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil &&
			(opts.FileRequired || !errors.Is(err, fs.ErrNotExist)) {
			return Config{}, fmt.Errorf("config %s: %w", opts.File, err)
		}
	}
	sv := k.String("schema_version")
	if sv != SupportedSchema {
		return Config{}, fmt.Errorf("config schema_version %q not supported (want %q)", sv, SupportedSchema)
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("env file %s: %w", envFile, err)
	}
	if err := k.Load(confmap.Provider(envKeys(dotenv), "__"), nil); err != nil {
		return Config{}, err
	}

	if err := k.Load(env.Provider(EnvPrefix, "__", envKey), nil); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, cfg.Validate()
}

// BATCHSCORE__PATHS__OUTPUT -> paths__output; koanf splits on "__".
func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

func envKeys(vars map[string]string) map[string]any {
	out := map[string]any{}
	for k, v := range vars {
		if !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		out[envKey(k)] = v
	}
	return out
}

// ---------------------------------------------------------------------------
// defaults
// ---------------------------------------------------------------------------

func defaults() map[string]any {
	return map[string]any{
		"schema_version":             SupportedSchema,
		"paths.dataset":              "data/quiz.csv",
		"paths.models_dir":           "models",
		"paths.output":               "answers.txt",
		"artifacts.prepro":           "prepro.json",
		"artifacts.meta":             "meta.json",
		"artifacts.normalizer":       "normalizer.npz",
		"artifacts.model_candidates": []string{"mlp_best.json", "mlp_final.json"},
		"sinks":                      []string{"file"},
	}
}

// Default is the configuration used when nothing overrides it.
func Default() Config {
	var c Config
	applyDefaults(&c)
	return c
}

func applyDefaults(c *Config) {
	if c.SchemaVersion == "" {
		c.SchemaVersion = SupportedSchema
	}
	if c.Paths.Dataset == "" {
		c.Paths.Dataset = "data/quiz.csv"
	}
	if c.Paths.ModelsDir == "" {
		c.Paths.ModelsDir = "models"
	}
	if c.Paths.Output == "" {
		c.Paths.Output = "answers.txt"
	}
	if c.Artifacts.Prepro == "" {
		c.Artifacts.Prepro = "prepro.json"
	}
	if c.Artifacts.Meta == "" {
		c.Artifacts.Meta = "meta.json"
	}
	if c.Artifacts.Normalizer == "" {
		c.Artifacts.Normalizer = "normalizer.npz"
	}
	if len(c.Artifacts.ModelCandidates) == 0 {
		c.Artifacts.ModelCandidates = []string{"mlp_best.json", "mlp_final.json"}
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []string{"file"}
	}
}

func (c Config) Validate() error {
	for _, cand := range c.Artifacts.ModelCandidates {
		if strings.TrimSpace(cand) == "" {
			return errors.New("config: artifacts.model_candidates has an empty entry")
		}
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("config: metrics.port %d out of range", c.Metrics.Port)
	}
	seen := map[string]bool{}
	for _, s := range c.Sinks {
		if seen[s] {
			return fmt.Errorf("config: sink %q listed twice", s)
		}
		seen[s] = true
	}
	return nil
}
