package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed sweeps.yaml
var sweepsYAML []byte

type Config struct {
	Embedding EmbeddingConfig
	Data      DataConfig
	Training  TrainingConfig
	Database  DatabaseConfig
	Log       LogConfig
	Sweeps    SweepsConfig
}

type EmbeddingConfig struct {
	URL                string // defaults to http://localhost:8000
	Dim                int    // defaults to 512
	RequireAccelerator bool   // refuse to start on a CPU-only backend (default true)
}

type DataConfig struct {
	PairsPath  string  // CSV with file1,file2,label columns
	ImagesRoot string  // identifiers in the pair table are relative to this directory
	BlurRadius float64 // Gaussian blur radius for perturbed images (default 2)
}

type TrainingConfig struct {
	Seed                 uint64
	Epochs               int
	LearningRate         float64 // fixed policy
	AdaptiveLearningRate float64 // adaptive policy base rate
	PlateauPatience      int
	PlateauFactor        float64
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL, optional (runs are not recorded without it)
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type LogConfig struct {
	Level string // debug, info, warn, error
}

type SweepsConfig struct {
	Sweeps map[string]SweepPreset `yaml:"sweeps"`
}

// SweepPreset is one named experiment from sweeps.yaml.
type SweepPreset struct {
	Title        string    `yaml:"title"`
	Parameter    string    `yaml:"parameter"`
	Label        string    `yaml:"label"`
	Policy       string    `yaml:"policy"`
	TrainSize    int       `yaml:"train_size"`
	TestSize     int       `yaml:"test_size"`
	PerturbTrain bool      `yaml:"perturb_train"`
	PerturbTest  bool      `yaml:"perturb_test"`
	LogX         bool      `yaml:"log_x"`
	Values       []float64 `yaml:"values"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envNonNegativeInt is envInt that also accepts zero.
func envNonNegativeInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat is envInt for positive floats.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var sweeps SweepsConfig
	if err := yaml.Unmarshal(sweepsYAML, &sweeps); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded sweeps.yaml: " + err.Error())
	}

	seed := uint64(42)
	if s := os.Getenv("SEED"); s != "" {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			seed = n
		}
	}

	return &Config{
		Embedding: EmbeddingConfig{
			URL:                envString("EMBEDDING_URL", "http://localhost:8000"),
			Dim:                envInt("EMBEDDING_DIM", 512),
			RequireAccelerator: envBool("REQUIRE_ACCELERATOR", true),
		},
		Data: DataConfig{
			PairsPath:  os.Getenv("PAIRS_PATH"),
			ImagesRoot: envString("IMAGES_ROOT", "archive/images"),
			BlurRadius: envFloat("BLUR_RADIUS", 2),
		},
		Training: TrainingConfig{
			Seed:                 seed,
			Epochs:               envInt("EPOCHS", 100),
			LearningRate:         envFloat("LEARNING_RATE", 1e-4),
			AdaptiveLearningRate: envFloat("ADAPTIVE_LEARNING_RATE", 1e-3),
			PlateauPatience:      envNonNegativeInt("PLATEAU_PATIENCE", 5),
			PlateauFactor:        envFloat("PLATEAU_FACTOR", 0.5),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Log: LogConfig{
			Level: strings.ToLower(envString("LOG_LEVEL", "info")),
		},
		Sweeps: sweeps,
	}
}

// GetSweep returns the named sweep preset.
func (c *Config) GetSweep(name string) (SweepPreset, error) {
	if p, ok := c.Sweeps.Sweeps[name]; ok {
		return p, nil
	}
	return SweepPreset{}, fmt.Errorf("unknown sweep %q (available: %s)", name, strings.Join(c.SweepNames(), ", "))
}

// SweepNames returns the preset names in alphabetical order.
func (c *Config) SweepNames() []string {
	names := make([]string, 0, len(c.Sweeps.Sweeps))
	for name := range c.Sweeps.Sweeps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
