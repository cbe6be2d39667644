package config

import (
	"encoding/json"
	"fmt"
	"os"
	"stockcluster/internal/domain"
	"stockcluster/internal/logger"
	"stockcluster/internal/util"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SourcePostgres = "postgres"
	SourceCsv      = "csv"

	ProjectorUmap = "umap"
	ProjectorPca  = "pca"
)

type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Umap     UmapConfig     `yaml:"umap"`
	Output   OutputConfig   `yaml:"output"`
	Api      ApiConfig      `yaml:"api"`
}

type SourceConfig struct {
	Kind         string `yaml:"kind"`
	PricesCsv    string `yaml:"pricesCsv"`
	CompaniesCsv string `yaml:"companiesCsv"`
}

type PipelineConfig struct {
	Since          string `yaml:"since"`
	MinCenters     int    `yaml:"minCenters"`
	MaxCenters     int    `yaml:"maxCenters"`
	Restarts       int    `yaml:"restarts"`
	MaxIterations  int    `yaml:"maxIterations"`
	Workers        int    `yaml:"workers"`
	ComposeCenters int    `yaml:"composeCenters"`
	Projector      string `yaml:"projector"`
	// 0 seeds from the clock
	Seed uint64 `yaml:"seed"`
}

type UmapConfig struct {
	NNeighbors         int     `yaml:"nNeighbors"`
	MinDist            float64 `yaml:"minDist"`
	Spread             float64 `yaml:"spread"`
	Epochs             int     `yaml:"epochs"`
	LearningRate       float64 `yaml:"learningRate"`
	NegativeSampleRate int     `yaml:"negativeSampleRate"`
}

type OutputConfig struct {
	Dir          string `yaml:"dir"`
	CacheReturns bool   `yaml:"cacheReturns"`
	Charts       bool   `yaml:"charts"`
	ChartFormat  string `yaml:"chartFormat"`
}

type ApiConfig struct {
	Port int `yaml:"port"`
}

func Default() Config {
	return Config{
		Source: SourceConfig{
			Kind:         SourceCsv,
			PricesCsv:    "data/prices.csv",
			CompaniesCsv: "data/companies.csv",
		},
		Pipeline: PipelineConfig{
			Since:          "2018-01-01",
			MinCenters:     1,
			MaxCenters:     30,
			Restarts:       20,
			MaxIterations:  100,
			Workers:        1,
			ComposeCenters: 10,
			Projector:      ProjectorUmap,
		},
		Umap: UmapConfig{
			NNeighbors:         15,
			MinDist:            0.1,
			Spread:             1.0,
			Epochs:             200,
			LearningRate:       1.0,
			NegativeSampleRate: 5,
		},
		Output: OutputConfig{
			Dir:         "out",
			Charts:      true,
			ChartFormat: "png",
		},
		Api: ApiConfig{
			Port: 3009,
		},
	}
}

// Load reads a yaml config on top of the defaults. fields missing from
// the file keep their default value
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}

	f, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not open config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(f, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.New().Debugw("loaded config", "path", path)
	return &cfg, nil
}

func (c Config) SinceDate() (time.Time, error) {
	return util.ParseDate(c.Pipeline.Since)
}

func (c Config) Validate() error {
	if c.Source.Kind != SourcePostgres && c.Source.Kind != SourceCsv {
		return domain.ConfigurationError{Parameter: "source.kind", Value: c.Source.Kind, Reason: "must be postgres or csv"}
	}
	if _, err := c.SinceDate(); err != nil {
		return domain.ConfigurationError{Parameter: "pipeline.since", Value: c.Pipeline.Since, Reason: err.Error()}
	}
	p := c.Pipeline
	if p.MinCenters < 1 {
		return domain.ConfigurationError{Parameter: "pipeline.minCenters", Value: p.MinCenters, Reason: "must be at least 1"}
	}
	if p.MaxCenters < p.MinCenters {
		return domain.ConfigurationError{Parameter: "pipeline.maxCenters", Value: p.MaxCenters, Reason: "must not be below minCenters"}
	}
	if p.ComposeCenters < p.MinCenters || p.ComposeCenters > p.MaxCenters {
		return domain.ConfigurationError{Parameter: "pipeline.composeCenters", Value: p.ComposeCenters, Reason: "must be inside the swept range"}
	}
	if p.Restarts < 1 {
		return domain.ConfigurationError{Parameter: "pipeline.restarts", Value: p.Restarts, Reason: "must be at least 1"}
	}
	if p.Projector != ProjectorUmap && p.Projector != ProjectorPca {
		return domain.ConfigurationError{Parameter: "pipeline.projector", Value: p.Projector, Reason: "must be umap or pca"}
	}
	if c.Output.ChartFormat != "png" && c.Output.ChartFormat != "svg" {
		return domain.ConfigurationError{Parameter: "output.chartFormat", Value: c.Output.ChartFormat, Reason: "must be png or svg"}
	}
	return nil
}

type Secrets struct {
	Db DbSecrets `json:"db"`
}

type DbSecrets struct {
	Host      string `json:"host"`
	User      string `json:"user"`
	Port      string `json:"port"`
	Password  string `json:"password"`
	Database  string `json:"database"`
	EnableSsl bool   `json:"enableSsl"`
}

func (t DbSecrets) ToConnectionStr() string {
	x := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s",
		t.Host, t.Port, t.User, t.Password, t.Database)
	if !t.EnableSsl {
		x += " sslmode=disable"
	}
	return x
}

func secretsFile() string {
	switch os.Getenv(logger.EnvVar) {
	case "dev":
		return "secrets-dev.json"
	case "test":
		return "secrets-test.json"
	}
	return "secrets.json"
}

// LoadSecrets reads db credentials. the file is picked by CLUSTER_ENV
func LoadSecrets() (*Secrets, error) {
	path := secretsFile()
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}

	secrets := Secrets{}
	err = json.Unmarshal(f, &secrets)
	if err != nil {
		return nil, err
	}

	return &secrets, nil
}
