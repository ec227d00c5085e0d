package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

type Config struct {
	Store    StoreConfig
	Model    ModelConfig
	Server   ServerConfig
	Database DatabaseConfig
	Profiles ProfilesConfig
}

type StoreConfig struct {
	URL    string // identity store base URL
	Token  string // bearer token for every request
	Tenant string // tenant identifier sent as X-Tenant-ID
}

type ModelConfig struct {
	Path string // path to the ONNX embedding model
	Name string // profile name from models.yaml (default mobilefacenet)
}

type ServerConfig struct {
	Threshold float64 // minimum cosine similarity for recognized=true
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// ProfilesConfig maps model names to their fixed input/output shapes.
// The shapes are properties of the trained network, not tunables.
type ProfilesConfig struct {
	Models map[string]ModelProfile `yaml:"models"`
}

type ModelProfile struct {
	InputSide    int `yaml:"input_side"`
	EmbeddingDim int `yaml:"embedding_dim"`
}

const defaultModelName = "mobilefacenet"

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

// envFloat reads an environment variable and parses it as a float in (0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var profiles ProfilesConfig
	if err := yaml.Unmarshal(modelsYAML, &profiles); err != nil {
		// Embedded file, cannot fail in practice.
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}

	return &Config{
		Store: StoreConfig{
			URL:    os.Getenv("STORE_URL"),
			Token:  os.Getenv("STORE_TOKEN"),
			Tenant: os.Getenv("STORE_TENANT"),
		},
		Model: ModelConfig{
			Path: os.Getenv("MODEL_PATH"),
			Name: os.Getenv("MODEL_NAME"),
		},
		Server: ServerConfig{
			Threshold: envFloat("VERIFY_THRESHOLD", 0.60),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Profiles: profiles,
	}
}

// Profile resolves the active model profile. Unknown names fall back to the
// default profile so a typo degrades loudly at model load, not silently here.
func (c *Config) Profile() ModelProfile {
	name := c.Model.Name
	if name == "" {
		name = defaultModelName
	}
	if profile, ok := c.Profiles.Models[name]; ok {
		return profile
	}
	return c.Profiles.Models[defaultModelName]
}
