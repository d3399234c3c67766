package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

var ErrInvalid = errors.New("config: invalid configuration")

const DefaultFile = "harmonia.yaml"

// Config holds everything the composer, the CLI and the server read.
// Values come from defaults, then the YAML file, then the environment.
type Config struct {
	SectionSize    int           `yaml:"section_size"`
	MaxKeyChange   int           `yaml:"max_key_change_chords"`
	BassMin        int           `yaml:"bass_min"`
	BassMax        int           `yaml:"bass_max"`
	Voices         int           `yaml:"voices"`
	Beats          int           `yaml:"beats"`
	BeatUnit       int           `yaml:"beat_unit"`
	Tempo          float64       `yaml:"tempo"`
	Key            string        `yaml:"key"`
	Strategy       string        `yaml:"strategy"`
	Seed           int64         `yaml:"seed"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	Addr           string        `yaml:"addr"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	DynamoEndpoint string        `yaml:"dynamo_endpoint"`
	DynamoRegion   string        `yaml:"dynamo_region"`
	DynamoTable    string        `yaml:"dynamo_table"`
	SentryDSN      string        `yaml:"sentry_dsn"`
}

func Default() *Config {
	return &Config{
		SectionSize:  8,
		MaxKeyChange: 4,
		BassMin:      40,
		BassMax:      55,
		Voices:       4,
		Beats:        4,
		BeatUnit:     4,
		Tempo:        90,
		Key:          "C major",
		Strategy:     "chorale",
		PollInterval: 10 * time.Millisecond,
		Addr:         ":8080",
		IdleTimeout:  10 * time.Minute,
		DynamoRegion: "localhost",
		DynamoTable:  "harmonia-compositions",
	}
}

// Load reads path if it exists and applies environment overrides. An empty
// path means DefaultFile, which may be absent.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("could not read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	ints := map[string]*int{
		"HARMONIA_SECTION_SIZE":   &c.SectionSize,
		"HARMONIA_MAX_KEY_CHANGE": &c.MaxKeyChange,
		"HARMONIA_VOICES":         &c.Voices,
	}
	for name, dst := range ints {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q", ErrInvalid, name, v)
			}
			*dst = n
		}
	}
	if v := os.Getenv("HARMONIA_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: HARMONIA_SEED=%q", ErrInvalid, v)
		}
		c.Seed = n
	}
	c.Strategy = getEnv("HARMONIA_STRATEGY", c.Strategy)
	c.Key = getEnv("HARMONIA_KEY", c.Key)
	c.Addr = getEnv("HARMONIA_ADDR", c.Addr)
	c.DynamoEndpoint = getEnv("DYNAMO_ENDPOINT", c.DynamoEndpoint)
	c.DynamoTable = getEnv("DYNAMO_TABLE", c.DynamoTable)
	c.SentryDSN = getEnv("SENTRY_DSN", c.SentryDSN)
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) Validate() error {
	switch {
	case c.SectionSize < 2:
		return fmt.Errorf("%w: section size %d is below 2", ErrInvalid, c.SectionSize)
	case c.MaxKeyChange < 2 || c.MaxKeyChange > c.SectionSize:
		return fmt.Errorf("%w: key change budget %d must be between 2 and the section size", ErrInvalid, c.MaxKeyChange)
	case c.BassMax-c.BassMin < 11:
		return fmt.Errorf("%w: bass range %d-%d is narrower than an octave", ErrInvalid, c.BassMin, c.BassMax)
	case c.BassMin < 0 || c.BassMax > 127:
		return fmt.Errorf("%w: bass range %d-%d is outside MIDI", ErrInvalid, c.BassMin, c.BassMax)
	case c.Voices < 2:
		return fmt.Errorf("%w: %d voices", ErrInvalid, c.Voices)
	case c.Beats < 1:
		return fmt.Errorf("%w: %d beats per measure", ErrInvalid, c.Beats)
	case c.BeatUnit < 1 || c.BeatUnit&(c.BeatUnit-1) != 0:
		return fmt.Errorf("%w: beat unit %d is not a power of two", ErrInvalid, c.BeatUnit)
	case c.Tempo <= 0:
		return fmt.Errorf("%w: tempo %v", ErrInvalid, c.Tempo)
	case c.PollInterval < 0:
		return fmt.Errorf("%w: poll interval %v", ErrInvalid, c.PollInterval)
	case c.IdleTimeout < 0:
		return fmt.Errorf("%w: idle timeout %v", ErrInvalid, c.IdleTimeout)
	}
	return nil
}

// MeasureDuration is how long one measure lasts at the configured tempo,
// counting the tempo in beat units.
func (c *Config) MeasureDuration() time.Duration {
	return time.Duration(float64(c.Beats) * float64(time.Minute) / c.Tempo)
}
