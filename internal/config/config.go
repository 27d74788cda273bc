// Package config loads engine configuration from, in increasing precedence:
// built-in defaults, a YAML file, SRS_-prefixed environment variables, and
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/mynotes/srs/internal/sm2"
	"github.com/spf13/pflag"
)

var validate = validator.New()

// Config is the full engine configuration.
type Config struct {
	DBPath    string    `koanf:"db" validate:"required"`
	Deck      string    `koanf:"deck"`
	LogLevel  string    `koanf:"log_level" validate:"oneof=debug info warn error"`
	Scheduler Scheduler `koanf:"scheduler"`
}

// Scheduler holds the SM-2 constants. The defaults match the conventional
// algorithm; the ease floor may not be lowered below 1.3.
type Scheduler struct {
	EaseFloor     float64 `koanf:"ease_floor" validate:"gte=1.3"`
	InitialEase   float64 `koanf:"initial_ease" validate:"gte=1.3"`
	LapsePenalty  float64 `koanf:"lapse_penalty" validate:"gt=0"`
	LearningSteps []int   `koanf:"learning_steps" validate:"min=1,dive,gte=1"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := sm2.DefaultParams()
	return Config{
		DBPath:   "srs.db",
		LogLevel: "info",
		Scheduler: Scheduler{
			EaseFloor:     p.EaseFloor,
			InitialEase:   p.InitialEase,
			LapsePenalty:  p.LapsePenalty,
			LearningSteps: p.LadderDays,
		},
	}
}

func defaults() map[string]any {
	d := Default()
	return map[string]any{
		"db":                       d.DBPath,
		"deck":                     d.Deck,
		"log_level":                d.LogLevel,
		"scheduler.ease_floor":     d.Scheduler.EaseFloor,
		"scheduler.initial_ease":   d.Scheduler.InitialEase,
		"scheduler.lapse_penalty":  d.Scheduler.LapsePenalty,
		"scheduler.learning_steps": d.Scheduler.LearningSteps,
	}
}

// Load merges the config file (if present), environment, and flags over the
// defaults and validates the result. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	// Seed the defaults so later layers only override keys they actually
	// set; a flag that was registered but never passed must not clobber
	// them with its empty-string zero value.
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	// SRS_LOG_LEVEL=debug → log_level; double underscore nests:
	// SRS_SCHEDULER__EASE_FLOOR → scheduler.ease_floor.
	if err := k.Load(env.Provider("SRS_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "SRS_")), "__", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Params converts the scheduler section into sm2 parameters.
func (c Config) Params() *sm2.Params {
	return &sm2.Params{
		EaseFloor:    c.Scheduler.EaseFloor,
		InitialEase:  c.Scheduler.InitialEase,
		LapsePenalty: c.Scheduler.LapsePenalty,
		LadderDays:   c.Scheduler.LearningSteps,
	}
}
