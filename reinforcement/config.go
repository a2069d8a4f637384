package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gridpolicy/grid_world"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Defaults, per the classroom maze.
const (
	DefaultWidth    = 20
	DefaultHeight   = 10
	DefaultGamma    = 0.9
	DefaultInterval = 100 * time.Millisecond
)

// ErrInvalidConfig is returned by Validate and FromYaml for unusable configurations.
var ErrInvalidConfig = errors.New("invalid config")

type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig holds the problem definition and the planning parameters, e.g. the
// maze dimensions, gamma, initial reward overrides, and how the run loop is paced.
type TrainingConfig struct {
	World WorldConfig `yaml:"world"`
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `yaml:"hyperparams"`
	// Rewards are applied to the environment once, after construction.
	Rewards []RewardOverride `yaml:"rewards"`
	Run     RunConfig        `yaml:"run"`
	// TrainingDeadline is a fixed duration describing when to terminate headless runs.
	TrainingDeadline map[string]string `yaml:"trainingdeadline"`
}

type WorldConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

type RewardOverride struct {
	X   int     `yaml:"x"`
	Y   int     `yaml:"y"`
	Val float64 `yaml:"val"`
}

// RunConfig paces the periodic policy iteration loop.
type RunConfig struct {
	// Interval between iterations while running, e.g. "100ms".
	Interval string `yaml:"interval"`
	// MaxIterations stops the loop once reached; zero means unbounded.
	MaxIterations int `yaml:"maxiterations"`
	// Tolerance stops the loop once an evaluation sweep changes no value by more
	// than this amount; zero disables the check.
	Tolerance float64 `yaml:"tolerance"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *TrainingConfig {
	return &TrainingConfig{
		World: WorldConfig{Width: DefaultWidth, Height: DefaultHeight},
		HyperParams: []HyperParameter{
			{Key: "gamma", Val: DefaultGamma},
		},
		Run: RunConfig{Interval: DefaultInterval.String()},
	}
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

func (cfg *TrainingConfig) Gamma() float64 {
	return cfg.GetHyperParamOrDefault("gamma", DefaultGamma)
}

// Interval returns the run loop period, falling back to the default if unset.
func (cfg *TrainingConfig) Interval() (time.Duration, error) {
	if cfg.Run.Interval == "" {
		return DefaultInterval, nil
	}
	interval, err := time.ParseDuration(cfg.Run.Interval)
	if err != nil {
		return 0, fmt.Errorf("%w: run interval: %v", ErrInvalidConfig, err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("%w: run interval must be positive, got %s", ErrInvalidConfig, interval)
	}
	return interval, nil
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: training deadline: %v", ErrInvalidConfig, err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// Validate checks the config for values the engine cannot work with. The engine itself
// performs no validation, so this is the only gate between a file and a running agent.
func (cfg *TrainingConfig) Validate() error {
	if cfg.World.Width < 1 || cfg.World.Height < 1 {
		return fmt.Errorf("%w: world must be at least 1x1, got %dx%d",
			ErrInvalidConfig, cfg.World.Width, cfg.World.Height)
	}
	if gamma := cfg.Gamma(); gamma <= 0 || gamma > 1 {
		return fmt.Errorf("%w: gamma must be in (0,1], got %v", ErrInvalidConfig, gamma)
	}
	if _, err := cfg.Interval(); err != nil {
		return err
	}
	if cfg.Run.MaxIterations < 0 || cfg.Run.Tolerance < 0 {
		return fmt.Errorf("%w: maxIterations and tolerance must be non-negative", ErrInvalidConfig)
	}
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("%w: training deadline: %v", ErrInvalidConfig, err)
		}
	}
	for _, r := range cfg.Rewards {
		if r.X < 0 || r.X >= cfg.World.Width || r.Y < 0 || r.Y >= cfg.World.Height {
			return fmt.Errorf("%w: reward cell (%d,%d) is off the grid", ErrInvalidConfig, r.X, r.Y)
		}
	}
	return nil
}

// NewWorld builds the environment and applies the configured reward overrides.
func (cfg *TrainingConfig) NewWorld() *grid_world.GridWorld {
	gw := grid_world.NewGridWorld(cfg.World.Width, cfg.World.Height)
	for _, r := range cfg.Rewards {
		gw.SetReward(gw.PosToState(r.X, r.Y), r.Val)
	}
	return gw
}

// FromYaml reads a config file of the form {kind: ..., def: TrainingConfig}.
// Viper decodes the envelope; the def subtree is re-encoded as yaml to decode it into
// the typed config. Viper lowercases all keys, hence the lowercase yaml tags above.
// Fields absent from the file keep their defaults.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	var defBytes []byte
	if defBytes, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := DefaultConfig()
	if err = yaml.Unmarshal(defBytes, innerConfig); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err = innerConfig.Validate(); err != nil {
		return nil, err
	}
	return innerConfig, nil
}
