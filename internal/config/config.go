// Package config loads the wayfarer daemon configuration from defaults,
// an optional YAML file and WAYFARER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fieldrover/wayfarer/internal/logging"
	"github.com/fieldrover/wayfarer/internal/sequencer"
)

// Config holds the full daemon configuration.
type Config struct {
	// LogLevel is a zerolog level string ("trace" through "error").
	LogLevel string `mapstructure:"log_level"`

	// LogFormat is one of "auto", "console" or "json".
	LogFormat string `mapstructure:"log_format"`

	// Plan is the path to the mission plan document.
	Plan string `mapstructure:"plan"`

	// Database is the SQLite file recording events and waypoint attempts.
	// An empty path disables persistence.
	Database string `mapstructure:"database"`

	// FrameID stamps published waypoints when the plan does not name a
	// coordinate frame of its own.
	FrameID string `mapstructure:"frame_id"`

	// EventBuffer is the capacity of the in-memory event ring served
	// over HTTP.
	EventBuffer int `mapstructure:"event_buffer"`

	Listen      Listen            `mapstructure:"listen"`
	Sequencer   Tuning            `mapstructure:"sequencer"`
	Exploration ExplorationTuning `mapstructure:"exploration"`
}

// Listen groups the daemon's bind addresses.
type Listen struct {
	// Pose is the UDP address pose feedback arrives on.
	Pose string `mapstructure:"pose"`

	// Publish is the TCP address waypoint subscribers connect to.
	Publish string `mapstructure:"publish"`

	// HTTP serves status, events and metrics.
	HTTP string `mapstructure:"http"`
}

// Tuning is the waypoint-advancement policy for standard missions.
type Tuning struct {
	Tick               time.Duration `mapstructure:"tick"`
	WaypointBudget     time.Duration `mapstructure:"waypoint_budget"`
	MissionAbortBudget time.Duration `mapstructure:"mission_abort_budget"`
	DistanceTolerance  float64       `mapstructure:"distance_tolerance_m"`
	AngleTolerance     float64       `mapstructure:"angle_tolerance_rad"`
	HalfwayClearance   float64       `mapstructure:"halfway_clearance_m"`
	CountdownLogEvery  time.Duration `mapstructure:"countdown_log_every"`
}

// ExplorationTuning overrides parts of the standard tuning for
// exploration missions. Zero fields inherit the standard values.
type ExplorationTuning struct {
	WaypointBudget    time.Duration `mapstructure:"waypoint_budget"`
	DistanceTolerance float64       `mapstructure:"distance_tolerance_m"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", logging.FormatAuto)
	v.SetDefault("plan", "")
	v.SetDefault("database", "wayfarer.db")
	v.SetDefault("frame_id", "")
	v.SetDefault("event_buffer", 256)

	v.SetDefault("listen.pose", ":9801")
	v.SetDefault("listen.publish", ":9802")
	v.SetDefault("listen.http", ":9803")

	v.SetDefault("sequencer.tick", time.Second)
	v.SetDefault("sequencer.waypoint_budget", 60*time.Second)
	v.SetDefault("sequencer.mission_abort_budget", 80*time.Second)
	v.SetDefault("sequencer.distance_tolerance_m", 0.3)
	v.SetDefault("sequencer.angle_tolerance_rad", 0.7)
	v.SetDefault("sequencer.halfway_clearance_m", 0.4)
	v.SetDefault("sequencer.countdown_log_every", 5*time.Second)

	v.SetDefault("exploration.waypoint_budget", 40*time.Second)
	v.SetDefault("exploration.distance_tolerance_m", 0.6)
}

// Default returns the built-in configuration without consulting files
// or the environment.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are static and always decode.
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load resolves the configuration. When path is empty it searches for a
// wayfarer.yaml in the working directory and the user config directory,
// and a missing file is not an error. Environment variables take
// precedence over the file; nested keys use underscores, so listen.pose
// becomes WAYFARER_LISTEN_POSE.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WAYFARER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("wayfarer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "wayfarer"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports values the daemon cannot run with.
func (c Config) Validate() error {
	switch c.LogFormat {
	case logging.FormatAuto, logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid log_format %q", c.LogFormat)
	}
	if c.Listen.Pose == "" {
		return errors.New("listen.pose is required")
	}
	if c.Listen.Publish == "" {
		return errors.New("listen.publish is required")
	}
	if c.Listen.HTTP == "" {
		return errors.New("listen.http is required")
	}
	if c.EventBuffer <= 0 {
		return errors.New("event_buffer must be positive")
	}
	if c.Sequencer.Tick <= 0 {
		return errors.New("sequencer.tick must be positive")
	}
	if c.Sequencer.WaypointBudget <= 0 {
		return errors.New("sequencer.waypoint_budget must be positive")
	}
	if c.Sequencer.MissionAbortBudget <= 0 {
		return errors.New("sequencer.mission_abort_budget must be positive")
	}
	if c.Sequencer.DistanceTolerance <= 0 {
		return errors.New("sequencer.distance_tolerance_m must be positive")
	}
	if c.Sequencer.AngleTolerance <= 0 {
		return errors.New("sequencer.angle_tolerance_rad must be positive")
	}
	if c.Sequencer.HalfwayClearance < 0 {
		return errors.New("sequencer.halfway_clearance_m must not be negative")
	}
	return nil
}

// SequencerConfig converts the standard tuning into the sequencer's form.
func (c Config) SequencerConfig() sequencer.Config {
	return sequencer.Config{
		Tick:               c.Sequencer.Tick,
		WaypointBudget:     c.Sequencer.WaypointBudget,
		MissionAbortBudget: c.Sequencer.MissionAbortBudget,
		Tolerances: sequencer.Tolerances{
			Distance: c.Sequencer.DistanceTolerance,
			Angle:    c.Sequencer.AngleTolerance,
		},
		HalfwayClearance:  c.Sequencer.HalfwayClearance,
		CountdownLogEvery: c.Sequencer.CountdownLogEvery,
	}
}

// ExplorationConfig returns the standard tuning with the exploration
// overrides applied.
func (c Config) ExplorationConfig() sequencer.Config {
	cfg := c.SequencerConfig()
	if c.Exploration.WaypointBudget > 0 {
		cfg.WaypointBudget = c.Exploration.WaypointBudget
	}
	if c.Exploration.DistanceTolerance > 0 {
		cfg.Tolerances.Distance = c.Exploration.DistanceTolerance
	}
	return cfg
}
