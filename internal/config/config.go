// Package config loads go-locomotion settings from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Environment variables recognised by Load and ApplyEnv.
const (
	EnvConfigPath = "LOCOMOTION_CONFIG"
	EnvPort       = "LOCOMOTION_PORT"
	EnvLogLevel   = "LOCOMOTION_LOG_LEVEL"
	EnvWatch      = "LOCOMOTION_WATCH"
)

// DefaultPath is used when neither a flag nor LOCOMOTION_CONFIG names a file.
const DefaultPath = "locomotion.yaml"

// Config is the full server configuration.
type Config struct {
	Library   Library   `yaml:"library"`
	Character Character `yaml:"character"`
	Blend     Blend     `yaml:"blend"`
	Server    Server    `yaml:"server"`
	Log       Log       `yaml:"log"`
}

// Library describes where motion clips live and how segments are authored.
type Library struct {
	// Modes lists one folder per motion category. Mode i selects Modes[i].
	Modes []string `yaml:"modes"`

	// Idle is the folder holding idle clips.
	Idle string `yaml:"idle"`

	// RotationTolerance is the yaw correction allowed per segment, in degrees.
	RotationTolerance float64 `yaml:"rotation_tolerance"`

	// TranslationTolerance is the drift correction allowed per segment.
	TranslationTolerance float64 `yaml:"translation_tolerance"`

	MinSegmentFrames  int `yaml:"min_segment_frames"`
	IdleSegmentFrames int `yaml:"idle_segment_frames"`
}

// Character holds the start state and contact detection settings.
type Character struct {
	StartPosition            [3]float64 `yaml:"start_position"`
	StartDirection           [3]float64 `yaml:"start_direction"`
	ContactVelocityThreshold float64    `yaml:"contact_velocity_threshold"`
	ContactJoints            [2]string  `yaml:"contact_joints"`
	FacingJoints             [2]string  `yaml:"facing_joints"`

	// FollowRadius is how far a followed target may be before walking resumes.
	FollowRadius float64 `yaml:"follow_radius"`
}

// Blend configures inertialization.
type Blend struct {
	HalfLife      float64 `yaml:"half_life"`
	HandleContact bool    `yaml:"handle_contact"`
	UnlockRadius  float64 `yaml:"unlock_radius"`
}

// Server configures the HTTP and websocket surface.
type Server struct {
	Port  string `yaml:"port"`
	Watch bool   `yaml:"watch"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
}

// Default returns the settings of the reference walking setup.
func Default() *Config {
	return &Config{
		Library: Library{
			Modes:                []string{"./walkingData"},
			Idle:                 "./idleData",
			RotationTolerance:    5,
			TranslationTolerance: 7,
			MinSegmentFrames:     10,
		},
		Character: Character{
			StartDirection:           [3]float64{0, 0, 1},
			ContactVelocityThreshold: 20,
			ContactJoints:            [2]string{"LeftToe", "RightToe"},
			FacingJoints:             [2]string{"LeftUpLeg", "RightUpLeg"},
			FollowRadius:             40,
		},
		Blend: Blend{
			HalfLife:      0.15,
			HandleContact: true,
			UnlockRadius:  30,
		},
		Server: Server{Port: "8080"},
		Log:    Log{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path falls back to
// LOCOMOTION_CONFIG, then DefaultPath; a missing default file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		if env := os.Getenv(EnvConfigPath); env != "" {
			path, explicit = env, true
		} else {
			path = DefaultPath
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() error {
	if port := os.Getenv(EnvPort); port != "" {
		c.Server.Port = port
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Log.Level = level
	}
	if watch := os.Getenv(EnvWatch); watch != "" {
		v, err := strconv.ParseBool(watch)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvWatch, watch, err)
		}
		c.Server.Watch = v
	}
	return nil
}

// Validate rejects configurations the engine cannot start with.
func (c *Config) Validate() error {
	switch {
	case len(c.Library.Modes) == 0:
		return fmt.Errorf("%w: library.modes is empty", ErrInvalidConfig)
	case c.Library.Idle == "":
		return fmt.Errorf("%w: library.idle is required", ErrInvalidConfig)
	case c.Library.RotationTolerance < 0 || c.Library.TranslationTolerance < 0:
		return fmt.Errorf("%w: tolerances must not be negative", ErrInvalidConfig)
	case c.Library.MinSegmentFrames < 2:
		return fmt.Errorf("%w: library.min_segment_frames must be at least 2", ErrInvalidConfig)
	case c.Library.IdleSegmentFrames < 0 || c.Library.IdleSegmentFrames == 1:
		return fmt.Errorf("%w: library.idle_segment_frames must be 0 or at least 2", ErrInvalidConfig)
	case c.Character.ContactVelocityThreshold <= 0:
		return fmt.Errorf("%w: character.contact_velocity_threshold must be positive", ErrInvalidConfig)
	case c.Character.StartDirection[0] == 0 && c.Character.StartDirection[2] == 0:
		return fmt.Errorf("%w: character.start_direction must not be vertical or zero", ErrInvalidConfig)
	case c.Blend.HalfLife <= 0:
		return fmt.Errorf("%w: blend.half_life must be positive", ErrInvalidConfig)
	case c.Server.Port == "":
		return fmt.Errorf("%w: server.port is required", ErrInvalidConfig)
	}
	for i, dir := range c.Library.Modes {
		if dir == "" {
			return fmt.Errorf("%w: library.modes[%d] is empty", ErrInvalidConfig, i)
		}
	}
	for _, name := range append(c.Character.ContactJoints[:], c.Character.FacingJoints[:]...) {
		if name == "" {
			return fmt.Errorf("%w: joint names must not be empty", ErrInvalidConfig)
		}
	}
	return nil
}
