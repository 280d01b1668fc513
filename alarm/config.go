package alarm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/librescoot/tempfsm"
)

// EnvPrefix prefixes every environment override, e.g. ALARM_ARM_DELAY=5s
const EnvPrefix = "ALARM_"

// ErrInvalidConfig is wrapped by every Config validation failure
var ErrInvalidConfig = errors.New("invalid alarm configuration")

// Config holds the dwell bounds of the alarm's temporary states
type Config struct {
	// Time spent in Prearmed before arming (unless disarmed)
	ArmDelay time.Duration `yaml:"arm_delay" env:"ARM_DELAY"`
	// Time spent in ArmPaused before re-arming (unless triggered)
	PauseDelay time.Duration `yaml:"pause_delay" env:"PAUSE_DELAY"`
	// Time spent in PreTriggered before sounding (unless disarmed)
	TriggerDelay time.Duration `yaml:"trigger_delay" env:"TRIGGER_DELAY"`
	// Time the alarm sounds in Triggered before re-arming (unless acknowledged)
	TriggerTimeout time.Duration `yaml:"trigger_timeout" env:"TRIGGER_TIMEOUT"`
}

// DefaultConfig returns ten second bounds for every temporary state
func DefaultConfig() Config {
	return Config{
		ArmDelay:       10 * time.Second,
		PauseDelay:     10 * time.Second,
		TriggerDelay:   10 * time.Second,
		TriggerTimeout: 10 * time.Second,
	}
}

// LoadConfig starts from DefaultConfig, overlays the YAML file at path (if
// path is not empty), then environment variables, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read alarm config: %w", err)
		}
		if err := cfg.decodeYAML(raw); err != nil {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse alarm env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decodeYAML(raw []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode alarm config: %w", err)
	}
	return nil
}

// durations maps each temporary state to its bound
func (c Config) durations() map[tempfsm.StateID]time.Duration {
	return map[tempfsm.StateID]time.Duration{
		Prearmed:     c.ArmDelay,
		ArmPaused:    c.PauseDelay,
		PreTriggered: c.TriggerDelay,
		Triggered:    c.TriggerTimeout,
	}
}

// Validate requires every bound to be positive
func (c Config) Validate() error {
	var errs []error
	check := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, name, d))
		}
	}
	check("arm_delay", c.ArmDelay)
	check("pause_delay", c.PauseDelay)
	check("trigger_delay", c.TriggerDelay)
	check("trigger_timeout", c.TriggerTimeout)
	return errors.Join(errs...)
}
