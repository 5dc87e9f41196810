// Package probe drives the tsync primitives end to end: barrier cycles with
// a fixed party and timed lock contention against a held mutex.
package probe

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/llxisdsh/tsync"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("probe: invalid config")

// Config is the exerciser configuration. It can be loaded from YAML:
//
//	barrier:
//	  parties: 8
//	  cycles: 100
//	  jitter: 1ms
//	lock:
//	  strategy: poll
//	  quantum: 5ms
//	  contenders: 4
//	  hold: 200ms
//	  wait: 50ms
//	metrics_addr: ":9090"
type Config struct {
	Barrier     BarrierConfig `yaml:"barrier"`
	Lock        LockConfig    `yaml:"lock"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

// BarrierConfig configures the barrier scenario.
type BarrierConfig struct {
	Parties int           `yaml:"parties"`
	Cycles  int           `yaml:"cycles"`
	Jitter  time.Duration `yaml:"jitter"` // max random delay before each arrival
}

// LockConfig configures the timed lock scenario.
type LockConfig struct {
	Strategy   string        `yaml:"strategy"` // auto, poll or native
	Quantum    time.Duration `yaml:"quantum"`
	Contenders int           `yaml:"contenders"`
	Hold       time.Duration `yaml:"hold"` // how long the mutex is held before release
	Wait       time.Duration `yaml:"wait"` // deadline given to each contender
}

// DefaultConfig returns a configuration that exercises both scenarios in
// well under a second.
func DefaultConfig() Config {
	return Config{
		Barrier: BarrierConfig{
			Parties: 4,
			Cycles:  10,
			Jitter:  time.Millisecond,
		},
		Lock: LockConfig{
			Strategy:   "auto",
			Quantum:    tsync.DefaultQuantum,
			Contenders: 4,
			Hold:       100 * time.Millisecond,
			Wait:       50 * time.Millisecond,
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. Unknown fields are
// rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem found in c.
func (c Config) Validate() error {
	var errs []error
	if c.Barrier.Parties <= 0 {
		errs = append(errs, fmt.Errorf("barrier.parties must be positive, got %d", c.Barrier.Parties))
	}
	if c.Barrier.Cycles < 0 {
		errs = append(errs, fmt.Errorf("barrier.cycles must not be negative, got %d", c.Barrier.Cycles))
	}
	if c.Barrier.Jitter < 0 {
		errs = append(errs, fmt.Errorf("barrier.jitter must not be negative, got %v", c.Barrier.Jitter))
	}
	if _, err := tsync.ParseStrategy(c.Lock.Strategy, c.Lock.Quantum); err != nil {
		errs = append(errs, fmt.Errorf("lock.strategy: %w", err))
	}
	if c.Lock.Quantum < 0 {
		errs = append(errs, fmt.Errorf("lock.quantum must not be negative, got %v", c.Lock.Quantum))
	}
	if c.Lock.Contenders < 0 {
		errs = append(errs, fmt.Errorf("lock.contenders must not be negative, got %d", c.Lock.Contenders))
	}
	if c.Lock.Hold < 0 || c.Lock.Wait < 0 {
		errs = append(errs, errors.New("lock.hold and lock.wait must not be negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
