package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration correctness.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	c := cfg.Controller
	switch c.Adapter {
	case "", AdapterSerial:
		if c.Baud < 0 {
			return fmt.Errorf("controller: invalid baud rate %d", c.Baud)
		}
	case AdapterSPJS:
		if c.SPJS == "" {
			return fmt.Errorf("controller: spjs adapter requires spjs url")
		}
		if c.SPJSPort == "" {
			return fmt.Errorf("controller: spjs adapter requires spjs_port")
		}
	default:
		return fmt.Errorf("controller: unknown adapter %q", c.Adapter)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("controller: queue_size must not be negative")
	}
	for i, line := range c.Startup {
		if strings.ContainsAny(line, "\r\n") {
			return fmt.Errorf("controller: startup line %d must be a single line", i)
		}
	}

	in := cfg.Inputs
	switch in.Driver {
	case "", DriverSim:
		if len(in.Pins) > 0 {
			return fmt.Errorf("inputs: pins are only used by the %s driver", DriverPeriph)
		}
		if in.Count < 0 || in.Count > 255 {
			return fmt.Errorf("inputs: count %d out of range", in.Count)
		}
	case DriverPeriph:
		if len(in.Pins) == 0 {
			return fmt.Errorf("inputs: %s driver requires pins", DriverPeriph)
		}
		if len(in.Pins) > 255 {
			return fmt.Errorf("inputs: too many pins")
		}
		seen := make(map[string]bool, len(in.Pins))
		for _, p := range in.Pins {
			if seen[p] {
				return fmt.Errorf("inputs: pin %q listed twice", p)
			}
			seen[p] = true
		}
	default:
		return fmt.Errorf("inputs: unknown driver %q", in.Driver)
	}

	if cfg.NVS.Size < 0 {
		return fmt.Errorf("nvs: size must not be negative")
	}
	if cfg.Probe.DebounceMs < 0 {
		return fmt.Errorf("probe: debounce_ms must not be negative")
	}

	if tc := cfg.ToolChange; tc != nil {
		if tc.FeedRate <= 0 {
			return fmt.Errorf("toolchange: feed_rate must be positive")
		}
		if tc.MaxTravel <= 0 {
			return fmt.Errorf("toolchange: max_travel must be positive")
		}
		if tc.Radius < 0 {
			return fmt.Errorf("toolchange: radius must not be negative")
		}
	}
	return nil
}
