package config

// Normalize fills in defaults.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	c := &cfg.Controller
	if c.Adapter == "" {
		c.Adapter = AdapterSerial
	}
	if c.Port == "" {
		c.Port = "/dev/ttyUSB0"
	}
	if c.Baud == 0 {
		c.Baud = 115200
	}
	if c.QueueSize == 0 {
		c.QueueSize = 16
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.NVS.Size == 0 {
		cfg.NVS.Size = 1024
	}

	if cfg.Inputs.Driver == "" {
		cfg.Inputs.Driver = DriverSim
	}
	if cfg.Inputs.Driver == DriverSim && cfg.Inputs.Count == 0 {
		cfg.Inputs.Count = 4
	}

	if cfg.Probe.DebounceMs == 0 {
		cfg.Probe.DebounceMs = 50
	}
	if cfg.Events.Backlog == 0 {
		cfg.Events.Backlog = 100
	}
}
