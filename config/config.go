// Package config loads the probeguard configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Controller ControllerConfig  `yaml:"controller"`
	HTTP       HTTPConfig        `yaml:"http"`
	NVS        NVSConfig         `yaml:"nvs"`
	Inputs     InputsConfig      `yaml:"inputs"`
	Probe      ProbeConfig       `yaml:"probe"`
	ToolChange *ToolChangeConfig `yaml:"toolchange"`
	Events     EventsConfig      `yaml:"events"`
}

// ---- CONTROLLER ----

// Adapter names accepted in controller.adapter.
const (
	AdapterSerial = "serial"
	AdapterSPJS   = "spjs"
)

type ControllerConfig struct {
	Adapter string `yaml:"adapter"`

	// serial adapter
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`

	// spjs adapter
	SPJS     string `yaml:"spjs"`
	SPJSPort string `yaml:"spjs_port"`

	QueueSize int `yaml:"queue_size"`

	// Startup lines run once after boot, e.g. M401 to start protected.
	Startup []string `yaml:"startup"`
}

// ---- HTTP ----

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// ---- STORAGE ----

type NVSConfig struct {
	// Path of the settings file. Empty keeps settings in memory only.
	Path string `yaml:"path"`
	Size int    `yaml:"size"`
}

// ---- INPUTS ----

// Input drivers accepted in inputs.driver.
const (
	DriverSim    = "sim"
	DriverPeriph = "periph"
)

type InputsConfig struct {
	Driver string `yaml:"driver"`

	// Pins are host pin names for the periph driver, e.g. GPIO17.
	Pins []string `yaml:"pins"`

	// Count is the number of simulated inputs.
	Count int `yaml:"count"`
}

// ---- PROBE ----

type ProbeConfig struct {
	Invert     bool `yaml:"invert"`
	HardLimits bool `yaml:"hard_limits"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// Debounce returns the relay settle delay.
func (p ProbeConfig) Debounce() time.Duration {
	return time.Duration(p.DebounceMs) * time.Millisecond
}

// ---- TOOL CHANGE ----

type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

type ToolChangeConfig struct {
	// Position of the toolsetter (G59.3) in machine coordinates.
	Position     Position `yaml:"position"`
	TravelHeight float64  `yaml:"travel_height"`
	FeedRate     float64  `yaml:"feed_rate"`
	MaxTravel    float64  `yaml:"max_travel"`
	Radius       float64  `yaml:"radius"`
}

// ---- EVENTS ----

type EventsConfig struct {
	Backlog int `yaml:"backlog"`
}

// Parse decodes, validates and normalizes a configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	err := yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	err = Validate(&cfg)
	if err != nil {
		return nil, err
	}
	Normalize(&cfg)
	return &cfg, nil
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Default returns the configuration used without a config file: simulated
// inputs and in-memory settings.
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}
