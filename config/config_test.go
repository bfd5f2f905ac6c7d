package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
controller:
  adapter: spjs
  spjs: ws://localhost:8989/ws
  spjs_port: /dev/ttyACM0
  startup: [M401]
inputs:
  driver: periph
  pins: [GPIO17, GPIO27]
probe:
  invert: true
toolchange:
  position: {x: -10, y: -20, z: -40}
  travel_height: -5
  feed_rate: 100
  max_travel: 30
`))
	require.NoError(t, err)

	assert.Equal(t, AdapterSPJS, cfg.Controller.Adapter)
	assert.Equal(t, []string{"GPIO17", "GPIO27"}, cfg.Inputs.Pins)
	assert.True(t, cfg.Probe.Invert)
	assert.Equal(t, 50*time.Millisecond, cfg.Probe.Debounce())
	assert.Equal(t, 16, cfg.Controller.QueueSize)
	assert.Equal(t, []string{"M401"}, cfg.Controller.Startup)
	require.NotNil(t, cfg.ToolChange)
	assert.Equal(t, Position{X: -10, Y: -20, Z: -40}, cfg.ToolChange.Position)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, AdapterSerial, cfg.Controller.Adapter)
	assert.Equal(t, DriverSim, cfg.Inputs.Driver)
	assert.Equal(t, 4, cfg.Inputs.Count)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Nil(t, cfg.ToolChange)
}

func TestValidate_Errors(t *testing.T) {
	bad := map[string]string{
		"adapter":     "controller: {adapter: usb}",
		"spjs url":    "controller: {adapter: spjs, spjs_port: x}",
		"driver":      "inputs: {driver: i2c}",
		"no pins":     "inputs: {driver: periph}",
		"dup pins":    "inputs: {driver: periph, pins: [GPIO4, GPIO4]}",
		"sim pins":    "inputs: {pins: [GPIO4]}",
		"feed rate":   "toolchange: {max_travel: 10}",
		"debounce":    "probe: {debounce_ms: -1}",
		"bad yaml":    "controller: [",
		"input count": "inputs: {count: 300}",
		"startup":     `controller: {startup: ["M401\nM402"]}`,
	}
	for name, data := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probeguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: {addr: ':9000'}\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
