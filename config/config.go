// Package config is the persisted JSON configuration for the set of
// MIDI devices an engine.Engine drives and which of them, if any,
// sources clock or MTC. Grounded on the teacher's config/config.go in
// full: the same Load/Save/ConfigDir/ConfigPath shape and
// ~/.config/<app> layout, generalized from "controllers + synth
// outputs" to the transport's device registry.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// SyncSource selects what drives the transport's tick stream.
type SyncSource string

const (
	SyncInternal SyncSource = "internal" // transport's own wall-clock timer
	SyncClock    SyncSource = "clock"    // external MIDI clock from one device
	SyncMTC      SyncSource = "mtc"      // MIDI Time Code from one device
)

// DeviceConfig is one configured MIDI port and the role it plays.
type DeviceConfig struct {
	PortName      string `json:"portName"`
	In            bool   `json:"in,omitempty"`
	Out           bool   `json:"out,omitempty"`
	RunningStatus bool   `json:"runningStatus,omitempty"`
	SendClk       bool   `json:"sendClk,omitempty"`
	SendMMC       bool   `json:"sendMmc,omitempty"`
	TicRate       int    `json:"ticRate,omitempty"` // ticks per quarter note this device expects on its clock line
	IsClockSrc    bool   `json:"isClockSrc,omitempty"`
	IsMTCSrc      bool   `json:"isMtcSrc,omitempty"`
}

// TransportConfig holds the tempo/sync settings cmd/seqcore applies
// to the engine's transport before its first StartReq.
type TransportConfig struct {
	Sync     SyncSource `json:"sync,omitempty"`
	TempoBPM int        `json:"tempoBpm,omitempty"`
	TicRate  int        `json:"ticRate,omitempty"` // mux ticks per quarter note
}

// UIConfig stores monitor/TUI preferences.
type UIConfig struct {
	LastFocusedDevice int `json:"lastFocusedDevice,omitempty"`
}

// Config is the full on-disk configuration.
type Config struct {
	Devices   []DeviceConfig   `json:"devices,omitempty"`
	Transport TransportConfig  `json:"transport,omitempty"`
	UI        UIConfig         `json:"ui,omitempty"`
}

// DefaultConfig returns a config with no devices configured
// and internal sync at 120 BPM, 96 ticks per quarter note, mirroring
// the teacher's single-Launchpad default down to the sensible-default
// spirit rather than its specific hardware.
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			Sync:     SyncInternal,
			TempoBPM: 120,
			TicRate:  96,
		},
	}
}

// ConfigDir returns the config directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "seqcore"), nil
}

// ConfigPath returns the full path to config.json.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to disk, creating the config directory if
// needed.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// FindDevice finds a device config by port name.
func (c *Config) FindDevice(portName string) *DeviceConfig {
	for i := range c.Devices {
		if c.Devices[i].PortName == portName {
			return &c.Devices[i]
		}
	}
	return nil
}

// AddDevice adds or updates a device config by port name.
func (c *Config) AddDevice(d DeviceConfig) {
	for i := range c.Devices {
		if c.Devices[i].PortName == d.PortName {
			c.Devices[i] = d
			return
		}
	}
	c.Devices = append(c.Devices, d)
}

// ClockSource returns the configured clock-source device, if any.
func (c *Config) ClockSource() *DeviceConfig {
	for i := range c.Devices {
		if c.Devices[i].IsClockSrc {
			return &c.Devices[i]
		}
	}
	return nil
}

// MTCSource returns the configured MTC-source device, if any.
func (c *Config) MTCSource() *DeviceConfig {
	for i := range c.Devices {
		if c.Devices[i].IsMTCSrc {
			return &c.Devices[i]
		}
	}
	return nil
}
