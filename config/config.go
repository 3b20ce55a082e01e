// Package config loads and saves the driver's YAML configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var cfgLog = log.WithField("component", "config")

// Mapping is one key_mappings entry. Document order is preserved so that a
// duplicated action key deterministically resolves to its last occurrence.
type Mapping struct {
	Key   string
	Chord string
}

// Mappings decodes a YAML mapping node without losing entry order.
type Mappings []Mapping

func (m *Mappings) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.Errorf("key_mappings: expected a mapping, got %s", node.Tag)
	}
	out := make(Mappings, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode || valNode.Kind != yaml.ScalarNode {
			cfgLog.Warnf("key_mappings: skipping non-scalar entry at line %d", keyNode.Line)
			continue
		}
		out = append(out, Mapping{Key: keyNode.Value, Chord: valNode.Value})
	}
	*m = out
	return nil
}

func (m Mappings) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range m {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Chord},
		)
	}
	return node, nil
}

// Get returns the chord for key, honoring last-occurrence-wins.
func (m Mappings) Get(key string) (string, bool) {
	chord, ok := "", false
	for _, e := range m {
		if e.Key == key {
			chord, ok = e.Chord, true
		}
	}
	return chord, ok
}

// Set replaces every occurrence of key with a single entry, appending if new.
func (m *Mappings) Set(key, chord string) {
	out := (*m)[:0]
	for _, e := range *m {
		if e.Key != key {
			out = append(out, e)
		}
	}
	*m = append(out, Mapping{Key: key, Chord: chord})
}

// Delete removes key, reporting whether it was present.
func (m *Mappings) Delete(key string) bool {
	out := (*m)[:0]
	found := false
	for _, e := range *m {
		if e.Key == key {
			found = true
			continue
		}
		out = append(out, e)
	}
	*m = out
	return found
}

type DeviceConfig struct {
	// Address pins the driver to one MAC; empty means match by name.
	Address string `yaml:"address,omitempty"`
	// Name is the advertised-name substring used when no address is set.
	Name string `yaml:"name"`
}

type BluetoothConfig struct {
	ScanTimeoutSec        float64 `yaml:"scan_timeout"`
	ConnectionTimeoutSec  float64 `yaml:"connection_timeout"`
	ReconnectAttempts     int     `yaml:"reconnect_attempts"`
	AutoReconnect         bool    `yaml:"auto_reconnect"`
	AttachRetries         int     `yaml:"attach_retries"`
	AttachRetryDelayMilli int     `yaml:"attach_retry_delay_ms"`
}

type UInputConfig struct {
	DeviceName string `yaml:"device_name"`
}

type DialSettings struct {
	Sensitivity float64 `yaml:"sensitivity"`
	MaxSteps    int     `yaml:"max_steps"`
	CW          string  `yaml:"DIAL_CW,omitempty"`
	CCW         string  `yaml:"DIAL_CCW,omitempty"`
	Click       string  `yaml:"DIAL_CLICK,omitempty"`
}

type ControlConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type Config struct {
	Device       DeviceConfig    `yaml:"device"`
	Bluetooth    BluetoothConfig `yaml:"bluetooth"`
	UInput       UInputConfig    `yaml:"uinput"`
	KeyMappings  Mappings        `yaml:"key_mappings"`
	DialSettings DialSettings    `yaml:"dial_settings"`
	Control      ControlConfig   `yaml:"control"`
	DebugMode    bool            `yaml:"debug_mode,omitempty"`
}

func (c *Config) ConnectionTimeout() time.Duration {
	return secondsOr(c.Bluetooth.ConnectionTimeoutSec, 30*time.Second)
}

func (c *Config) ScanTimeout() time.Duration {
	return secondsOr(c.Bluetooth.ScanTimeoutSec, 10*time.Second)
}

func (c *Config) AttachRetryDelay() time.Duration {
	if c.Bluetooth.AttachRetryDelayMilli <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Bluetooth.AttachRetryDelayMilli) * time.Millisecond
}

func secondsOr(s float64, def time.Duration) time.Duration {
	if s <= 0 {
		return def
	}
	return time.Duration(s * float64(time.Second))
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			Name: "Huion Keydial Mini",
		},
		Bluetooth: BluetoothConfig{
			ScanTimeoutSec:       10,
			ConnectionTimeoutSec: 30,
			ReconnectAttempts:    3,
			AutoReconnect:        true,
			AttachRetries:        3,
		},
		UInput: UInputConfig{
			DeviceName: "huion-keydial-mini-uinput",
		},
		DialSettings: DialSettings{
			Sensitivity: 1.0,
			MaxSteps:    10,
		},
		Control: ControlConfig{
			SocketPath: DefaultSocketPath(),
		},
	}
}

// DefaultSocketPath places the control socket under the user's data dir.
func DefaultSocketPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "huion-keydial-mini", "control.sock")
	}
	return filepath.Join(home, ".local", "share", "huion-keydial-mini", "control.sock")
}

// DefaultLocations are searched, in order, when no path is given.
func DefaultLocations() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "huion-keydial-mini", "config.yaml"))
	}
	return append(paths, "/etc/huion-keydial-mini/config.yaml")
}

// Load reads the configuration at path, or the first default location found
// when path is empty. A missing file yields defaults; a malformed file is an
// error. Values absent from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range DefaultLocations() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create config dir for %s", path)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write config %s", path)
	}
	return nil
}

// PreferredSavePath returns path if non-empty, else the first existing
// default location, else the user config location.
func PreferredSavePath(path string) string {
	if path != "" {
		return path
	}
	for _, candidate := range DefaultLocations() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "huion-keydial-mini", "config.yaml")
	}
	return "config.yaml"
}
