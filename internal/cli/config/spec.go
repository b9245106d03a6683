package config

import "time"

// DefaultProfile is the profile used when none is selected.
const DefaultProfile = "default"

// CLIConfig is the configuration for pixelflut-cli.
type CLIConfig struct {
	// Current is the profile used when --profile is not given.
	Current string `koanf:"current" yaml:"current"`

	// Output is the default output format.
	Output string `koanf:"output" yaml:"output,omitempty"`

	Profiles map[string]Profile `koanf:"profiles" yaml:"profiles"`
}

// Profile stores the connection details of one server.
type Profile struct {
	Server      string        `koanf:"server" yaml:"server,omitempty"`
	Transport   string        `koanf:"transport" yaml:"transport,omitempty"`
	MetricsAddr string        `koanf:"metrics_addr" yaml:"metrics_addr,omitempty"`
	Timeout     time.Duration `koanf:"timeout" yaml:"timeout,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Current: DefaultProfile,
		Output:  "text",
		Profiles: map[string]Profile{
			DefaultProfile: {
				Server:      "localhost:1234",
				Transport:   "tcp",
				MetricsAddr: "127.0.0.1:9100",
				Timeout:     5 * time.Second,
			},
		},
	}
}
