// Package config handles configuration loading and saving.
package config

import (
	"fmt"
	"time"

	"bootkit/internal/retry"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the top-level configuration file structure.
type AppConfig struct {
	CurrentProfile string             `yaml:"current_profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile represents a specific configuration set.
type Profile struct {
	Provider      string            `yaml:"provider"`            // "aws" or "proxmox"
	PulumiBackend string            `yaml:"pulumi_backend"`      // "file://~/.bootkit/state" or s3/url
	Region        string            `yaml:"region"`              // Global default region
	SSHPublicKey  string            `yaml:"ssh_public_key_path"` // Path to public key for instances
	OsFamily      string            `yaml:"os_family,omitempty"` // Family scripts render for: "unix" or "windows"
	Script        string            `yaml:"script,omitempty"`    // Default stored script for launches
	Env           map[string]string `yaml:"env,omitempty"`       // Extra environment variables
	AWS           AWSConfig         `yaml:"aws,omitempty"`       // AWS specific config
	Proxmox       ProxmoxConfig     `yaml:"proxmox,omitempty"`   // Proxmox specific config
	Wait          WaitConfig        `yaml:"wait,omitempty"`      // Polling cadence for state waits
}

// AWSConfig holds AWS-specific settings.
type AWSConfig struct {
	Profile      string              `yaml:"profile"`
	InstanceType string              `yaml:"instance_type"` // default: t3.micro
	AMI          string              `yaml:"ami"`           // optional override
	IngressRules []SecurityGroupRule `yaml:"ingress_rules,omitempty"`
	EgressRules  []SecurityGroupRule `yaml:"egress_rules,omitempty"`
}

// ProxmoxConfig points at a Proxmox VE API. The token secret is read from
// PROXMOX_SECRET when Secret is empty.
type ProxmoxConfig struct {
	Endpoint              string `yaml:"endpoint,omitempty"`
	TokenID               string `yaml:"token_id,omitempty"`
	Secret                string `yaml:"secret,omitempty"`
	InsecureSkipTLSVerify bool   `yaml:"insecure_skip_tls_verify,omitempty"`
}

// SecurityGroupRule defines a firewall rule.
type SecurityGroupRule struct {
	Protocol   string   `yaml:"protocol"`
	FromPort   int      `yaml:"from_port"`
	ToPort     int      `yaml:"to_port"`
	CidrBlocks []string `yaml:"cidr_blocks"`
}

// WaitConfig controls how long and how often instance states are polled.
type WaitConfig struct {
	InitialDelay Duration `yaml:"initial_delay,omitempty"`
	MaxDelay     Duration `yaml:"max_delay,omitempty"`
	Multiplier   float64  `yaml:"multiplier,omitempty"`
	Timeout      Duration `yaml:"timeout,omitempty"`
}

// RetryConfig fills unset fields from retry.DefaultConfig.
func (w WaitConfig) RetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	if w.InitialDelay.Duration > 0 {
		cfg.InitialDelay = w.InitialDelay.Duration
	}
	if w.MaxDelay.Duration > 0 {
		cfg.MaxDelay = w.MaxDelay.Duration
	}
	if w.Multiplier > 0 {
		cfg.Multiplier = w.Multiplier
	}
	if w.Timeout.Duration > 0 {
		cfg.Timeout = w.Timeout.Duration
	}
	return cfg
}

// Duration wraps time.Duration to support YAML strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings (or numbers representing nanoseconds).
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		d.Duration = 0
		return nil
	}

	if value.Kind == yaml.ScalarNode {
		var asString string
		if err := value.Decode(&asString); err == nil {
			if asString == "" {
				d.Duration = 0
				return nil
			}
			if parsed, err := time.ParseDuration(asString); err == nil {
				d.Duration = parsed
				return nil
			}
		}

		var asInt int64
		if err := value.Decode(&asInt); err == nil {
			d.Duration = time.Duration(asInt)
			return nil
		}
	}

	return fmt.Errorf("invalid duration value: %s", value.Value)
}

// MarshalYAML writes the duration back in its string form.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.Duration.String(), nil
}

// DefaultProfile returns a profile with sensible defaults.
func DefaultProfile() Profile {
	return Profile{
		Provider:      "aws",
		PulumiBackend: "file://~/.bootkit/state",
		Region:        "us-east-1",
		OsFamily:      "unix",
		AWS: AWSConfig{
			InstanceType: "t3.micro",
		},
	}
}

// NewAppConfig creates a new AppConfig with no profiles.
func NewAppConfig() AppConfig {
	return AppConfig{
		CurrentProfile: "",
		Profiles:       make(map[string]Profile),
	}
}

// Profile returns the named profile, or the current one when name is empty.
func (c *AppConfig) Profile(name string) (Profile, string, error) {
	if len(c.Profiles) == 0 {
		return Profile{}, "", fmt.Errorf("no configuration profiles found. Run 'bootkit config new <name>' to start")
	}
	if name == "" {
		name = c.CurrentProfile
	}
	if name == "" {
		return Profile{}, "", fmt.Errorf("no current profile set")
	}
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, "", fmt.Errorf("profile '%s' not found", name)
	}
	return p, name, nil
}
