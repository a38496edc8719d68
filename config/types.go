package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config represents the overall configuration of the request processor and
// its tooling. The koanf instance it was loaded from is kept for access to
// keys the struct does not declare.
type Config struct {
	App           AppConfig           `koanf:"app" json:"app" yaml:"app"`
	Log           LogConfig           `koanf:"log" json:"log" yaml:"log"`
	Retry         RetryConfig         `koanf:"retry" json:"retry" yaml:"retry"`
	Redirect      RedirectConfig      `koanf:"redirect" json:"redirect" yaml:"redirect"`
	Session       SessionConfig       `koanf:"session" json:"session" yaml:"session"`
	DHCP          DHCPConfig          `koanf:"dhcp" json:"dhcp" yaml:"dhcp"`
	NIC           NICConfig           `koanf:"nic" json:"nic" yaml:"nic"`
	Server        ServerConfig        `koanf:"server" json:"server" yaml:"server"`
	Observability ObservabilityConfig `koanf:"observability" json:"observability" yaml:"observability"`

	k *koanf.Koanf `json:"-" yaml:"-"`
}

type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name"`
	Version string `koanf:"version" json:"version" yaml:"version"`
	Env     string `koanf:"env" json:"env" yaml:"env"`
}

type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// RetryConfig bounds the delay between attempts and the attempts per interface.
// Delays are counted in units of Unit.
type RetryConfig struct {
	MinDelay          int           `koanf:"min_delay" json:"min_delay" yaml:"min_delay"`
	MaxDelay          int           `koanf:"max_delay" json:"max_delay" yaml:"max_delay"`
	Unit              time.Duration `koanf:"unit" json:"unit" yaml:"unit"`
	MaxAttemptsPerNic int           `koanf:"max_attempts_per_nic" json:"max_attempts_per_nic" yaml:"max_attempts_per_nic"`
}

type RedirectConfig struct {
	MaxHops int `koanf:"max_hops" json:"max_hops" yaml:"max_hops"`
}

type SessionConfig struct {
	Timeout      time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`
	MaxBodyBytes int64         `koanf:"max_body_bytes" json:"max_body_bytes" yaml:"max_body_bytes"`
	// StrictURLPath rejects targets whose path is empty instead of sending "/".
	StrictURLPath bool   `koanf:"strict_url_path" json:"strict_url_path" yaml:"strict_url_path"`
	UserAgent     string `koanf:"user_agent" json:"user_agent" yaml:"user_agent"`
}

type DHCPConfig struct {
	PollInterval time.Duration `koanf:"poll_interval" json:"poll_interval" yaml:"poll_interval"`
}

type NICConfig struct {
	IncludeLoopback bool `koanf:"include_loopback" json:"include_loopback" yaml:"include_loopback"`
}

// ServerConfig configures the fixture server used by integration runs.
type ServerConfig struct {
	Address string `koanf:"address" json:"address" yaml:"address"`
	// SecureBaseURL is the https origin the redirect fixture points at.
	SecureBaseURL string `koanf:"secure_base_url" json:"secure_base_url" yaml:"secure_base_url"`
}

type ObservabilityConfig struct {
	Enabled     bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	ServiceName string `koanf:"service_name" json:"service_name" yaml:"service_name"`
	Exporter    string `koanf:"exporter" json:"exporter" yaml:"exporter"`
	Endpoint    string `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`
	Insecure    bool   `koanf:"insecure" json:"insecure" yaml:"insecure"`
}
