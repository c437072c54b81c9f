// Package config provides broker configuration loaded from environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds identity-broker configuration.
type Config struct {
	// Peer: the device broker on the system bus that session calls are
	// forwarded to.
	PeerBusName    string `envconfig:"PEER_BUS_NAME" default:"io.entraunix.DeviceBroker"`
	PeerObjectPath string `envconfig:"PEER_OBJECT_PATH" default:"/io/entraunix/devicebroker"`
	PeerInterface  string `envconfig:"PEER_INTERFACE" default:"io.entraunix.DeviceBroker1"`

	// Timeouts
	PeerCallTimeout time.Duration `envconfig:"PEER_CALL_TIMEOUT" default:"5s"`
	ResolveTimeout  time.Duration `envconfig:"CREDENTIAL_RESOLVE_TIMEOUT" default:"5s"`

	// Audit: per-call audit events go to COMMS when AUDIT_COMMS_URL is set.
	AuditCOMMSURL string `envconfig:"AUDIT_COMMS_URL"`
	AuditSubject  string `envconfig:"AUDIT_SUBJECT"`
	ServiceName   string `envconfig:"SERVICE_NAME" default:"identity-broker"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the broker service.
func (c *Config) ValidateForServe() error {
	if c.PeerBusName == "" {
		return fmt.Errorf("%s - PEER_BUS_NAME is required for serve", logPrefix)
	}
	if !dbus.ObjectPath(c.PeerObjectPath).IsValid() {
		return fmt.Errorf("%s - PEER_OBJECT_PATH %q is not a valid object path", logPrefix, c.PeerObjectPath)
	}
	if c.PeerInterface == "" {
		return fmt.Errorf("%s - PEER_INTERFACE is required for serve", logPrefix)
	}
	if c.PeerCallTimeout <= 0 {
		return fmt.Errorf("%s - PEER_CALL_TIMEOUT must be positive", logPrefix)
	}
	if c.ResolveTimeout <= 0 {
		return fmt.Errorf("%s - CREDENTIAL_RESOLVE_TIMEOUT must be positive", logPrefix)
	}
	return nil
}
