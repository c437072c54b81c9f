package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"PEER_BUS_NAME", "PEER_OBJECT_PATH", "PEER_INTERFACE",
		"PEER_CALL_TIMEOUT", "CREDENTIAL_RESOLVE_TIMEOUT",
		"AUDIT_COMMS_URL", "AUDIT_SUBJECT", "SERVICE_NAME", "LOG_LEVEL",
	}
	for _, env := range envVars {
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.PeerBusName != "io.entraunix.DeviceBroker" {
		t.Errorf("config:config_test - PeerBusName = %q, unexpected default", cfg.PeerBusName)
	}
	if cfg.PeerObjectPath != "/io/entraunix/devicebroker" {
		t.Errorf("config:config_test - PeerObjectPath = %q, unexpected default", cfg.PeerObjectPath)
	}
	if cfg.PeerInterface != "io.entraunix.DeviceBroker1" {
		t.Errorf("config:config_test - PeerInterface = %q, unexpected default", cfg.PeerInterface)
	}
	if cfg.PeerCallTimeout != 5*time.Second {
		t.Errorf("config:config_test - PeerCallTimeout = %v, want 5s", cfg.PeerCallTimeout)
	}
	if cfg.ResolveTimeout != 5*time.Second {
		t.Errorf("config:config_test - ResolveTimeout = %v, want 5s", cfg.ResolveTimeout)
	}
	if cfg.AuditCOMMSURL != "" {
		t.Errorf("config:config_test - AuditCOMMSURL = %q, want empty", cfg.AuditCOMMSURL)
	}
	if cfg.ServiceName != "identity-broker" {
		t.Errorf("config:config_test - ServiceName = %q, want identity-broker", cfg.ServiceName)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PEER_BUS_NAME", "org.example.Broker")
	t.Setenv("PEER_CALL_TIMEOUT", "30s")
	t.Setenv("AUDIT_COMMS_URL", "nats://127.0.0.1:4222")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}
	if cfg.PeerBusName != "org.example.Broker" {
		t.Errorf("config:config_test - PeerBusName = %q, want override", cfg.PeerBusName)
	}
	if cfg.PeerCallTimeout != 30*time.Second {
		t.Errorf("config:config_test - PeerCallTimeout = %v, want 30s", cfg.PeerCallTimeout)
	}
	if cfg.AuditCOMMSURL != "nats://127.0.0.1:4222" {
		t.Errorf("config:config_test - AuditCOMMSURL = %q, want override", cfg.AuditCOMMSURL)
	}
}

func TestValidateForServe(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		t.Errorf("config:config_test - defaults should validate, got %v", err)
	}

	bad := *cfg
	bad.PeerBusName = ""
	if err := bad.ValidateForServe(); err == nil {
		t.Error("config:config_test - expected an error for empty PEER_BUS_NAME")
	}

	bad = *cfg
	bad.PeerObjectPath = "not-a-path"
	if err := bad.ValidateForServe(); err == nil {
		t.Error("config:config_test - expected an error for an invalid PEER_OBJECT_PATH")
	}

	bad = *cfg
	bad.PeerCallTimeout = 0
	if err := bad.ValidateForServe(); err == nil {
		t.Error("config:config_test - expected an error for a zero PEER_CALL_TIMEOUT")
	}

	bad = *cfg
	bad.ResolveTimeout = -time.Second
	if err := bad.ValidateForServe(); err == nil {
		t.Error("config:config_test - expected an error for a negative CREDENTIAL_RESOLVE_TIMEOUT")
	}
}
