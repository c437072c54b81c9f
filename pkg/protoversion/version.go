// Package protoversion validates caller-supplied broker protocol version
// strings.
package protoversion

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const logPrefix = "protoversion:parse"

// BrokerVersion is the version this broker reports for itself.
const BrokerVersion = "0.1.0"

// SupportedRange covers the protocol versions this broker understands.
// Calls outside the range are still answered (the wire contract predates
// versioned rejection), but they are flagged in logs and audit events.
const SupportedRange = ">=0.0.1, <2.0.0"

var supportedConstraint = mustConstraint(SupportedRange)

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse parses a protocol version string.
func Parse(v string) (*semver.Version, error) {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid protocol version %q: %w", logPrefix, v, err)
	}
	return parsed, nil
}

// Supported reports whether v parses and falls inside SupportedRange.
func Supported(v string) bool {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return false
	}
	return supportedConstraint.Check(parsed)
}
