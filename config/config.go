// Package config loads badscan's process-wide configuration from a TOML
// file: the scan seed, wait delay, chosen protocol (and its parameters),
// and fingerprint profile. Reading it is the module's single entry point
// for what would otherwise be scattered global state; everything else
// takes these values as explicit constructor arguments.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ProtocolKind names one of the three closed protocol variants a config
// file can select, matching the original config.rs's tagged enum.
type ProtocolKind string

const (
	ProtocolQuery  ProtocolKind = "Query"
	ProtocolRaknet ProtocolKind = "Raknet"
	ProtocolSLP    ProtocolKind = "SLP"
)

// ProtocolConfig is the `[protocol]` table: t selects the variant, c
// carries variant-specific parameters (only Query uses c; Raknet and SLP
// ignore it, matching the original's serde(tag/content) enum where
// Raknet/SLP carry no payload).
type ProtocolConfig struct {
	T           ProtocolKind `toml:"t"`
	C           ProtocolParams `toml:"c"`
	Fingerprint string         `toml:"fingerprint"`
}

// ProtocolParams holds the fields relevant to whichever protocol was
// selected. Fullstat is meaningful only when T == ProtocolQuery.
type ProtocolParams struct {
	Fullstat bool `toml:"fullstat"`
}

// ScanConfig is the `[scan]` table.
type ScanConfig struct {
	Seed      int64  `toml:"seed"`
	WaitDelay uint64 `toml:"wait_delay"`
}

// Config is the top-level shape of badscan.toml.
type Config struct {
	Interface string         `toml:"interface"`
	Scan      ScanConfig     `toml:"scan"`
	Protocol  ProtocolConfig `toml:"protocol"`
}

// DefaultFingerprint is used when the config omits [protocol].fingerprint,
// matching the original's #[derive(Default)] on its Fingerprint enum.
const DefaultFingerprint = "Nintendo 3DS"

// Load reads and parses path. Any I/O or parse failure is fatal to the
// caller (spec.md §7 tier 1: "missing/malformed configuration").
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.Protocol.T == "" {
		cfg.Protocol.T = ProtocolQuery // matches the original's Protocol::default()
	}
	if cfg.Protocol.Fingerprint == "" {
		cfg.Protocol.Fingerprint = DefaultFingerprint
	}
	return &cfg, nil
}
