// Package config loads coordinator settings from a file and the environment.
package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"BlindTally/internal/aggregate"
	"BlindTally/internal/oracle"
)

// EnvPrefix prefixes every environment override, e.g. BLINDTALLY_ORACLE_QUORUM.
const EnvPrefix = "BLINDTALLY"

// Oracle configures the local decryption committee.
type Oracle struct {
	// CommitteeSize is the number of signing members.
	CommitteeSize int

	// Quorum is the number of signatures a proof needs; 0 means 67% of the committee.
	Quorum int

	// Seed derives every member key. Hex encoded, at least 32 bytes.
	Seed []byte

	// QueueSize bounds the pending request queue.
	QueueSize int
}

// Config holds the coordinator settings.
type Config struct {
	// Owner administers the deployment and is its first provider.
	Owner common.Address

	// Identity scopes state commitments to this deployment.
	Identity common.Address

	// CooldownSeconds is the shared rate-limit window.
	CooldownSeconds uint64

	// Threshold is the average at which ThresholdExceeded is set.
	Threshold uint64

	// DataDir is the Pebble directory.
	DataDir string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// Oracle configures the decryption committee.
	Oracle Oracle
}

// setDefaults registers the default of every key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("cooldown_seconds", 60)
	v.SetDefault("threshold", aggregate.DefaultThreshold)
	v.SetDefault("data_dir", "./data")
	v.SetDefault("log_level", "info")
	v.SetDefault("oracle.committee_size", 4)
	v.SetDefault("oracle.quorum", 0)
	v.SetDefault("oracle.queue_size", oracle.DefaultQueueSize)
}

// Load reads path (any format viper knows, or none when empty) and applies
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s:\n%w", path, err)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// fromViper converts raw settings.
func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		CooldownSeconds: v.GetUint64("cooldown_seconds"),
		Threshold:       v.GetUint64("threshold"),
		DataDir:         v.GetString("data_dir"),
		LogLevel:        v.GetString("log_level"),
		Oracle: Oracle{
			CommitteeSize: v.GetInt("oracle.committee_size"),
			Quorum:        v.GetInt("oracle.quorum"),
			QueueSize:     v.GetInt("oracle.queue_size"),
		},
	}

	var err error

	if cfg.Owner, err = parseAddress("owner", v.GetString("owner")); err != nil {
		return nil, err
	}

	if cfg.Identity, err = parseAddress("identity", v.GetString("identity")); err != nil {
		return nil, err
	}

	seed := strings.TrimPrefix(v.GetString("oracle.seed"), "0x")
	if cfg.Oracle.Seed, err = hex.DecodeString(seed); err != nil {
		return nil, fmt.Errorf("oracle.seed is not hex:\n%w", err)
	}

	return cfg, nil
}

// parseAddress requires a 0x-prefixed 20-byte hex address.
func parseAddress(key, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: %q is not an address", key, value)
	}

	return common.HexToAddress(value), nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Owner == (common.Address{}) {
		return fmt.Errorf("owner must not be the zero address")
	}

	if c.Oracle.CommitteeSize <= 0 {
		return fmt.Errorf("oracle.committee_size must be positive, got %d", c.Oracle.CommitteeSize)
	}

	if c.Oracle.Quorum < 0 || c.Oracle.Quorum > c.Oracle.CommitteeSize {
		return fmt.Errorf("oracle.quorum %d out of range for committee of %d", c.Oracle.Quorum, c.Oracle.CommitteeSize)
	}

	if len(c.Oracle.Seed) < 32 {
		return fmt.Errorf("oracle.seed must be at least 32 bytes, got %d", len(c.Oracle.Seed))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level: unknown level %q", c.LogLevel)
	}

	return nil
}
