package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var testSeed = strings.Repeat("ab", 32)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tally.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
owner: "0x00000000000000000000000000000000000a11ce"
identity: "0x0000000000000000000000000000000000000c0c"
oracle:
  seed: "`+testSeed+`"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, common.HexToAddress("0xa11ce"), cfg.Owner)
	require.Equal(t, common.HexToAddress("0xc0c"), cfg.Identity)
	require.Equal(t, uint64(60), cfg.CooldownSeconds)
	require.Equal(t, uint64(100), cfg.Threshold)
	require.Equal(t, "./data", cfg.DataDir)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 4, cfg.Oracle.CommitteeSize)
	require.Equal(t, 0, cfg.Oracle.Quorum)
	require.Equal(t, 64, cfg.Oracle.QueueSize)
	require.Len(t, cfg.Oracle.Seed, 32)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
owner: "0x00000000000000000000000000000000000a11ce"
identity: "0x0000000000000000000000000000000000000c0c"
threshold: 50
oracle:
  committee_size: 5
  seed: "`+testSeed+`"
`)

	t.Setenv("BLINDTALLY_THRESHOLD", "75")
	t.Setenv("BLINDTALLY_ORACLE_QUORUM", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(75), cfg.Threshold)
	require.Equal(t, 5, cfg.Oracle.CommitteeSize)
	require.Equal(t, 3, cfg.Oracle.Quorum)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"zero owner": `
owner: "0x0000000000000000000000000000000000000000"
identity: "0x0000000000000000000000000000000000000c0c"
oracle: {seed: "` + testSeed + `"}
`,
		"bad address": `
owner: "alice"
identity: "0x0000000000000000000000000000000000000c0c"
oracle: {seed: "` + testSeed + `"}
`,
		"quorum above committee": `
owner: "0x00000000000000000000000000000000000a11ce"
identity: "0x0000000000000000000000000000000000000c0c"
oracle: {seed: "` + testSeed + `", committee_size: 2, quorum: 3}
`,
		"short seed": `
owner: "0x00000000000000000000000000000000000a11ce"
identity: "0x0000000000000000000000000000000000000c0c"
oracle: {seed: "abcd"}
`,
		"unknown level": `
owner: "0x00000000000000000000000000000000000a11ce"
identity: "0x0000000000000000000000000000000000000c0c"
log_level: loud
oracle: {seed: "` + testSeed + `"}
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
