package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nspcc-dev/pesto-go/pkg/config/netmode"
	"github.com/nspcc-dev/pesto-go/pkg/core/storage/dbconfig"
	"github.com/stretchr/testify/require"
)

const testConfigPath = "./testdata/protocol.unknown_field.yml"

func TestUnknownField(t *testing.T) {
	_, err := LoadFile(testConfigPath)
	require.Error(t, err)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir(), netmode.DevNet)
	require.ErrorContains(t, err, "doesn't exist")
}

func TestLoadNetworks(t *testing.T) {
	for _, m := range []netmode.Magic{netmode.DevNet, netmode.UnitTestNet} {
		t.Run(m.String(), func(t *testing.T) {
			cfg, err := Load("../../config", m)
			require.NoError(t, err)
			require.Equal(t, m, cfg.ProtocolConfiguration.Magic)
			require.Equal(t, uint64(m), cfg.ProtocolConfiguration.ChainID)
			require.NotEmpty(t, cfg.ProtocolConfiguration.DevAccounts.Seed)
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
ProtocolConfiguration:
  ChainID: 7
`))
	require.NoError(t, err)
	require.Equal(t, uint64(7), cfg.ProtocolConfiguration.ChainID)
	require.Equal(t, DefaultDevAccountsCount, cfg.ProtocolConfiguration.DevAccounts.Count)
	require.Equal(t, DefaultDeployments(), cfg.ProtocolConfiguration.Deployments)
	require.Equal(t, dbconfig.InMemoryDB, cfg.ApplicationConfiguration.DBConfiguration.Type)
	require.Equal(t, DefaultContractCacheSize, cfg.ApplicationConfiguration.ContractCacheSize)
	require.Equal(t, cfg.ProtocolConfiguration, cfg.Blockchain().ProtocolConfiguration)
}

func TestValidation(t *testing.T) {
	testCases := map[string]string{
		"zero chain id": `
ProtocolConfiguration:
  ChainID: 0`,
		"too many accounts": `
ProtocolConfiguration:
  DevAccounts:
    Count: 1000`,
		"bad preset address": `
ProtocolConfiguration:
  Deployments:
    Staking:
      NFT: "0x1234"`,
		"leveldb without path": `
ApplicationConfiguration:
  DBConfiguration:
    Type: leveldb`,
		"unknown db": `
ApplicationConfiguration:
  DBConfiguration:
    Type: redis`,
		"rpc without addresses": `
ApplicationConfiguration:
  RPC:
    Enabled: true`,
		"bad encoding": `
ApplicationConfiguration:
  LogEncoding: xml`,
	}
	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestRelativePaths(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "protocol.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
ApplicationConfiguration:
  DBConfiguration:
    Type: boltdb
    BoltDBOptions:
      FilePath: chain.bolt
  LogPath: /var/log/pesto.log
`), 0o644))
	cfg, err := LoadFile(cfgPath, "/base")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/base", "chain.bolt"), cfg.ApplicationConfiguration.DBConfiguration.BoltDBOptions.FilePath)
	require.Equal(t, "/var/log/pesto.log", cfg.ApplicationConfiguration.LogPath)
}

func TestBasicService_GetAddresses(t *testing.T) {
	s := BasicService{Addresses: []string{"localhost:1", "localhost:2", "localhost:1"}}
	require.Equal(t, []string{"localhost:1", "localhost:2"}, s.GetAddresses())
	require.Empty(t, BasicService{}.GetAddresses())
}

func TestUserAgent(t *testing.T) {
	Version = "0.1.0"
	require.Equal(t, "/PESTO-GO:0.1.0/", Config{}.GenerateUserAgent())
}
