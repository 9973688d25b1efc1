package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lodestone-mc/lodestone/pkg/server"

	"github.com/stretchr/testify/require"
)

func TestProcess(t *testing.T) {
	// Default config
	conf, err := Process([]string{})
	require.NoError(t, err)
	require.Equal(t, 20, conf.Server.TickRate)
	require.Equal(t, "offline", conf.Server.ConnectionMode)
	require.NotEmpty(t, conf.Server.Dimensions)
	require.NotEmpty(t, conf.Server.Biomes)

	dir := t.TempDir()

	// yaml config
	{
		yaml := filepath.Join(dir, "config.yaml")
		err = os.WriteFile(yaml, []byte(`
server:
  tickRate: 40
  maxConnections: 16
`), 0644)
		require.NoError(t, err)
		conf, err = Process([]string{yaml})
		require.NoError(t, err)
		require.Equal(t, 40, conf.Server.TickRate)
		require.Equal(t, 16, conf.Server.MaxConnections)
	}

	// json config
	{
		json := filepath.Join(dir, "config.json")
		err = os.WriteFile(json, []byte(`{
  "server": {
    "address": "127.0.0.1:4567"
  }
}`), 0644)
		require.NoError(t, err)
		conf, err = Process([]string{json})
		require.NoError(t, err)
		require.Equal(t, "127.0.0.1:4567", conf.Server.Address)
	}

	// multiple yaml
	{
		yaml1 := filepath.Join(dir, "config1.yaml")
		err = os.WriteFile(yaml1, []byte(`
server:
  tickRate: 10
`), 0644)
		require.NoError(t, err)

		yaml2 := filepath.Join(dir, "config2.yaml")
		err = os.WriteFile(yaml2, []byte(`
server:
  connectionMode: online
`), 0644)
		require.NoError(t, err)
		conf, err = Process([]string{yaml1, yaml2})
		require.NoError(t, err)
		require.Equal(t, 10, conf.Server.TickRate)
		require.Equal(t, "online", conf.Server.ConnectionMode)
	}

	// Constraint violations are rejected by the schema.
	{
		yaml := filepath.Join(dir, "invalid.yaml")
		err = os.WriteFile(yaml, []byte(`
server:
  tickRate: 0
`), 0644)
		require.NoError(t, err)
		_, err = Process([]string{yaml})
		require.Error(t, err)
	}

	{
		yaml := filepath.Join(dir, "badmode.yaml")
		err = os.WriteFile(yaml, []byte(`
server:
  connectionMode: peer-to-peer
`), 0644)
		require.NoError(t, err)
		_, err = Process([]string{yaml})
		require.Error(t, err)
	}
}

func TestServerConfig(t *testing.T) {
	conf, err := Process([]string{})
	require.NoError(t, err)

	serverConfig, err := conf.ServerConfig()
	require.NoError(t, err)

	require.Equal(t, server.ConnectionModeOffline, serverConfig.ConnectionMode)
	require.Equal(t, conf.Server.TickRate, serverConfig.TickRate)
	require.Len(t, serverConfig.Dimensions, len(conf.Server.Dimensions))
	require.Len(t, serverConfig.Biomes, len(conf.Server.Biomes))

	// The translated config passes the runtime's own validation and
	// feeds the registry builder.
	_, err = server.BuildRegistryCodec(serverConfig.Dimensions, serverConfig.Biomes)
	require.NoError(t, err)

	conf.Server.ConnectionMode = "peer-to-peer"
	_, err = conf.ServerConfig()
	require.Error(t, err)
}
