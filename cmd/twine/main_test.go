package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/nobletooth/twine/pkg/config"
	"github.com/nobletooth/twine/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsAreRegisteredInConfig(t *testing.T) {
	unregisteredFlags := config.CollectUnregisteredFlags()
	if len(unregisteredFlags) != 0 {
		t.Fail()
		for _, flagErr := range unregisteredFlags {
			t.Error(flagErr)
		}
	}
}

func TestConfigFileDrivesTwineFlags(t *testing.T) {
	for _, name := range []string{"repl", "metrics_address", "idle_close", "shard_count", "verify_list_links"} {
		utils.SetTestFlag(t, name, flag.Lookup(name).Value.String()) // Restored after the test.
	}
	configPath := filepath.Join(t.TempDir(), "twine.txtpb")
	require.NoError(t, os.WriteFile(configPath, []byte(`
repl: true
server {
  metrics_address: "127.0.0.1:9464"
  idle_close { seconds: 90 }
}
store {
  shard_count: 3
  verify_list_links: true
}
`), 0o644))
	utils.SetTestFlag(t, "config_file", configPath)

	config.InitFlags()
	assert.True(t, *replMode)
	assert.Equal(t, "127.0.0.1:9464", *metricsAddress)
	assert.Equal(t, "1m30s", flag.Lookup("idle_close").Value.String())
	assert.Equal(t, "3", flag.Lookup("shard_count").Value.String())
	assert.Equal(t, "true", flag.Lookup("verify_list_links").Value.String())
}
