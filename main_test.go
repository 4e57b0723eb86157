package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerCmd_RejectsWeakSecretBeforeOpeningDatabase(t *testing.T) {
	t.Setenv("SMARTTASK_CONFIG", "")
	t.Setenv("SMARTTASK_AUTH_JWT_SECRET", "")
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "server.db")
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("auth:\n  jwt_secret: short\ndatabase:\n  path: "+dbPath+"\n"), 0600))

	cmd := newServerCmd()
	cmd.SetArgs([]string{"--config", configPath})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
	assert.NoFileExists(t, dbPath)
}

func TestServerCmd_Flags(t *testing.T) {
	var out bytes.Buffer
	cmd := newServerCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), Version)

	cmd = newServerCmd()
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}
