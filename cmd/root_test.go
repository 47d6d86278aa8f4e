package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"migrate", "fetch", "ingest", "analyze", "merge", "conflicts", "export", "status", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "dedup-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestMergeCommand_RequiredFlags(t *testing.T) {
	flag := mergeCmd.Flags().Lookup("reason")
	require.NotNil(t, flag, "merge command should have --reason flag")
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestIngestCommand_Flags(t *testing.T) {
	for _, name := range []string{"collection", "manifest", "output", "workers", "json"} {
		assert.NotNil(t, ingestCmd.Flags().Lookup(name), "ingest command should have --%s flag", name)
	}
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("source-root")
	require.NotNil(t, flag, "export command should have --source-root flag")
	assert.Equal(t, ".", flag.DefValue)
}

func TestConflictsCommand_Flags(t *testing.T) {
	flag := conflictsCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "conflicts command should have --limit flag")
	assert.Equal(t, "50", flag.DefValue)
}
