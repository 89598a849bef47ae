package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "request", "queue", "watch", "aggregate", "status"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "hirely", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestQueueCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range queueCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"list", "size", "flush", "clear"} {
		assert.True(t, names[name], "queue should have subcommand %q", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRequestCommand_Flags(t *testing.T) {
	for _, name := range []string{"data", "header", "timeout", "retries", "no-retry"} {
		assert.NotNil(t, requestCmd.Flags().Lookup(name), "request should have --%s flag", name)
	}
	assert.Error(t, requestCmd.Args(requestCmd, nil))
	assert.NoError(t, requestCmd.Args(requestCmd, []string{"/jobs"}))
	assert.NoError(t, requestCmd.Args(requestCmd, []string{"POST", "/applications"}))
	assert.Error(t, requestCmd.Args(requestCmd, []string{"POST", "/a", "extra"}))
}

func TestAggregateCommand_Flags(t *testing.T) {
	for _, name := range []string{"search", "location", "remote", "job-type", "posted-within", "page", "sources", "endpoint", "json"} {
		assert.NotNil(t, aggregateCmd.Flags().Lookup(name), "aggregate should have --%s flag", name)
	}
	assert.Equal(t, "1", aggregateCmd.Flags().Lookup("page").DefValue)
}
