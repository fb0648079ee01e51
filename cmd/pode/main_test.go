package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasAllSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"init", "build", "install", "start", "restart", "test"} {
		assert.True(t, names[want], "expected %q subcommand to be registered", want)
	}
}

func TestRootCommand_UnknownSubcommandErrors(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"bogus"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	require.Error(t, err)
}

func TestRootCommand_HelpRuns(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"--help"})
	var out bytes.Buffer
	root.SetOut(&out)
	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, out.String(), "pode")
}
