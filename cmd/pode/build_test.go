package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildCommand_OutputFlagDefault(t *testing.T) {
	cmd := newBuildCommand()
	flag := cmd.Flags().Lookup("output")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "", flag.DefValue, "empty default lets RunE fall back to pode-server")
	}
}

func TestTestCommand_CoverProfileFlagDefaultsFromEnv(t *testing.T) {
	t.Setenv("PODE_COVERAGE_FILE", "cover.out")
	cmd := newTestCommand()
	flag := cmd.Flags().Lookup("coverprofile")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "cover.out", flag.DefValue)
	}
}

func TestRestartCommand_VarsFlagRegistered(t *testing.T) {
	cmd := newRestartCommand()
	assert.NotNil(t, cmd.Flags().Lookup("vars"))
}

func TestStartCommand_FlagsRegistered(t *testing.T) {
	cmd := newStartCommand()
	assert.NotNil(t, cmd.Flags().Lookup("binary"))
	assert.NotNil(t, cmd.Flags().Lookup("vars"))
}
