package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	c := &Config{}
	c.applyDefaults()

	assert.Equal(t, ":8080", c.Server.AdminAddr)
	assert.Equal(t, 6090, c.Pool.StartPort)
	assert.Equal(t, 6096, c.Pool.EndPort)
	assert.Equal(t, "codescord", c.Pool.Image)
	assert.Equal(t, 5, c.Pool.ConnectRetries)
	assert.Equal(t, 30000, c.Worker.JobTimeoutMS)
	assert.Equal(t, "postgres", c.Database.Backend)
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	t.Setenv("POOL_START_PORT", "7000")
	t.Setenv("POOL_END_PORT", "7010")
	t.Setenv("POOL_RUNSC_ENABLED", "true")

	c := &Config{}
	c.applyEnvOverrides()
	c.applyDefaults()

	assert.Equal(t, 7000, c.Pool.StartPort)
	assert.Equal(t, 7010, c.Pool.EndPort)
	assert.True(t, c.Pool.RunscEnabled)
}
