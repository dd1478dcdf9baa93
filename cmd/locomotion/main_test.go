package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestParseTarget(t *testing.T) {
	got, err := parseTarget("120, -40")
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 120, Z: -40}, got)

	_, err = parseTarget("120")
	assert.Error(t, err)
}

func TestDemoScript(t *testing.T) {
	walkOnly := demoScript(1)
	back := walkOnly.Objective(10*time.Second, r3.Vec{}, r3.Vec{Z: 1})
	assert.True(t, back.Moving)
	assert.Zero(t, back.Mode, "a single mode never strafes")

	withStrafe := demoScript(2)
	assert.Equal(t, 1, withStrafe.Objective(10*time.Second, r3.Vec{}, r3.Vec{Z: 1}).Mode)
	assert.False(t, withStrafe.Objective(withStrafe.Duration(), r3.Vec{}, r3.Vec{Z: 1}).Moving)
}
