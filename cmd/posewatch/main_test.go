package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    r3.Vec
		wantErr bool
	}{
		{"", r3.Vec{Z: 1}, false},
		{"1,0", r3.Vec{X: 1}, false},
		{" -0.5 , 2 ", r3.Vec{X: -0.5, Z: 2}, false},
		{"1", r3.Vec{}, true},
		{"a,b", r3.Vec{}, true},
	}
	for _, tt := range tests {
		got, err := parseDirection(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
