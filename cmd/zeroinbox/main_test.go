package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMax(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		wantErr bool
	}{
		{"zero uses configured limit", 0, false},
		{"positive", 25, false},
		{"negative", -5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMax(tt.max)
			if tt.wantErr {
				assert.ErrorContains(t, err, "-5")
				return
			}
			assert.NoError(t, err)
		})
	}
}
