package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateBeatFlags(t *testing.T) {
	tests := []struct {
		name            string
		reloadInterval  time.Duration
		runRetention    time.Duration
		collectInterval time.Duration
		wantErr         string
	}{
		{
			name:            "Defaults",
			reloadInterval:  time.Minute,
			runRetention:    30 * 24 * time.Hour,
			collectInterval: 15 * time.Second,
		},
		{
			name:            "Zero reload interval",
			runRetention:    time.Hour,
			collectInterval: time.Second,
			wantErr:         "--reload-interval",
		},
		{
			name:            "Negative retention",
			reloadInterval:  time.Minute,
			runRetention:    -time.Hour,
			collectInterval: time.Second,
			wantErr:         "--run-retention",
		},
		{
			name:           "Zero collect interval",
			reloadInterval: time.Minute,
			runRetention:   time.Hour,
			wantErr:        "--collect-interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBeatFlags(tt.reloadInterval, tt.runRetention, tt.collectInterval)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBeatCommand_RejectsInvalidFlags(t *testing.T) {
	cmd := newBeatCommand(&rootOptions{})
	cmd.SetArgs([]string{"--reload-interval", "0s"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	assert.ErrorContains(t, err, "--reload-interval")
}
