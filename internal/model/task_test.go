package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskDefinition_Validate(t *testing.T) {
	tests := []struct {
		name       string
		definition TaskDefinition
		wantErr    bool
	}{
		{
			name:       "Valid",
			definition: TaskDefinition{Identifier: "app.tasks.check_reorgs", Every: 3, Unit: IntervalMinutes},
		},
		{
			name:       "Longest interval",
			definition: TaskDefinition{Identifier: "app.tasks.long", Every: 106751, Unit: IntervalDays},
		},
		{
			name:       "Empty identifier",
			definition: TaskDefinition{Every: 3, Unit: IntervalMinutes},
			wantErr:    true,
		},
		{
			name:       "Zero interval",
			definition: TaskDefinition{Identifier: "app.tasks.zero", Every: 0, Unit: IntervalSeconds},
			wantErr:    true,
		},
		{
			name:       "Unknown unit",
			definition: TaskDefinition{Identifier: "app.tasks.weekly", Every: 1, Unit: "weeks"},
			wantErr:    true,
		},
		{
			name:       "Overflowing interval",
			definition: TaskDefinition{Identifier: "app.tasks.overflow", Every: 200000, Unit: IntervalDays},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.definition.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestScheduleInterval_Duration(t *testing.T) {
	interval := ScheduleInterval{Every: 13, Unit: IntervalSeconds}
	assert.True(t, interval.Valid())
	assert.Equal(t, 13*time.Second, interval.Duration())
	assert.Equal(t, "every 13 seconds", interval.String())

	assert.False(t, ScheduleInterval{Every: 200000, Unit: IntervalDays}.Valid())
	assert.False(t, ScheduleInterval{Every: -1, Unit: IntervalHours}.Valid())
}
