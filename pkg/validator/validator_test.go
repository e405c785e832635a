package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
)

type bookingInput struct {
	Type   string          `json:"consultation_type" validate:"required,consultation_type"`
	Status string          `json:"status" validate:"omitempty,consultation_status"`
	Start  model.ClockTime `json:"start_time" validate:"clock"`
	Raw    string          `json:"raw_time" validate:"omitempty,clock"`
}

func TestCustomTags(t *testing.T) {
	v := New()

	ok := bookingInput{Type: "video", Status: "no_show", Start: model.NewClockTime(24, 0), Raw: "09:30"}
	require.NoError(t, v.Struct(ok))

	tests := []struct {
		name  string
		input bookingInput
		want  string
	}{
		{"bad type", bookingInput{Type: "house_call"}, "consultation_type must be one of"},
		{"missing type", bookingInput{}, "consultation_type is required"},
		{"bad status", bookingInput{Type: "phone", Status: "done"}, "status is not a valid consultation status"},
		{"past midnight", bookingInput{Type: "phone", Start: model.NewClockTime(24, 30)}, "start_time must be a time of day"},
		{"bad string clock", bookingInput{Type: "phone", Raw: "9h"}, "raw_time must be a time of day"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.input)
			require.Error(t, err)
			assert.Contains(t, Message(err), tt.want)
		})
	}
}

func TestMessage_NonValidationError(t *testing.T) {
	assert.Equal(t, "boom", Message(assertErr("boom")))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
