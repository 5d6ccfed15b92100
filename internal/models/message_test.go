package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from MessageStatus
		to   MessageStatus
		want bool
	}{
		{MessageStatusPending, MessageStatusSent, true},
		{MessageStatusPending, MessageStatusDelivered, true},
		{MessageStatusPending, MessageStatusRead, true},
		{MessageStatusPending, MessageStatusFailed, true},
		{MessageStatusSent, MessageStatusDelivered, true},
		{MessageStatusSent, MessageStatusRead, true},
		{MessageStatusSent, MessageStatusFailed, true},
		{MessageStatusDelivered, MessageStatusRead, true},

		// regressions
		{MessageStatusSent, MessageStatusPending, false},
		{MessageStatusDelivered, MessageStatusSent, false},
		{MessageStatusRead, MessageStatusDelivered, false},

		// terminal states
		{MessageStatusRead, MessageStatusFailed, false},
		{MessageStatusFailed, MessageStatusSent, false},
		{MessageStatusFailed, MessageStatusPending, false},

		// failed is unreachable once delivered
		{MessageStatusDelivered, MessageStatusFailed, false},

		// no self transitions
		{MessageStatusPending, MessageStatusPending, false},
		{MessageStatusRead, MessageStatusRead, false},

		// unknown states never transition
		{MessageStatus("queued"), MessageStatusSent, false},
		{MessageStatusSent, MessageStatus("queued"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}
