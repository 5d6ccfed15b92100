package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhoneNumber(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{"empty", "", ""},
		{"plain number", "5511999887766", "*********7766"},
		{"with plus", "+5511999887766", "+*********7766"},
		{"short number", "123", "***"},
		{"plus only", "+", "+"},
		{"plus and four digits", "+1234", "+****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskPhoneNumber(tt.phone))
		})
	}
}

func TestMaskChatID(t *testing.T) {
	tests := []struct {
		name   string
		chatID string
		want   string
	}{
		{"empty", "", ""},
		{"individual chat", "5511999887766@c.us", "*********7766@c.us"},
		{"group chat", "123456789-987654@g.us", "************7654@g.us"},
		{"short number part", "123@c.us", "***@c.us"},
		{"no domain", "5511999887766", "*********7766"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskChatID(tt.chatID))
		})
	}
}

func TestMaskMessageID(t *testing.T) {
	tests := []struct {
		name      string
		messageID string
		want      string
	}{
		{"empty", "", ""},
		{
			"serialized gateway id",
			"true_5511999887766@c.us_A1B2C3D4E5F6",
			"true_*********7766@c.us_********E5F6",
		},
		{"opaque id", "A1B2C3D4E5F6G7H8", "********E5F6G7H8"},
		{"short opaque id", "ABC", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskMessageID(tt.messageID))
		})
	}
}

func TestMaskSessionName(t *testing.T) {
	assert.Equal(t, "", MaskSessionName(""))
	assert.Equal(t, "****ult", MaskSessionName("default"))
	assert.Equal(t, "***", MaskSessionName("abc"))
}

func TestMaskSensitiveFields(t *testing.T) {
	fields := map[string]interface{}{
		"phone":     "5511999887766",
		"from":      "+5511999887766",
		"chatId":    "5511999887766@c.us",
		"messageId": "true_5511999887766@c.us_A1B2C3D4E5F6",
		"session":   "warmup-1",
		"accountId": int64(7),
		"status":    "sent",
	}

	masked := MaskSensitiveFields(fields)

	assert.Equal(t, "*********7766", masked["phone"])
	assert.Equal(t, "+*********7766", masked["from"])
	assert.Equal(t, "*********7766@c.us", masked["chatId"])
	assert.Equal(t, "true_*********7766@c.us_********E5F6", masked["messageId"])
	assert.Equal(t, "*****p-1", masked["session"])
	assert.Equal(t, int64(7), masked["accountId"])
	assert.Equal(t, "sent", masked["status"])
}

func TestMaskSensitiveFieldsNil(t *testing.T) {
	assert.Nil(t, MaskSensitiveFields(nil))
}

func TestMaskSensitiveFieldsNonStringIdentifier(t *testing.T) {
	masked := MaskSensitiveFields(map[string]interface{}{"phone": 5511999887766})
	assert.Equal(t, 5511999887766, masked["phone"])
}
