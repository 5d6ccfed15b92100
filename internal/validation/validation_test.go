package validation

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"waflow/internal/constants"
)

func TestValidateChatID(t *testing.T) {
	tests := []struct {
		name    string
		chatID  string
		wantErr string
	}{
		{"valid individual chat", "5511999887766@c.us", ""},
		{"bare number accepted", "5511999887766", ""},
		{"empty", "", "chat ID cannot be empty"},
		{"group chat rejected", "123456789-987654@g.us", "group chats are not dispatchable"},
		{"too short", "12345@c.us", "at least"},
		{"non-numeric", "hello-world@c.us", "only digits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChatID(tt.chatID)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidatePhoneNumber(t *testing.T) {
	tests := []struct {
		name    string
		phone   string
		wantErr string
	}{
		{"valid", "5511999887766", ""},
		{"valid with plus", "+5511999887766", ""},
		{"minimum length", strings.Repeat("1", constants.MinPhoneNumberLength), ""},
		{"maximum length", strings.Repeat("1", constants.MaxPhoneNumberLength), ""},
		{"empty", "", "cannot be empty"},
		{"too short", "123456", "at least 7 digits"},
		{"too long", strings.Repeat("1", constants.MaxPhoneNumberLength+1), "too long"},
		{"letters", "55abc997766", "only digits"},
		{"spaces", "55 11 99988", "only digits"},
		{"embedded plus", "55+1199988776", "only digits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePhoneNumber(tt.phone)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateSessionName(t *testing.T) {
	tests := []struct {
		name    string
		session string
		wantErr string
	}{
		{"simple", "default", ""},
		{"with dashes and underscores", "warmup_account-2", ""},
		{"empty", "", "cannot be empty"},
		{"too long", strings.Repeat("a", constants.MaxSessionNameLength+1), "too long"},
		{"spaces", "my session", "must contain only"},
		{"path characters", "../etc/passwd", "must contain only"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionName(tt.session)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateTemplate(t *testing.T) {
	assert.NoError(t, ValidateTemplate("Hi {{name}}, your order shipped."))
	assert.NoError(t, ValidateTemplate(strings.Repeat("a", constants.MaxTemplateLength)))

	err := ValidateTemplate("   ")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")

	err = ValidateTemplate(strings.Repeat("a", constants.MaxTemplateLength+1))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "too long")
}

func TestValidateHTTPRequestSize(t *testing.T) {
	req := &http.Request{ContentLength: 512}
	assert.NoError(t, ValidateHTTPRequestSize(req, 1024))

	req.ContentLength = 2048
	err := ValidateHTTPRequestSize(req, 1024)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "request too large")

	req.ContentLength = -1
	err = ValidateHTTPRequestSize(req, 1024)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid content length")
}

func TestValidateStringLength(t *testing.T) {
	assert.NoError(t, ValidateStringLength("hello", "name", 1, 10))

	err := ValidateStringLength("", "name", 1, 10)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "name too short")

	err = ValidateStringLength("hello world", "name", 1, 5)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "name too long")
}
