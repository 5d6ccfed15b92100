package validation

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"waflow/internal/constants"
	"waflow/internal/errors"
)

// ValidateChatID validates a recipient chat identifier. Individual
// chats are a phone number with an @c.us suffix; bare numbers are
// accepted too and normalized by the caller.
func ValidateChatID(chatID string) error {
	if chatID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "chat ID cannot be empty")
	}

	if strings.HasSuffix(chatID, "@g.us") {
		return errors.New(errors.ErrCodeInvalidInput, "group chats are not dispatchable")
	}

	return ValidatePhoneNumber(strings.TrimSuffix(chatID, "@c.us"))
}

// ValidatePhoneNumber validates phone number format and length
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return errors.New(errors.ErrCodeInvalidInput, "phone number cannot be empty")
	}

	cleaned := strings.TrimPrefix(phone, "+")

	if len(cleaned) < constants.MinPhoneNumberLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number must be at least %d digits", constants.MinPhoneNumberLength))
	}
	if len(cleaned) > constants.MaxPhoneNumberLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number too long (max %d digits)", constants.MaxPhoneNumberLength))
	}

	for _, char := range cleaned {
		if !unicode.IsDigit(char) {
			return errors.New(errors.ErrCodeInvalidInput, "phone number must contain only digits")
		}
	}

	return nil
}

// ValidateSessionName validates session name format and length
func ValidateSessionName(sessionName string) error {
	if sessionName == "" {
		return errors.New(errors.ErrCodeInvalidInput, "session name cannot be empty")
	}

	if len(sessionName) > constants.MaxSessionNameLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("session name too long (max %d characters)", constants.MaxSessionNameLength))
	}

	for _, char := range sessionName {
		if !unicode.IsLetter(char) && !unicode.IsDigit(char) && char != '_' && char != '-' {
			return errors.New(errors.ErrCodeInvalidInput,
				"session name must contain only letters, numbers, underscores, and dashes")
		}
	}

	return nil
}

// ValidateTemplate bounds the campaign message template.
func ValidateTemplate(template string) error {
	if strings.TrimSpace(template) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "template cannot be empty")
	}
	if len(template) > constants.MaxTemplateLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("template too long (max %d characters)", constants.MaxTemplateLength))
	}
	return nil
}

// ValidateHTTPRequestSize validates incoming HTTP request size
func ValidateHTTPRequestSize(r *http.Request, maxSizeBytes int64) error {
	if r.ContentLength < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "invalid content length")
	}

	if r.ContentLength > maxSizeBytes {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("request too large: %d bytes (max %d bytes)", r.ContentLength, maxSizeBytes))
	}

	return nil
}

// ValidateStringLength validates string length against bounds
func ValidateStringLength(value, fieldName string, minLength, maxLength int) error {
	if len(value) < minLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too short (min %d characters)", fieldName, minLength))
	}

	if len(value) > maxLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too long (max %d characters)", fieldName, maxLength))
	}

	return nil
}
