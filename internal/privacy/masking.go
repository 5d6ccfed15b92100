// Package privacy masks recipient identifiers before they reach logs.
package privacy

import (
	"strings"
)

// keepTail masks all but the last keep characters.
func keepTail(s string, keep int) string {
	if len(s) <= keep {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keep) + s[len(s)-keep:]
}

// MaskPhoneNumber hides everything except the last four digits. A
// leading plus sign is kept.
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}
	if strings.HasPrefix(phone, "+") {
		return "+" + keepTail(phone[1:], 4)
	}
	return keepTail(phone, 4)
}

// MaskChatID masks the number part of a chat identifier and keeps the
// domain suffix, so "5511999887766@c.us" becomes "*********7766@c.us".
func MaskChatID(chatID string) string {
	if chatID == "" {
		return ""
	}
	number, domain, found := strings.Cut(chatID, "@")
	if !found {
		return keepTail(chatID, 4)
	}
	return keepTail(number, 4) + "@" + domain
}

// MaskMessageID masks a gateway message ID while keeping its structure.
// Serialized IDs look like "true_<chatId>_<id>".
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}
	parts := strings.SplitN(messageID, "_", 3)
	if len(parts) == 3 {
		return parts[0] + "_" + MaskChatID(parts[1]) + "_" + keepTail(parts[2], 4)
	}
	return keepTail(messageID, 8)
}

// MaskSessionName shows only the last three characters of a session
// name; enough to tell accounts apart in logs without naming them.
func MaskSessionName(sessionName string) string {
	if sessionName == "" {
		return ""
	}
	return keepTail(sessionName, 3)
}

// MaskSensitiveFields masks the well-known identifier keys in a logging
// field map. Unknown keys pass through untouched.
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			masked[k] = v
			continue
		}
		switch k {
		case "phone", "phone_number", "from", "to":
			masked[k] = MaskPhoneNumber(s)
		case "chat_id", "chatId":
			masked[k] = MaskChatID(s)
		case "message_id", "messageId", "gatewayMessageId":
			masked[k] = MaskMessageID(s)
		case "session", "session_name", "sessionName":
			masked[k] = MaskSessionName(s)
		default:
			masked[k] = v
		}
	}
	return masked
}
