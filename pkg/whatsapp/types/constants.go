package types

const (
	APIBase = "/api"

	EndpointSendText     = "/sendText"
	EndpointSendSeen     = "/sendSeen"
	EndpointStartTyping  = "/startTyping"
	EndpointStopTyping   = "/stopTyping"
	EndpointContactsAll  = "/contacts/all"
	EndpointNumberStatus = "/contacts/check-exists"
	EndpointSessions     = "/sessions"
)
