package wire

// Envelope wraps every message exchanged between client and server.
// Exactly one of its fields is set per envelope.
type Envelope struct {
	// Client -> server
	Login   *LoginRequest   `json:"login_request,omitempty"`
	Logout  *LogoutRequest  `json:"logout_request,omitempty"`
	Text    *TextMessage    `json:"text_message,omitempty"`
	Whisper *WhisperRequest `json:"whisper_request,omitempty"`
	WhoIsIn *WhoIsInRequest `json:"whoisin_request,omitempty"`

	// Server -> client
	LoginFailed *LoginFailed        `json:"login_failed,omitempty"`
	ServerText  *TextServerMessage  `json:"text_server_message,omitempty"`
	ClientList  *ClientListResponse `json:"client_list_response,omitempty"`
}

// ----- Client -> server -----

type LoginRequest struct {
	Username string `json:"username"`
}

type LogoutRequest struct{}

type TextMessage struct {
	Text string `json:"text"`
}

type WhisperRequest struct {
	TargetUsername string `json:"target_username"`
	Text           string `json:"text"`
}

type WhoIsInRequest struct{}

// ----- Server -> client -----

type LoginFailed struct {
	Reason string `json:"reason"`
}

type TextServerMessage struct {
	SenderUsername string `json:"sender_username"`
	Text           string `json:"text"`
}

type ClientListResponse struct {
	Usernames []string `json:"usernames"`
}

// empty reports whether no variant is set. An envelope that parses as JSON
// but carries no recognized variant is rejected by the codec.
func (e *Envelope) empty() bool {
	return e.Login == nil && e.Logout == nil && e.Text == nil &&
		e.Whisper == nil && e.WhoIsIn == nil &&
		e.LoginFailed == nil && e.ServerText == nil && e.ClientList == nil
}
