package server

import "log/slog"

// Display receives one line per notable session lifecycle event (connect,
// login success or failure, logout, disconnect, message sent). The label
// identifies the client by peer address and, once known, username.
//
// The default implementation writes the lines to the structured log; a
// deployment with an operator UI can substitute its own.
type Display interface {
	Message(label, message string)
}

type logDisplay struct{}

// NewLogDisplay returns a Display that logs events through slog.
func NewLogDisplay() Display {
	return logDisplay{}
}

func (logDisplay) Message(label, message string) {
	slog.Info(message, "client", label)
}
