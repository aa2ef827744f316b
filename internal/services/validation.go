package services

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/dengue-gen/denguegen-backend/internal/metrics"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

const (
	MsgEmptyMessage   = "A mensagem não pode estar vazia."
	MsgMessageTooLong = "A mensagem é muito longa. Máximo de 4000 caracteres permitidos."
	MsgEmptyChatName  = "O nome do chat não pode estar vazio."
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrSessionNotReady      = errors.New("session not ready")
	ErrSessionClosed        = errors.New("session closed")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrChatNotFound         = errors.New("chat not found")
)

// ValidationError carries the user-facing message for a rejected input.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(reason, msg string) *ValidationError {
	metrics.ValidationRejections.WithLabelValues(reason).Inc()
	return &ValidationError{Reason: reason, Message: msg}
}

// ValidateMessageContent trims content and enforces the input bounds.
func ValidateMessageContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", newValidationError("empty", MsgEmptyMessage)
	}
	if utf8.RuneCountInString(trimmed) > types.MaxMessageLength {
		return "", newValidationError("too_long", MsgMessageTooLong)
	}
	return trimmed, nil
}

func ValidateChatName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", newValidationError("empty_name", MsgEmptyChatName)
	}
	return trimmed, nil
}
