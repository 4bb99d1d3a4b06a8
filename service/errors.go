package service

import (
	"errors"
	"fmt"
	"strings"

	"regulaite-backend/models"
)

var (
	ErrEmptyQuery      = errors.New("query is empty")
	ErrDuplicateQuery  = errors.New("query duplicates the last user turn")
	ErrEmptyResponse   = errors.New("backend returned no content")
	ErrNotConfigured   = errors.New("backend is not configured")
	ErrInvalidLogin    = errors.New("invalid username or password")
	ErrSignupDisabled  = errors.New("sign-up is disabled")
	ErrUserExists      = errors.New("user already exists")
	ErrInvalidUsername = errors.New("username must be 3-64 characters with no spaces, colons or slashes")
	ErrWeakPassword    = errors.New("password must be at least 8 characters")
)

// ConfigurationError reports settings that must be present but are not
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing configuration: " + strings.Join(e.Missing, ", ")
}

func (e *ConfigurationError) Unwrap() error {
	return ErrNotConfigured
}

// BackendError reports a failed backend call
type BackendError struct {
	Backend string
	Status  string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s backend failed (status=%s): %v", e.Backend, e.Status, e.Err)
	}
	return fmt.Sprintf("%s backend failed: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// errorRecord converts a pipeline error into a displayable record
func errorRecord(err error) *models.AnswerRecord {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return models.NewMarkdownAnswer(
			"### Configuration error\n" +
				"The managed agent backend is partially configured; required settings are missing.\n\n" +
				"Missing: " + strings.Join(cfgErr.Missing, ", "))
	}

	var beErr *BackendError
	if errors.As(err, &beErr) {
		var b strings.Builder
		b.WriteString("### Backend error\n")
		b.WriteString(fmt.Sprintf("The %s backend could not complete the request.\n\n", beErr.Backend))
		if beErr.Status != "" {
			b.WriteString(fmt.Sprintf("Status: %s\n\n", beErr.Status))
		}
		if beErr.Err != nil {
			b.WriteString(fmt.Sprintf("Details: %v", beErr.Err))
		}
		return models.NewMarkdownAnswer(strings.TrimSpace(b.String()))
	}

	return models.NewMarkdownAnswer("### Error\nCould not complete the request.\n\nDetails: " + err.Error())
}
