package cli

import (
	"errors"
	"fmt"

	"mercator-hq/conduit/pkg/providers"
)

// Exit codes returned by the conduit binary.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
	ExitAuth    = 3
)

// ConfigError represents an invalid flag or configuration value.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError wraps the failure of a subcommand.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var cliCfg *ConfigError
	var provCfg *providers.ConfigError
	var noProvider *providers.NoProviderError
	var auth *providers.AuthError

	switch {
	case errors.As(err, &cliCfg), errors.As(err, &provCfg), errors.As(err, &noProvider):
		return ExitConfig
	case errors.As(err, &auth):
		return ExitAuth
	default:
		return ExitFailure
	}
}
