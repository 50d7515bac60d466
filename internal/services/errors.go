package services

import "fmt"

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

// InvalidIDError is a malformed path or query identifier.
type InvalidIDError struct{ Message string }

func (e *InvalidIDError) Error() string { return e.Message }

// ConfigError means the server is missing configuration it needs to serve the
// request. Setting holds the variable name for logs and is never sent to clients.
type ConfigError struct{ Setting string }

func (e *ConfigError) Error() string {
	return fmt.Sprintf("server configuration error: %s is not set", e.Setting)
}
