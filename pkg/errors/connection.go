package errors

import (
	"fmt"
	"time"
)

// TransportErrorData contains structured data for transport-related errors
type TransportErrorData struct {
	Transport string `json:"transport"`
	Operation string `json:"operation,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	Retryable bool   `json:"retryable"`
	Reason    string `json:"reason,omitempty"`
}

// TimeoutErrorData contains structured data for deadline-bounded sends
type TimeoutErrorData struct {
	Method  string        `json:"method,omitempty"`
	Timeout time.Duration `json:"timeout"`
}

// MissingField creates a configuration error for a descriptor field that is
// required by the declared transport kind but absent. Never retried.
func MissingField(transport, field string) MCPError {
	return NewErrorf(
		CodeMissingParameter,
		CategoryValidation,
		SeverityError,
		"%s transport requires %s", transport, field,
	)
}

// ConnectionNotFound creates an error for an unknown connection id or
// server name.
func ConnectionNotFound(id string) MCPError {
	return NewErrorf(
		CodeConnectionNotFound,
		CategoryNotFound,
		SeverityError,
		"connection not found: %s", id,
	).WithContext(&Context{
		ConnectionID: id,
		Timestamp:    time.Now(),
	})
}

// ConnectionNotActive creates an error for a connection that exists but is
// not in a state that can carry traffic.
func ConnectionNotActive(id, status string) MCPError {
	return NewErrorf(
		CodeConnectionNotActive,
		CategoryNotFound,
		SeverityError,
		"connection %s is not active (status: %s)", id, status,
	).WithContext(&Context{
		ConnectionID: id,
		Timestamp:    time.Now(),
	})
}

// TransportError creates a generic transport error
func TransportError(transport, operation string, cause error) MCPError {
	message := fmt.Sprintf("%s transport error", transport)
	if operation != "" {
		message = fmt.Sprintf("%s transport error during %s", transport, operation)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	err := WrapError(
		cause,
		CodeTransportError,
		message,
		CategoryTransport,
		SeverityError,
	)
	data := &TransportErrorData{
		Transport: transport,
		Operation: operation,
		Retryable: true,
	}
	if cause != nil {
		data.Reason = cause.Error()
	}
	return err.WithData(data)
}

// ConnectionFailed creates an error for connection establishment failures
func ConnectionFailed(transport, endpoint string, cause error) MCPError {
	message := fmt.Sprintf("failed to connect via %s", transport)
	if endpoint != "" {
		message = fmt.Sprintf("failed to connect to %s via %s", endpoint, transport)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return WrapError(
		cause,
		CodeConnectionFailed,
		message,
		CategoryTransport,
		SeverityCritical,
	).WithData(&TransportErrorData{
		Transport: transport,
		Operation: "connect",
		Endpoint:  endpoint,
		Retryable: true,
	})
}

// ConnectionLost creates an error for connections dropped mid-operation
func ConnectionLost(transport, operation string, cause error) MCPError {
	message := fmt.Sprintf("lost %s connection", transport)
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return WrapError(
		cause,
		CodeConnectionLost,
		message,
		CategoryTransport,
		SeverityError,
	).WithData(&TransportErrorData{
		Transport: transport,
		Operation: operation,
		Retryable: true,
	})
}

// RequestTimeout creates an error for a deadline-bounded send that
// exceeded its deadline. Surfaced to the caller, never auto-retried.
func RequestTimeout(method string, timeout time.Duration) MCPError {
	return NewErrorf(
		CodeOperationTimeout,
		CategoryTimeout,
		SeverityError,
		"request %s timed out after %v", method, timeout,
	).WithData(&TimeoutErrorData{
		Method:  method,
		Timeout: timeout,
	})
}

// HandshakeFailed creates an error for a malformed or rejected initialize
// exchange. Aborts the current connect/reconnect attempt.
func HandshakeFailed(serverName string, cause error) MCPError {
	message := fmt.Sprintf("handshake with %s failed", serverName)
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return WrapError(
		cause,
		CodeHandshakeFailed,
		message,
		CategoryProtocol,
		SeverityError,
	).WithContext(&Context{
		ServerName: serverName,
		Operation:  "handshake",
		Timestamp:  time.Now(),
	})
}
