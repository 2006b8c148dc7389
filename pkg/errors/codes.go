package errors

// JSON-RPC 2.0 Standard Error Codes
// These map to the protocol package error codes
const (
	// CodeParseError indicates invalid JSON was received
	CodeParseError int = -32700

	// CodeInvalidRequest indicates the JSON sent is not a valid Request object
	CodeInvalidRequest int = -32600

	// CodeMethodNotFound indicates the method does not exist / is not available
	CodeMethodNotFound int = -32601

	// CodeInvalidParams indicates invalid method parameter(s)
	CodeInvalidParams int = -32602

	// CodeInternalError indicates internal JSON-RPC error
	CodeInternalError int = -32603
)

// Connection manager specific error codes
const (
	// Operation Errors (-32300 to -32399)
	CodeOperationCancelled int = -32300 // Operation was cancelled
	CodeOperationTimeout   int = -32301 // Operation timed out
	CodeOperationFailed    int = -32302 // Operation failed

	// Transport and Connection Errors (-32500 to -32599)
	CodeTransportError      int = -32500 // Generic transport error
	CodeConnectionFailed    int = -32501 // Failed to establish connection
	CodeConnectionLost      int = -32502 // Connection lost during operation
	CodeConnectionTimeout   int = -32503 // Connection timed out
	CodeConnectionNotFound  int = -32504 // Unknown connection id or server name
	CodeConnectionNotActive int = -32505 // Connection not in a usable state

	// Validation Errors (-32750 to -32799)
	CodeValidationError  int = -32750 // Generic validation error
	CodeMissingParameter int = -32751 // Required configuration field missing
	CodeInvalidParameter int = -32752 // Configuration field has invalid value

	// Protocol Errors (-32900 to -32999)
	CodeProtocolError   int = -32900 // Generic protocol error
	CodeHandshakeFailed int = -32901 // Malformed or rejected initialize exchange
)

// ErrorCodeInfo provides human-readable information about error codes
type ErrorCodeInfo struct {
	Code        int
	Name        string
	Description string
	Category    Category
	Severity    Severity
}

// errorCodeRegistry maps error codes to their information
var errorCodeRegistry = map[int]ErrorCodeInfo{
	CodeParseError:     {CodeParseError, "ParseError", "Invalid JSON was received", CategoryProtocol, SeverityError},
	CodeInvalidRequest: {CodeInvalidRequest, "InvalidRequest", "Invalid Request object", CategoryProtocol, SeverityError},
	CodeMethodNotFound: {CodeMethodNotFound, "MethodNotFound", "Method does not exist", CategoryProtocol, SeverityError},
	CodeInvalidParams:  {CodeInvalidParams, "InvalidParams", "Invalid method parameters", CategoryValidation, SeverityError},
	CodeInternalError:  {CodeInternalError, "InternalError", "Internal JSON-RPC error", CategoryInternal, SeverityError},

	CodeOperationCancelled: {CodeOperationCancelled, "OperationCancelled", "Operation cancelled", CategoryCancelled, SeverityInfo},
	CodeOperationTimeout:   {CodeOperationTimeout, "OperationTimeout", "Operation timed out", CategoryTimeout, SeverityError},
	CodeOperationFailed:    {CodeOperationFailed, "OperationFailed", "Operation failed", CategoryInternal, SeverityError},

	CodeTransportError:      {CodeTransportError, "TransportError", "Transport error", CategoryTransport, SeverityError},
	CodeConnectionFailed:    {CodeConnectionFailed, "ConnectionFailed", "Failed to establish connection", CategoryTransport, SeverityCritical},
	CodeConnectionLost:      {CodeConnectionLost, "ConnectionLost", "Connection lost", CategoryTransport, SeverityError},
	CodeConnectionTimeout:   {CodeConnectionTimeout, "ConnectionTimeout", "Connection timed out", CategoryTimeout, SeverityError},
	CodeConnectionNotFound:  {CodeConnectionNotFound, "ConnectionNotFound", "Connection not found", CategoryNotFound, SeverityError},
	CodeConnectionNotActive: {CodeConnectionNotActive, "ConnectionNotActive", "Connection not in a usable state", CategoryNotFound, SeverityError},

	CodeValidationError:  {CodeValidationError, "ValidationError", "Validation error", CategoryValidation, SeverityError},
	CodeMissingParameter: {CodeMissingParameter, "MissingParameter", "Required field missing", CategoryValidation, SeverityError},
	CodeInvalidParameter: {CodeInvalidParameter, "InvalidParameter", "Field has invalid value", CategoryValidation, SeverityError},

	CodeProtocolError:   {CodeProtocolError, "ProtocolError", "Protocol error", CategoryProtocol, SeverityError},
	CodeHandshakeFailed: {CodeHandshakeFailed, "HandshakeFailed", "Initialize exchange failed", CategoryProtocol, SeverityError},
}

// GetErrorCodeInfo returns information about an error code
func GetErrorCodeInfo(code int) (ErrorCodeInfo, bool) {
	info, ok := errorCodeRegistry[code]
	return info, ok
}

// CodeName returns the symbolic name for an error code, or "Unknown"
func CodeName(code int) string {
	if info, ok := errorCodeRegistry[code]; ok {
		return info.Name
	}
	return "Unknown"
}
