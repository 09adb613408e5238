package neorpc

import (
	"fmt"
	"net/http"
)

// Error represents JSON-RPC 2.0 error type.
type Error struct {
	Code     int64  `json:"code"`
	HTTPCode int    `json:"-"`
	Message  string `json:"message"`
	Data     string `json:"data,omitempty"`
}

// Standard RPC error codes defined by the JSON-RPC 2.0 specification.
const (
	// ParseErrorCode is returned for malformed JSON.
	ParseErrorCode = -32700
	// InvalidRequestCode is returned for invalid requests.
	InvalidRequestCode = -32600
	// MethodNotFoundCode is returned for unknown methods.
	MethodNotFoundCode = -32601
	// InvalidParamsCode is returned for invalid method parameters.
	InvalidParamsCode = -32602
	// InternalServerErrorCode is returned for internal RPC server error.
	InternalServerErrorCode = -32603
)

// Node-specific error codes.
const (
	// RPCErrorCode is returned for generic chain errors.
	RPCErrorCode = -100
	// UnknownBlockCode is returned for missing blocks.
	UnknownBlockCode = -101
	// UnknownContractCode is returned for missing contracts.
	UnknownContractCode = -102
	// UnknownTransactionCode is returned for missing transactions.
	UnknownTransactionCode = -103
	// UnknownFactoryCode is returned for factories not known to the node.
	UnknownFactoryCode = -104
	// UnknownErrorCode is returned for unclassified submission errors.
	UnknownErrorCode = -500
	// AlreadyExistsCode is returned for transactions already on chain.
	AlreadyExistsCode = -501
	// InvalidNonceCode is returned for transactions with unexpected nonce.
	InvalidNonceCode = -502
	// InvalidSignatureCode is returned for transactions with bad signature.
	InvalidSignatureCode = -503
	// ValidationFailedCode is returned for otherwise invalid transactions.
	ValidationFailedCode = -504
)

var (
	// ErrInvalidParams represents a generic "invalid params" error.
	ErrInvalidParams = NewInvalidParamsError("invalid params")
	// ErrUnknownBlock is returned for missing blocks.
	ErrUnknownBlock = NewError(UnknownBlockCode, http.StatusUnprocessableEntity, "Unknown block", "")
	// ErrUnknownTransaction is returned for missing transactions.
	ErrUnknownTransaction = NewError(UnknownTransactionCode, http.StatusUnprocessableEntity, "Unknown transaction", "")
	// ErrUnknownContract is returned for missing contracts.
	ErrUnknownContract = NewError(UnknownContractCode, http.StatusUnprocessableEntity, "Unknown contract", "")
	// ErrUnknownFactory is returned for factories not known to the node.
	ErrUnknownFactory = NewError(UnknownFactoryCode, http.StatusUnprocessableEntity, "Unknown contract factory", "")
	// ErrAlreadyExists is returned for transactions already on chain.
	ErrAlreadyExists = NewSubmitError(AlreadyExistsCode, "Transaction already exists and cannot be sent repeatedly.")
	// ErrInvalidNonce is returned for transactions with wrong nonce.
	ErrInvalidNonce = NewSubmitError(InvalidNonceCode, "Invalid transaction nonce.")
	// ErrInvalidSignature is returned for transactions with bad signature.
	ErrInvalidSignature = NewSubmitError(InvalidSignatureCode, "Invalid transaction signature.")
	// ErrValidationFailed is returned for transactions failing verification.
	ErrValidationFailed = NewSubmitError(ValidationFailedCode, "Transaction validation failed.")
	// ErrUnknown is returned for transactions rejected for unknown reason.
	ErrUnknown = NewSubmitError(UnknownErrorCode, "Unknown error.")
)

// NewError is an Error constructor that takes Error contents from its
// parameters.
func NewError(code int64, httpCode int, message string, data string) *Error {
	return &Error{
		Code:     code,
		HTTPCode: httpCode,
		Message:  message,
		Data:     data,
	}
}

// NewParseError creates a new error with code
// -32700.
func NewParseError(data string) *Error {
	return NewError(ParseErrorCode, http.StatusBadRequest, "Parse Error", data)
}

// NewInvalidRequestError creates a new error with
// code -32600.
func NewInvalidRequestError(data string) *Error {
	return NewError(InvalidRequestCode, http.StatusUnprocessableEntity, "Invalid Request", data)
}

// NewMethodNotFoundError creates a new error with
// code -32601.
func NewMethodNotFoundError(data string) *Error {
	return NewError(MethodNotFoundCode, http.StatusMethodNotAllowed, "Method not found", data)
}

// NewInvalidParamsError creates a new error with
// code -32602.
func NewInvalidParamsError(data string) *Error {
	return NewError(InvalidParamsCode, http.StatusUnprocessableEntity, "Invalid Params", data)
}

// NewInternalServerError creates a new error with
// code -32603.
func NewInternalServerError(data string) *Error {
	return NewError(InternalServerErrorCode, http.StatusInternalServerError, "Internal error", data)
}

// NewRPCError creates a new error with
// code -100.
func NewRPCError(message string, data string) *Error {
	return NewError(RPCErrorCode, http.StatusUnprocessableEntity, message, data)
}

// NewSubmitError creates a new error with
// specified error code and error message.
func NewSubmitError(code int64, message string) *Error {
	return NewError(code, http.StatusUnprocessableEntity, message, "")
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Data) == 0 {
		return fmt.Sprintf("%s (%d)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s (%d) - %s", e.Message, e.Code, e.Data)
}

// Is denotes whether the error matches the target one. Errors are compared
// by code only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t != nil && e.Code == t.Code
}

// WrapErrorWithData returns copy of the given error with the specified data and cause.
// It does not modify the source error.
func WrapErrorWithData(e *Error, data string) *Error {
	return NewError(e.Code, e.HTTPCode, e.Message, data)
}
