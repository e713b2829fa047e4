package relay

import "fmt"

// JSON-RPC error codes. The -326xx/-32700 range follows JSON-RPC 2.0; the
// -320xx range is relay specific and stable for clients.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603

	CodeNotRegistered       = -32000
	CodeUserMismatch        = -32001
	CodeNoOpponentConnected = -32002
	CodeNoOpponentFound     = -32003
	CodeUserNotRegistered   = -32004
	CodeGameFull            = -32005
	CodeEvaluationTimeout   = -32006
	CodeSelfEvaluation      = -32007
)

// RPCError is both a Go error and the JSON-RPC error object on the wire.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Is matches on code so errors.Is works against the sentinels below.
func (e *RPCError) Is(target error) bool {
	t, ok := target.(*RPCError)
	return ok && t.Code == e.Code
}

var (
	ErrParse          = &RPCError{CodeParseError, "Parse error"}
	ErrInvalidRequest = &RPCError{CodeInvalidRequest, "Invalid request"}
	ErrMethodNotFound = &RPCError{CodeMethodNotFound, "Method not found"}
	ErrInternal       = &RPCError{CodeInternal, "Internal error"}

	ErrNotRegistered       = &RPCError{CodeNotRegistered, "User not registered. Perform handshake first."}
	ErrUserMismatch        = &RPCError{CodeUserMismatch, "User ID does not match connection."}
	ErrNoOpponentConnected = &RPCError{CodeNoOpponentConnected, "No opponent connected."}
	ErrNoOpponentFound     = &RPCError{CodeNoOpponentFound, "No opponent found."}
	ErrUserNotRegistered   = &RPCError{CodeUserNotRegistered, "User not registered."}
	ErrGameFull            = &RPCError{CodeGameFull, "Game is full."}
	ErrEvaluationTimeout   = &RPCError{CodeEvaluationTimeout, "Evaluation timed out."}
	ErrSelfEvaluation      = &RPCError{CodeSelfEvaluation, "Cannot evaluate own guess."}
)

func invalidParams(err error) *RPCError {
	return &RPCError{CodeInvalidParams, "Invalid params: " + err.Error()}
}
