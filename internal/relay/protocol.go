// internal/relay/protocol.go
//
// Wire protocol spoken on every relay connection.
//
// Client -> relay:
//   {"type":"handshake","userId":"0x..."}                       (no reply)
//   {"jsonrpc":"2.0","method":"evaluateGuess","params":{"userId","guess"},"id"}
//   {"jsonrpc":"2.0","method":"evaluateGuessResult","params":{"userId","result"},"id"}
//   {"jsonrpc":"2.0","method":"getOpponent","params":{"userId"},"id"}
//   {"jsonrpc":"2.0","method":"getContractAddress","params":{"userId"},"id"}
//
// Relay -> client:
//   {"jsonrpc":"2.0","method":"receiveGuess","params":{"guess","userId"},"id"}
//   {"jsonrpc":"2.0","result"|"error":{code,message},"id"}
//   {"error":"..."}  (handshake rejected, socket closed afterwards)

package relay

import (
	"encoding/json"
	"regexp"
)

const Version = "2.0"

// Method names a JSON-RPC method of the relay protocol.
type Method string

const (
	MethodEvaluateGuess       Method = "evaluateGuess"
	MethodReceiveGuess        Method = "receiveGuess"
	MethodEvaluateGuessResult Method = "evaluateGuessResult"
	MethodGetOpponent         Method = "getOpponent"
	MethodGetContractAddress  Method = "getContractAddress"
)

const handshakeType = "handshake"

var userIDPattern = regexp.MustCompile(`^(?:0x)?[0-9A-Fa-f]+$`)

// ValidUserID reports whether id is an acceptable handshake identity.
func ValidUserID(id string) bool { return userIDPattern.MatchString(id) }

// Envelope is the superset of every frame on the wire, in both directions.
type Envelope struct {
	Type    string          `json:"type,omitempty"`
	UserID  string          `json:"userId,omitempty"`
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  Method          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Request is one of the typed payloads below.
type Request interface {
	Method() Method
	Caller() string
}

type EvaluateGuess struct {
	UserID string `json:"userId"`
	Guess  int    `json:"guess"`
}

type EvaluateGuessResult struct {
	UserID string          `json:"userId"`
	Result json.RawMessage `json:"result"`
}

type GetOpponent struct {
	UserID string `json:"userId"`
}

type GetContractAddress struct {
	UserID string `json:"userId"`
}

// ReceiveGuess is the payload the relay forwards to the evaluating player.
type ReceiveGuess struct {
	Guess  int    `json:"guess"`
	UserID string `json:"userId"`
}

func (EvaluateGuess) Method() Method       { return MethodEvaluateGuess }
func (EvaluateGuessResult) Method() Method { return MethodEvaluateGuessResult }
func (GetOpponent) Method() Method         { return MethodGetOpponent }
func (GetContractAddress) Method() Method  { return MethodGetContractAddress }

func (r EvaluateGuess) Caller() string       { return r.UserID }
func (r EvaluateGuessResult) Caller() string { return r.UserID }
func (r GetOpponent) Caller() string         { return r.UserID }
func (r GetContractAddress) Caller() string  { return r.UserID }

// Call is a decoded JSON-RPC request. ID is kept raw so string, number and
// null ids round-trip unchanged.
type Call struct {
	ID      json.RawMessage
	Request Request
}

// Response is an outbound JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Notice is the bare error frame sent before closing a rejected handshake.
type Notice struct {
	Error string `json:"error"`
}

// outboundCall is a relay-originated request.
type outboundCall struct {
	JSONRPC string `json:"jsonrpc"`
	Method  Method `json:"method"`
	Params  any    `json:"params"`
	ID      string `json:"id"`
}

// frame is the result of decoding one inbound message: exactly one of
// handshake, call or response is set.
type frame struct {
	handshake *string
	call      *Call
	response  *Envelope
}

// decodeFrame classifies and decodes raw inbound bytes. A non-nil
// *RPCError carries the id (possibly nil) it should be answered with.
func decodeFrame(data []byte) (frame, json.RawMessage, *RPCError) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return frame{}, nil, ErrParse
	}

	if env.Type == handshakeType {
		id := env.UserID
		return frame{handshake: &id}, nil, nil
	}
	if env.JSONRPC != Version {
		return frame{}, nil, ErrInvalidRequest
	}
	if env.Method == "" {
		if env.Result != nil || env.Error != nil {
			return frame{response: &env}, env.ID, nil
		}
		return frame{}, env.ID, ErrInvalidRequest
	}

	req, rpcErr := decodeParams(env.Method, env.Params)
	if rpcErr != nil {
		return frame{}, env.ID, rpcErr
	}
	return frame{call: &Call{ID: env.ID, Request: req}}, env.ID, nil
}

func decodeParams(m Method, params json.RawMessage) (Request, *RPCError) {
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	switch m {
	case MethodEvaluateGuess:
		var r EvaluateGuess
		if err := json.Unmarshal(params, &r); err != nil {
			return nil, invalidParams(err)
		}
		return r, nil
	case MethodEvaluateGuessResult:
		var r EvaluateGuessResult
		if err := json.Unmarshal(params, &r); err != nil {
			return nil, invalidParams(err)
		}
		if r.Result == nil {
			r.Result = json.RawMessage(`null`)
		}
		return r, nil
	case MethodGetOpponent:
		var r GetOpponent
		if err := json.Unmarshal(params, &r); err != nil {
			return nil, invalidParams(err)
		}
		return r, nil
	case MethodGetContractAddress:
		var r GetContractAddress
		if err := json.Unmarshal(params, &r); err != nil {
			return nil, invalidParams(err)
		}
		return r, nil
	}
	return nil, ErrMethodNotFound
}

// idString extracts a string id; numeric or null ids never match a
// relay-generated forward id.
func idString(id json.RawMessage) (string, bool) {
	var s string
	if len(id) == 0 || json.Unmarshal(id, &s) != nil {
		return "", false
	}
	return s, true
}

func marshalResult(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`null`)
	}
	return b
}
