package relay

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidUserID(t *testing.T) {
	for _, id := range []string{"0xabc", "ABCdef0123", "0x0", "00"} {
		assert.True(t, ValidUserID(id), id)
	}
	for _, id := range []string{"", "0x", "xyz", "0xabg", "0x 12", "0X12"} {
		assert.False(t, ValidUserID(id), id)
	}
}

func TestDecodeHandshake(t *testing.T) {
	f, _, err := decodeFrame([]byte(`{"type":"handshake","userId":"0xaa"}`))
	require.Nil(t, err)
	require.NotNil(t, f.handshake)
	assert.Equal(t, "0xaa", *f.handshake)
}

func TestDecodeCalls(t *testing.T) {
	cases := []struct {
		raw  string
		want Request
	}{
		{`{"jsonrpc":"2.0","method":"evaluateGuess","params":{"userId":"0xa","guess":125},"id":"1"}`,
			EvaluateGuess{UserID: "0xa", Guess: 125}},
		{`{"jsonrpc":"2.0","method":"getOpponent","params":{"userId":"0xa"},"id":2}`,
			GetOpponent{UserID: "0xa"}},
		{`{"jsonrpc":"2.0","method":"getContractAddress","params":{"userId":"0xa"},"id":null}`,
			GetContractAddress{UserID: "0xa"}},
	}
	for _, tc := range cases {
		f, _, err := decodeFrame([]byte(tc.raw))
		require.Nil(t, err, tc.raw)
		require.NotNil(t, f.call, tc.raw)
		assert.Equal(t, tc.want, f.call.Request)
	}

	f, _, err := decodeFrame([]byte(`{"jsonrpc":"2.0","method":"evaluateGuessResult","params":{"userId":"0xb"},"id":"x"}`))
	require.Nil(t, err)
	res := f.call.Request.(EvaluateGuessResult)
	assert.JSONEq(t, `null`, string(res.Result))
	assert.JSONEq(t, `"x"`, string(f.call.ID))
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		raw  string
		code int
	}{
		{`not json`, CodeParseError},
		{`{"jsonrpc":"1.0","method":"getOpponent"}`, CodeInvalidRequest},
		{`{"hello":"world"}`, CodeInvalidRequest},
		{`{"jsonrpc":"2.0","id":1}`, CodeInvalidRequest},
		{`{"jsonrpc":"2.0","method":"fly","id":1}`, CodeMethodNotFound},
		{`{"jsonrpc":"2.0","method":"receiveGuess","id":1}`, CodeMethodNotFound},
		{`{"jsonrpc":"2.0","method":"evaluateGuess","params":{"guess":"abc"},"id":1}`, CodeInvalidParams},
	}
	for _, tc := range cases {
		_, _, err := decodeFrame([]byte(tc.raw))
		require.NotNil(t, err, tc.raw)
		assert.Equal(t, tc.code, err.Code, tc.raw)
	}
}

func TestDecodeClientResponse(t *testing.T) {
	f, id, err := decodeFrame([]byte(`{"jsonrpc":"2.0","result":true,"id":"9"}`))
	require.Nil(t, err)
	require.NotNil(t, f.response)
	assert.JSONEq(t, `"9"`, string(id))
}

func TestResponseAlwaysCarriesID(t *testing.T) {
	b, err := json.Marshal(Response{JSONRPC: Version, Error: ErrGameFull})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","error":{"code":-32005,"message":"Game is full."},"id":null}`, string(b))
}

func TestRPCErrorIs(t *testing.T) {
	var err error = &RPCError{Code: CodeGameFull, Message: "whatever"}
	assert.True(t, errors.Is(err, ErrGameFull))
	assert.False(t, errors.Is(err, ErrNotRegistered))
}

func TestNewRequestIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for n := 0; n < 1000; n++ {
		id := newRequestID()
		require.False(t, seen[id], id)
		seen[id] = true
	}
}
