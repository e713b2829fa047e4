package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/numer0n/apps/go-server/internal/relay"
	"github.com/robalobadob/numer0n/apps/go-server/internal/store"
)

func newTestServer(t *testing.T, opts Options) (*relay.Registry, *httptest.Server) {
	t.Helper()
	reg := relay.NewRegistry(store.NewMemoryStore(9000),
		relay.WithListen(func(int) (net.Listener, error) { return net.Listen("tcp", "127.0.0.1:0") }),
		relay.WithLogger(zerolog.Nop()),
	)
	srv := httptest.NewServer(New(reg, opts).Router())
	t.Cleanup(func() {
		_ = reg.Close()
		srv.Close()
	})
	return reg, srv
}

func post(t *testing.T, url, body, token string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res, out
}

func TestHealth(t *testing.T) {
	_, srv := newTestServer(t, Options{})
	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", res.Header.Get("Content-Type"))
	assert.Equal(t, "http://localhost:5174", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestPreflight(t *testing.T) {
	_, srv := newTestServer(t, Options{ClientOrigin: "http://example.test"})
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/createGame", nil)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, "http://example.test", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestCreateGame(t *testing.T) {
	_, srv := newTestServer(t, Options{})

	res, out := post(t, srv.URL+"/createGame", `{"gameId":"g1","contractAddress":"0xc1"}`, "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "g1", out["gameId"])
	assert.Equal(t, float64(9000), out["port"])

	res, out = post(t, srv.URL+"/createGame", `{"gameId":"g2","contractAddress":"0xc2"}`, "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, float64(9001), out["port"])

	res, out = post(t, srv.URL+"/createGame", `{"gameId":"g1","contractAddress":"0xc1"}`, "")
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Contains(t, out["error"], "already exists")
}

func TestCreateGameValidation(t *testing.T) {
	_, srv := newTestServer(t, Options{})
	cases := []struct{ body, msg string }{
		{`{"contractAddress":"0xc1"}`, "Missing gameId"},
		{`{"gameId":"g1"}`, "Missing contractAddress"},
		{`{`, "Invalid JSON"},
	}
	for _, tc := range cases {
		res, out := post(t, srv.URL+"/createGame", tc.body, "")
		assert.Equal(t, http.StatusBadRequest, res.StatusCode, tc.body)
		assert.Equal(t, tc.msg, out["error"])
	}
}

func TestCreateGameRequiresToken(t *testing.T) {
	_, srv := newTestServer(t, Options{JWTSecret: "s3cret"})
	body := `{"gameId":"g1","contractAddress":"0xc1"}`

	res, out := post(t, srv.URL+"/createGame", body, "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "Unauthorized", out["error"])

	bad, err := IssueToken("other", "alice", time.Minute)
	require.NoError(t, err)
	res, _ = post(t, srv.URL+"/createGame", body, bad)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	expired, err := IssueToken("s3cret", "alice", -time.Minute)
	require.NoError(t, err)
	res, _ = post(t, srv.URL+"/createGame", body, expired)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	good, err := IssueToken("s3cret", "alice", time.Minute)
	require.NoError(t, err)
	res, out = post(t, srv.URL+"/createGame", body, good)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "g1", out["gameId"])
}

func TestGetGame(t *testing.T) {
	reg, srv := newTestServer(t, Options{})
	_, err := reg.Create(context.Background(), "g1", "0xc1")
	require.NoError(t, err)

	res, err := http.Get(srv.URL + "/games/g1")
	require.NoError(t, err)
	defer res.Body.Close()
	var got gameRes
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, gameRes{GameID: "g1", ContractAddress: "0xc1", Port: 9000, Live: true, Players: []string{}}, got)

	res2, err := http.Get(srv.URL + "/games/missing")
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusNotFound, res2.StatusCode)
}

func TestNotFoundIsJSON(t *testing.T) {
	_, srv := newTestServer(t, Options{})
	res, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	var out map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.Equal(t, "Not Found", out["error"])
}

func TestWebsocketGateway(t *testing.T) {
	reg, srv := newTestServer(t, Options{})
	inst, err := reg.Create(context.Background(), "g1", "0xc1")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/g1"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "handshake", "userId": "0xaa"}))
	require.NoError(t, ws.WriteJSON(map[string]any{
		"jsonrpc": "2.0", "method": "getContractAddress", "params": map[string]string{"userId": "0xaa"}, "id": 1,
	}))
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var env relay.Envelope
	require.NoError(t, ws.ReadJSON(&env))
	assert.JSONEq(t, `"0xc1"`, string(env.Result))
	assert.Equal(t, []string{"0xaa"}, inst.Users())

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
