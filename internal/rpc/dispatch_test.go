package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer() *Server {
	return NewServer(zap.NewNop())
}

func newTestClient() *Client {
	return &Client{ID: "c1", Subscriptions: make(map[string]bool), Send: make(chan []byte, 16)}
}

func TestDispatchUnknownMethodRepliesError(t *testing.T) {
	s := newTestServer()
	client := newTestClient()

	s.dispatch(client, []byte(`{"id":"1","method":"does_not_exist"}`))

	var resp Response
	require.NoError(t, json.Unmarshal(<-client.Send, &resp))
	assert.Equal(t, "1", resp.ID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "unknown_method", resp.Error.Code)
}

func TestDispatchMalformedFrameRepliesError(t *testing.T) {
	s := newTestServer()
	client := newTestClient()

	s.dispatch(client, []byte(`not json`))

	var resp Response
	require.NoError(t, json.Unmarshal(<-client.Send, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_request", resp.Error.Code)
}

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	s := newTestServer()
	client := newTestClient()
	s.Register("echo", func(c *Client, params []byte) (interface{}, error) {
		return map[string]string{"ok": "yes"}, nil
	})

	s.dispatch(client, []byte(`{"id":"42","method":"echo"}`))

	var resp Response
	require.NoError(t, json.Unmarshal(<-client.Send, &resp))
	assert.Equal(t, "42", resp.ID)
	assert.Nil(t, resp.Error)
}
