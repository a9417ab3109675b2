package protocol

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    *Message
		wantErr bool
	}{
		{
			name: "with args",
			line: "iveri:ok:led:ON:VERTEX",
			want: &Message{To: "iveri", Verb: "OK", Noun: "LED", Args: []string{"ON"}, From: "VERTEX"},
		},
		{
			name: "broadcast without args",
			line: "ALL:PING:HUB:VERTEX\n",
			want: &Message{To: "ALL", Verb: "PING", Noun: "HUB", From: "VERTEX"},
		},
		{name: "empty", line: "  ", wantErr: true},
		{name: "too few fields", line: "a:b:c", wantErr: true},
		{name: "inner whitespace", line: "a:SET:LED:ON OFF:b", wantErr: true},
		{name: "bad arg", line: "a:SET:LED:o/n:b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMessage_StringAndReplies(t *testing.T) {
	m := &Message{To: "VERTEX", Verb: "SET", Noun: "LED", Args: []string{"ON"}, From: "iveri"}
	assert.Equal(t, "VERTEX:SET:LED:ON:iveri", m.String())

	m.Ok("LED", "ON")
	assert.True(t, m.IsOk())
	m.Error("BUSY")
	assert.True(t, m.IsErr())
	assert.Equal(t, "VERTEX:ERR:BUSY:iveri", m.String())
}

// hub answers every SET frame with OK and ignores GET frames.
func hub(t *testing.T) *httptest.Server {
	t.Helper()
	up := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			req, err := Parse(string(data))
			if err != nil || req.Verb != "SET" {
				continue
			}
			// Noise for another shard first.
			_ = conn.WriteMessage(ws.TextMessage, []byte("other:OK:LED:ON:VERTEX"))
			reply := Message{To: req.From, Noun: req.Noun, From: req.To}
			reply.Ok(req.Noun, req.Args...)
			_ = conn.WriteMessage(ws.TextMessage, []byte(reply.String()))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProtocol_TransmitReceive(t *testing.T) {
	srv := hub(t)

	ptcl, err := NewProtocol(PtclConfig{
		Shard:   "iveri",
		Url:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	go ptcl.Run()
	defer ptcl.Close()

	resp, err := ptcl.TransmitReceive(context.Background(),
		Message{To: "VERTEX", Verb: "SET", Noun: "LED", Args: []string{"ON"}})
	require.NoError(t, err)
	assert.True(t, resp.IsOk())
	assert.Equal(t, []string{"ON"}, resp.Args)

	_, err = ptcl.TransmitReceive(context.Background(),
		Message{To: "VERTEX", Verb: "GET", Noun: "LED"})
	assert.ErrorIs(t, err, ErrTimeout)
}
