package protocol

import (
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

type WebSocket struct {
	mu     sync.Mutex
	conn   *ws.Conn
	url    string
	reconn uint
	logger *log.Logger
}

func NewWebSocket(url string, reconn uint, logger *log.Logger) (*WebSocket, error) {
	logger.Debug("init websocket protocol", "url", url)

	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}

	if reconn == 0 {
		reconn = 1
	}

	return &WebSocket{
		conn:   conn,
		url:    url,
		reconn: reconn,
		logger: logger,
	}, nil
}

func (web *WebSocket) Write(payload []byte) error {
	web.mu.Lock()
	defer web.mu.Unlock()

	web.logger.Debug("Write ws", "msg", string(payload))
	return web.conn.WriteMessage(ws.TextMessage, payload)
}

type WsIncomeKind uint

const (
	CONN_CLOSE WsIncomeKind = iota
	READ_FAILURE
	READ_OK
)

type Income struct {
	kind WsIncomeKind
	msg  []byte
	err  error
}

func (web *WebSocket) Read() Income {
	web.mu.Lock()
	conn := web.conn
	web.mu.Unlock()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		if WsIsClosed(err) {
			return Income{kind: CONN_CLOSE, err: err}
		}
		return Income{kind: READ_FAILURE, err: err}
	}

	web.logger.Debug("Read ws", "msg", string(msg))
	return Income{kind: READ_OK, msg: msg}
}

// TryReconn redials until it succeeds or stop is closed. It reports whether
// a connection was re-established.
func (web *WebSocket) TryReconn(stop <-chan struct{}) bool {
	for {
		select {
		case <-stop:
			return false
		default:
		}

		conn, _, err := ws.DefaultDialer.Dial(web.url, nil)
		if err == nil {
			web.mu.Lock()
			web.conn = conn
			web.mu.Unlock()
			return true
		}

		select {
		case <-stop:
			return false
		case <-time.After(time.Second * time.Duration(web.reconn)):
		}
	}
}

func (web *WebSocket) Close() error {
	web.mu.Lock()
	defer web.mu.Unlock()

	_ = web.conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return web.conn.Close()
}

func WsIsClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
