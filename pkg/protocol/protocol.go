// Package protocol speaks the colon-delimited device protocol used by the
// hardware hub: TO:VERB:NOUN[:ARG...]:FROM, one frame per websocket message.
package protocol

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

var (
	ErrTimeout = errors.New("no reply from hub")
	ErrClosed  = errors.New("protocol closed")
)

type PtclConfig struct {
	Shard   string
	Url     string
	Reconn  uint
	Timeout time.Duration
	EmitOut func(*Message)
	Logger  *log.Logger
}

type Protocol struct {
	ws *WebSocket

	shard   string
	timeout time.Duration

	// txMu serialises request/reply exchanges so a reply is never handed to
	// the wrong caller.
	txMu     sync.Mutex
	waiterMu sync.Mutex
	waiter   chan *Message

	emitOut func(*Message)
	logger  *log.Logger

	done chan struct{}
	once sync.Once
}

func NewProtocol(cfg PtclConfig) (*Protocol, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	ws, err := NewWebSocket(cfg.Url, cfg.Reconn, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("dial hub %s: %w", cfg.Url, err)
	}

	return &Protocol{
		shard:   cfg.Shard,
		timeout: cfg.Timeout,
		ws:      ws,
		emitOut: cfg.EmitOut,
		logger:  cfg.Logger,
		done:    make(chan struct{}),
	}, nil
}

func (ptcl *Protocol) EmitOut(f func(*Message)) {
	ptcl.emitOut = f
}

// TransmitReceive sends v and waits for the next frame addressed to this
// shard, bounded by ctx and the configured timeout.
func (ptcl *Protocol) TransmitReceive(ctx context.Context, v any) (*Message, error) {
	ptcl.txMu.Lock()
	defer ptcl.txMu.Unlock()

	w := ptcl.installWaiter()
	defer ptcl.clearWaiter()

	if err := ptcl.Transmit(v); err != nil {
		return nil, err
	}
	return ptcl.receive(ctx, w)
}

func (ptcl *Protocol) Transmit(v any) error {
	var msg string

	switch m := v.(type) {
	case Message:
		m.From = ptcl.shard
		msg = m.String()
	case *Message:
		c := *m
		c.From = ptcl.shard
		msg = c.String()
	case string:
		msg = fmt.Sprintf("%s:%s", m, ptcl.shard)
	case []string:
		pay := strings.Join(m, ":")
		msg = fmt.Sprintf("%s:%s", pay, ptcl.shard)
	default:
		return fmt.Errorf("unsupported message type %T", v)
	}

	if err := ptcl.ws.Write([]byte(msg)); err != nil {
		ptcl.logger.Error("Failed to transmit", "msg", msg, "err", err)
		return err
	}
	return nil
}

func (ptcl *Protocol) receive(ctx context.Context, w chan *Message) (*Message, error) {
	timer := time.NewTimer(ptcl.timeout)
	defer timer.Stop()

	select {
	case resp := <-w:
		return resp, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-ptcl.done:
		return nil, ErrClosed
	}
}

// Run reads frames until Close. Frames for other shards are dropped; a
// frame arriving while a request waits is its reply, anything else goes to
// EmitOut.
func (ptcl *Protocol) Run() {
	for {
		in := ptcl.ws.Read()

		select {
		case <-ptcl.done:
			return
		default:
		}

		switch in.kind {
		case CONN_CLOSE:
			ptcl.logger.Warn("Trying to reconnect on", "url", ptcl.ws.url)
			if !ptcl.ws.TryReconn(ptcl.done) {
				return
			}
			ptcl.logger.Info("Succefully reconnected")

		case READ_FAILURE:
			ptcl.logger.Error("Failed to read", "err", in.err)
			if !ptcl.ws.TryReconn(ptcl.done) {
				return
			}

		case READ_OK:
			if !ptcl.checkRecipient(in.msg) {
				continue
			}

			msg, err := Parse(string(in.msg))
			if err != nil {
				ptcl.logger.Warn("Failed to parse", "msg", string(in.msg), "err", err)
				continue
			}

			if w := ptcl.currentWaiter(); w != nil {
				select {
				case w <- msg:
				default:
				}
			} else if ptcl.emitOut != nil {
				ptcl.emitOut(msg)
			}
		}
	}
}

func (ptcl *Protocol) Close() error {
	var err error
	ptcl.once.Do(func() {
		close(ptcl.done)
		err = ptcl.ws.Close()
	})
	return err
}

func (ptcl *Protocol) installWaiter() chan *Message {
	ptcl.waiterMu.Lock()
	defer ptcl.waiterMu.Unlock()
	ptcl.waiter = make(chan *Message, 1)
	return ptcl.waiter
}

func (ptcl *Protocol) clearWaiter() {
	ptcl.waiterMu.Lock()
	defer ptcl.waiterMu.Unlock()
	ptcl.waiter = nil
}

func (ptcl *Protocol) currentWaiter() chan *Message {
	ptcl.waiterMu.Lock()
	defer ptcl.waiterMu.Unlock()
	return ptcl.waiter
}

func (ptcl *Protocol) checkRecipient(msg []byte) bool {
	to := strings.Split(string(msg), ":")[0]
	return to == ptcl.shard || to == "ALL"
}

// Parse decodes one frame. Whitespace is not allowed inside a frame.
func Parse(line string) (*Message, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return nil, errors.New("empty message")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return nil, fmt.Errorf("invalid whitespace present")
	}
	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return nil, fmt.Errorf("too few fields: got %d, want >= 4", len(parts))
	}

	to := parts[0]
	verb := parts[1]
	noun := parts[2]
	from := parts[len(parts)-1]
	args := append([]string(nil), parts[3:len(parts)-1]...)

	if !isToken(to) && !isHexID(to) && to != "ALL" {
		return nil, fmt.Errorf("invalid TO token: %q", to)
	}
	if !isToken(from) && !isHexID(from) {
		return nil, fmt.Errorf("invalid FROM token: %q", from)
	}

	if !isToken(noun) || !isToken(verb) {
		return nil, fmt.Errorf("invalid NOUN/VERB: %q %q", noun, verb)
	}
	for i, a := range args {
		if !isToken(a) {
			return nil, fmt.Errorf("invalid ARG[%d]: %q", i, a)
		}
	}

	return &Message{
		To:   to,
		Verb: strings.ToUpper(verb),
		Noun: strings.ToUpper(noun),
		Args: args,
		From: from,
	}, nil
}

var (
	tokenRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	hexIDRe = regexp.MustCompile(`^[0-9A-F]{2}$`)
)

func isToken(s string) bool {
	return tokenRe.MatchString(s)
}

func isHexID(s string) bool {
	return hexIDRe.MatchString(strings.ToUpper(s))
}

type Message struct {
	To   string
	Verb string
	Noun string
	Args []string
	From string
}

func (m *Message) String() string {
	parts := make([]string, 0, 4+len(m.Args))
	parts = append(parts, m.To)
	parts = append(parts, m.Verb)
	parts = append(parts, m.Noun)
	parts = append(parts, m.Args...)
	parts = append(parts, m.From)
	return strings.Join(parts, ":")
}

func (m *Message) IsOk() bool  { return m.Verb == "OK" }
func (m *Message) IsErr() bool { return m.Verb == "ERR" }

func (m *Message) Error(reason string, args ...string) {
	m.Verb = "ERR"
	m.Noun = reason
	m.Args = args
}

func (m *Message) Ok(reason string, args ...string) {
	m.Verb = "OK"
	m.Noun = reason
	m.Args = args
}
