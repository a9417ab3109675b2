// Package bus connects IVERI to a message hub as a shard: text or audio
// requests come in over a websocket and replies go back to the sender.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"iveri/pkg/audioconv"
	"iveri/pkg/stt"
)

// ErrBadMessage marks a frame that is not a JSON message. The connection
// stays usable.
var ErrBadMessage = errors.New("bad bus message")

const (
	KindRequest = "request"
	KindReply   = "reply"
	KindError   = "error"
)

type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
	Audio   []byte `json:"audio,omitempty"`
}

type Bus struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func Dial(ctx context.Context, wsURL string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial bus %s: %w", wsURL, err)
	}

	return &Bus{conn: conn}, nil
}

func (b *Bus) Read() (*Message, error) {
	_, data, err := b.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	return &m, nil
}

func (b *Bus) Write(m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.wmu.Lock()
	defer b.wmu.Unlock()
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

func (b *Bus) Close() error {
	return b.conn.Close()
}

// Processor answers one text request.
type Processor interface {
	Process(ctx context.Context, text string) string
}

type ShardConfig struct {
	Name        string
	Processor   Processor
	Transcriber stt.Transcriber
	// Timeout bounds one request, transcription included.
	Timeout time.Duration
	Logger  *log.Logger
}

// Shard serves requests addressed to Name, or to nobody in particular.
// Requests are answered one at a time.
type Shard struct {
	bus *Bus
	cfg ShardConfig
}

func NewShard(b *Bus, cfg ShardConfig) *Shard {
	if cfg.Name == "" {
		cfg.Name = "iveri"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Shard{bus: b, cfg: cfg}
}

// Run reads until the connection drops or ctx is cancelled.
func (s *Shard) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.bus.Close()
	}()

	s.cfg.Logger.Info("Shard ready", "name", s.cfg.Name)

	for {
		msg, err := s.bus.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrBadMessage) {
				s.cfg.Logger.Warn("Dropping message", "err", err)
				continue
			}
			return err
		}

		if !s.accepts(msg) {
			continue
		}

		reply := s.Handle(ctx, msg)
		if err := s.bus.Write(reply); err != nil {
			s.cfg.Logger.Error("Failed to send reply", "to", msg.From, "err", err)
		}
	}
}

func (s *Shard) accepts(m *Message) bool {
	if m.From == s.cfg.Name || m.Kind == KindReply || m.Kind == KindError {
		return false
	}
	return m.To == "" || m.To == s.cfg.Name
}

// Handle answers one message. Audio takes precedence over text content.
func (s *Shard) Handle(ctx context.Context, m *Message) *Message {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	text := m.Content
	if len(m.Audio) > 0 {
		var err error
		if text, err = s.transcribe(ctx, m.Audio); err != nil {
			s.cfg.Logger.Warn("Audio request failed", "from", m.From, "err", err)
			return &Message{From: s.cfg.Name, To: m.From, Kind: KindError, Content: err.Error()}
		}
		s.cfg.Logger.Debug("Transcribed", "from", m.From, "text", text)
	}

	return &Message{
		From:    s.cfg.Name,
		To:      m.From,
		Kind:    KindReply,
		Content: s.cfg.Processor.Process(ctx, text),
	}
}

func (s *Shard) transcribe(ctx context.Context, audio []byte) (string, error) {
	if s.cfg.Transcriber == nil {
		return "", stt.ErrNotConfigured
	}

	pcm, err := audioconv.ConvertBytesToPCM16k(ctx, audio, audioconv.Options{})
	if err != nil {
		return "", fmt.Errorf("decode audio: %w", err)
	}
	return s.cfg.Transcriber.Transcribe(ctx, pcm)
}
