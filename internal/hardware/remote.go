package hardware

import (
	"context"
	"fmt"
	log "log/slog"
	"strconv"
	"time"

	"iveri/pkg/protocol"
)

type RemoteConfig struct {
	URL string
	// Hub is the shard name of the hub that owns the device.
	Hub    string
	Device string
	// Shard is this assistant's name on the hub.
	Shard   string
	Timeout time.Duration
	Logger  *log.Logger
}

// Remote controls an LED attached to a hub:
//
//	VERTEX:SET:LED:ON:iveri    -> iveri:OK:LED:ON:VERTEX
//	VERTEX:BLINK:LED:3:500:iveri
//	VERTEX:GET:LED:iveri       -> iveri:OK:LED:OFF:VERTEX
type Remote struct {
	ptcl   *protocol.Protocol
	hub    string
	device string
	logger *log.Logger
}

func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("hub url not set: %w", ErrUnavailable)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	ptcl, err := protocol.NewProtocol(protocol.PtclConfig{
		Shard:   cfg.Shard,
		Url:     cfg.URL,
		Reconn:  2,
		Timeout: cfg.Timeout,
		Logger:  cfg.Logger,
		EmitOut: func(m *protocol.Message) {
			cfg.Logger.Debug("Unsolicited hub frame", "msg", m.String())
		},
	})
	if err != nil {
		return nil, err
	}
	go ptcl.Run()

	return &Remote{
		ptcl:   ptcl,
		hub:    cfg.Hub,
		device: cfg.Device,
		logger: cfg.Logger,
	}, nil
}

func (r *Remote) request(ctx context.Context, verb string, args ...string) (*protocol.Message, error) {
	resp, err := r.ptcl.TransmitReceive(ctx, protocol.Message{
		To:   r.hub,
		Verb: verb,
		Noun: r.device,
		Args: args,
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", verb, r.device, err)
	}
	if resp.IsErr() {
		return nil, fmt.Errorf("%s %s: hub error %s %v", verb, r.device, resp.Noun, resp.Args)
	}
	return resp, nil
}

func (r *Remote) Set(ctx context.Context, on bool) error {
	state := "OFF"
	if on {
		state = "ON"
	}
	_, err := r.request(ctx, "SET", state)
	return err
}

func (r *Remote) Blink(ctx context.Context, times int, interval time.Duration) error {
	_, err := r.request(ctx, "BLINK", strconv.Itoa(times), strconv.FormatInt(interval.Milliseconds(), 10))
	return err
}

func (r *Remote) State(ctx context.Context) (bool, error) {
	resp, err := r.request(ctx, "GET")
	if err != nil {
		return false, err
	}
	if len(resp.Args) == 0 {
		return false, fmt.Errorf("GET %s: reply without state", r.device)
	}
	return resp.Args[0] == "ON", nil
}

func (r *Remote) Close() error {
	return r.ptcl.Close()
}
