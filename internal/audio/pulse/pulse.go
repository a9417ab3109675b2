// Package pulse drives PulseAudio/PipeWire through pactl. It has no cgo
// dependencies so desktop controls build without audio headers.
package pulse

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Client runs pactl.
type Client struct {
	run Runner
}

func New() *Client {
	return &Client{run: execRunner}
}

// NewWithRunner is used by tests to capture pactl invocations.
func NewWithRunner(run Runner) *Client {
	return &Client{run: run}
}

type SinkInput struct {
	ID      int
	Volume  int
	AppName string
}

func (p *Client) SinkInputs(ctx context.Context) ([]SinkInput, error) {
	out, err := p.run(ctx, "pactl", "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (p *Client) SetSinkInputVolume(ctx context.Context, id, percent int) error {
	_, err := p.run(ctx, "pactl", "set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", clampVolume(percent)))
	return err
}

// ChangeVolume moves the default sink by delta percent.
func (p *Client) ChangeVolume(ctx context.Context, delta int) error {
	_, err := p.run(ctx, "pactl", "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%+d%%", delta))
	return err
}

func (p *Client) SetMute(ctx context.Context, mute bool) error {
	state := "0"
	if mute {
		state = "1"
	}
	_, err := p.run(ctx, "pactl", "set-sink-mute", "@DEFAULT_SINK@", state)
	return err
}

func parseSinkInputs(text string) []SinkInput {
	parts := strings.Split(text, "Sink Input #")
	if len(parts) <= 1 {
		return nil
	}

	var res []SinkInput
	for _, block := range parts[1:] {
		newline := strings.IndexByte(block, '\n')
		if newline <= 0 {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(block[:newline]))
		if err != nil {
			continue
		}

		s := SinkInput{ID: id}
		for _, line := range strings.Split(block[newline+1:], "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && s.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); len(m) >= 2 {
					s.Volume, _ = strconv.Atoi(m[1])
				}
			}

			if strings.HasPrefix(line, "application.name =") && s.AppName == "" {
				if v, err := strconv.Unquote(strings.TrimSpace(strings.TrimPrefix(line, "application.name ="))); err == nil {
					s.AppName = v
				}
			}
		}

		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}

	return res
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 150 {
		return 150
	}
	return v
}
