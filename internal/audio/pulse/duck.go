package pulse

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

type fadeTarget struct {
	id   int
	from int
	to   int
}

// Ducker lowers every other application's playback while the assistant
// listens, then restores it. Streams whose application.name is in selfNames
// are left alone.
type Ducker struct {
	mu          sync.Mutex
	active      bool
	selfNames   []string
	originalVol map[int]int
	minVolume   int
	pa          *Client
}

func NewDucker(pa *Client, selfNames []string, minVolume int) *Ducker {
	return &Ducker{
		selfNames:   append([]string(nil), selfNames...),
		originalVol: make(map[int]int),
		minVolume:   clampVolume(minVolume),
		pa:          pa,
	}
}

// Duck fades other streams to current*factor, never below minVolume.
func (d *Ducker) Duck(ctx context.Context, factor float64, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.pa.SinkInputs(ctx)
	if err != nil {
		return fmt.Errorf("list sink inputs: %w", err)
	}

	d.originalVol = make(map[int]int)

	var targets []fadeTarget
	for _, s := range streams {
		if d.isSelf(s) {
			continue
		}

		to := int(math.Round(math.Max(float64(s.Volume)*factor, float64(d.minVolume))))
		d.originalVol[s.ID] = s.Volume
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: clampVolume(to)})
	}

	if err := d.fade(ctx, targets, duration); err != nil {
		return err
	}

	d.active = true
	return nil
}

// Restore fades ducked streams back. Streams that appeared after Duck are
// ignored.
func (d *Ducker) Restore(ctx context.Context, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.pa.SinkInputs(ctx)
	if err != nil {
		return fmt.Errorf("list sink inputs: %w", err)
	}

	var targets []fadeTarget
	for _, s := range streams {
		orig, ok := d.originalVol[s.ID]
		if !ok || d.isSelf(s) {
			continue
		}
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: orig})
	}

	if err := d.fade(ctx, targets, duration); err != nil {
		return err
	}

	d.originalVol = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) isSelf(s SinkInput) bool {
	for _, name := range d.selfNames {
		if s.AppName == name {
			return true
		}
	}
	return false
}

func (d *Ducker) fade(ctx context.Context, targets []fadeTarget, duration time.Duration) error {
	if len(targets) == 0 {
		return nil
	}

	const minStep = 10 * time.Millisecond

	steps := int(duration / minStep)
	if steps < 1 {
		steps = 1
	}
	stepDur := duration / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := float64(i) / float64(steps)
		for _, t := range targets {
			v := int(math.Round(float64(t.from) + float64(t.to-t.from)*frac))
			if err := d.pa.SetSinkInputVolume(ctx, t.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", t.id, err)
			}
		}

		if i < steps {
			time.Sleep(stepDur)
		}
	}

	return nil
}
