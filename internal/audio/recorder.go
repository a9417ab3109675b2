package audio

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	SampleRate = 16000
	frameSize  = 320 // 20ms
	frameDur   = 20 * time.Millisecond
)

// ErrNoSpeech is returned when nothing louder than the silence threshold
// was heard before the wait window closed.
var ErrNoSpeech = errors.New("no speech detected")

// Limits bound one recording.
type Limits struct {
	// Wait is how long to wait for speech to start.
	Wait time.Duration
	// Phrase caps the utterance once speech has started.
	Phrase time.Duration
	// Silence ends the utterance after this much quiet.
	Silence time.Duration
}

func (l Limits) withDefaults() Limits {
	if l.Wait <= 0 {
		l.Wait = 5 * time.Second
	}
	if l.Phrase <= 0 {
		l.Phrase = 10 * time.Second
	}
	if l.Silence <= 0 {
		l.Silence = 800 * time.Millisecond
	}
	return l
}

type Recorder struct {
	threshold float64
}

func NewRecorder() *Recorder { return &Recorder{threshold: 0.015} }

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// RecordUtterance captures mono 16 kHz samples from the default input until
// the speaker pauses, the phrase limit is hit or ctx is done.
func (r *Recorder) RecordUtterance(ctx context.Context, lim Limits) ([]float32, error) {
	lim = lim.withDefaults()

	buf := make([]float32, frameSize)
	out := make([]float32, 0, SampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	var (
		speaking      bool
		waited        time.Duration
		spoken        time.Duration
		silenceFrames int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}

		loud := frameRMS(buf) > r.threshold

		if !speaking {
			if !loud {
				waited += frameDur
				if waited >= lim.Wait {
					return nil, ErrNoSpeech
				}
				continue
			}
			speaking = true
		}

		out = append(out, buf...)
		spoken += frameDur

		if loud {
			silenceFrames = 0
		} else {
			silenceFrames++
			if time.Duration(silenceFrames)*frameDur >= lim.Silence {
				break
			}
		}

		if spoken >= lim.Phrase {
			break
		}
	}

	return out, nil
}

// RecordFor captures a fixed window regardless of loudness. Wake-word
// spotting listens in these windows.
func (r *Recorder) RecordFor(ctx context.Context, d time.Duration) ([]float32, error) {
	if d <= 0 {
		d = 2 * time.Second
	}

	buf := make([]float32, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	frames := int(d / frameDur)
	out := make([]float32, 0, frames*frameSize)

	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}
		out = append(out, buf...)
	}

	return out, nil
}

// Loud reports whether any 20ms frame of pcm exceeds the silence threshold.
func (r *Recorder) Loud(pcm []float32) bool {
	for i := 0; i+frameSize <= len(pcm); i += frameSize {
		if frameRMS(pcm[i:i+frameSize]) > r.threshold {
			return true
		}
	}
	return false
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
