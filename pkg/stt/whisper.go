package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

type Options struct {
	// Language is a whisper language code; empty means auto-detect.
	Language  string
	Translate bool
	// Threads defaults to the number of CPUs.
	Threads int
	// Prompt biases decoding toward expected vocabulary.
	Prompt      string
	BeamSize    int
	Temperature float32
}

// Result is one transcription with its per-segment timing.
type Result struct {
	Text     string
	Segments []Segment
	Language string
}

type Segment struct {
	Text       string
	Start, End float64
}

// Whisper transcribes locally with a whisper.cpp model. Calls are
// serialised; a model context is not safe for concurrent use.
type Whisper struct {
	mu    sync.Mutex
	model whisper.Model
	opt   Options
}

func NewWhisper(modelPath string, opt Options) (*Whisper, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("%w: no whisper model path", ErrNotConfigured)
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %s: %w", modelPath, err)
	}
	return &Whisper{model: model, opt: opt}, nil
}

func (w *Whisper) Close() error {
	if w.model == nil {
		return nil
	}
	return w.model.Close()
}

func (w *Whisper) Transcribe(ctx context.Context, pcm16k []float32) (string, error) {
	res, err := w.Run(ctx, pcm16k)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Run transcribes mono 16 kHz samples in [-1, 1]. Cancellation is checked
// between segments.
func (w *Whisper) Run(ctx context.Context, pcm16k []float32) (Result, error) {
	if len(pcm16k) == 0 {
		return Result{}, ErrNoAudio
	}
	if w.model == nil {
		return Result{}, errors.New("whisper model closed")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("whisper context: %w", err)
	}
	if err := w.configure(wctx); err != nil {
		return Result{}, err
	}

	if err := wctx.Process(pcm16k, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("whisper process: %w", err)
	}

	var (
		res   Result
		parts []string
	)
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("whisper segment: %w", err)
		}

		text := strings.TrimSpace(seg.Text)
		res.Segments = append(res.Segments, Segment{Text: text, Start: seg.Start.Seconds(), End: seg.End.Seconds()})
		if text != "" {
			parts = append(parts, text)
		}
	}

	res.Text = strings.Join(parts, " ")
	if res.Language = wctx.DetectedLanguage(); res.Language == "" {
		res.Language = wctx.Language()
	}
	return res, nil
}

func (w *Whisper) configure(wctx whisper.Context) error {
	lang := w.opt.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return fmt.Errorf("whisper language %q: %w", lang, err)
	}
	wctx.SetTranslate(w.opt.Translate)

	threads := w.opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if w.opt.Prompt != "" {
		wctx.SetInitialPrompt(w.opt.Prompt)
	}
	if w.opt.BeamSize > 0 {
		wctx.SetBeamSize(w.opt.BeamSize)
	}
	if w.opt.Temperature > 0 {
		wctx.SetTemperature(w.opt.Temperature)
	}
	return nil
}
