// Package audioconv turns wav, mp3 and ogg (vorbis or opus) audio into mono
// 16 kHz float32 PCM for speech recognition, and writes PCM back out as WAV.
package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

const TargetRate = 16000

var ErrUnsupported = errors.New("unsupported audio format")

type Options struct {
	MaxSamples int
}

type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOgg     Format = "ogg"
)

// FormatFromName guesses the format from a file name or MIME subtype.
func FormatFromName(name string) Format {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		ext = strings.ToLower(name)
	}
	switch ext {
	case "wav", "wave", "x-wav":
		return FormatWAV
	case "mp3", "mpeg":
		return FormatMP3
	case "ogg", "oga", "opus":
		return FormatOgg
	}
	return FormatUnknown
}

// Sniff detects the container from magic bytes.
func Sniff(head []byte) Format {
	switch {
	case len(head) >= 4 && string(head[:4]) == "RIFF":
		return FormatWAV
	case len(head) >= 4 && string(head[:4]) == "OggS":
		return FormatOgg
	case len(head) >= 3 && string(head[:3]) == "ID3":
		return FormatMP3
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return FormatUnknown
}

func ConvertFileToPCM16k(ctx context.Context, path string, opt Options) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(ctx, f, FormatFromName(path), opt)
}

// ConvertBytesToPCM16k decodes an in-memory clip, sniffing the format.
func ConvertBytesToPCM16k(ctx context.Context, data []byte, opt Options) ([]float32, error) {
	return Decode(ctx, bytes.NewReader(data), FormatUnknown, opt)
}

// Decode reads one clip. An unknown format is sniffed from the first bytes.
func Decode(_ context.Context, r io.ReadSeeker, format Format, opt Options) ([]float32, error) {
	if format == FormatUnknown {
		magic, _ := bufio.NewReader(r).Peek(4)
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		format = Sniff(magic)
	}

	var (
		x   []float32
		err error
	)
	switch format {
	case FormatWAV:
		x, err = decodeWAV(r)
	case FormatMP3:
		x, err = decodeMP3(r)
	case FormatOgg:
		x, err = decodeOgg(r)
	default:
		return nil, fmt.Errorf("%w (supported: wav/mp3/ogg-vorbis/ogg-opus)", ErrUnsupported)
	}
	if err != nil {
		return nil, err
	}

	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x, nil
}

func decodeOgg(r io.ReadSeeker) ([]float32, error) {
	x, err := decodeOggVorbis(r)
	if err == nil {
		return x, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	x, err = decodeOggOpus(r)
	if err != nil {
		return nil, fmt.Errorf("cannot decode ogg as vorbis or opus: %w", err)
	}
	return x, nil
}

func decodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil || pb == nil || pb.Data == nil {
		if err == nil {
			err = errors.New("empty wav")
		}
		return nil, err
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}
	x := intSliceToFloat32(pb.Data, bd)

	ch := 1
	sr := 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			sr = pb.Format.SampleRate
		}
	}
	return resampleLinear(downmixInterleaved(x, ch), sr, TargetRate), nil
}

func decodeMP3(r io.Reader) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, err
	}

	// go-mp3 always produces interleaved stereo.
	x := downmixInterleaved(int16SliceToFloat32(ints), 2)

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	return resampleLinear(x, sr, TargetRate), nil
}

func decodeOggVorbis(r io.Reader) ([]float32, error) {
	pcm, f, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if f == nil || f.Channels <= 0 || f.SampleRate <= 0 {
		return nil, errors.New("invalid ogg/vorbis stream")
	}
	return resampleLinear(downmixInterleaved(pcm, f.Channels), f.SampleRate, TargetRate), nil
}

func decodeOggOpus(r io.ReadSeeker) ([]float32, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	// Opus always decodes at 48 kHz.
	var (
		pcm48 []float32
		buf   = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm48 = append(pcm48, int16SliceToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if len(pcm48) == 0 {
		return nil, errors.New("empty ogg/opus stream")
	}
	return resampleLinear(downmixInterleaved(pcm48, ch), 48000, TargetRate), nil
}

// EncodeWAV writes mono float32 PCM as 16-bit WAV.
func EncodeWAV(w io.WriteSeeker, pcm []float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(pcm)),
	}
	for i, s := range pcm {
		buf.Data[i] = int(clamp(float64(s), -1, 1) * math.MaxInt16)
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}

// WriteWAVFile encodes pcm into a new file at path.
func WriteWAVFile(path string, pcm []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeWAV(f, pcm, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func intSliceToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1.0, 1.0))
	}
	return out
}

func int16SliceToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

func downmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	nFrames := len(in) / channels
	out := make([]float32, nFrames)
	for i := 0; i < nFrames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func resampleLinear(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i0 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		if i1 >= len(in) {
			out[i] = in[i0]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i1]*a
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
