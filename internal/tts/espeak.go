package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <espeak-ng/speak_lib.h>

static int
espeak_say(const char *text, const char *voice, int rate)
{
	if (!text)
	{ return -1; }

	if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
	{ return -2; }

	espeak_VOICE specs = { .languages = voice };
	espeak_SetVoiceByProperties(&specs);
	if (rate > 0)
	{ espeak_SetParameter(espeakRATE, rate, 0); }

	espeak_Synth(text, 500, 0, 0, 0, espeakCHARS_AUTO, NULL, NULL);
	espeak_Synchronize();
	espeak_Terminate();

	return 0;
}
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"
)

// Espeak speaks through libespeak-ng. Playback is synchronous.
type Espeak struct {
	mu    sync.Mutex
	voice string
	rate  int
}

func NewEspeak(voice string, rate int) *Espeak {
	if voice == "" {
		voice = "en"
	}
	return &Espeak{voice: voice, rate: rate}
}

func (e *Espeak) Speak(_ context.Context, text string) error {
	if text == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	cvoice := C.CString(e.voice)
	defer C.free(unsafe.Pointer(cvoice))

	if rc := C.espeak_say(ctext, cvoice, C.int(e.rate)); rc != 0 {
		return fmt.Errorf("espeak_say failed: %d", int(rc))
	}
	return nil
}
