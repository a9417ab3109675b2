// Package memory persists remembered facts and notes as two JSON documents.
//
// Every mutation rewrites the whole collection it touched. A missing or
// corrupt file loads as an empty collection. When a write fails the error is
// logged and the in-memory state stays authoritative for the rest of the
// run.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Fact struct {
	Key     string    `json:"-"`
	Value   string    `json:"value"`
	SavedAt time.Time `json:"saved_at"`
}

type Note struct {
	ID        string    `json:"-"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Store struct {
	mu sync.Mutex

	factsPath string
	notesPath string

	facts map[string]Fact
	notes map[string]Note
	// lastNoteID is the highest id ever issued; ids are never reused.
	lastNoteID int

	now    func() time.Time
	logger *log.Logger
}

type Option func(*Store)

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads the facts and notes files, creating their directories if
// needed. Load problems never fail Open.
func Open(factsPath, notesPath string, opts ...Option) *Store {
	s := &Store{
		factsPath: factsPath,
		notesPath: notesPath,
		facts:     make(map[string]Fact),
		notes:     make(map[string]Note),
		now:       time.Now,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, p := range []string{factsPath, notesPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			s.logger.Warn("Failed to create data directory", "path", p, "err", err)
		}
	}

	s.loadFacts()
	s.loadNotes()

	return s
}

// NormalizeKey lower-cases and trims a fact key.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Remember upserts a fact under the normalized key.
func (s *Store) Remember(key, value string) Fact {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := Fact{
		Key:     NormalizeKey(key),
		Value:   value,
		SavedAt: s.now(),
	}
	s.facts[f.Key] = f
	s.saveFactsLocked()

	return f
}

// Recall returns the value stored for key.
func (s *Store) Recall(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.facts[NormalizeKey(key)]
	return f.Value, ok
}

// Forget deletes a fact. It returns the normalized key and whether a fact
// was removed.
func (s *Store) Forget(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := NormalizeKey(key)
	if _, ok := s.facts[k]; !ok {
		return k, false
	}

	delete(s.facts, k)
	s.saveFactsLocked()

	return k, true
}

// Memories returns all facts ordered by key.
func (s *Store) Memories() []Fact {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Fact, 0, len(s.facts))
	for _, f := range s.facts {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return out
}

// AddNote stores text under the next id.
func (s *Store) AddNote(text string) Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastNoteID++
	n := Note{
		ID:        strconv.Itoa(s.lastNoteID),
		Text:      text,
		CreatedAt: s.now(),
	}
	s.notes[n.ID] = n
	s.saveNotesLocked()

	return n
}

// Notes returns all notes in id order.
func (s *Store) Notes() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return noteNum(out[i].ID) < noteNum(out[j].ID) })

	return out
}

func (s *Store) DeleteNote(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id = strings.TrimSpace(id)
	if _, ok := s.notes[id]; !ok {
		return false
	}

	delete(s.notes, id)
	s.saveNotesLocked()

	return true
}

// ClearNotes removes every note and returns how many were held. The id
// counter is kept.
func (s *Store) ClearNotes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.notes)
	s.notes = make(map[string]Note)
	s.saveNotesLocked()

	return n
}

// --- persistence ---

func (s *Store) seqPath() string {
	return s.notesPath + ".seq"
}

func (s *Store) loadFacts() {
	raw := make(map[string]Fact)
	if !s.readJSON(s.factsPath, &raw) {
		return
	}

	for k, f := range raw {
		f.Key = NormalizeKey(k)
		s.facts[f.Key] = f
	}
}

func (s *Store) loadNotes() {
	raw := make(map[string]Note)
	if s.readJSON(s.notesPath, &raw) {
		for id, n := range raw {
			n.ID = id
			s.notes[id] = n
			if v := noteNum(id); v > s.lastNoteID {
				s.lastNoteID = v
			}
		}
	}

	data, err := os.ReadFile(s.seqPath())
	if err != nil {
		return
	}
	if v, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && v > s.lastNoteID {
		s.lastNoteID = v
	}
}

// readJSON reports whether v was filled from path.
func (s *Store) readJSON(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to read store file, starting empty", "path", path, "err", err)
		}
		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("Corrupt store file, starting empty", "path", path, "err", err)
		return false
	}

	return true
}

func (s *Store) saveFactsLocked() {
	if err := writeJSON(s.factsPath, s.facts); err != nil {
		s.logger.Error("Failed to persist facts", "path", s.factsPath, "err", err)
	}
}

func (s *Store) saveNotesLocked() {
	if err := writeJSON(s.notesPath, s.notes); err != nil {
		s.logger.Error("Failed to persist notes", "path", s.notesPath, "err", err)
	}
	if err := writeFileAtomic(s.seqPath(), []byte(strconv.Itoa(s.lastNoteID)+"\n")); err != nil {
		s.logger.Error("Failed to persist note counter", "path", s.seqPath(), "err", err)
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// writeFileAtomic replaces path so readers never observe a half-written file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func noteNum(id string) int {
	v, err := strconv.Atoi(id)
	if err != nil {
		return 0
	}
	return v
}
