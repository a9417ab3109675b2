package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"iveri/internal/memory"
	"iveri/internal/nlu"
)

const (
	rememberHelp   = "I didn't understand what to remember. Try saying 'remember my name is John'."
	recallHelp     = "What would you like me to recall?"
	noteHelp       = "What should I write in the note?"
	noMemories     = "I don't have any memories stored yet. Tell me something to remember!"
	noNotes        = "You don't have any notes yet. Say 'add a note' to create one!"
	notesCleared   = "All notes have been cleared."
	memoriesHeader = "Here's what I remember about you:"
	notesHeader    = "Your notes:"
)

var noteIDRe = regexp.MustCompile(`\b(?:delete|remove) note (?:number )?(\d+)\b`)

// Memory answers remember/recall/forget and the notes vocabulary from the
// persistent store.
func Memory(store *memory.Store) *nlu.RuleSet {
	m := memoryRules{store: store}

	return nlu.NewRuleSet("memory",
		nlu.Rule{Name: "remember", Match: nlu.Contains("remember my", "remember that my"), Act: m.remember},
		nlu.Rule{Name: "recall", Match: nlu.Contains("what is my", "what's my"), Act: m.recall},
		nlu.Rule{Name: "forget", Match: nlu.Contains("forget my"), Act: m.forget},
		nlu.Rule{
			Name:  "list memories",
			Match: nlu.Contains("what do you remember", "list memories", "show memories", "list my memories", "show my memories"),
			Act:   m.listMemories,
		},
		nlu.Rule{Name: "add note", Match: nlu.Contains("add a note", "make a note", "take a note"), Act: m.addNote},
		nlu.Rule{Name: "delete note", Match: nlu.All(nlu.Words("delete", "remove"), nlu.Words("note")), Act: m.deleteNote},
		nlu.Rule{
			Name:  "clear notes",
			Match: nlu.Contains("clear notes", "clear my notes", "delete all notes", "delete all my notes"),
			Act:   m.clearNotes,
		},
		nlu.Rule{
			Name:  "list notes",
			Match: nlu.Contains("list notes", "read notes", "show notes", "my notes"),
			Act:   m.listNotes,
		},
	)
}

type memoryRules struct {
	store *memory.Store
}

func (m memoryRules) remember(_ context.Context, text string) (string, bool, error) {
	head, value, ok := strings.Cut(text, " is ")
	if !ok {
		return rememberHelp, true, nil
	}

	key := nlu.After(head, "remember that my", "remember my")
	value = nlu.Clean(value)
	if key == "" || value == "" {
		return rememberHelp, true, nil
	}

	f := m.store.Remember(key, value)
	return fmt.Sprintf("I'll remember that your %s is %s.", f.Key, f.Value), true, nil
}

func (m memoryRules) recall(_ context.Context, text string) (string, bool, error) {
	key := nlu.After(text, "what is my", "what's my")
	if key == "" {
		return recallHelp, true, nil
	}

	if v, ok := m.store.Recall(key); ok {
		return fmt.Sprintf("Your %s is %s.", key, v), true, nil
	}
	return fmt.Sprintf("I don't know your %s yet. Tell me to remember it!", key), true, nil
}

func (m memoryRules) forget(_ context.Context, text string) (string, bool, error) {
	key := nlu.After(text, "forget my")
	if key == "" {
		return "", false, nil
	}

	k, ok := m.store.Forget(key)
	if ok {
		return fmt.Sprintf("I've forgotten your %s.", k), true, nil
	}
	return fmt.Sprintf("I don't have anything stored for %s.", k), true, nil
}

func (m memoryRules) listMemories(context.Context, string) (string, bool, error) {
	facts := m.store.Memories()
	if len(facts) == 0 {
		return noMemories, true, nil
	}

	lines := []string{memoriesHeader}
	for _, f := range facts {
		lines = append(lines, fmt.Sprintf("- Your %s is %s", f.Key, f.Value))
	}
	return strings.Join(lines, "\n"), true, nil
}

func (m memoryRules) addNote(_ context.Context, text string) (string, bool, error) {
	body := nlu.Strip(text, "add a note", "make a note", "take a note")
	body = nlu.StripWords(body, "that", "to")
	if body == "" {
		return noteHelp, true, nil
	}

	n := m.store.AddNote(body)
	return "Note saved: " + n.Text, true, nil
}

func (m memoryRules) deleteNote(_ context.Context, text string) (string, bool, error) {
	match := noteIDRe.FindStringSubmatch(text)
	if match == nil {
		return "", false, nil
	}

	id := match[1]
	if m.store.DeleteNote(id) {
		return fmt.Sprintf("Note %s deleted.", id), true, nil
	}
	return fmt.Sprintf("Note %s not found.", id), true, nil
}

func (m memoryRules) clearNotes(context.Context, string) (string, bool, error) {
	m.store.ClearNotes()
	return notesCleared, true, nil
}

func (m memoryRules) listNotes(context.Context, string) (string, bool, error) {
	notes := m.store.Notes()
	if len(notes) == 0 {
		return noNotes, true, nil
	}

	lines := []string{notesHeader}
	for _, n := range notes {
		lines = append(lines, fmt.Sprintf("Note %s: %s", n.ID, n.Text))
	}
	return strings.Join(lines, "\n"), true, nil
}
