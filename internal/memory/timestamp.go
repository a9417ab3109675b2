package memory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Layouts accepted for saved_at/created_at. Older data files carry naive
// local timestamps with microseconds and no zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (f *Fact) UnmarshalJSON(data []byte) error {
	var aux struct {
		Value   string `json:"value"`
		SavedAt string `json:"saved_at"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	ts, err := parseTimestamp(aux.SavedAt)
	if err != nil {
		return err
	}

	f.Value = aux.Value
	f.SavedAt = ts
	return nil
}

func (n *Note) UnmarshalJSON(data []byte) error {
	var aux struct {
		Text      string `json:"text"`
		CreatedAt string `json:"created_at"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	ts, err := parseTimestamp(aux.CreatedAt)
	if err != nil {
		return err
	}

	n.Text = aux.Text
	n.CreatedAt = ts
	return nil
}
