package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ParseSnapshot decodes a snapshot document, rejecting anything that is
// not a JSON object. The save handler and the legacy importer both go
// through here so the two paths cannot diverge.
func ParseSnapshot(raw []byte) (*Snapshot, error) {
	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	obj, ok := probe.(map[string]any)
	if !ok {
		return nil, errors.New("expected a state object")
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if _, present := obj["settings"]; !present {
		snap.SettingsOmitted = true
	}
	if snap.ChatHistory == nil {
		snap.ChatHistory = map[string][]ChatMessage{}
	}
	if snap.CustomFoods == nil {
		snap.CustomFoods = []CustomFood{}
	}
	if snap.DailyEntries == nil {
		snap.DailyEntries = []DailyEntry{}
	}
	return &snap, nil
}
