package model

import "testing"

func TestParseSnapshotRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`[1,2,3]`, `"text"`, `42`, `null`, `{broken`} {
		if _, err := ParseSnapshot([]byte(raw)); err == nil {
			t.Errorf("ParseSnapshot(%s) = nil error, want rejection", raw)
		}
	}
}

func TestParseSnapshotNormalizesCollections(t *testing.T) {
	snap, err := ParseSnapshot([]byte(`{"settings":{"targetCalories":1500,"macroRatio":{"protein":30,"carbs":40,"fat":30},"theme":"dark"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if snap.CustomFoods == nil || snap.DailyEntries == nil || snap.ChatHistory == nil {
		t.Errorf("collections not normalized to empty non-nil: %+v", snap)
	}
	if snap.SettingsOmitted {
		t.Error("SettingsOmitted set even though the document has settings")
	}
}

func TestParseSnapshotMarksMissingSettings(t *testing.T) {
	snap, err := ParseSnapshot([]byte(`{"customFoods":[],"dailyEntries":[],"chatHistory":{}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !snap.SettingsOmitted {
		t.Error("expected SettingsOmitted for a document without a settings key")
	}
	if snap.Settings.TargetCalories != 0 {
		t.Errorf("target calories = %d, want zero value left for the store to ignore", snap.Settings.TargetCalories)
	}
}
