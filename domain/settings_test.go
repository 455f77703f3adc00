package domain

import (
	"errors"
	"testing"
)

func TestNormalizeSettingValue(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		value   string
		want    string
		wantErr bool
	}{
		{"valid boards value", "max_boards_per_user", "10", "10", false},
		{"whitespace normalized", "max_boards_per_user", " 10 ", "10", false},
		{"boards lower bound", "max_boards_per_user", "1", "1", false},
		{"boards upper bound", "max_boards_per_user", "1000", "1000", false},
		{"boards above range", "max_boards_per_user", "1001", "", true},
		{"boards below range", "max_boards_per_user", "0", "", true},
		{"cards upper bound", "max_cards_per_board", "10000", "10000", false},
		{"not an integer", "max_cards_per_board", "many", "", true},
		{"float rejected", "max_cards_per_board", "10.5", "", true},
		{"unknown key", "theme_color", "3", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeSettingValue(tc.key, tc.value)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("%s: expected ValidationError, got %T", tc.name, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestSettingSpecsCoverRecognizedKeys(t *testing.T) {
	specs := SettingSpecs()
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	if _, ok := SpecFor("max_boards_per_user"); !ok {
		t.Fatal("missing max_boards_per_user spec")
	}
	if _, ok := SpecFor("max_cards_per_board"); !ok {
		t.Fatal("missing max_cards_per_board spec")
	}
	if _, ok := SpecFor("unknown"); ok {
		t.Fatal("unexpected spec for unknown key")
	}
}
