package profile

import "testing"

func TestParseAbbreviatedCount(t *testing.T) {
	tests := []struct {
		input    string
		expected int
		wantErr  bool
	}{
		{"123", 123, false},
		{"1,234", 1234, false},
		{"11.1K", 11100, false},
		{"11.1k", 11100, false},
		{"2M", 2000000, false},
		{"1.5M", 1500000, false},
		{"2m", 2000000, false},
		{"1B", 1000000000, false},
		{"0", 0, false},
		{" 384 ", 384, false},
		{"", 0, true},
		{"abc", 0, true},
		{"K", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseAbbreviatedCount(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAbbreviatedCount(%q) expected error, got %d", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAbbreviatedCount(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseAbbreviatedCount(%q) = %d, expected %d", tt.input, got, tt.expected)
		}
	}
}

func TestFirstNumericToken(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"11.1K followers", "11.1K"},
		{"384 following", "384"},
		{"posts 42", "42"},
		{"no numbers here", ""},
	}

	for _, tt := range tests {
		if got := firstNumericToken(tt.input); got != tt.expected {
			t.Errorf("firstNumericToken(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestSnapshotPostures(t *testing.T) {
	closed := &Snapshot{Username: "x", IsPrivate: true}
	if closed.IsPublic() {
		t.Error("private snapshot reported public")
	}
	if closed.Reachable() {
		t.Error("private snapshot reported reachable")
	}

	open := &Snapshot{Username: "y", IsPrivate: false, HasStoryRing: true}
	if !open.IsPublic() || !open.Reachable() {
		t.Error("public snapshot with story ring should be reachable")
	}

	bare := &Snapshot{Username: "z", IsPrivate: false}
	if bare.Reachable() {
		t.Error("public snapshot with no messaging surfaces should not be reachable")
	}
}

func TestNormalizeProfileURL(t *testing.T) {
	a := normalizeProfileURL("https://www.instagram.com/Alice/?hl=en")
	b := normalizeProfileURL("https://www.instagram.com/alice")
	if a != b {
		t.Errorf("normalized URLs differ: %q vs %q", a, b)
	}
}
