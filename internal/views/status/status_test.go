package status

import (
	"strings"
	"testing"
)

func TestViewShowsFigures(t *testing.T) {
	m := New(12)
	m.Width = 120
	m.State = "open"
	m.Elapsed = 75
	m.SetTokens(1234.5)
	m.Active = 3
	m.Dropped = 1

	v := m.View()
	for _, want := range []string{"Connected", "1:15", "1,234.5 tokens", "3 on screen", "1 dropped"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}

func TestStateLabels(t *testing.T) {
	tests := []struct {
		state string
		want  string
	}{
		{"open", "Connected"},
		{"connecting", "Connecting..."},
		{"reconnecting", "Reconnecting..."},
		{"closed", "Disconnected"},
		{"lost", "Connection lost"},
		{"offline", "Offline"},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			m := New(12)
			m.Width = 100
			m.State = tt.state
			if v := m.View(); !strings.Contains(v, tt.want) {
				t.Errorf("view for %q missing %q", tt.state, tt.want)
			}
		})
	}
}

func TestPulseDecays(t *testing.T) {
	m := New(12)
	if m.Pulsing() {
		t.Fatal("pulsing before any tokens")
	}
	m.SetTokens(5)
	if !m.Pulsing() {
		t.Fatal("token increase did not start the pulse")
	}
	for i := 0; i < 120; i++ {
		m.Animate()
	}
	if m.Pulsing() {
		t.Error("pulse still visible after 10s of frames")
	}

	m.SetTokens(5)
	if m.Pulsing() {
		t.Error("unchanged total restarted the pulse")
	}
}

func TestNote(t *testing.T) {
	m := New(12)
	m.Width = 120
	m.State = "offline"
	m.Note = "connection lost"
	v := m.View()
	if !strings.Contains(v, "Offline") || !strings.Contains(v, "connection lost") {
		t.Errorf("view missing offline state or note:\n%s", v)
	}
}
