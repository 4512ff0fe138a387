package mood

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		text string
		want Mood
	}{
		{"Tum late kyu ho?", Angry},
		{"Kaun thi woh LADKI?", Jealous},
		{"Please baat karo", Childish},
		{"I love you janu", Loving},
		{"Gussa hoon, par love you", Angry},
		{"Accha theek hai", Default},
		{"", Default},
	}
	for _, tt := range tests {
		if got := Detect(tt.text); got != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
