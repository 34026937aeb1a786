package scan

import "testing"

func TestIsPotentialMatch(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"Senior Technical Program Manager", true},
		{"TPM, Cloud Infrastructure", true},
		{"Product Manager - Payments", true},
		{"AI Platform Lead", true},
		{"ML Engineer", true},
		{"Site Reliability Engineer (SRE)", true},
		{"Principal Architect", true},
		{"Infra Engineer", true},
		{"Accountant", false},
		{"Marketing Coordinator", false},
		// Word boundaries: "ai" inside a word must not match.
		{"Maintainer of Legacy Systems", false},
		{"Email Campaign Specialist", false},
		// Multi-word keyword tolerates extra whitespace.
		{"Technical  Program Manager", true},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsPotentialMatch(tt.title); got != tt.want {
			t.Errorf("IsPotentialMatch(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}
}
