package analyze

import "testing"

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"plain object", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "Here you go:\n```json\n{\"a\":1}\n```\nThanks", `{"a":1}`, true},
		{"fenced invalid falls back to braces", "```json\n{oops\n```", "", false},
		{"fenced invalid then braces", "```json\n[1,\n```\n{\"b\":2}", `{"b":2}`, true},
		{"prose around braces", `Sure! {"detected_features": ["acne"]} Hope this helps.`, `{"detected_features": ["acne"]}`, true},
		{"first to last brace", `x {"a":{"b":1}} y`, `{"a":{"b":1}}`, true},
		{"braces invalid whole valid", `[1, 2]`, `[1, 2]`, true},
		{"whole string scalar", `"just text"`, `"just text"`, true},
		{"nothing", "I cannot analyze this image.", "", false},
		{"empty", "", "", false},
		{"reversed braces", "} nope {", "", false},
		{"fence without newline", "```json{\"a\":1}```", `{"a":1}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ExtractJSON(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
