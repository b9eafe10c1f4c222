package detection

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Token
	}{
		{"single", "1234", []Token{{"1234", 0, 4}}},
		{"too short", "123", nil},
		{"too long", "1234567", nil},
		{"separators", "No. 4411/98765 x", []Token{{"4411", 4, 8}, {"98765", 9, 14}}},
		{"six digits", "ID:654321", []Token{{"654321", 3, 9}}},
		{"letters split runs", "12a3456b7890", []Token{{"3456", 3, 7}, {"7890", 8, 12}}},
		{"unicode separator", "1001→2002", []Token{{"1001", 0, 4}, {"2002", 7, 11}}},
		{"non ascii digits ignored", "١٢٣٤", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTokens(tt.text, 4, 6)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExtractTokens(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestIsYearLike(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1900", true},
		{"1987", true},
		{"2099", true},
		{"1899", false},
		{"2100", false},
		{"19875", false},
		{"0199", false},
	}
	for _, tt := range tests {
		if got := IsYearLike(tt.value, 1900, 2099); got != tt.want {
			t.Errorf("IsYearLike(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
