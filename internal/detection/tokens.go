package detection

import "strconv"

// Token is one numeric run found inside a recognized line.
type Token struct {
	// Value is the digit string.
	Value string `json:"value"`

	// Start and End are byte offsets of the run in the source text (End exclusive).
	Start int `json:"start"`
	End   int `json:"end"`
}

// ExtractTokens returns every maximal run of ASCII digits in text whose length is
// within [minDigits, maxDigits]. Runs outside the range are skipped entirely,
// never truncated.
func ExtractTokens(text string, minDigits, maxDigits int) []Token {
	var tokens []Token
	start := -1
	for i := 0; i <= len(text); i++ {
		if i < len(text) && isDigit(text[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n := i - start
			if n >= minDigits && n <= maxDigits {
				tokens = append(tokens, Token{Value: text[start:i], Start: start, End: i})
			}
			start = -1
		}
	}
	return tokens
}

// IsYearLike reports whether value is exactly four digits inside [yearMin, yearMax].
func IsYearLike(value string, yearMin, yearMax int) bool {
	if len(value) != 4 {
		return false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return false
	}
	return n >= yearMin && n <= yearMax
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
