package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"collapses runs", "a  b\t\tc\n\nd", "a b c d"},
		{"trims ends", "  hello  ", "hello"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeWhitespace(tt.input))
		})
	}
}

func TestMostlyLatin(t *testing.T) {
	assert.True(t, MostlyLatin("Stainless steel frame with adjustable height"))
	assert.True(t, MostlyLatin("500W motor"))
	assert.False(t, MostlyLatin("完全に日本語のテキストであり、ラテン文字は含まれていません"))
	assert.False(t, MostlyLatin(""))
}

func TestTitleTokens(t *testing.T) {
	tokens := TitleTokens("The ComfortGlide 3000 Wheelchair with Padded Armrests")
	assert.Contains(t, tokens, "comfortglide")
	assert.Contains(t, tokens, "3000")
	assert.Contains(t, tokens, "wheelchair")
	assert.NotContains(t, tokens, "the")
	assert.NotContains(t, tokens, "with")
}

func TestLooksLikeKeyValue(t *testing.T) {
	tests := []struct {
		input   string
		wantKey string
		wantVal string
		ok      bool
	}{
		{"Weight Capacity: 300 lb", "Weight Capacity", "300 lb", true},
		{"Width: 24 in", "Width", "24 in", true},
		{"No colon here", "", "", false},
		{"This is a full sentence. It happens to contain: a colon", "", "", false},
		{": leading", "", "", false},
		{"trailing:", "", "", false},
	}
	for _, tt := range tests {
		key, val, ok := LooksLikeKeyValue(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		if tt.ok {
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantVal, val)
		}
	}
}
