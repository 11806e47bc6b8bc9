package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Air Jordan 1", "air jordan 1"},
		{"collapses whitespace", "Nike  Air   Max 90", "nike air max 90"},
		{"strips quotes", `Dunk Low "Panda"`, "dunk low panda"},
		{"strips curly quotes", "Air Max 90 “Infrared”", "air max 90 infrared"},
		{"strips trademark marks", "Yeezy Boost™ 350", "yeezy boost 350"},
		{"folds diacritics", "Clót Air Force", "clot air force"},
		{"trims", "  Samba OG  ", "samba og"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.input))
		})
	}
}

func TestSKU(t *testing.T) {
	assert.Equal(t, "dd1391100", SKU("DD1391-100"))
	assert.Equal(t, "dd1391100", SKU("dd1391 100"))
	assert.Equal(t, "", SKU(""))
}

func TestItemKey(t *testing.T) {
	assert.Equal(t, "nike|air max 90", ItemKey("Nike", "Air Max 90"))
	assert.Equal(t, ItemKey("NIKE", "AIR  MAX 90"), ItemKey("nike", "Air Max 90"))

	// Either half empty means no key.
	assert.Empty(t, ItemKey("", "Air Max 90"))
	assert.Empty(t, ItemKey("Nike", ""))
}

func TestContainsName(t *testing.T) {
	assert.True(t, ContainsName("Air Jordan 1 Retro High OG Chicago", "air jordan 1 retro high og"))
	assert.True(t, ContainsName("Dunk Low", "Nike Dunk Low Panda"))
	assert.False(t, ContainsName("Air Max 90", "Air Force 1"))
	assert.False(t, ContainsName("", "Air Force 1"))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "air-jordan-1-retro-high-og", Filename("Air Jordan 1 Retro High OG"))
	assert.Equal(t, "dunk-low-panda", Filename(`Dunk Low "Panda"`))

	long := Filename("a very long sneaker product name that keeps going and going and going far past the limit")
	assert.LessOrEqual(t, len(long), 60)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"$129.99", 129.99},
		{"129,99", 129.99},
		{"1,299", 1299},
		{"$1,299.50 USD", 1299.50},
		{"free", 0},
		{"", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParsePrice(tt.input), "input %q", tt.input)
	}
}

func TestParseReleaseDate(t *testing.T) {
	want := time.Date(2023, 4, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, want, ParseReleaseDate("2023-04-15"))
	assert.Equal(t, want, ParseReleaseDate("04/15/2023"))
	assert.Equal(t, want, ParseReleaseDate("4/15/2023"))

	assert.True(t, ParseReleaseDate("").IsZero())
	assert.True(t, ParseReleaseDate("soon").IsZero())
}
