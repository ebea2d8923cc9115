package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamText(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{
			name:   "single Tj",
			stream: "BT\n/F1 12 Tf\n72 720 Td\n(Artículo 1) Tj\nET",
			want:   "Artículo 1",
		},
		{
			name:   "positioning splits lines",
			stream: "BT\n72 720 Td\n(Artículo 1.) Tj\n0 -14 Td\n(El plazo es de diez días.) Tj\nET",
			want:   "Artículo 1.\nEl plazo es de diez días.",
		},
		{
			name:   "TJ array",
			stream: "BT\n[(Dere) -20 (cho) 10 ( civil)] TJ\nET",
			want:   "Derecho civil",
		},
		{
			name:   "T star and quote",
			stream: "BT\n(uno) Tj\nT*\n(dos) Tj\n(tres) '\nET",
			want:   "uno\ndos\ntres",
		},
		{
			name:   "escaped parentheses",
			stream: `BT` + "\n" + `(Ley 39/2015 \(LPAC\)) Tj` + "\n" + `ET`,
			want:   "Ley 39/2015 (LPAC)",
		},
		{
			name:   "blank runs collapse",
			stream: "BT\n(a     b\\t\\tc) Tj\nET",
			want:   "a b c",
		},
		{
			name:   "no text operators",
			stream: "q\n1 0 0 1 0 0 cm\nQ",
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, streamText([]byte(tt.stream)))
		})
	}
}

func TestDecodeString(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"plain", []byte("texto"), "texto"},
		{"octal escape", []byte(`a\040b`), "a b"},
		{"winansi accents", []byte{'d', 0xED, 'a', 's'}, "días"},
		{"octal winansi", []byte(`art\355culo`), "artículo"},
		{"utf8 kept", []byte("canción"), "canción"},
		{"backslash", []byte(`a\\b`), `a\b`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeString(tt.raw))
		})
	}
}
