package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

func TestExtractDocumentID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		suffix   string
		expected string
	}{
		{
			name:     "valid questions URI",
			uri:      "lexcards://documents/doc-456/questions",
			suffix:   "/questions",
			expected: "doc-456",
		},
		{
			name:     "valid sections URI",
			uri:      "lexcards://documents/doc-456/sections",
			suffix:   "/sections",
			expected: "doc-456",
		},
		{
			name:     "invalid prefix",
			uri:      "file://documents/doc-456/questions",
			suffix:   "/questions",
			expected: "",
		},
		{
			name:     "wrong suffix",
			uri:      "lexcards://documents/doc-456/sections",
			suffix:   "/questions",
			expected: "",
		},
		{
			name:     "nested path",
			uri:      "lexcards://documents/a/b/questions",
			suffix:   "/questions",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			suffix:   "/questions",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractDocumentID(tt.uri, tt.suffix)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleDocumentsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns documents", func(t *testing.T) {
		library := &mockLibraryService{documents: []domain.Document{
			{ID: "doc-a", Name: "ley.pdf", TotalPages: 12, SectionCount: 30},
		}}
		server := newTestServer(t, &Ports{Library: library})

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("lexcards://documents"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
		assert.Contains(t, result.Contents[0].Text, `"id": "doc-a"`)
		assert.Contains(t, result.Contents[0].Text, `"pages": 12`)
		assert.Contains(t, result.Contents[0].Text, "lexcards://documents/doc-a/questions")
	})

	t.Run("returns error on list failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{Library: &mockLibraryService{err: errors.New("database error")}})

		_, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("lexcards://documents"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing documents")
	})
}

func TestServer_handleQuestionsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("exports validated questions", func(t *testing.T) {
		library := &mockLibraryService{
			document: &domain.Document{ID: "doc-a"},
			export:   `{"metadata":{"version":"2.0"}}`,
		}
		server := newTestServer(t, &Ports{Library: library})

		result, err := server.handleQuestionsResource(ctx, makeReadResourceRequest("lexcards://documents/doc-a/questions"))

		require.NoError(t, err)
		assert.Equal(t, `{"metadata":{"version":"2.0"}}`, result.Contents[0].Text)
		assert.Equal(t, "internal", library.lastFormat)
		assert.Equal(t, domain.StatusValidated, library.lastStatus)
	})

	t.Run("unknown document is not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{})

		_, err := server.handleQuestionsResource(ctx, makeReadResourceRequest("lexcards://documents/missing/questions"))

		require.Error(t, err)
	})

	t.Run("malformed URI is not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{})

		_, err := server.handleQuestionsResource(ctx, makeReadResourceRequest("lexcards://documents//questions"))

		require.Error(t, err)
	})
}

func TestServer_handleSectionsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns csv", func(t *testing.T) {
		library := &mockLibraryService{export: "id;document_id;title\n1;doc-a;Artículo 1\n"}
		server := newTestServer(t, &Ports{Library: library})

		result, err := server.handleSectionsResource(ctx, makeReadResourceRequest("lexcards://documents/doc-a/sections"))

		require.NoError(t, err)
		assert.Equal(t, "text/csv", result.Contents[0].MIMEType)
		assert.Contains(t, result.Contents[0].Text, "Artículo 1")
	})

	t.Run("unclassified document is not found", func(t *testing.T) {
		library := &mockLibraryService{err: domain.ErrNoPriorOutput}
		server := newTestServer(t, &Ports{Library: library})

		_, err := server.handleSectionsResource(ctx, makeReadResourceRequest("lexcards://documents/doc-a/sections"))

		require.Error(t, err)
		assert.NotContains(t, err.Error(), "exporting sections")
	})

	t.Run("other failures are wrapped", func(t *testing.T) {
		library := &mockLibraryService{err: errors.New("disk full")}
		server := newTestServer(t, &Ports{Library: library})

		_, err := server.handleSectionsResource(ctx, makeReadResourceRequest("lexcards://documents/doc-a/sections"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "exporting sections")
	})
}
