package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for lexcards resources.
	uriScheme = "lexcards://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing documents.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "documents",
		Name:        "documents",
		Description: "List of all processed documents",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	// Template for the question bank of a document.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}/questions",
		Name:        "document-questions",
		Description: "Validated questions of a document in the lossless JSON export format",
		MIMEType:    "application/json",
	}, s.handleQuestionsResource)

	// Template for classified sections.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}/sections",
		Name:        "document-sections",
		Description: "Classified sections of a document as semicolon separated CSV",
		MIMEType:    "text/csv",
	}, s.handleSectionsResource)
}

// handleDocumentsResource returns a list of all processed documents.
func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docs, err := s.ports.Library.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	type docInfo struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Pages    int    `json:"pages"`
		Sections int    `json:"sections"`
		URI      string `json:"uri"`
	}

	infos := make([]docInfo, len(docs))
	for i := range docs {
		infos[i] = docInfo{
			ID:       docs[i].ID,
			Name:     docs[i].Name,
			Pages:    docs[i].TotalPages,
			Sections: docs[i].SectionCount,
			URI:      uriScheme + "documents/" + docs[i].ID + "/questions",
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling documents: %w", err)
	}

	return textResult(req.Params.URI, "application/json", string(data)), nil
}

// handleQuestionsResource returns the validated questions of a document.
func (s *Server) handleQuestionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docID := extractDocumentID(req.Params.URI, "/questions")
	if docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if _, err := s.ports.Library.Document(ctx, docID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return nil, fmt.Errorf("getting document: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.ports.Library.ExportQuestions(ctx, &buf, docID, "internal", domain.StatusValidated); err != nil {
		return nil, fmt.Errorf("exporting questions: %w", err)
	}

	return textResult(req.Params.URI, "application/json", buf.String()), nil
}

// handleSectionsResource returns the classified sections of a document.
func (s *Server) handleSectionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docID := extractDocumentID(req.Params.URI, "/sections")
	if docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	var buf bytes.Buffer
	thresholds := s.ports.settings().Classification.Thresholds
	if _, err := s.ports.Library.ExportSections(ctx, &buf, docID, thresholds); err != nil {
		if errors.Is(err, domain.ErrNoPriorOutput) || errors.Is(err, domain.ErrNotFound) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return nil, fmt.Errorf("exporting sections: %w", err)
	}

	return textResult(req.Params.URI, "text/csv", buf.String()), nil
}

func textResult(uri, mimeType, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: mimeType,
			Text:     text,
		}},
	}
}

// extractDocumentID extracts the document ID from a URI like
// lexcards://documents/{documentId}/questions.
func extractDocumentID(uri, suffix string) string {
	const prefix = uriScheme + "documents/"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}

	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
