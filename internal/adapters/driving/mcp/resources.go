package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for SmartMarket resources.
	uriScheme = "smartmarket://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	if s.ports.Status != nil {
		s.sdk.AddResource(&mcp.Resource{
			URI:         uriScheme + "status",
			Name:        "status",
			Description: "Cache health, live index generations and engine availability",
			MIMEType:    "application/json",
		}, s.handleStatusResource)
	}

	if s.ports.Manifest != nil {
		s.sdk.AddResource(&mcp.Resource{
			URI:         uriScheme + "manifest",
			Name:        "manifest",
			Description: "Current version of every registered artifact",
			MIMEType:    "application/json",
		}, s.handleManifestResource)

		s.sdk.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: uriScheme + "manifest/{artifact}",
			Name:        "manifest-entry",
			Description: "Current manifest entry of one artifact",
			MIMEType:    "application/json",
		}, s.handleManifestEntryResource)
	}
}

// handleStatusResource returns the operational snapshot.
func (s *Server) handleStatusResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Status == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	status, err := s.ports.Status.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading status: %w", err)
	}
	return jsonResult(req.Params.URI, status)
}

// handleManifestResource returns one summary line per current artifact.
func (s *Server) handleManifestResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Manifest == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	summary, err := s.ports.Manifest.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	if summary == nil {
		summary = []domain.ArtifactSummary{}
	}
	return jsonResult(req.Params.URI, summary)
}

// handleManifestEntryResource returns the current entry of one artifact.
func (s *Server) handleManifestEntryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Manifest == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// smartmarket://manifest/{artifact}
	artifact := extractArtifactName(req.Params.URI)
	if artifact == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	entry, err := s.ports.Manifest.Current(ctx, artifact)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return nil, fmt.Errorf("reading manifest entry: %w", err)
	}
	return jsonResult(req.Params.URI, entry)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractArtifactName extracts the artifact from a URI like smartmarket://manifest/{artifact}.
func extractArtifactName(uri string) string {
	const prefix = uriScheme + "manifest/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	name := strings.TrimPrefix(uri, prefix)
	if strings.Contains(name, "/") {
		return ""
	}
	return name
}
