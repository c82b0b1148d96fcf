package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MaxResourceSize caps the corpus resource at 1MB. Larger corpora are
// served through corpus_search instead of wholesale.
const MaxResourceSize = 1024 * 1024

// Resource URIs.
const (
	CorpusResourceURI   = "pretext://corpus"
	ManifestResourceURI = "pretext://manifest"
)

// recentBuildsLimit bounds the manifest resource payload.
const recentBuildsLimit = 20

// registerResources registers the corpus file and the build manifest
// as read-only resources.
func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "corpus",
			URI:         CorpusResourceURI,
			Description: "The built corpus file: one sentence per line, documents separated by blank lines",
			MIMEType:    "text/plain",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.readCorpusResource(ctx)
		},
	)

	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "manifest",
			URI:         ManifestResourceURI,
			Description: "Recent build records: counts, checksums, durations",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.readManifestResource(ctx)
		},
	)

	s.logger.Debug("MCP resources registered", slog.Int("count", 2))
}

// ReadResource reads a resource by URI. Exposed for direct calls; the
// SDK routes transport requests to the same handlers.
func (s *Server) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch uri {
	case CorpusResourceURI:
		return s.readCorpusResource(ctx)
	case ManifestResourceURI:
		return s.readManifestResource(ctx)
	default:
		return nil, NewResourceNotFoundError(uri)
	}
}

// readCorpusResource serves the corpus file, size capped.
func (s *Server) readCorpusResource(_ context.Context) (*mcp.ReadResourceResult, error) {
	info, err := os.Stat(s.corpusPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MCPError{
				Code:    ErrCodeFileNotFound,
				Message: fmt.Sprintf("corpus not found: %s. Run 'pretext build' first.", s.corpusPath),
			}
		}
		return nil, MapError(err)
	}
	if info.Size() > MaxResourceSize {
		return nil, &MCPError{
			Code:    ErrCodeFileTooLarge,
			Message: fmt.Sprintf("corpus too large for a resource: %d bytes (max %d). Use corpus_search instead.", info.Size(), MaxResourceSize),
		}
	}

	content, err := os.ReadFile(s.corpusPath)
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      CorpusResourceURI,
				MIMEType: "text/plain",
				Text:     string(content),
			},
		},
	}, nil
}

// readManifestResource serves recent build records as JSON.
func (s *Server) readManifestResource(ctx context.Context) (*mcp.ReadResourceResult, error) {
	recs, err := s.manifest.RecentBuilds(ctx, recentBuildsLimit)
	if err != nil {
		return nil, MapError(err)
	}

	builds := make([]BuildOutput, 0, len(recs))
	for _, rec := range recs {
		builds = append(builds, BuildOutput{
			FinishedAt:  rec.FinishedAt.Format(time.RFC3339),
			DatasetPath: rec.DatasetPath,
			Documents:   rec.Documents,
			Sentences:   rec.Sentences,
			Separators:  rec.Separators,
			Bytes:       rec.Bytes,
			Checksum:    rec.Checksum,
			DurationMS:  rec.Duration.Milliseconds(),
			ToolVersion: rec.ToolVersion,
		})
	}

	content, err := json.MarshalIndent(map[string]any{"builds": builds}, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      ManifestResourceURI,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
