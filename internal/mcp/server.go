package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pretextml/pretext/internal/catalog"
	"github.com/pretextml/pretext/internal/config"
	"github.com/pretextml/pretext/pkg/version"
)

// Search limits for the corpus_search tool.
const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

// Server is the MCP server for pretext. It exposes a built corpus to
// agent clients: full-text search over indexed sentences and the
// build statistics recorded in the manifest.
type Server struct {
	mcp      *mcp.Server
	manifest *catalog.Manifest
	index    catalog.SentenceIndex // nil when indexing is disabled
	config   *config.Config
	logger   *slog.Logger

	corpusPath string

	mu sync.RWMutex
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// SearchInput is the input schema for the corpus_search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"text to search for in corpus sentences"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of hits, default 10, max 100"`
}

// SearchOutput is the output schema for the corpus_search tool.
type SearchOutput struct {
	Hits []HitOutput `json:"hits" jsonschema:"matching sentences ranked by relevance"`
}

// HitOutput is one corpus_search result.
type HitOutput struct {
	Document int     `json:"document" jsonschema:"document ordinal in the corpus"`
	Line     int     `json:"line" jsonschema:"1-based line number in the corpus file"`
	Text     string  `json:"text" jsonschema:"the unescaped sentence"`
	Score    float64 `json:"score" jsonschema:"relevance score"`
}

// StatsInput is the (empty) input schema for the corpus_stats tool.
type StatsInput struct{}

// StatsOutput is the output schema for the corpus_stats tool.
type StatsOutput struct {
	CorpusPath       string         `json:"corpus_path" jsonschema:"path of the corpus file"`
	IndexBackend     string         `json:"index_backend,omitempty" jsonschema:"active sentence index backend"`
	IndexedSentences int            `json:"indexed_sentences" jsonschema:"number of sentences in the index"`
	LatestBuild      *BuildOutput   `json:"latest_build,omitempty" jsonschema:"most recent build record"`
	Histogram        []BucketOutput `json:"sentence_length_histogram,omitempty" jsonschema:"sentence length distribution of the latest build"`
}

// BuildOutput is the serialized form of a manifest build record.
type BuildOutput struct {
	FinishedAt  string `json:"finished_at"`
	DatasetPath string `json:"dataset_path"`
	Documents   int    `json:"documents"`
	Sentences   int    `json:"sentences"`
	Separators  int    `json:"separators"`
	Bytes       int64  `json:"bytes"`
	Checksum    string `json:"checksum"`
	DurationMS  int64  `json:"duration_ms"`
	ToolVersion string `json:"tool_version"`
}

// BucketOutput is one histogram bucket. A zero Hi marks the
// open-ended final bucket.
type BucketOutput struct {
	Lo    int `json:"lo"`
	Hi    int `json:"hi,omitempty"`
	Count int `json:"count"`
}

// NewServer creates an MCP server over a built corpus. The manifest is
// required; the sentence index may be nil when indexing was disabled,
// in which case corpus_search reports the index as missing.
func NewServer(manifest *catalog.Manifest, index catalog.SentenceIndex, cfg *config.Config, corpusPath string) (*Server, error) {
	if manifest == nil {
		return nil, errors.New("build manifest is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		manifest:   manifest,
		index:      index,
		config:     cfg,
		corpusPath: corpusPath,
		logger:     slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "pretext",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "pretext", version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "corpus_search",
			Description: "Full-text search over the sentences of the built corpus. Returns ranked hits with document ordinal and line number. Identifiers inside sentences are matched by their camelCase and snake_case parts.",
		},
		{
			Name:        "corpus_stats",
			Description: "Statistics of the built corpus: document, sentence, and separator counts of the latest build, its checksum, and the sentence length distribution. Use this to confirm a corpus exists before searching.",
		},
	}
}

// CallTool invokes a tool by name with loosely typed arguments. The
// search tool returns markdown; stats returns the structured output.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch name {
	case "corpus_search":
		return s.handleSearchTool(ctx, args)
	case "corpus_stats":
		return s.handleStatsTool(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// handleSearchTool runs a search and formats the hits as markdown.
func (s *Server) handleSearchTool(ctx context.Context, args map[string]any) (string, error) {
	start := time.Now()
	requestID := generateRequestID()

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return "", NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	if strings.TrimSpace(query) == "" {
		return "", NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	limit := defaultSearchLimit
	if l, ok := args["limit"].(float64); ok {
		limit = clampLimit(int(l), defaultSearchLimit, 1, maxSearchLimit)
	}

	hits, err := s.searchIndex(ctx, query, limit)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("corpus_search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", MapError(err)
	}

	s.logger.Info("corpus_search completed",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Duration("duration", duration),
		slog.Int("hit_count", len(hits)))

	return FormatSearchHits(query, hits), nil
}

// searchIndex runs the query against the sentence index.
func (s *Server) searchIndex(ctx context.Context, query string, limit int) ([]catalog.Hit, error) {
	if s.index == nil {
		return nil, ErrIndexNotFound
	}
	return s.index.Search(ctx, query, limit)
}

// handleStatsTool assembles corpus statistics from the manifest and
// the index.
func (s *Server) handleStatsTool(ctx context.Context) (*StatsOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	out := &StatsOutput{
		CorpusPath: s.corpusPath,
	}

	rec, err := s.manifest.LatestBuild(ctx)
	if err != nil {
		s.logger.Error("corpus_stats failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	if rec != nil {
		out.LatestBuild = &BuildOutput{
			FinishedAt:  rec.FinishedAt.Format(time.RFC3339),
			DatasetPath: rec.DatasetPath,
			Documents:   rec.Documents,
			Sentences:   rec.Sentences,
			Separators:  rec.Separators,
			Bytes:       rec.Bytes,
			Checksum:    rec.Checksum,
			DurationMS:  rec.Duration.Milliseconds(),
			ToolVersion: rec.ToolVersion,
		}
		if hist, err := s.manifest.Histogram(ctx, rec.ID); err == nil {
			for _, b := range hist {
				out.Histogram = append(out.Histogram, BucketOutput{Lo: b.Lo, Hi: b.Hi, Count: b.Count})
			}
		}
	}

	if s.index != nil {
		out.IndexBackend = s.config.Index.Backend
		if n, err := s.index.Count(); err == nil {
			out.IndexedSentences = n
		}
	}

	s.logger.Info("corpus_stats completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)))

	return out, nil
}

// registerTools registers the tool handlers with the MCP server.
func (s *Server) registerTools() {
	for _, t := range s.ListTools() {
		s.logger.Debug("registering tool", slog.String("name", t.Name))
	}

	tools := s.ListTools()
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[0].Name,
		Description: tools[0].Description,
	}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[1].Name,
		Description: tools[1].Description,
	}, s.mcpStatsHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", len(tools)))
}

// mcpSearchHandler is the typed SDK handler for corpus_search.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	limit := clampLimit(input.Limit, defaultSearchLimit, 1, maxSearchLimit)

	hits, err := s.searchIndex(ctx, input.Query, limit)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	output := SearchOutput{Hits: make([]HitOutput, 0, len(hits))}
	for _, h := range hits {
		output.Hits = append(output.Hits, HitOutput{
			Document: h.Ordinal,
			Line:     h.Line,
			Text:     h.Text,
			Score:    h.Score,
		})
	}
	return nil, output, nil
}

// mcpStatsHandler is the typed SDK handler for corpus_stats.
func (s *Server) mcpStatsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult,
	*StatsOutput,
	error,
) {
	output, err := s.handleStatsTool(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, output, nil
}

// Serve runs the server on the given transport until the context is
// canceled. Only stdio is supported; the log file carries diagnostics
// because stdout belongs to the protocol.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server",
		slog.String("transport", transport),
		slog.String("corpus", s.corpusPath))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources. The manifest and index belong to
// the caller and are not closed here.
func (s *Server) Close() error {
	return nil
}

// generateRequestID creates a short unique request ID for log
// correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
