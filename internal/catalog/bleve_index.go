package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	sentenceTokenizerName  = "sentence_tokenizer"
	sentenceStopFilterName = "sentence_stop_filter"
	sentenceAnalyzerName   = "sentence_analyzer"
)

func init() {
	registry.RegisterTokenizer(sentenceTokenizerName, sentenceTokenizerConstructor)
	registry.RegisterTokenFilter(sentenceStopFilterName, sentenceStopFilterConstructor)
}

// BleveSentenceIndex is a sentence index backed by Bleve. It exists
// for corpora where FTS5 ranking falls short; both backends answer the
// same queries.
type BleveSentenceIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ SentenceIndex = (*BleveSentenceIndex)(nil)

// NewBleveSentenceIndex opens or creates a Bleve index at path. An
// empty path builds an in-memory index, which tests use. A corrupted
// index directory is removed and recreated.
func NewBleveSentenceIndex(path string) (*BleveSentenceIndex, error) {
	indexMapping, err := createSentenceMapping()
	if err != nil {
		return nil, err
	}

	if path == "" {
		idx, err := bleve.NewMemOnly(indexMapping)
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return &BleveSentenceIndex{index: idx}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	if err := validateBleveIntegrity(path); err != nil {
		slog.Warn("sentence index corrupted, recreating", "path", path, "error", err)
		os.RemoveAll(path)
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, indexMapping)
	} else if err != nil && isBleveCorruption(err) {
		slog.Warn("sentence index failed to open, recreating", "path", path, "error", err)
		os.RemoveAll(path)
		idx, err = bleve.New(path, indexMapping)
	}
	if err != nil {
		return nil, fmt.Errorf("open sentence index: %w", err)
	}

	return &BleveSentenceIndex{index: idx, path: path}, nil
}

// createSentenceMapping wires the custom analyzer to the content field
// and keeps the remaining fields as stored-only payload.
func createSentenceMapping() (mapping.IndexMapping, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(sentenceAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     sentenceTokenizerName,
		"token_filters": []string{lowercase.Name, sentenceStopFilterName},
	})
	if err != nil {
		return nil, fmt.Errorf("register sentence analyzer: %w", err)
	}

	doc := bleve.NewDocumentMapping()

	content := bleve.NewTextFieldMapping()
	content.Analyzer = sentenceAnalyzerName
	doc.AddFieldMappingsAt("content", content)

	display := bleve.NewTextFieldMapping()
	display.Index = false
	doc.AddFieldMappingsAt("display", display)

	ordinal := bleve.NewNumericFieldMapping()
	ordinal.Index = false
	doc.AddFieldMappingsAt("ordinal", ordinal)

	line := bleve.NewNumericFieldMapping()
	line.Index = false
	doc.AddFieldMappingsAt("line", line)

	m.DefaultMapping = doc
	m.DefaultAnalyzer = sentenceAnalyzerName
	return m, nil
}

// validateBleveIntegrity sanity-checks the index metadata before
// opening. Bleve fails late on a truncated meta file, so check up
// front and let the caller recreate.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	data, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index metadata missing")
	}
	if err != nil {
		return fmt.Errorf("read index metadata: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("index metadata empty")
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("parse index metadata: %w", err)
	}
	return nil
}

func isBleveCorruption(err error) bool {
	if err == bleve.ErrorIndexMetaCorrupt {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"corrupt", "unexpected end", "checksum"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Add indexes a batch of sentences. The line number is the document
// ID, so re-adding a line replaces it.
func (idx *BleveSentenceIndex) Add(ctx context.Context, sentences []Sentence) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("sentence index is closed")
	}
	if len(sentences) == 0 {
		return nil
	}

	batch := idx.index.NewBatch()
	for _, s := range sentences {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := map[string]interface{}{
			"ordinal": s.Ordinal,
			"line":    s.Line,
			"display": s.Text,
			"content": s.Text,
		}
		if err := batch.Index(strconv.Itoa(s.Line), doc); err != nil {
			return fmt.Errorf("batch sentence at line %d: %w", s.Line, err)
		}
	}

	if err := idx.index.Batch(batch); err != nil {
		return fmt.Errorf("index sentence batch: %w", err)
	}
	return nil
}

// Search runs a match query against the content field, ranked by
// Bleve's scoring.
func (idx *BleveSentenceIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, fmt.Errorf("sentence index is closed")
	}
	if strings.TrimSpace(query) == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	mq := bleve.NewMatchQuery(query)
	mq.SetField("content")
	req := bleve.NewSearchRequest(mq)
	req.Size = limit
	req.Fields = []string{"ordinal", "line", "display"}

	res, err := idx.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search sentences: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{Score: h.Score}
		if v, ok := h.Fields["ordinal"].(float64); ok {
			hit.Ordinal = int(v)
		}
		if v, ok := h.Fields["line"].(float64); ok {
			hit.Line = int(v)
		}
		if v, ok := h.Fields["display"].(string); ok {
			hit.Text = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count reports how many sentences are indexed.
func (idx *BleveSentenceIndex) Count() (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return 0, fmt.Errorf("sentence index is closed")
	}

	n, err := idx.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("count sentences: %w", err)
	}
	return int(n), nil
}

// Clear removes every indexed sentence. Bleve has no truncate, so the
// documents are enumerated and deleted in one batch.
func (idx *BleveSentenceIndex) Clear(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("sentence index is closed")
	}

	count, err := idx.index.DocCount()
	if err != nil {
		return fmt.Errorf("count sentences: %w", err)
	}
	if count == 0 {
		return nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	res, err := idx.index.SearchInContext(ctx, req)
	if err != nil {
		return fmt.Errorf("enumerate sentences: %w", err)
	}

	batch := idx.index.NewBatch()
	for _, h := range res.Hits {
		batch.Delete(h.ID)
	}
	if err := idx.index.Batch(batch); err != nil {
		return fmt.Errorf("clear sentence index: %w", err)
	}
	return nil
}

// Close releases the index. Idempotent.
func (idx *BleveSentenceIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true
	return idx.index.Close()
}

// sentenceTokenizer adapts identifier-aware tokenization to Bleve's
// analysis chain, tracking byte offsets so match highlighting works.
type sentenceTokenizer struct{}

func sentenceTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &sentenceTokenizer{}, nil
}

func (t *sentenceTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	stream := make(analysis.TokenStream, 0, 16)
	position := 0

	for _, loc := range termRegex.FindAllStringIndex(text, -1) {
		word := text[loc[0]:loc[1]]
		searchFrom := 0
		for _, part := range SplitIdentifier(word) {
			// Parts appear in order inside the word, so a forward
			// substring scan recovers each offset.
			rel := strings.Index(word[searchFrom:], part)
			if rel < 0 {
				continue
			}
			start := loc[0] + searchFrom + rel
			searchFrom += rel + len(part)

			if len(part) < 2 {
				continue
			}
			position++
			stream = append(stream, &analysis.Token{
				Term:     []byte(strings.ToLower(part)),
				Start:    start,
				End:      start + len(part),
				Position: position,
				Type:     analysis.AlphaNumeric,
			})
		}
	}
	return stream
}

// sentenceStopFilter drops function words after tokenization.
type sentenceStopFilter struct {
	stop map[string]bool
}

func sentenceStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &sentenceStopFilter{stop: StopTermSet(DefaultStopTerms)}, nil
}

func (f *sentenceStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := input[:0]
	for _, tok := range input {
		if !f.stop[string(tok.Term)] {
			out = append(out, tok)
		}
	}
	return out
}
