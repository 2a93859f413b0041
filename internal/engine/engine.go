package engine

import (
	"log/slog"
	"sync"

	"github.com/motomercado/search-platform/internal/analyzer"
	"github.com/motomercado/search-platform/pkg/config"
)

// Engine manages named in-memory indices. All operations are synchronous and
// atomic under a single lock; callers check the Found/Acknowledged fields of
// the returned results instead of handling errors. Operations on unknown
// indices or documents yield negative results, never panics.
type Engine struct {
	mu              sync.RWMutex
	indices         map[string]*searchIndex
	defaultAnalyzer analyzer.Name
	logger          *slog.Logger
}

// CreateIndexResult reports index creation.
type CreateIndexResult struct {
	Acknowledged bool   `json:"acknowledged"`
	Index        string `json:"index"`
}

// IndexResult reports a document write.
type IndexResult struct {
	ID     string `json:"_id"`
	Index  string `json:"_index"`
	Result string `json:"result"`
}

// GetResult reports a document lookup.
type GetResult struct {
	Found  bool     `json:"found"`
	ID     string   `json:"_id,omitempty"`
	Index  string   `json:"_index,omitempty"`
	Source Document `json:"_source,omitempty"`
}

// UpdateResult reports a partial update.
type UpdateResult struct {
	Found  bool   `json:"found"`
	ID     string `json:"_id,omitempty"`
	Result string `json:"result,omitempty"`
}

// DeleteResult reports a document deletion.
type DeleteResult struct {
	Found  bool   `json:"found"`
	ID     string `json:"_id,omitempty"`
	Result string `json:"result,omitempty"`
}

// BulkItem wraps one outcome of a bulk request.
type BulkItem struct {
	Index IndexResult `json:"index"`
}

// BulkResult reports a bulk indexing request.
type BulkResult struct {
	Items []BulkItem `json:"items"`
}

// BulkDocument pairs a caller-supplied id with its source for bulk indexing.
type BulkDocument struct {
	ID     string   `json:"_id"`
	Source Document `json:"_source"`
}

// NewEngine creates an empty Engine using the configured default analyzer.
func NewEngine(cfg config.SearchConfig) *Engine {
	an := analyzer.Name(cfg.DefaultAnalyzer)
	if !analyzer.Valid(an) {
		an = analyzer.Default
	}
	return &Engine{
		indices:         make(map[string]*searchIndex),
		defaultAnalyzer: an,
		logger:          slog.Default().With("component", "index-engine"),
	}
}

// CreateIndex creates (or replaces) a named index with the given mapping.
func (e *Engine) CreateIndex(name string, mapping Mapping) CreateIndexResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indices[name] = newSearchIndex(name, mapping, e.defaultAnalyzer)
	e.logger.Info("index created",
		"index", name,
		"analyzer", string(e.indices[name].analyzer),
	)
	return CreateIndexResult{Acknowledged: true, Index: name}
}

// DeleteIndex removes a named index entirely. Reports whether it existed.
func (e *Engine) DeleteIndex(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.indices[name]; !ok {
		return false
	}
	delete(e.indices, name)
	e.logger.Info("index deleted", "index", name)
	return true
}

// Index upserts a document, creating the index implicitly on first write.
// Postings for the document are fully rebuilt within the call.
func (e *Engine) Index(indexName, id string, doc Document) IndexResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	ix := e.ensureIndex(indexName)
	result := "created"
	if _, exists := ix.docs[id]; exists {
		result = "updated"
	}
	ix.put(id, doc)
	e.logger.Debug("document indexed",
		"index", indexName,
		"doc_id", id,
		"tokens", ix.docLens[id],
	)
	return IndexResult{ID: id, Index: indexName, Result: result}
}

// BulkIndex upserts a batch of documents in one lock acquisition.
func (e *Engine) BulkIndex(indexName string, docs []BulkDocument) BulkResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	ix := e.ensureIndex(indexName)
	items := make([]BulkItem, 0, len(docs))
	for _, d := range docs {
		result := "created"
		if _, exists := ix.docs[d.ID]; exists {
			result = "updated"
		}
		ix.put(d.ID, d.Source)
		items = append(items, BulkItem{
			Index: IndexResult{ID: d.ID, Index: indexName, Result: result},
		})
	}
	e.logger.Info("bulk index complete", "index", indexName, "docs", len(docs))
	return BulkResult{Items: items}
}

// Get looks up a document by id.
func (e *Engine) Get(indexName, id string) GetResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ix, ok := e.indices[indexName]
	if !ok {
		return GetResult{Found: false}
	}
	doc, ok := ix.docs[id]
	if !ok {
		return GetResult{Found: false}
	}
	return GetResult{Found: true, ID: id, Index: indexName, Source: doc.Clone()}
}

// Update shallow-merges partial into the existing source and re-indexes the
// merged document, replacing the previous postings.
func (e *Engine) Update(indexName, id string, partial Document) UpdateResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	ix, ok := e.indices[indexName]
	if !ok {
		return UpdateResult{Found: false}
	}
	existing, ok := ix.docs[id]
	if !ok {
		return UpdateResult{Found: false}
	}
	merged := existing.Clone()
	for k, v := range partial {
		merged[k] = v
	}
	ix.put(id, merged)
	e.logger.Debug("document updated", "index", indexName, "doc_id", id)
	return UpdateResult{Found: true, ID: id, Result: "updated"}
}

// Delete removes a document and its postings.
func (e *Engine) Delete(indexName, id string) DeleteResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	ix, ok := e.indices[indexName]
	if !ok {
		return DeleteResult{Found: false}
	}
	if !ix.remove(id) {
		return DeleteResult{Found: false}
	}
	e.logger.Debug("document deleted", "index", indexName, "doc_id", id)
	return DeleteResult{Found: true, ID: id, Result: "deleted"}
}

// DocCount returns the number of documents in an index, 0 if unknown.
func (e *Engine) DocCount(indexName string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ix, ok := e.indices[indexName]
	if !ok {
		return 0
	}
	return len(ix.docs)
}

// Indices returns the names of all existing indices.
func (e *Engine) Indices() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.indices))
	for name := range e.indices {
		names = append(names, name)
	}
	return names
}

func (e *Engine) ensureIndex(name string) *searchIndex {
	ix, ok := e.indices[name]
	if !ok {
		ix = newSearchIndex(name, Mapping{}, e.defaultAnalyzer)
		e.indices[name] = ix
		e.logger.Info("index created implicitly", "index", name)
	}
	return ix
}
