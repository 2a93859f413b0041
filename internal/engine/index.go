package engine

import (
	"github.com/motomercado/search-platform/internal/analyzer"
)

// Mapping carries per-index settings. Shards and Replicas are accepted for
// API compatibility but have no effect: there is no distribution layer.
type Mapping struct {
	Analyzer string `json:"analyzer"`
	Shards   int    `json:"number_of_shards"`
	Replicas int    `json:"number_of_replicas"`
}

// searchIndex is a named collection of documents plus the inverted postings
// structure (token -> set of document ids). Postings are rebuilt on every
// write, so they are always consistent with document content.
type searchIndex struct {
	name     string
	analyzer analyzer.Name
	mapping  Mapping

	docs     map[string]Document
	postings map[string]map[string]struct{}
	docTerms map[string]map[string]int
	docLens  map[string]int
}

func newSearchIndex(name string, mapping Mapping, fallback analyzer.Name) *searchIndex {
	an := analyzer.Name(mapping.Analyzer)
	if !analyzer.Valid(an) {
		an = fallback
	}
	return &searchIndex{
		name:     name,
		analyzer: an,
		mapping:  mapping,
		docs:     make(map[string]Document),
		postings: make(map[string]map[string]struct{}),
		docTerms: make(map[string]map[string]int),
		docLens:  make(map[string]int),
	}
}

// put upserts a document: stale postings for the previous version are removed
// before the new token set is added, keeping the postings invariant intact
// within the same call.
func (ix *searchIndex) put(id string, doc Document) {
	ix.removePostings(id)

	terms, total := ix.analyzeDocument(doc)
	ix.docs[id] = doc
	ix.docTerms[id] = terms
	ix.docLens[id] = total

	for term := range terms {
		set, ok := ix.postings[term]
		if !ok {
			set = make(map[string]struct{})
			ix.postings[term] = set
		}
		set[id] = struct{}{}
	}
}

// remove deletes a document and its postings. Reports whether it existed.
func (ix *searchIndex) remove(id string) bool {
	if _, ok := ix.docs[id]; !ok {
		return false
	}
	ix.removePostings(id)
	delete(ix.docs, id)
	delete(ix.docTerms, id)
	delete(ix.docLens, id)
	return true
}

// removePostings strips the document's current tokens from the postings
// structure, dropping posting sets that become empty.
func (ix *searchIndex) removePostings(id string) {
	for term := range ix.docTerms[id] {
		set := ix.postings[term]
		delete(set, id)
		if len(set) == 0 {
			delete(ix.postings, term)
		}
	}
}

// analyzeDocument tokenizes every string-valued top-level field with the
// index analyzer and returns the merged term-frequency map plus the total
// token count.
func (ix *searchIndex) analyzeDocument(doc Document) (map[string]int, int) {
	terms := make(map[string]int)
	total := 0
	for _, field := range doc.SortedFields() {
		text, ok := doc[field].Str()
		if !ok {
			continue
		}
		for _, token := range analyzer.Analyze(text, ix.analyzer) {
			terms[token]++
			total++
		}
	}
	return terms, total
}

// docFreq returns the number of documents whose postings contain the token.
func (ix *searchIndex) docFreq(token string) int {
	return len(ix.postings[token])
}
