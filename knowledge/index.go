//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package knowledge

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// DefaultScoreThreshold filters out passages with too little query overlap.
const DefaultScoreThreshold = 0.1

// ErrFileNotIndexed is returned when searching a file the session never
// indexed. Nodes surface it as an inline error payload, not an abort.
var ErrFileNotIndexed = errors.New("file not indexed for session")

// Passage is one scored search hit.
type Passage struct {
	FileName string  `json:"file_name"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
}

// indexedChunk is one stored passage with its precomputed term frequencies.
type indexedChunk struct {
	content string
	terms   map[string]int
	length  int
}

// Index is an in-process, per-session passage index. Chunks are scored by
// normalized keyword overlap with the query terms. All methods are safe for
// concurrent use across sessions.
type Index struct {
	mu        sync.RWMutex
	sessions  map[string]map[string][]indexedChunk
	threshold float64
	maxHits   int
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithScoreThreshold overrides the relevance cutoff.
func WithScoreThreshold(threshold float64) IndexOption {
	return func(i *Index) { i.threshold = threshold }
}

// WithMaxHits caps how many passages one search returns.
func WithMaxHits(n int) IndexOption {
	return func(i *Index) {
		if n > 0 {
			i.maxHits = n
		}
	}
}

// NewIndex creates an empty index.
func NewIndex(opts ...IndexOption) *Index {
	i := &Index{
		sessions:  make(map[string]map[string][]indexedChunk),
		threshold: DefaultScoreThreshold,
		maxHits:   5,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IndexFile chunks and indexes a document's extracted text for the session,
// replacing any previous index entries for the same file. It returns the
// number of stored passages.
func (i *Index) IndexFile(sessionID, fileName, content string) int {
	chunks := chunk(fileName, content)
	indexed := make([]indexedChunk, 0, len(chunks))
	for _, c := range chunks {
		terms := tokenize(c)
		if len(terms) == 0 {
			continue
		}
		indexed = append(indexed, indexedChunk{content: c, terms: terms, length: termCount(terms)})
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	files, ok := i.sessions[sessionID]
	if !ok {
		files = make(map[string][]indexedChunk)
		i.sessions[sessionID] = files
	}
	files[fileName] = indexed
	return len(indexed)
}

// HasFile reports whether the session has index entries for the file.
func (i *Index) HasFile(sessionID, fileName string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.sessions[sessionID][fileName]
	return ok
}

// Files lists the indexed file names for the session.
func (i *Index) Files(sessionID string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	names := make([]string, 0, len(i.sessions[sessionID]))
	for name := range i.sessions[sessionID] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Search scores the file's passages against the queries and returns hits
// above the relevance threshold, best first. Searching a file the session
// never indexed returns ErrFileNotIndexed.
func (i *Index) Search(sessionID, fileName string, queries []string) ([]Passage, error) {
	i.mu.RLock()
	chunks, ok := i.sessions[sessionID][fileName]
	i.mu.RUnlock()
	if !ok {
		return nil, ErrFileNotIndexed
	}

	queryTerms := make(map[string]int)
	for _, query := range queries {
		for term, count := range tokenize(query) {
			queryTerms[term] += count
		}
	}
	if len(queryTerms) == 0 {
		return nil, nil
	}

	var passages []Passage
	for _, c := range chunks {
		score := overlapScore(queryTerms, c)
		if score < i.threshold {
			continue
		}
		passages = append(passages, Passage{FileName: fileName, Content: c.content, Score: score})
	}
	sort.SliceStable(passages, func(a, b int) bool { return passages[a].Score > passages[b].Score })
	if len(passages) > i.maxHits {
		passages = passages[:i.maxHits]
	}
	return passages, nil
}

// DeleteFile removes the file's index entries for the session.
func (i *Index) DeleteFile(sessionID, fileName string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.sessions[sessionID], fileName)
}

// DeleteSession removes every index entry for the session.
func (i *Index) DeleteSession(sessionID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.sessions, sessionID)
}

// overlapScore is the fraction of query terms found in the chunk, dampened
// by chunk length so short exact passages outrank long rambling ones.
func overlapScore(queryTerms map[string]int, c indexedChunk) float64 {
	matched := 0
	total := 0
	for term, weight := range queryTerms {
		total += weight
		if c.terms[term] > 0 {
			matched += weight
		}
	}
	if total == 0 || matched == 0 {
		return 0
	}
	coverage := float64(matched) / float64(total)
	dampen := 1 / (1 + math.Log1p(float64(c.length)/100))
	return coverage * (0.5 + 0.5*dampen)
}

// tokenize lowercases and splits text into term counts, dropping one-rune
// tokens and common stop words.
func tokenize(content string) map[string]int {
	terms := make(map[string]int)
	words := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, word := range words {
		if len([]rune(word)) < 2 || stopWords[word] {
			continue
		}
		terms[word]++
	}
	return terms
}

func termCount(terms map[string]int) int {
	total := 0
	for _, count := range terms {
		total += count
	}
	return total
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"with": true, "that": true, "this": true, "from": true, "have": true,
	"has": true, "had": true, "not": true, "but": true, "its": true,
	"can": true, "will": true, "into": true, "than": true, "then": true,
	"also": true, "such": true, "been": true, "were": true, "they": true,
	"their": true, "them": true, "what": true, "when": true, "which": true,
	"about": true, "these": true, "those": true, "there": true, "where": true,
}
