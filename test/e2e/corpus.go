// Package e2e exercises the full pipeline over a generated corpus:
// enumerate, extract, cache, search, and correlation analysis.
package e2e

import (
	"fmt"
)

// Document is one entry in the generated corpus.
type Document struct {
	Name    string
	Content string
}

// QueryCase defines a search phrase and the documents that must match it.
type QueryCase struct {
	Phrase        string
	ExpectedNames []string
	Description   string
}

// Corpus holds generated documents and query cases.
type Corpus struct {
	Documents []Document
	Queries   []QueryCase
}

// topics seed the filler text so documents overlap in vocabulary without
// sharing signature phrases.
var topics = []string{
	"invoice payment terms and billing cycles",
	"quarterly revenue projections for the board",
	"employee onboarding and benefits enrollment",
	"network infrastructure maintenance windows",
	"customer satisfaction survey methodology",
}

// BuildCorpus returns n documents with varied content. Each document
// carries a unique signature phrase so queries can assert that exactly
// the right documents match.
func BuildCorpus(n int) *Corpus {
	docs := make([]Document, 0, n)
	for i := 0; i < n; i++ {
		sig := fmt.Sprintf("signature phrase %04d", i)
		topic := topics[i%len(topics)]
		docs = append(docs, Document{
			Name:    fmt.Sprintf("doc%04d.pdf", i),
			Content: fmt.Sprintf("%s. This document covers %s in detail.", sig, topic),
		})
	}
	queries := []QueryCase{
		{
			Phrase:        "signature phrase 0000",
			ExpectedNames: []string{"doc0000.pdf"},
			Description:   "unique signature matches exactly one document",
		},
		{
			Phrase:        "signature phrase",
			ExpectedNames: allNames(docs),
			Description:   "shared prefix matches every document",
		},
		{
			Phrase:        "no such phrase anywhere",
			ExpectedNames: nil,
			Description:   "absent phrase matches nothing",
		},
	}
	return &Corpus{Documents: docs, Queries: queries}
}

func allNames(docs []Document) []string {
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Name
	}
	return names
}
