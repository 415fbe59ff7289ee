// Package analyze computes keyword co-occurrence correlations across a
// document corpus and ranks documents by correlation strength.
package analyze

import (
	"errors"
	"sort"
	"strings"
)

// ErrNoKeywords indicates analysis was requested with an empty keyword list.
// Surfaced before any work begins.
var ErrNoKeywords = errors.New("no keywords provided for analysis")

// DocumentCounts holds per-document keyword occurrence counts.
type DocumentCounts struct {
	Filename string         `json:"filename"`
	Counts   map[string]int `json:"counts"`
}

// RankedDocument is one entry of the ranked report, highest score first.
type RankedDocument struct {
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
}

// Result is the outcome of one analysis run over a corpus snapshot.
// Matrix is upper-triangular: only [i][j] with i < j is populated; the
// diagonal is undefined and the lower triangle mirrors the upper.
type Result struct {
	Keywords       []string         `json:"keywords"`
	Matrix         [][]float64      `json:"matrix"`
	Ranked         []RankedDocument `json:"ranked"`
	TotalDocuments int              `json:"total_documents"`
	Threshold      float64          `json:"threshold"`
}

// Correlation returns the co-occurrence strength for keyword indices i and j,
// reading whichever triangle holds the value. The diagonal is always 0.
func (r *Result) Correlation(i, j int) float64 {
	if i == j {
		return 0
	}
	if i > j {
		i, j = j, i
	}
	return r.Matrix[i][j]
}

// CountKeywords returns the number of non-overlapping occurrences of each
// keyword in text. Matching is case-sensitive substring matching.
func CountKeywords(text string, keywords []string) map[string]int {
	counts := make(map[string]int, len(keywords))
	for _, kw := range keywords {
		counts[kw] = strings.Count(text, kw)
	}
	return counts
}

// Analyze computes the correlation matrix and document ranking for the given
// corpus snapshot. The correlation for a keyword pair is the average over all
// documents of min(count_i, count_j), where a document contributes 0 unless
// both keywords are present. A document's score sums correlation * min(counts)
// over every pair at or above threshold; documents scoring 0 are excluded
// from the ranking. The matrix is recomputed wholesale on every call.
func Analyze(docs []DocumentCounts, keywords []string, threshold float64) (*Result, error) {
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}

	k := len(keywords)
	matrix := make([][]float64, k)
	for i := range matrix {
		matrix[i] = make([]float64, k)
	}

	for _, doc := range docs {
		for i := 0; i < k; i++ {
			ci := doc.Counts[keywords[i]]
			if ci == 0 {
				continue
			}
			for j := i + 1; j < k; j++ {
				cj := doc.Counts[keywords[j]]
				if cj == 0 {
					continue
				}
				matrix[i][j] += float64(min(ci, cj))
			}
		}
	}
	if len(docs) > 0 {
		docCount := float64(len(docs))
		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				matrix[i][j] /= docCount
			}
		}
	}

	res := &Result{
		Keywords:       keywords,
		Matrix:         matrix,
		TotalDocuments: len(docs),
		Threshold:      threshold,
	}

	ranked := make([]RankedDocument, 0, len(docs))
	for _, doc := range docs {
		var score float64
		for i := 0; i < k; i++ {
			ci := doc.Counts[keywords[i]]
			if ci == 0 {
				continue
			}
			for j := i + 1; j < k; j++ {
				cj := doc.Counts[keywords[j]]
				if cj == 0 || matrix[i][j] < threshold {
					continue
				}
				score += matrix[i][j] * float64(min(ci, cj))
			}
		}
		if score > 0 {
			ranked = append(ranked, RankedDocument{Filename: doc.Filename, Score: score})
		}
	}
	// Stable: ties keep input order.
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].Score > ranked[b].Score })
	res.Ranked = ranked

	return res, nil
}
