package analyze

import (
	"fmt"
	"io"
	"strings"
)

// WriteReport writes the plain-text analysis report: keyword list, document
// count, threshold, the index-labeled correlation matrix, and the ranked
// document list. topN caps the ranking section; non-positive means all.
func WriteReport(w io.Writer, res *Result, topN int) error {
	var b strings.Builder
	b.WriteString("PDFScan Statistical Analysis Report\n")
	b.WriteString("================================\n\n")
	fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(res.Keywords, ", "))
	fmt.Fprintf(&b, "Total documents analyzed: %d\n", res.TotalDocuments)
	fmt.Fprintf(&b, "Correlation threshold: %.2f\n\n", res.Threshold)

	writeMatrix(&b, res)

	b.WriteString("\n\nRanked Documents by Keyword Correlation:\n")
	b.WriteString("==========================================\n")
	if topN <= 0 || topN > len(res.Ranked) {
		topN = len(res.Ranked)
	}
	for i, doc := range res.Ranked[:topN] {
		fmt.Fprintf(&b, "%d. %s (score: %.2f)\n", i+1, doc.Filename, doc.Score)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// writeMatrix renders the correlation matrix with index-labeled rows and
// columns, two-decimal values, and an undefined diagonal.
func writeMatrix(b *strings.Builder, res *Result) {
	k := len(res.Keywords)
	b.WriteString("Keyword Correlation Matrix:\n\n")
	b.WriteString("    ")
	for i := 0; i < k; i++ {
		fmt.Fprintf(b, "%-4d", i)
	}
	b.WriteByte('\n')

	for i := 0; i < k; i++ {
		fmt.Fprintf(b, "%-3d ", i)
		for j := 0; j < k; j++ {
			if i == j {
				b.WriteString("---- ")
			} else {
				fmt.Fprintf(b, "%.2f ", res.Correlation(i, j))
			}
		}
		b.WriteByte('\n')
	}

	b.WriteString("\nKeyword Index Mapping:\n")
	for i, kw := range res.Keywords {
		fmt.Fprintf(b, "%d: %s\n", i, kw)
	}
}
