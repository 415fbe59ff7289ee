package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pryzmatpl/pdfscan/internal/cache"
	"github.com/pryzmatpl/pdfscan/internal/extract"
	"github.com/pryzmatpl/pdfscan/internal/indexer"
	"github.com/pryzmatpl/pdfscan/internal/pdftest"
)

func newSearcher(t *testing.T, roots []string) *Searcher {
	t.Helper()
	c, err := cache.New(roots, extract.NewExtractor(), 64)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	idx := indexer.New(c, []string{".pdf"}, 20, 4)
	return New(c, idx)
}

func writePDF(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pdftest.MinimalPDF(text), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestSearch_phraseMatch(t *testing.T) {
	root := t.TempDir()
	hit := writePDF(t, root, "hit.pdf", "the quick brown fox")
	writePDF(t, root, "miss.pdf", "nothing relevant here")

	s := newSearcher(t, []string{root})
	got, err := s.Search(context.Background(), "quick brown", []string{root})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0] != hit {
		t.Errorf("got %v, want [%s]", got, hit)
	}
}

func TestSearch_emptyPhraseMatchesAll(t *testing.T) {
	root := t.TempDir()
	writePDF(t, root, "a.pdf", "alpha")
	writePDF(t, root, "b.pdf", "beta")

	s := newSearcher(t, []string{root})
	got, err := s.Search(context.Background(), "", []string{root})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %v", got)
	}
}

func TestSearch_badFileSkipped(t *testing.T) {
	root := t.TempDir()
	hit := writePDF(t, root, "good.pdf", "findable phrase")
	if err := os.WriteFile(filepath.Join(root, "bad.pdf"), []byte("not a pdf"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := newSearcher(t, []string{root})
	got, err := s.Search(context.Background(), "findable", []string{root})
	if err != nil {
		t.Fatalf("one malformed file must not fail the search: %v", err)
	}
	if len(got) != 1 || got[0] != hit {
		t.Errorf("got %v", got)
	}
}

func TestSearch_multipleRoots(t *testing.T) {
	root1 := t.TempDir()
	root2 := t.TempDir()
	a := writePDF(t, root1, "a.pdf", "shared needle")
	b := writePDF(t, root2, "b.pdf", "shared needle")

	s := newSearcher(t, []string{root1, root2})
	got, err := s.Search(context.Background(), "needle", []string{root1, root2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{a, b}
	if a > b {
		want = []string{b, a}
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSearch_noMatches(t *testing.T) {
	root := t.TempDir()
	writePDF(t, root, "a.pdf", "some text")
	s := newSearcher(t, []string{root})
	got, err := s.Search(context.Background(), "absent phrase", []string{root})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v", got)
	}
}
