package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleBook = `Introduction text before any chapter heading.

Chapter 1: On Beginnings

The first chapter body. It has several sentences of content.

More of the first chapter.

Chapter 2: On Endings

The second chapter body.

# Appendix

Markdown-style heading section.
`

func TestSplitChapters(t *testing.T) {
	chapters := SplitChapters(sampleBook)

	if len(chapters) != 4 {
		t.Fatalf("got %d chapters, want 4 (preamble + 2 chapters + appendix)", len(chapters))
	}

	t.Run("preamble has no title", func(t *testing.T) {
		if chapters[0].Title != "" {
			t.Errorf("preamble title = %q, want empty", chapters[0].Title)
		}
	})

	t.Run("headings become titles", func(t *testing.T) {
		if chapters[1].Title != "Chapter 1: On Beginnings" {
			t.Errorf("chapter 1 title = %q", chapters[1].Title)
		}
		if chapters[3].Title != "Appendix" {
			t.Errorf("appendix title = %q", chapters[3].Title)
		}
	})

	t.Run("indexes are sequential", func(t *testing.T) {
		for i, ch := range chapters {
			if ch.Index != i {
				t.Errorf("chapter %d has index %d", i, ch.Index)
			}
		}
	})

	t.Run("ids are stable", func(t *testing.T) {
		again := SplitChapters(sampleBook)
		for i := range chapters {
			if chapters[i].ID != again[i].ID {
				t.Errorf("chapter %d ID changed between runs", i)
			}
		}
	})

	t.Run("no headings yields one chapter", func(t *testing.T) {
		got := SplitChapters("just some prose\n\nwith paragraphs")
		if len(got) != 1 {
			t.Errorf("got %d chapters, want 1", len(got))
		}
	})

	t.Run("empty text yields none", func(t *testing.T) {
		if got := SplitChapters("   \n\n  "); len(got) != 0 {
			t.Errorf("got %d chapters, want 0", len(got))
		}
	})
}

func TestIngest(t *testing.T) {
	t.Run("text file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "field_notes-vol_2.txt")
		if err := os.WriteFile(path, []byte(sampleBook), 0o644); err != nil {
			t.Fatalf("failed to write sample: %v", err)
		}

		res, err := Ingest(Request{Path: path})
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if res.Title != "field notes vol 2" {
			t.Errorf("Title = %q, want derived from filename", res.Title)
		}
		if len(res.Chapters) != 4 {
			t.Errorf("got %d chapters, want 4", len(res.Chapters))
		}
		if res.BookID == "" {
			t.Error("BookID is empty")
		}
	})

	t.Run("explicit title wins", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "x.txt")
		os.WriteFile(path, []byte("content"), 0o644)

		res, err := Ingest(Request{Path: path, Title: "Real Title"})
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if res.Title != "Real Title" {
			t.Errorf("Title = %q, want Real Title", res.Title)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Ingest(Request{Path: "/nonexistent/book.txt"}); err == nil {
			t.Error("Ingest() should fail for missing file")
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "book.docx")
		os.WriteFile(path, []byte("x"), 0o644)
		if _, err := Ingest(Request{Path: path}); err == nil {
			t.Error("Ingest() should reject unsupported formats")
		}
	})
}

func TestScrapeContentText(t *testing.T) {
	content := `BT /F1 12 Tf (Hello) Tj ( world.) Tj ET
BT [(Kerned) -250 ( text)] TJ ET`

	got := scrapeContentText(content)
	for _, want := range []string{"Hello", "world.", "Kerned", "text"} {
		if !strings.Contains(got, want) {
			t.Errorf("scraped text %q missing %q", got, want)
		}
	}
}
