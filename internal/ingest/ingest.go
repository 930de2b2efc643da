// Package ingest loads source books and splits them into chapters for the
// extraction pipeline. Plain text and markdown split on heading markers;
// PDFs go through page-text extraction first.
package ingest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cortexlib/glean/internal/types"
)

// Request contains the parameters for ingesting a book.
type Request struct {
	Path   string       // source file (.txt, .md, .pdf)
	Title  string       // optional, derived from filename if empty
	Logger *slog.Logger // optional logger for progress updates
}

// Result is a loaded, chapter-split book.
type Result struct {
	BookID   string // stable hash of the full text
	Title    string
	Chapters []types.Chapter
}

// Ingest loads the source file and splits it into chapters. Chapter IDs
// are stable content hashes, so re-ingesting the same book yields the
// same IDs and the pipeline can resume against existing checkpoints.
func Ingest(req Request) (*Result, error) {
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}

	if req.Path == "" {
		return nil, fmt.Errorf("no source path provided")
	}
	if _, err := os.Stat(req.Path); err != nil {
		return nil, fmt.Errorf("source not found: %s", req.Path)
	}

	var text string
	var err error
	switch strings.ToLower(filepath.Ext(req.Path)) {
	case ".pdf":
		text, err = extractPDFText(req.Path, log)
	case ".txt", ".md", ".markdown", "":
		var data []byte
		data, err = os.ReadFile(req.Path)
		text = string(data)
	default:
		return nil, fmt.Errorf("unsupported source format: %s", filepath.Ext(req.Path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", req.Path, err)
	}

	title := req.Title
	if title == "" {
		title = deriveTitle(req.Path)
	}

	chapters := SplitChapters(text)
	log.Info("ingested book", "title", title, "chapters", len(chapters))

	return &Result{
		BookID:   types.ChapterID(text),
		Title:    title,
		Chapters: chapters,
	}, nil
}

// chapterHeading matches lines that start a new chapter: markdown
// headings and conventional "Chapter N" / "Part N" lines.
var chapterHeading = regexp.MustCompile(`(?i)^(#{1,2}\s+.+|chapter\s+[0-9ivxlc]+.*|part\s+[0-9ivxlc]+.*)$`)

// SplitChapters divides book text on heading markers. Text before the
// first heading, and text with no headings at all, becomes its own
// chapter. Splitting is deterministic: same text, same chapters.
func SplitChapters(text string) []types.Chapter {
	lines := strings.Split(text, "\n")

	type rawChapter struct {
		title string
		body  []string
	}

	var raw []rawChapter
	current := rawChapter{}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if chapterHeading.MatchString(trimmed) {
			if len(current.body) > 0 || current.title != "" {
				raw = append(raw, current)
			}
			current = rawChapter{title: headingTitle(trimmed)}
			continue
		}
		current.body = append(current.body, line)
	}
	if len(current.body) > 0 || current.title != "" {
		raw = append(raw, current)
	}

	var chapters []types.Chapter
	for _, rc := range raw {
		body := strings.TrimSpace(strings.Join(rc.body, "\n"))
		if body == "" {
			continue
		}
		ch := types.Chapter{
			Index:   len(chapters),
			Title:   rc.title,
			RawText: body,
		}
		ch.ID = types.ChapterID(ch.RawText)
		chapters = append(chapters, ch)
	}
	return chapters
}

func headingTitle(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "# "))
}

// deriveTitle converts a filename to a book title.
func deriveTitle(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}
