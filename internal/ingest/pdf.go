package ingest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPDFText pulls text from every page of a PDF. Content streams are
// extracted with pdfcpu and text-showing operators scraped out; this loses
// layout but keeps reading order well enough for chunked extraction.
func extractPDFText(path string, log *slog.Logger) (string, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	pageCount, err := api.PageCount(f, conf)
	f.Close()
	if err != nil {
		return "", fmt.Errorf("failed to get page count: %w", err)
	}
	log.Debug("extracting PDF text", "file", filepath.Base(path), "pages", pageCount)

	tmpDir, err := os.MkdirTemp("", "glean-pdf-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractContentFile(path, tmpDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted content: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	// Content files carry a numeric page suffix; sort into page order.
	sort.Slice(names, func(i, j int) bool {
		return pageNumOf(names[i]) < pageNumOf(names[j])
	})

	var pages []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			return "", fmt.Errorf("failed to read page content: %w", err)
		}
		if text := scrapeContentText(string(data)); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

var pageNumRe = regexp.MustCompile(`(\d+)`)

func pageNumOf(name string) int {
	matches := pageNumRe.FindAllString(name, -1)
	if len(matches) == 0 {
		return 0
	}
	// Last number in the name is the page suffix.
	n := 0
	fmt.Sscanf(matches[len(matches)-1], "%d", &n)
	return n
}

// textShowRe matches literal strings fed to the Tj/TJ/' text-showing
// operators in a PDF content stream.
var textShowRe = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)\s*(?:Tj|TJ|')`)

// tjArrayRe matches TJ arrays: [(str) kern (str) ...] TJ.
var tjArrayRe = regexp.MustCompile(`\[((?:[^\[\]\\]|\\.)*)\]\s*TJ`)

var literalRe = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)`)

// scrapeContentText recovers the text-show operands from a raw content
// stream. Encoded/subset fonts will surface garbage; callers treat PDF
// text as best-effort input.
func scrapeContentText(content string) string {
	var parts []string

	for _, m := range tjArrayRe.FindAllStringSubmatch(content, -1) {
		var run []string
		for _, lit := range literalRe.FindAllStringSubmatch(m[1], -1) {
			run = append(run, unescapePDFString(lit[1]))
		}
		if len(run) > 0 {
			parts = append(parts, strings.Join(run, ""))
		}
	}
	for _, m := range textShowRe.FindAllStringSubmatch(content, -1) {
		parts = append(parts, unescapePDFString(m[1]))
	}

	text := strings.Join(parts, " ")
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

func unescapePDFString(s string) string {
	r := strings.NewReplacer(
		`\(`, "(",
		`\)`, ")",
		`\\`, `\`,
		`\n`, "\n",
		`\r`, "",
		`\t`, " ",
	)
	return r.Replace(s)
}
