// Package fileread materializes a file path as an ordered sequence of
// (text, per-source metadata) pairs, bounded by a read timeout. It never
// returns a descriptive error; callers decode a structured Outcome.
package fileread

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	corerrors "github.com/ragforge/corerag/internal/errors"
)

// Source is one unit of extracted text plus where it came from within the file.
type Source struct {
	Text  string
	Label string // "body", or e.g. a sheet/section name for richer formats
}

// Outcome is the structured result of Read: either Sources is populated, or
// Err names why the file is unreadable. Never both nil/empty and no error.
type Outcome struct {
	Sources []Source
	Err     *corerrors.Error
}

// DefaultTimeout is the read timeout applied when the caller doesn't override it.
const DefaultTimeout = 60 * time.Second

// supportedExtensions is the closed, case-insensitive set of extensions
// sync/process recognize, per the external interfaces table.
var supportedExtensions = map[string]struct{}{
	".txt": {}, ".md": {}, ".pdf": {}, ".doc": {}, ".docx": {},
	".csv": {}, ".json": {}, ".html": {}, ".xml": {},
}

// IsSupported reports whether path's extension is one sync/process handle.
func IsSupported(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Read materializes path's content under the given timeout. A timeout or
// read failure, or an extension this reader cannot parse, is reported as
// an Outcome.Err rather than a returned error.
func Read(ctx context.Context, path string, timeout time.Duration) Outcome {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		outcome Outcome
	}
	done := make(chan result, 1)
	go func() {
		done <- result{outcome: readSync(path)}
	}()

	select {
	case <-ctx.Done():
		return Outcome{Err: corerrors.Timeout(corerrors.CodeFileReadTimeout,
			"read timed out for "+path, ctx.Err())}
	case r := <-done:
		return r.outcome
	}
}

func readSync(path string) Outcome {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := supportedExtensions[ext]; !ok {
		return Outcome{Err: corerrors.FileProcessing(corerrors.CodeUnsupportedType,
			"unsupported file type "+ext, nil)}
	}

	f, err := os.Open(path)
	if err != nil {
		return Outcome{Err: corerrors.FileProcessing(corerrors.CodeFileUnreadable, "open "+path, err)}
	}
	defer f.Close()

	switch ext {
	case ".txt", ".md", ".csv", ".json":
		return readPlainText(f, path)
	case ".html", ".xml":
		return readMarkup(f, path)
	case ".pdf", ".doc", ".docx":
		// No parser for these binary formats is wired; they are reported
		// as unreadable rather than producing truncated or garbled text.
		// See DESIGN.md for why no ecosystem parser was adopted here.
		return Outcome{Err: corerrors.FileProcessing(corerrors.CodeFileParseFailed,
			"no parser available for "+ext+" content", nil)}
	default:
		return Outcome{Err: corerrors.FileProcessing(corerrors.CodeUnsupportedType, "unsupported file type "+ext, nil)}
	}
}

func readPlainText(f *os.File, path string) Outcome {
	data, err := io.ReadAll(f)
	if err != nil {
		return Outcome{Err: corerrors.FileProcessing(corerrors.CodeFileUnreadable, "read "+path, err)}
	}
	if !utf8.Valid(data) {
		return Outcome{Err: corerrors.FileProcessing(corerrors.CodeFileParseFailed, path+" is not valid UTF-8 text", nil)}
	}
	return Outcome{Sources: []Source{{Text: string(data), Label: "body"}}}
}

// readMarkup extracts visible text from HTML/XML, dropping tags, scripts
// and styles, using golang.org/x/net/html's tokenizer/DOM walker.
func readMarkup(f *os.File, path string) Outcome {
	doc, err := html.Parse(f)
	if err != nil {
		return Outcome{Err: corerrors.FileProcessing(corerrors.CodeFileParseFailed, "parse "+path, err)}
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return Outcome{Err: corerrors.FileProcessing(corerrors.CodeFileParseFailed, path+" has no extractable text", nil)}
	}
	return Outcome{Sources: []Source{{Text: text, Label: "body"}}}
}
