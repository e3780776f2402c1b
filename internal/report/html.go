package report

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdown renders report bodies. Bodies are plain text laid out so that
// their titles, lists and rules are also valid Markdown.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// HTML renders the report body as an HTML fragment.
func HTML(r Report) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(r.Body), &buf); err != nil {
		return "", fmt.Errorf("rendering report %s: %w", r.ID, err)
	}
	return buf.String(), nil
}
