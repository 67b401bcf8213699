// Package processors ships ready-made enrichment steps for the memory
// pipeline. Each processor contributes metadata keys; registration
// order decides who wins on key collisions.
package processors

import (
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/recallio/recall-go/store"
)

// Markdown parses the record content as markdown and records its
// structure: headings, link destinations, and a word count over the
// rendered text.
type Markdown struct{}

func (Markdown) Name() string { return "markdown" }

func (Markdown) Process(_ context.Context, record *store.Memory) (map[string]any, error) {
	src := []byte(record.Content)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var headings []string
	var links []string

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			headings = append(headings, string(node.Text(src)))
		case *ast.Link:
			links = append(links, string(node.Destination))
		case *ast.AutoLink:
			links = append(links, string(node.URL(src)))
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	out := map[string]any{
		"word_count": len(strings.Fields(record.Content)),
	}
	if len(headings) > 0 {
		out["headings"] = headings
	}
	if len(links) > 0 {
		out["links"] = links
	}
	return out, nil
}
