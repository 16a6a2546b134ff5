// Package markdown extracts structured blocks from Markdown adapter output
// using goldmark's parser. Rendering is not needed: the compactor only cares
// about which section a line of text sits in and whether it is a list item.
package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// BlockKind classifies an extracted block.
type BlockKind int

const (
	// Paragraph is free text outside a list.
	Paragraph BlockKind = iota
	// Item is an unordered list item.
	Item
	// OrderedItem is an item of a numbered list.
	OrderedItem
)

// Block is one unit of text together with the section it belongs to.
type Block struct {
	Kind BlockKind
	// Section is the nearest heading or label line ("Equipment:") above the block.
	Section string
	Text    string
}

var parser = goldmark.New().Parser()

// Extract parses src and returns its paragraphs and list items in document
// order. A short paragraph ending with a colon is treated as a section label
// for the blocks that follow it, which covers model output that uses bold
// lines instead of headings.
func Extract(src string) []Block {
	source := []byte(src)
	doc := parser.Parse(text.NewReader(source))

	var (
		blocks  []Block
		section string
	)

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			section = strings.TrimSpace(collect(node, source))
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			kind := Item
			if list, ok := node.Parent().(*ast.List); ok && list.IsOrdered() {
				kind = OrderedItem
			}
			var sb strings.Builder
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				switch c.(type) {
				case *ast.Paragraph, *ast.TextBlock:
					if sb.Len() > 0 {
						sb.WriteByte(' ')
					}
					sb.WriteString(collect(c, source))
				}
			}
			if t := clean(sb.String()); t != "" {
				blocks = append(blocks, Block{Kind: kind, Section: section, Text: t})
			}
			return ast.WalkContinue, nil
		case *ast.Paragraph:
			if _, inItem := node.Parent().(*ast.ListItem); inItem {
				return ast.WalkSkipChildren, nil
			}
			t := clean(collect(node, source))
			if isLabel(t) {
				section = strings.TrimSuffix(t, ":")
				return ast.WalkSkipChildren, nil
			}
			if t != "" {
				blocks = append(blocks, Block{Kind: Paragraph, Section: section, Text: t})
			}
			return ast.WalkSkipChildren, nil
		case *ast.TextBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return blocks
}

// collect concatenates the inline text below n.
func collect(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.List:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isLabel(s string) bool {
	return strings.HasSuffix(s, ":") && len(s) <= 60 && !strings.Contains(strings.TrimSuffix(s, ":"), ":")
}
