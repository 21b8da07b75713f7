package telegram

import (
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var markdown = goldmark.New()

// RenderHTML converts a markdown caption into the HTML subset Telegram
// accepts with parse_mode=HTML: b, i, a, code. Blocks are separated by a
// blank line since Telegram has no paragraph tags.
func RenderHTML(md string) string {
	src := []byte(md)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var out strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Document:
		case *ast.Emphasis:
			tag := "i"
			if node.Level >= 2 {
				tag = "b"
			}
			writeTag(&out, tag, entering)
		case *ast.Link:
			if entering {
				out.WriteString(`<a href="`)
				out.WriteString(html.EscapeString(string(node.Destination)))
				out.WriteString(`">`)
			} else {
				out.WriteString("</a>")
			}
		case *ast.AutoLink:
			if entering {
				out.WriteString(html.EscapeString(string(node.URL(src))))
			}
		case *ast.CodeSpan:
			writeTag(&out, "code", entering)
		case *ast.Text:
			if entering {
				out.WriteString(html.EscapeString(string(util.UnescapePunctuations(node.Segment.Value(src)))))
				if node.SoftLineBreak() || node.HardLineBreak() {
					out.WriteString("\n")
				}
			}
		case *ast.String:
			if entering {
				out.WriteString(html.EscapeString(string(node.Value)))
			}
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		default:
			if !entering && n.Type() == ast.TypeBlock && n.NextSibling() != nil {
				out.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(out.String())
}

func writeTag(out *strings.Builder, tag string, entering bool) {
	if entering {
		out.WriteString("<" + tag + ">")
		return
	}
	out.WriteString("</" + tag + ">")
}
