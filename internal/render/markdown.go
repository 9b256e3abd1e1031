package render

import (
	"bytes"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var (
	numberedLine = regexp.MustCompile(`^\d+\.`)
	labelPrefix  = regexp.MustCompile(`^(.+?):`)
)

// FormatTextResponse reshapes assistant text before markdown rendering: one
// paragraph per non-blank line, a separator before the follow-up prompt, and
// the label before the first colon in bold.
func FormatTextResponse(text string) string {
	var paragraphs []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		switch {
		case strings.Contains(line, FollowUpMarker):
			line = "\n---\n\n" + line + "\n"
		case strings.HasPrefix(line, "•"), strings.HasPrefix(line, "-"):
		case numberedLine.MatchString(line):
		case !strings.Contains(line, "**") && strings.Contains(line, ":"):
			line = labelPrefix.ReplaceAllString(line, "**$1**:")
		}
		paragraphs = append(paragraphs, line)
	}
	return strings.Join(paragraphs, "\n\n")
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(util.Prioritized(classTransformer{}, 100)),
		),
	)
}

func (r *Renderer) markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

// classTransformer tags nodes with the CSS classes the chat page styles, and
// marks paragraphs that carry the follow-up prompt.
type classTransformer struct{}

func (classTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Paragraph:
			class := "markdown-paragraph"
			if strings.Contains(string(node.Text(source)), FollowUpMarker) {
				class = "follow-up-question"
			}
			node.SetAttributeString("class", []byte(class))
		case *ast.Emphasis:
			if node.Level >= 2 {
				node.SetAttributeString("class", []byte("markdown-bold"))
			} else {
				node.SetAttributeString("class", []byte("markdown-italic"))
			}
		case *ast.List:
			node.SetAttributeString("class", []byte("markdown-list"))
		case *ast.ListItem:
			node.SetAttributeString("class", []byte("markdown-list-item"))
		case *ast.ThematicBreak:
			node.SetAttributeString("class", []byte("markdown-separator"))
		}
		return ast.WalkContinue, nil
	})
}
