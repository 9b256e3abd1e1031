// Package render maps stored messages to the view tree the chat page draws.
// It holds no state; the same message always renders the same way.
package render

import (
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"shopassist/internal/models"
)

const (
	FollowUpMarker   = "💡 To help you better:"
	bulletMarker     = "• "
	PlaceholderImage = "https://via.placeholder.com/300x300?text=Product+Image+Not+Available"
)

// MessageView is one rendered chat bubble. Exactly one of Image, Lines or
// HTML carries the body.
type MessageView struct {
	IsUser    bool
	Timestamp string
	Time      string

	Image *ImageView
	Lines []LineView
	HTML  template.HTML

	Search   *SearchSummary
	Products []ProductCard
}

type ImageView struct {
	Src string
	Alt string
}

// URL marks Src safe for an img tag. Only inline images, object URLs, web
// URLs and site-relative paths are let through.
func (i ImageView) URL() template.URL {
	switch {
	case strings.HasPrefix(i.Src, "data:image/"),
		strings.HasPrefix(i.Src, "blob:"),
		strings.HasPrefix(i.Src, "http://"),
		strings.HasPrefix(i.Src, "https://"),
		strings.HasPrefix(i.Src, "/") && !strings.HasPrefix(i.Src, "//"):
		return template.URL(i.Src)
	}
	return "#"
}

// LineView is one line of an assistant message that lists example questions.
// When Question is set, choosing the line should fill the input with it.
type LineView struct {
	Text     string
	Question string
}

func (l LineView) IsExample() bool {
	return l.Question != ""
}

type Renderer struct {
	imageBaseURL string
	md           goldmark.Markdown
	printer      *message.Printer
}

func New(imageBaseURL string) *Renderer {
	return &Renderer{
		imageBaseURL: strings.TrimRight(imageBaseURL, "/"),
		md:           newMarkdown(),
		printer:      message.NewPrinter(language.English),
	}
}

// Render builds the view for a single message.
func (r *Renderer) Render(msg models.Message) MessageView {
	view := MessageView{
		IsUser:    msg.IsUser(),
		Timestamp: msg.Timestamp,
		Time:      displayTime(msg.Timestamp),
	}

	switch {
	case msg.Kind == models.KindImage && msg.Image != nil && msg.Image.Type == "image":
		view.Image = &ImageView{Src: r.resolveImage(msg.Image.Content), Alt: "Uploaded product"}
	case !msg.IsUser() && strings.Contains(msg.Text, bulletMarker):
		view.Lines = exampleLines(msg.Text)
	case msg.IsUser():
		view.HTML = r.markdown(msg.Text)
	default:
		view.HTML = r.markdown(FormatTextResponse(msg.Text))
	}

	if msg.Kind == models.KindResults {
		if msg.Search != nil {
			view.Search = Summarize(msg.Search)
		}
		for _, p := range msg.Products {
			view.Products = append(view.Products, r.productCard(p))
		}
	}
	return view
}

// RenderAll renders a whole conversation in order.
func (r *Renderer) RenderAll(msgs []models.Message) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, r.Render(m))
	}
	return out
}

// resolveImage prefixes relative paths with the image base URL. Anything that
// already carries a scheme (blob:, data:, http:) is used as is.
func (r *Renderer) resolveImage(src string) string {
	if strings.HasPrefix(src, "blob:") || strings.HasPrefix(src, "data:") || strings.Contains(src, "://") {
		return src
	}
	if strings.HasPrefix(src, "/previews/") {
		return src
	}
	return r.imageBaseURL + src
}

func exampleLines(text string) []LineView {
	lines := strings.Split(text, "\n")
	out := make([]LineView, 0, len(lines))
	for _, line := range lines {
		lv := LineView{Text: line}
		if strings.HasPrefix(line, bulletMarker) {
			lv.Question = strings.TrimSpace(strings.TrimPrefix(line, bulletMarker))
		}
		out = append(out, lv)
	}
	return out
}

func displayTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ""
	}
	return t.Format("15:04")
}
