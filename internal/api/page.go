package api

import (
	"embed"
	"html/template"

	"shopassist/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	SessionID string
	Messages  []messageItem
	Draft     string
	Loading   bool
	CSRFToken string
}

// messageItem carries what a single bubble needs from the page.
type messageItem struct {
	View      render.MessageView
	CSRFToken string
	Loading   bool
}

func newPageData(sessionID string, views []render.MessageView, draft string, loading bool, csrf string) pageData {
	items := make([]messageItem, 0, len(views))
	for _, v := range views {
		items = append(items, messageItem{View: v, CSRFToken: csrf, Loading: loading})
	}
	return pageData{
		SessionID: sessionID,
		Messages:  items,
		Draft:     draft,
		Loading:   loading,
		CSRFToken: csrf,
	}
}
