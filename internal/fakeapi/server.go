// Package fakeapi serves a canned version of the remote shopping chat API so
// the client can be developed and tested without the real service.
package fakeapi

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shopassist/internal/models"
)

const maxImageBytes = 10 << 20

type textRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId"`
}

// Server records which sessions it has seen so tests can assert on them.
type Server struct {
	mu       sync.Mutex
	sessions map[string]int
}

func NewServer() *Server {
	return &Server{sessions: make(map[string]int)}
}

// Handler builds the gin engine exposing both chat endpoints.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	api := router.Group("/api/chat")
	api.POST("/text/v2", s.chatText)
	api.POST("/image", s.chatImage)
	return router
}

// Calls reports how many requests arrived for a session id.
func (s *Server) Calls(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionID]
}

func (s *Server) record(sessionID string) {
	s.mu.Lock()
	s.sessions[sessionID]++
	s.mu.Unlock()
}

func (s *Server) chatText(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	query := strings.TrimSpace(req.Text)
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	s.record(req.SessionID)

	if len(strings.Fields(query)) < 2 {
		c.JSON(http.StatusOK, gin.H{
			"text":      fmt.Sprintf("Happy to help with %s!\n\n**💡 To help you better:** what is your budget?", query),
			"timestamp": models.Now(),
			"products":  []models.Product{},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"text":          fmt.Sprintf("Here are some options for %s:\nTop pick: the first result has the best reviews.", query),
		"timestamp":     models.Now(),
		"products":      sampleProducts(query),
		"search_params": models.SearchParameters{BaseQuery: query, Filters: &models.SearchFilters{FreeShipping: true}},
	})
}

func (s *Server) chatImage(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxImageBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	sessionID := c.PostForm("sessionId")
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is required"})
		return
	}
	s.record(sessionID)

	name := filepath.Base(file.Filename)
	c.JSON(http.StatusOK, gin.H{
		"text":          "I found products similar to your photo.",
		"timestamp":     models.Now(),
		"products":      sampleProducts("similar items"),
		"search_params": models.SearchParameters{BaseQuery: "similar items"},
		"user_message":  models.ImageContent{Type: "image", Content: "/api/images/" + name},
	})
}

func sampleProducts(query string) []models.Product {
	title := cases.Title(language.English).String(query)
	rating := 4.5
	return []models.Product{
		{
			ID:          "1",
			Title:       title + " Classic",
			Description: "A dependable everyday choice.",
			Price:       49.99,
			PriceStr:    "$49.99",
			Link:        "https://shop.example.com/p/1",
			ImageURL:    "https://shop.example.com/img/1.jpg",
			Rating:      &rating,
			RatingCount: 12840,
			Delivery:    "Free delivery",
			Source:      "Example Store",
			Features:    []string{"Lightweight", "Machine washable"},
			Badges: []models.Badge{
				{Type: models.BadgeFreeShipping, Label: "Free shipping"},
				{Type: models.BadgeBestSeller, Label: "Best seller"},
			},
		},
		{
			ID:          "2",
			Title:       title + " Budget",
			Price:       19,
			PriceStr:    "$19.00",
			Link:        "https://shop.example.com/p/2",
			ImageURL:    "https://shop.example.com/img/2.jpg",
			RatingCount: 0,
			Source:      "Outlet",
		},
	}
}
