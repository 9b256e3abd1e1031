package fakeapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestChatTextReturnsProducts(t *testing.T) {
	srv := NewServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/text/v2",
		bytes.NewBufferString(`{"text":"running shoes","sessionId":"s1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Products []json.RawMessage `json:"products"`
		Search   struct {
			BaseQuery string `json:"base_query"`
		} `json:"search_params"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Products) != 2 || body.Search.BaseQuery != "running shoes" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if srv.Calls("s1") != 1 {
		t.Fatalf("expected one call recorded for s1")
	}
}

func TestChatTextRejectsBlank(t *testing.T) {
	srv := NewServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/text/v2", bytes.NewBufferString(`{"text":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatImageRequiresFile(t *testing.T) {
	srv := NewServer()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("sessionId", "s2")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
