package chatapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"shopassist/internal/fakeapi"
	"shopassist/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newFakeClient(t *testing.T) (*Client, *fakeapi.Server) {
	t.Helper()
	fake := fakeapi.NewServer()
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL + "/", Timeout: 5 * time.Second}), fake
}

func newStubClient(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
}

func TestSendTextAgainstFakeAPI(t *testing.T) {
	client, fake := newFakeClient(t)
	resp, err := client.SendText(context.Background(), "running shoes", "sess-1")
	if err != nil {
		t.Fatalf("SendText error: %v", err)
	}
	if len(resp.Products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(resp.Products))
	}
	if resp.Search == nil || resp.Search.BaseQuery != "running shoes" {
		t.Fatalf("unexpected search params: %#v", resp.Search)
	}
	if fake.Calls("sess-1") != 1 {
		t.Fatalf("session id not forwarded")
	}
}

func TestSendImageAgainstFakeAPI(t *testing.T) {
	client, fake := newFakeClient(t)
	img := models.Upload{Filename: "shoe.png", ContentType: "image/png", Data: []byte("\x89PNG\r\n\x1a\nfake")}
	resp, err := client.SendImage(context.Background(), img, "sess-2")
	if err != nil {
		t.Fatalf("SendImage error: %v", err)
	}
	if resp.Text == "" || len(resp.Products) == 0 {
		t.Fatalf("unexpected image response: %#v", resp)
	}
	if fake.Calls("sess-2") != 1 {
		t.Fatalf("session id not forwarded in multipart body")
	}
}

func TestNonArrayProductsDecodeToNil(t *testing.T) {
	client := newStubClient(t, http.StatusOK, `{"text":"ok","products":null}`)
	resp, err := client.SendText(context.Background(), "x", "s")
	if err != nil {
		t.Fatalf("SendText error: %v", err)
	}
	if resp.Products != nil {
		t.Fatalf("expected nil products, got %#v", resp.Products)
	}

	client = newStubClient(t, http.StatusOK, `{"text":"ok","products":{"oops":true}}`)
	resp, err = client.SendText(context.Background(), "x", "s")
	if err != nil {
		t.Fatalf("SendText error: %v", err)
	}
	if resp.Products != nil {
		t.Fatalf("expected nil products for object payload")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	client := newStubClient(t, http.StatusBadGateway, `upstream down`)
	_, err := client.SendText(context.Background(), "x", "s")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadGateway {
		t.Fatalf("expected StatusError 502, got %v", err)
	}

	client = newStubClient(t, http.StatusOK, ``)
	if _, err := client.SendText(context.Background(), "x", "s"); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}

	client = newStubClient(t, http.StatusOK, `{"text": `)
	if _, err := client.SendText(context.Background(), "x", "s"); err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("expected decode error, got %v", err)
	}

	client = NewClient(Options{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	if _, err := client.SendText(context.Background(), "x", "s"); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestCancelledContext(t *testing.T) {
	client := newStubClient(t, http.StatusOK, `{"text":"ok"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.SendText(ctx, "x", "s"); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
