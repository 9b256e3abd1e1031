package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"shopassist/internal/models"
	"shopassist/internal/observability"
)

const (
	TextPath  = "/api/chat/text/v2"
	ImagePath = "/api/chat/image"

	defaultTimeout = 60 * time.Second
	maxBodyBytes   = 8 << 20
)

// ErrEmptyResponse is returned when the chat API answers with no payload.
var ErrEmptyResponse = errors.New("empty response from chat api")

// StatusError reports a non-2xx answer from the chat API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat api returned status %d: %s", e.Code, e.Body)
}

// Response is the decoded chat API reply. Products is nil when the payload's
// products field was missing or not an array.
type Response struct {
	Text      string
	Timestamp string
	Products  []models.Product
	Search    *models.SearchParameters
}

type rawResponse struct {
	Text      string                   `json:"text"`
	Timestamp string                   `json:"timestamp"`
	Products  json.RawMessage          `json:"products"`
	Search    *models.SearchParameters `json:"search_params"`
}

type textRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId"`
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	HTTPClient    *http.Client
}

// Client talks to the remote shopping chat API.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	burst := opts.Burst
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
		if burst <= 0 {
			burst = 1
		}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  httpClient,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// SendText posts a free-text query for the session.
func (c *Client) SendText(ctx context.Context, text, sessionID string) (*Response, error) {
	body, err := json.Marshal(textRequest{Text: text, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("marshal text request: %w", err)
	}
	return c.do(ctx, TextPath, "application/json", bytes.NewReader(body))
}

// SendImage uploads an image as multipart form data for the session.
func (c *Client) SendImage(ctx context.Context, img models.Upload, sessionID string) (*Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	filename := img.Filename
	if filename == "" {
		filename = "upload"
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, fmt.Errorf("write image part: %w", err)
	}
	if err := mw.WriteField("sessionId", sessionID); err != nil {
		return nil, fmt.Errorf("write session field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}
	return c.do(ctx, ImagePath, mw.FormDataContentType(), &buf)
}

func (c *Client) do(ctx context.Context, endpoint, contentType string, body io.Reader) (resp *Response, err error) {
	start := time.Now()
	log := observability.LoggerFromContext(ctx).With("endpoint", endpoint)
	defer func() {
		observability.RecordChatCall(endpoint, err, time.Since(start))
		if err != nil {
			log.Warn("chat api call failed", "error", err, "elapsed", time.Since(start))
			return
		}
		log.Info("chat api call completed", "products", len(resp.Products), "elapsed", time.Since(start))
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if reqID := observability.RequestID(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("request was cancelled: %w", ctx.Err())
		default:
			return nil, fmt.Errorf("execute request: %w", err)
		}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &StatusError{Code: httpResp.StatusCode, Body: truncate(string(data), 256)}
	}
	return decodeResponse(data)
}

func decodeResponse(data []byte) (*Response, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, ErrEmptyResponse
	}
	var raw rawResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	out := &Response{
		Text:      raw.Text,
		Timestamp: raw.Timestamp,
		Search:    raw.Search,
	}
	products := bytes.TrimSpace(raw.Products)
	if len(products) > 0 && products[0] == '[' {
		if err := json.Unmarshal(products, &out.Products); err != nil {
			return nil, fmt.Errorf("decode products: %w", err)
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
