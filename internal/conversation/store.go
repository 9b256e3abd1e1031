// Package conversation owns the chat state of one browser session: the
// ordered message list, the input draft, the loading flag and the session id
// passed through to the chat API.
package conversation

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"

	"shopassist/internal/chatapi"
	"shopassist/internal/models"
	"shopassist/internal/observability"
)

const (
	WelcomeText = "I'm your AI shopping assistant! You can answer questions or upload a product photo you're looking for!\n\n" +
		"You might ask me:\n" +
		"• Find me comfortable running shoes for women\n" +
		"• What are some good toys for a 4-year-old?\n" +
		"• I need a new laptop for video editing\n"

	ClarificationText = "I understand what you're looking for, but I need a bit more information to help you better. " +
		"Could you provide more details about your preferences?"

	TextFailureText = "I'm having a bit of trouble connecting to our product database right now. " +
		"Could you try asking your question again in a moment? I'm here to help!"

	ImageFailureText = "I apologize, but I encountered an error while analyzing the image. " +
		"Could you please try uploading it again or describe what you're looking for?"

	defaultCallTimeout = 60 * time.Second
)

// ChatClient is the remote chat API.
type ChatClient interface {
	SendText(ctx context.Context, text, sessionID string) (*chatapi.Response, error)
	SendImage(ctx context.Context, img models.Upload, sessionID string) (*chatapi.Response, error)
}

// Executor runs fn off the caller's goroutine. Jobs sharing a key keep their order.
type Executor interface {
	Submit(key string, fn func()) error
}

// PreviewStore stages uploaded images under a URL the page can load.
type PreviewStore interface {
	Create(ctx context.Context, sessionID string, img models.Upload) (string, error)
	Revoke(ctx context.Context, url string) error
}

type Options struct {
	Client   ChatClient
	Executor Executor
	Previews PreviewStore
	// CallTimeout bounds each outbound call.
	CallTimeout time.Duration
	// RejectWhileLoading makes submits no-ops while a call is pending.
	RejectWhileLoading bool

	Now   func() time.Time
	NewID func() string
}

// Store guards one Session. All mutation goes through its methods.
type Store struct {
	mu      sync.Mutex
	session models.Session
	// generation changes on every new session so late replies for an
	// abandoned session are dropped.
	generation uint64

	opts     Options
	inflight sync.WaitGroup
}

type inlineExecutor struct{}

func (inlineExecutor) Submit(_ string, fn func()) error {
	fn()
	return nil
}

func NewStore(opts Options) *Store {
	if opts.Executor == nil {
		opts.Executor = inlineExecutor{}
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = NewSessionID
	}
	s := &Store{opts: opts}
	s.StartNewSession()
	return s
}

func (s *Store) timestamp() string {
	return s.opts.Now().UTC().Format(models.TimestampLayout)
}

// StartNewSession drops the conversation and starts over with a fresh id.
func (s *Store) StartNewSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.session = models.Session{
		ID:         s.opts.NewID(),
		Messages:   []models.Message{models.NewTextMessage(models.RoleAssistant, WelcomeText, s.timestamp())},
		InputDraft: "",
		IsLoading:  false,
	}
}

func (s *Store) SetInputDraft(text string) {
	s.mu.Lock()
	s.session.InputDraft = text
	s.mu.Unlock()
}

// Snapshot returns a copy that later mutations do not affect.
func (s *Store) Snapshot() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.session
	out.Messages = append([]models.Message(nil), s.session.Messages...)
	return out
}

func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.ID
}

func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.IsLoading
}

// Wait blocks until every scheduled call has settled.
func (s *Store) Wait() {
	s.inflight.Wait()
}

// call is one submitted user action awaiting its assistant reply.
type call struct {
	generation uint64
	sessionID  string
	image      bool
	previewURL string
	revokeOnce sync.Once
	ctx        context.Context
}

// begin appends the user message and flips loading on. It reports false when
// the submit must be ignored.
func (s *Store) begin(ctx context.Context, msg func(ts string) models.Message) (*call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.RejectWhileLoading && s.session.IsLoading {
		return nil, false
	}
	s.session.Messages = append(s.session.Messages, msg(s.timestamp()))
	s.session.InputDraft = ""
	s.session.IsLoading = true
	s.inflight.Add(1)
	return &call{
		generation: s.generation,
		sessionID:  s.session.ID,
		ctx:        context.WithoutCancel(ctx),
	}, true
}

// SubmitText sends text to the chat API. Whitespace-only text is ignored.
// It reports whether the text was accepted.
func (s *Store) SubmitText(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	c, ok := s.begin(ctx, func(ts string) models.Message {
		return models.NewTextMessage(models.RoleUser, text, ts)
	})
	if !ok {
		return false
	}
	s.schedule(c, func(ctx context.Context) (*chatapi.Response, error) {
		return s.opts.Client.SendText(ctx, text, c.sessionID)
	})
	return true
}

// SubmitImage uploads an image to the chat API. The image is shown from a
// staged preview which is revoked once the call settles.
func (s *Store) SubmitImage(ctx context.Context, img models.Upload) bool {
	if len(img.Data) == 0 {
		return false
	}
	if s.opts.RejectWhileLoading && s.IsLoading() {
		return false
	}
	previewURL, revocable := s.createPreview(ctx, img)
	c, ok := s.begin(ctx, func(ts string) models.Message {
		return models.NewImageMessage(previewURL, ts)
	})
	if !ok {
		if revocable {
			s.revokePreview(ctx, previewURL)
		}
		return false
	}
	c.image = true
	if revocable {
		c.previewURL = previewURL
	}
	s.schedule(c, func(ctx context.Context) (*chatapi.Response, error) {
		return s.opts.Client.SendImage(ctx, img, c.sessionID)
	})
	return true
}

func (s *Store) createPreview(ctx context.Context, img models.Upload) (string, bool) {
	if s.opts.Previews != nil {
		url, err := s.opts.Previews.Create(ctx, s.SessionID(), img)
		if err == nil {
			return url, true
		}
		observability.LoggerFromContext(ctx).Warn("create preview failed, inlining image", "error", err)
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(img.Data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data), false
}

func (s *Store) revokePreview(ctx context.Context, url string) {
	if err := s.opts.Previews.Revoke(ctx, url); err != nil {
		observability.LoggerFromContext(ctx).Warn("revoke preview failed", "url", url, "error", err)
	}
}

func (s *Store) schedule(c *call, send func(ctx context.Context) (*chatapi.Response, error)) {
	err := s.opts.Executor.Submit(c.sessionID, func() { s.execute(c, send) })
	if err != nil {
		observability.LoggerFromContext(c.ctx).Warn("chat call not scheduled", "session_id", c.sessionID, "error", err)
		s.settle(c, s.failure(c))
	}
}

func (s *Store) execute(c *call, send func(ctx context.Context) (*chatapi.Response, error)) {
	reply := s.failure(c)
	defer func() {
		if r := recover(); r != nil {
			observability.LoggerFromContext(c.ctx).Error("chat call panicked", "session_id", c.sessionID, "panic", r)
			reply = s.failure(c)
		}
		s.settle(c, reply)
	}()

	ctx, cancel := context.WithTimeout(c.ctx, s.opts.CallTimeout)
	defer cancel()
	resp, err := send(ctx)
	if err != nil {
		observability.LoggerFromContext(c.ctx).Warn("chat call failed", "session_id", c.sessionID, "image", c.image, "error", err)
		return
	}
	reply = s.success(c, resp)
}

func (s *Store) success(c *call, resp *chatapi.Response) models.Message {
	text := resp.Text
	if text == "" && !c.image {
		text = ClarificationText
	}
	ts := resp.Timestamp
	if ts == "" {
		ts = s.timestamp()
	}
	return models.NewResultsMessage(text, ts, resp.Products, resp.Search)
}

func (s *Store) failure(c *call) models.Message {
	text := TextFailureText
	if c.image {
		text = ImageFailureText
	}
	return models.NewTextMessage(models.RoleAssistant, text, s.timestamp())
}

// settle appends the reply, clears loading and releases the preview. A reply
// for a session that was replaced meanwhile is dropped.
func (s *Store) settle(c *call, reply models.Message) {
	defer s.inflight.Done()

	s.mu.Lock()
	if c.generation == s.generation {
		s.session.Messages = append(s.session.Messages, reply)
		s.session.IsLoading = false
	}
	s.mu.Unlock()

	if c.previewURL != "" {
		c.revokeOnce.Do(func() { s.revokePreview(c.ctx, c.previewURL) })
	}
}
