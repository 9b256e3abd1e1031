package models

import (
	"encoding/json"
	"time"
)

// TimestampLayout matches the ISO8601 form the chat API and browsers emit.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind tags which variant of Message is populated.
type Kind string

const (
	KindText    Kind = "text"
	KindImage   Kind = "image"
	KindResults Kind = "results"
)

// ImageContent marks a user message as an uploaded image.
type ImageContent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Message is one turn in the conversation. Only the fields matching Kind are set:
// KindImage carries Image, KindResults carries Products (never nil) and an optional Search.
type Message struct {
	Role      Role
	Kind      Kind
	Text      string
	Timestamp string

	Image    *ImageContent
	Products []Product
	Search   *SearchParameters
}

// Now formats the current time the way message timestamps are stored.
func Now() string {
	return time.Now().UTC().Format(TimestampLayout)
}

func NewTextMessage(role Role, text, timestamp string) Message {
	return Message{Role: role, Kind: KindText, Text: text, Timestamp: timestamp}
}

func NewImageMessage(content, timestamp string) Message {
	return Message{
		Role:      RoleUser,
		Kind:      KindImage,
		Text:      "Uploaded an image",
		Timestamp: timestamp,
		Image:     &ImageContent{Type: "image", Content: content},
	}
}

func NewResultsMessage(text, timestamp string, products []Product, search *SearchParameters) Message {
	if products == nil {
		products = []Product{}
	}
	return Message{
		Role:      RoleAssistant,
		Kind:      KindResults,
		Text:      text,
		Timestamp: timestamp,
		Products:  products,
		Search:    search,
	}
}

func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

type wireMessage struct {
	Text         string            `json:"text"`
	Timestamp    string            `json:"timestamp"`
	IsUser       bool              `json:"isUser"`
	Products     *[]Product        `json:"products,omitempty"`
	SearchParams *SearchParameters `json:"search_params,omitempty"`
	UserMessage  *ImageContent     `json:"user_message,omitempty"`
}

// MarshalJSON emits the flat message shape used by the browser client.
func (m Message) MarshalJSON() ([]byte, error) {
	out := wireMessage{
		Text:      m.Text,
		Timestamp: m.Timestamp,
		IsUser:    m.IsUser(),
	}
	switch m.Kind {
	case KindImage:
		out.UserMessage = m.Image
	case KindResults:
		products := m.Products
		if products == nil {
			products = []Product{}
		}
		out.Products = &products
		out.SearchParams = m.Search
	}
	return json.Marshal(out)
}
