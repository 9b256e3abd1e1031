package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestResultsMessageAlwaysEmitsProducts(t *testing.T) {
	msg := NewResultsMessage("hi", "2024-01-01T00:00:00.000Z", nil, nil)
	if msg.Products == nil {
		t.Fatalf("expected empty products, got nil")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"products":[]`) {
		t.Fatalf("expected empty products array, got %s", data)
	}
	if strings.Contains(string(data), "search_params") {
		t.Fatalf("search_params should be omitted: %s", data)
	}
}

func TestImageMessageWireShape(t *testing.T) {
	msg := NewImageMessage("/previews/abc", "2024-01-01T00:00:00.000Z")
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["isUser"] != true {
		t.Fatalf("expected isUser true: %s", data)
	}
	um, ok := out["user_message"].(map[string]any)
	if !ok || um["type"] != "image" || um["content"] != "/previews/abc" {
		t.Fatalf("unexpected user_message: %s", data)
	}
	if _, ok := out["products"]; ok {
		t.Fatalf("image message must not carry products: %s", data)
	}
}

func TestFlexStringAcceptsNumbers(t *testing.T) {
	var p Product
	if err := json.Unmarshal([]byte(`{"id": 7, "title": "x", "rating": null}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.ID != "7" {
		t.Fatalf("expected id 7, got %q", p.ID)
	}
	if p.Rating != nil {
		t.Fatalf("expected nil rating")
	}

	var sp SearchParameters
	if err := json.Unmarshal([]byte(`{"base_query": "toys", "age": 4}`), &sp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sp.Age != "4" {
		t.Fatalf("expected age 4, got %q", sp.Age)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(20); got != "20" {
		t.Fatalf("FormatAmount(20) = %s", got)
	}
	if got := FormatAmount(19.99); got != "19.99" {
		t.Fatalf("FormatAmount(19.99) = %s", got)
	}
}
