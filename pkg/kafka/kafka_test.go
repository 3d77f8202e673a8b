package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestToMessageSetsRequestIDHeader(t *testing.T) {
	msg, err := toMessage(Event{Key: "usage_index", Value: map[string]int{"items": 3}, RequestID: "abc"})
	if err != nil {
		t.Fatalf("toMessage: %v", err)
	}
	if string(msg.Key) != "usage_index" {
		t.Errorf("unexpected key %q", msg.Key)
	}
	if string(msg.Value) != `{"items":3}` {
		t.Errorf("unexpected value %s", msg.Value)
	}
	if got := headerValue(msg.Headers, RequestIDHeader); got != "abc" {
		t.Errorf("expected request id header abc, got %q", got)
	}
}

func TestToMessageWithoutRequestID(t *testing.T) {
	msg, err := toMessage(Event{Key: "k", Value: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.Headers) != 0 {
		t.Errorf("expected no headers, got %v", msg.Headers)
	}
	if headerValue([]kafka.Header{{Key: "other", Value: []byte("x")}}, RequestIDHeader) != "" {
		t.Error("unexpected header match")
	}
}

func TestDecodeJSON(t *testing.T) {
	type scan struct {
		Items int `json:"items"`
	}
	got, err := DecodeJSON[scan]([]byte(`{"items":7}`))
	if err != nil || got.Items != 7 {
		t.Fatalf("DecodeJSON = %+v, %v", got, err)
	}
	if _, err := DecodeJSON[scan]([]byte(`{`)); err == nil {
		t.Fatal("expected decode error")
	}
}
