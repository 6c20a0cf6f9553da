package translate

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestFromMessagesRoles(t *testing.T) {
	tests := []struct {
		role string
		want Role
	}{
		{"user", RoleUser},
		{"system", RoleUser},
		{"", RoleUser},
		{"assistant", RoleModel},
		{"model", RoleModel},
		{"Assistant", RoleModel},
	}
	for _, tt := range tests {
		msgs := []Message{{Role: tt.role, Content: json.RawMessage(`"hi"`)}}
		turns, err := FromMessages(msgs)
		if err != nil {
			t.Fatalf("role %q: %v", tt.role, err)
		}
		if turns[0].Role != tt.want {
			t.Errorf("role %q: got %q want %q", tt.role, turns[0].Role, tt.want)
		}
	}
}

func TestFromMessagesUnknownRole(t *testing.T) {
	_, err := FromMessages([]Message{{Role: "tool", Content: json.RawMessage(`"x"`)}})
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestFromMessagesListContent(t *testing.T) {
	content := `[
		{"type":"text","text":"describe this"},
		{"type":"image_url","image_url":{"url":"data:image/png;base64,aGVsbG8="}}
	]`
	turns, err := FromMessages([]Message{{Role: "user", Content: json.RawMessage(content)}})
	if err != nil {
		t.Fatalf("FromMessages: %v", err)
	}
	parts := turns[0].Parts
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0].Text != "describe this" {
		t.Errorf("text part: %q", parts[0].Text)
	}
	if parts[1].Inline == nil {
		t.Fatal("expected inline part")
	}
	if parts[1].Inline.MimeType != "image/png" {
		t.Errorf("mime: %q", parts[1].Inline.MimeType)
	}
	if !bytes.Equal(parts[1].Inline.Data, []byte("hello")) {
		t.Errorf("data: %q", parts[1].Inline.Data)
	}
}

func TestFromMessagesRejectsRemoteImageURL(t *testing.T) {
	content := `[{"type":"image_url","image_url":{"url":"https://example.com/cat.png"}}]`
	_, err := FromMessages([]Message{{Role: "user", Content: json.RawMessage(content)}})
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError for remote url, got %v", err)
	}
}

func TestMessagesRoundTripPreservesInlineMedia(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Parts: []Part{
			{Text: "look"},
			{Inline: &InlineData{MimeType: "image/jpeg", Data: []byte{0xff, 0xd8, 0x00}}},
		}},
		{Role: RoleModel, Parts: []Part{{Text: "a photo"}}},
	}

	back, err := FromMessages(ToMessages(turns))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(back))
	}
	inline := back[0].Parts[1].Inline
	if inline == nil || inline.MimeType != "image/jpeg" || !bytes.Equal(inline.Data, []byte{0xff, 0xd8, 0x00}) {
		t.Fatalf("inline media not preserved: %+v", inline)
	}
	if back[1].Role != RoleModel || back[1].Parts[0].Text != "a photo" {
		t.Fatalf("model turn not preserved: %+v", back[1])
	}
}

func TestContentsRoundTrip(t *testing.T) {
	contents := []Content{
		{Role: "user", Parts: []WirePart{
			{Text: "hello"},
			{InlineData: &WireInline{MimeType: "image/png", Data: "aGVsbG8="}},
		}},
		{Role: "model", Parts: []WirePart{{Text: "hi"}}},
	}

	turns, err := FromContents(contents)
	if err != nil {
		t.Fatalf("FromContents: %v", err)
	}
	if turns[0].Role != RoleUser || turns[1].Role != RoleModel {
		t.Fatalf("roles not mapped: %+v", turns)
	}
	if !bytes.Equal(turns[0].Parts[1].Inline.Data, []byte("hello")) {
		t.Fatal("inline data not decoded")
	}

	out := ToContents(turns)
	if out[0].Parts[1].InlineData.Data != "aGVsbG8=" {
		t.Fatalf("inline data not re-encoded: %+v", out[0].Parts[1])
	}
}

func TestFromContentsBadBase64(t *testing.T) {
	contents := []Content{{Parts: []WirePart{{InlineData: &WireInline{MimeType: "image/png", Data: "%%%"}}}}}
	_, err := FromContents(contents)
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}
