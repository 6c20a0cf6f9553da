package translate

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Message is one chat-message (public form B) entry. Content may be a bare
// string or a list of typed items, mirroring the OpenAI wire convention.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type messageItem struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

// FromMessages converts a chat-message history into canonical turns.
// assistant/model map to the model role; user/system map to the user role.
// image_url items must be data: URIs; any other URL form is rejected.
func FromMessages(msgs []Message) ([]Turn, error) {
	turns := make([]Turn, 0, len(msgs))
	for i, m := range msgs {
		var role Role
		switch strings.ToLower(m.Role) {
		case "assistant", "model":
			role = RoleModel
		case "user", "system", "":
			role = RoleUser
		default:
			return nil, protocolErrorf("message %d: unknown role %q", i, m.Role)
		}

		var text string
		if err := json.Unmarshal(m.Content, &text); err == nil {
			turns = append(turns, Turn{Role: role, Parts: []Part{{Text: text}}})
			continue
		}

		var items []messageItem
		if err := json.Unmarshal(m.Content, &items); err != nil {
			return nil, protocolErrorf("message %d: content is neither string nor list", i)
		}
		parts := make([]Part, 0, len(items))
		for _, item := range items {
			switch item.Type {
			case "text":
				parts = append(parts, Part{Text: item.Text})
			case "image_url":
				if item.ImageURL == nil {
					return nil, protocolErrorf("message %d: image_url item without url", i)
				}
				inline, err := decodeDataURI(item.ImageURL.URL)
				if err != nil {
					return nil, protocolErrorf("message %d: %v", i, err)
				}
				parts = append(parts, Part{Inline: inline})
			default:
				return nil, protocolErrorf("message %d: unknown content type %q", i, item.Type)
			}
		}
		turns = append(turns, Turn{Role: role, Parts: parts})
	}
	return turns, nil
}

// ToMessages renders canonical turns back into chat-message form. A turn
// with a single text part becomes string content; anything else becomes
// the list form with data: URIs for inline parts.
func ToMessages(turns []Turn) []Message {
	msgs := make([]Message, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == RoleModel {
			role = "assistant"
		}

		if len(t.Parts) == 1 && t.Parts[0].Inline == nil {
			raw, _ := json.Marshal(t.Parts[0].Text)
			msgs = append(msgs, Message{Role: role, Content: raw})
			continue
		}

		items := make([]messageItem, 0, len(t.Parts))
		for _, p := range t.Parts {
			if p.Inline != nil {
				uri := "data:" + p.Inline.MimeType + ";base64," + base64.StdEncoding.EncodeToString(p.Inline.Data)
				item := messageItem{Type: "image_url"}
				item.ImageURL = &struct {
					URL string `json:"url"`
				}{URL: uri}
				items = append(items, item)
				continue
			}
			items = append(items, messageItem{Type: "text", Text: p.Text})
		}
		raw, _ := json.Marshal(items)
		msgs = append(msgs, Message{Role: role, Content: raw})
	}
	return msgs
}

// FromContents converts content-list (public form A) input into canonical
// turns, decoding inline base64 payloads.
func FromContents(contents []Content) ([]Turn, error) {
	turns := make([]Turn, 0, len(contents))
	for i, c := range contents {
		role := RoleUser
		if strings.ToLower(c.Role) == "model" {
			role = RoleModel
		}
		parts := make([]Part, 0, len(c.Parts))
		for _, wp := range c.Parts {
			if wp.InlineData != nil {
				data, err := base64.StdEncoding.DecodeString(wp.InlineData.Data)
				if err != nil {
					return nil, protocolErrorf("content %d: undecodable inline data: %v", i, err)
				}
				parts = append(parts, Part{Inline: &InlineData{MimeType: wp.InlineData.MimeType, Data: data}})
				continue
			}
			parts = append(parts, Part{Text: wp.Text})
		}
		turns = append(turns, Turn{Role: role, Parts: parts})
	}
	return turns, nil
}

// ToContents renders canonical turns in upstream/content-list wire form.
func ToContents(turns []Turn) []Content {
	contents := make([]Content, 0, len(turns))
	for _, t := range turns {
		contents = append(contents, Content{Role: string(t.Role), Parts: toWireParts(t.Parts)})
	}
	return contents
}

func toWireParts(parts []Part) []WirePart {
	out := make([]WirePart, 0, len(parts))
	for _, p := range parts {
		if p.Inline != nil {
			out = append(out, WirePart{InlineData: &WireInline{
				MimeType: p.Inline.MimeType,
				Data:     base64.StdEncoding.EncodeToString(p.Inline.Data),
			}})
			continue
		}
		out = append(out, WirePart{Text: p.Text})
	}
	return out
}

// decodeDataURI splits a data: URI into its MIME type and decoded bytes.
func decodeDataURI(uri string) (*InlineData, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, protocolErrorf("image url is not a data: URI")
	}
	meta, b64, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, protocolErrorf("malformed data: URI")
	}
	mime, _, _ := strings.Cut(meta, ";")
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, protocolErrorf("undecodable data: URI payload: %v", err)
	}
	return &InlineData{MimeType: mime, Data: data}, nil
}
