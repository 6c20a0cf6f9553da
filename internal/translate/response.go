package translate

import (
	"encoding/json"
	"strings"
)

// Extracted is the result of reading an upstream generation response.
// Exactly one of Text/Raw is meaningful: Raw carries the unmodified body
// when no text path matched, so image-bearing responses are never corrupted
// by the text extractor.
type Extracted struct {
	Text string
	Raw  json.RawMessage
}

type wireCandidate struct {
	Content struct {
		Parts []WirePart `json:"parts"`
	} `json:"content"`
}

type wireResponse struct {
	Markdown string `json:"markdown"`
	Response *struct {
		Candidates []wireCandidate `json:"candidates"`
	} `json:"response"`
	Candidates []wireCandidate `json:"candidates"`
}

// ExtractText pulls the response text out of an upstream body: the direct
// markdown field first, then the nested response.candidates path, then the
// top-level candidates path, falling back to raw passthrough.
func ExtractText(body []byte) Extracted {
	var parsed wireResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Extracted{Raw: body}
	}
	if parsed.Markdown != "" {
		return Extracted{Text: parsed.Markdown}
	}
	if parsed.Response != nil {
		if text, ok := candidateText(parsed.Response.Candidates); ok {
			return Extracted{Text: text}
		}
	}
	if text, ok := candidateText(parsed.Candidates); ok {
		return Extracted{Text: text}
	}
	return Extracted{Raw: body}
}

func candidateText(candidates []wireCandidate) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	for _, p := range candidates[0].Content.Parts {
		if p.Text != "" {
			return p.Text, true
		}
	}
	return "", false
}

// ExtractInlineImage finds the first inlineData part in a response body,
// unwrapping the nested response envelope if present.
func ExtractInlineImage(body []byte) (mimeType, base64Data string, ok bool) {
	var parsed wireResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", false
	}
	candidates := parsed.Candidates
	if parsed.Response != nil && len(parsed.Response.Candidates) > 0 {
		candidates = parsed.Response.Candidates
	}
	if len(candidates) == 0 {
		return "", "", false
	}
	for _, p := range candidates[0].Content.Parts {
		if p.InlineData != nil {
			return p.InlineData.MimeType, p.InlineData.Data, true
		}
	}
	return "", "", false
}

// UnwrapResponse strips the outer response envelope from an upstream body
// when present, returning the inner object untouched otherwise.
func UnwrapResponse(body []byte) json.RawMessage {
	var outer struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(body, &outer); err == nil && len(outer.Response) > 0 {
		return outer.Response
	}
	return body
}

const (
	articleStartTag = "[startblog]"
	articleEndTag   = "[endblog]"
)

// StripArticleMarkers removes the article delimiters the rewriting prompts
// ask the model to emit, returning only the enclosed content when both
// markers are present.
func StripArticleMarkers(text string) string {
	start := strings.Index(text, articleStartTag)
	end := strings.Index(text, articleEndTag)
	if start != -1 && end != -1 && end > start {
		return strings.TrimSpace(text[start+len(articleStartTag) : end])
	}
	text = strings.ReplaceAll(text, articleStartTag, "")
	text = strings.ReplaceAll(text, articleEndTag, "")
	return strings.TrimSpace(text)
}

// ===== Public-shape response rendering =====

// CandidateResponse is the content-list public response wrapper.
type CandidateResponse struct {
	Candidates    []ResponseCandidate `json:"candidates"`
	UsageMetadata UsageMetadata       `json:"usageMetadata"`
}

// ResponseCandidate is one rendered candidate.
type ResponseCandidate struct {
	Content       Content `json:"content"`
	FinishReason  string  `json:"finishReason"`
	Index         int     `json:"index"`
	SafetyRatings []any   `json:"safetyRatings"`
}

// UsageMetadata mirrors the upstream token accounting shape. The gateway
// does not meter tokens; counts are character-based placeholders.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// WrapText renders plain text as a content-list public response.
func WrapText(text string) CandidateResponse {
	return CandidateResponse{
		Candidates: []ResponseCandidate{{
			Content: Content{
				Role:  string(RoleModel),
				Parts: []WirePart{{Text: text}},
			},
			FinishReason:  "STOP",
			SafetyRatings: []any{},
		}},
		UsageMetadata: UsageMetadata{
			CandidatesTokenCount: len(text),
			TotalTokenCount:      len(text),
		},
	}
}
