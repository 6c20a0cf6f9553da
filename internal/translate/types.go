// Package translate converts between the three request/response shapes the
// gateway speaks: the upstream-internal protocol, the content-list public
// protocol and the chat-message public protocol. All functions are pure;
// conversion never touches the network.
package translate

import "fmt"

// Role of one canonical conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// InlineData is a binary part with its declared MIME type.
type InlineData struct {
	MimeType string
	Data     []byte
}

// Part is either text or inline binary, never both.
type Part struct {
	Text   string
	Inline *InlineData
}

// Turn is one canonical conversation turn. A request is an ordered slice
// of turns owned by the caller for the duration of one call.
type Turn struct {
	Role  Role
	Parts []Part
}

// Kind determines the upstream request shape, independent of which public
// protocol the caller used.
type Kind int

const (
	KindChat Kind = iota
	KindSearch
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindSearch:
		return "search"
	case KindImage:
		return "image"
	default:
		return "chat"
	}
}

// ProtocolError marks an unrecognized input shape or undecodable inline
// media. It is surfaced to the caller immediately and never retried.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.Reason }

func protocolErrorf(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// ===== Upstream-internal wire shapes =====

// Content is one turn in upstream wire form; it doubles as the content-list
// public protocol (form A).
type Content struct {
	Role  string     `json:"role,omitempty"`
	Parts []WirePart `json:"parts"`
}

// WirePart carries text or base64 inline data on the wire.
type WirePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *WireInline `json:"inlineData,omitempty"`
}

// WireInline is the upstream inlineData shape.
type WireInline struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// GenerateRequest is the full upstream-internal request envelope.
type GenerateRequest struct {
	Project     string  `json:"project"`
	RequestID   string  `json:"requestId,omitempty"`
	Model       string  `json:"model,omitempty"`
	Request     Payload `json:"request"`
	UserAgent   string  `json:"userAgent,omitempty"`
	RequestType string  `json:"requestType,omitempty"`
}

// Payload is the request body inside the envelope.
type Payload struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
	Tools            []Tool            `json:"tools,omitempty"`
}

// GenerationConfig carries the sampling knobs upstream understands.
type GenerationConfig struct {
	Temperature     *float64     `json:"temperature,omitempty"`
	MaxOutputTokens *int         `json:"maxOutputTokens,omitempty"`
	ImageConfig     *ImageConfig `json:"imageConfig,omitempty"`
}

// ImageConfig selects the output aspect ratio for image generation.
type ImageConfig struct {
	AspectRatio string `json:"aspectRatio"`
}

// Tool is an upstream tool declaration. Only the search grounding tool is
// ever attached by this gateway.
type Tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

// ChatRequest is the simplified single-turn chat form. It cannot carry
// history, so it is only used for single-turn requests.
type ChatRequest struct {
	Project     string            `json:"project"`
	UserMessage string            `json:"userMessage"`
	Metadata    map[string]string `json:"metadata"`
}
