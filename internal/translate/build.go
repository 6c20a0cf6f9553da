package translate

import (
	"strings"

	"github.com/google/uuid"
)

// Upstream endpoint methods.
const (
	EndpointGenerateContent = "generateContent"
	EndpointGenerateChat    = "generateChat"
)

// ImageModel is the only model that selects the image request kind.
const ImageModel = "gemini-3-pro-image"

// NormalizeModel strips routing suffixes from a caller-facing model name
// and derives the request kind from caller intent: image kind only when the
// image model is named explicitly, search kind for the -online suffix.
func NormalizeModel(model string) (string, Kind) {
	model = strings.TrimPrefix(model, "models/")
	search := false
	if strings.Contains(model, "-online") {
		search = true
		model = strings.ReplaceAll(model, "-online", "")
	}
	if strings.Contains(model, ImageModel) {
		return model, KindImage
	}
	if search {
		return model, KindSearch
	}
	return model, KindChat
}

// BuildUpstream shapes canonical turns into the concrete upstream call for
// a request kind. It returns the endpoint method and the payload to post.
func BuildUpstream(turns []Turn, model, projectID string, kind Kind, cfg *GenerationConfig) (string, any) {
	switch kind {
	case KindImage:
		return EndpointGenerateContent, buildImageRequest(turns, model, projectID)
	case KindSearch:
		return EndpointGenerateContent, GenerateRequest{
			Project: projectID,
			Model:   model,
			Request: Payload{
				Contents:         ToContents(turns),
				GenerationConfig: cfg,
				Tools:            []Tool{{GoogleSearch: &struct{}{}}},
			},
			RequestType: "agent",
		}
	default:
		return buildChatRequest(turns, model, projectID, cfg)
	}
}

// buildChatRequest prefers the simplified chat form for single-turn
// histories; multi-turn histories always use the full contents form since
// the simplified form cannot carry history.
func buildChatRequest(turns []Turn, model, projectID string, cfg *GenerationConfig) (string, any) {
	if len(turns) == 1 && cfg == nil {
		return EndpointGenerateChat, ChatRequest{
			Project:     projectID,
			UserMessage: firstText(turns[len(turns)-1].Parts),
			Metadata:    map[string]string{"ideType": "ANTIGRAVITY"},
		}
	}
	return EndpointGenerateContent, GenerateRequest{
		Project: projectID,
		Model:   model,
		Request: Payload{
			Contents:         ToContents(turns),
			GenerationConfig: cfg,
		},
	}
}

// buildImageRequest uses only the latest turn's parts; an aspect-ratio
// suffix on the model name selects the output shape.
func buildImageRequest(turns []Turn, model, projectID string) GenerateRequest {
	aspect := "1:1"
	switch {
	case strings.Contains(model, "16x9"):
		aspect = "16:9"
	case strings.Contains(model, "9x16"):
		aspect = "9:16"
	case strings.Contains(model, "4x3"):
		aspect = "4:3"
	case strings.Contains(model, "3x4"):
		aspect = "3:4"
	}

	var parts []WirePart
	if len(turns) > 0 {
		parts = toWireParts(turns[len(turns)-1].Parts)
	}
	return GenerateRequest{
		Project:   projectID,
		RequestID: "gen-" + uuid.New().String(),
		Model:     ImageModel,
		Request: Payload{
			Contents: []Content{{Parts: parts}},
			GenerationConfig: &GenerationConfig{
				ImageConfig: &ImageConfig{AspectRatio: aspect},
			},
		},
		UserAgent:   "antigravity",
		RequestType: "image_gen",
	}
}

func firstText(parts []Part) string {
	for _, p := range parts {
		if p.Inline == nil {
			return p.Text
		}
	}
	return ""
}
