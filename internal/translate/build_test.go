package translate

import (
	"strings"
	"testing"
)

func TestNormalizeModel(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantKind Kind
	}{
		{"gemini-3-flash", "gemini-3-flash", KindChat},
		{"models/gemini-3-flash", "gemini-3-flash", KindChat},
		{"gemini-3-flash-online", "gemini-3-flash", KindSearch},
		{"gemini-3-pro-image", "gemini-3-pro-image", KindImage},
		{"gemini-3-pro-image-16x9", "gemini-3-pro-image-16x9", KindImage},
		{"models/claude-sonnet-4-5", "claude-sonnet-4-5", KindChat},
	}
	for _, tt := range tests {
		name, kind := NormalizeModel(tt.in)
		if name != tt.wantName || kind != tt.wantKind {
			t.Errorf("NormalizeModel(%q) = %q, %v; want %q, %v", tt.in, name, kind, tt.wantName, tt.wantKind)
		}
	}
}

func userTurn(text string) Turn {
	return Turn{Role: RoleUser, Parts: []Part{{Text: text}}}
}

func TestBuildUpstreamSingleTurnUsesChatEndpoint(t *testing.T) {
	endpoint, payload := BuildUpstream([]Turn{userTurn("hi")}, "gemini-3-flash", "proj-1", KindChat, nil)
	if endpoint != EndpointGenerateChat {
		t.Fatalf("endpoint = %q", endpoint)
	}
	req, ok := payload.(ChatRequest)
	if !ok {
		t.Fatalf("payload type %T", payload)
	}
	if req.UserMessage != "hi" || req.Project != "proj-1" {
		t.Fatalf("chat request: %+v", req)
	}
	if req.Metadata["ideType"] != "ANTIGRAVITY" {
		t.Fatalf("metadata: %+v", req.Metadata)
	}
}

func TestBuildUpstreamMultiTurnUsesContents(t *testing.T) {
	turns := []Turn{
		userTurn("hi"),
		{Role: RoleModel, Parts: []Part{{Text: "hello"}}},
		userTurn("and?"),
	}
	endpoint, payload := BuildUpstream(turns, "gemini-3-flash", "proj-1", KindChat, nil)
	if endpoint != EndpointGenerateContent {
		t.Fatalf("endpoint = %q", endpoint)
	}
	req, ok := payload.(GenerateRequest)
	if !ok {
		t.Fatalf("payload type %T", payload)
	}
	if len(req.Request.Contents) != 3 {
		t.Fatalf("contents: %+v", req.Request.Contents)
	}
	if req.Model != "gemini-3-flash" {
		t.Fatalf("model: %q", req.Model)
	}
}

func TestBuildUpstreamSingleTurnWithConfigUsesContents(t *testing.T) {
	temp := 0.2
	cfg := &GenerationConfig{Temperature: &temp}
	endpoint, payload := BuildUpstream([]Turn{userTurn("hi")}, "gemini-3-flash", "proj-1", KindChat, cfg)
	if endpoint != EndpointGenerateContent {
		t.Fatalf("config must force the full form, got %q", endpoint)
	}
	req := payload.(GenerateRequest)
	if req.Request.GenerationConfig == nil || *req.Request.GenerationConfig.Temperature != 0.2 {
		t.Fatalf("config not carried: %+v", req.Request.GenerationConfig)
	}
}

func TestBuildUpstreamSearch(t *testing.T) {
	endpoint, payload := BuildUpstream([]Turn{userTurn("latest news")}, "gemini-3-flash", "proj-1", KindSearch, nil)
	if endpoint != EndpointGenerateContent {
		t.Fatalf("endpoint = %q", endpoint)
	}
	req := payload.(GenerateRequest)
	if len(req.Request.Tools) != 1 || req.Request.Tools[0].GoogleSearch == nil {
		t.Fatalf("search tool missing: %+v", req.Request.Tools)
	}
	if req.RequestType != "agent" {
		t.Fatalf("requestType: %q", req.RequestType)
	}
}

func TestBuildUpstreamImage(t *testing.T) {
	turns := []Turn{
		userTurn("ignored history"),
		userTurn("draw a lighthouse"),
	}
	endpoint, payload := BuildUpstream(turns, "gemini-3-pro-image-16x9", "proj-1", KindImage, nil)
	if endpoint != EndpointGenerateContent {
		t.Fatalf("endpoint = %q", endpoint)
	}
	req := payload.(GenerateRequest)
	if req.Model != ImageModel {
		t.Fatalf("image requests always use the base image model, got %q", req.Model)
	}
	if req.RequestType != "image_gen" || req.UserAgent != "antigravity" {
		t.Fatalf("envelope: %+v", req)
	}
	if !strings.HasPrefix(req.RequestID, "gen-") {
		t.Fatalf("requestId: %q", req.RequestID)
	}
	// Only the latest turn's parts go upstream
	if len(req.Request.Contents) != 1 || req.Request.Contents[0].Parts[0].Text != "draw a lighthouse" {
		t.Fatalf("contents: %+v", req.Request.Contents)
	}
	ic := req.Request.GenerationConfig.ImageConfig
	if ic == nil || ic.AspectRatio != "16:9" {
		t.Fatalf("aspect: %+v", ic)
	}
}

func TestBuildUpstreamImageDefaultAspect(t *testing.T) {
	_, payload := BuildUpstream([]Turn{userTurn("draw")}, "gemini-3-pro-image", "proj-1", KindImage, nil)
	req := payload.(GenerateRequest)
	if req.Request.GenerationConfig.ImageConfig.AspectRatio != "1:1" {
		t.Fatalf("default aspect: %+v", req.Request.GenerationConfig.ImageConfig)
	}
}
