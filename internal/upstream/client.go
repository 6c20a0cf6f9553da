// Package upstream is the HTTP client for the internal Cloud Code
// generation API that every pooled account is authorized against.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/airewrite/antigravity-gateway/internal/store"
	"github.com/airewrite/antigravity-gateway/internal/util"
)

const (
	// DefaultBaseURL is the production v1internal endpoint.
	DefaultBaseURL = "https://cloudcode-pa.googleapis.com/v1internal"

	// DefaultUserinfoURL is the Google userinfo probe used at registration.
	DefaultUserinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	// UserAgent must match the Antigravity desktop client.
	UserAgent = "antigravity/1.11.3 Darwin/arm64"

	// Generation is the latency-dominant operation, so its timeout is
	// materially longer than the auxiliary probe timeout.
	generateTimeout = 120 * time.Second
	probeTimeout    = 15 * time.Second
)

// Client talks to the v1internal API. BaseURL and UserinfoURL are settable
// for tests.
type Client struct {
	BaseURL     string
	UserinfoURL string

	gen   *http.Client
	probe *http.Client
}

// NewClient returns a client with the production endpoints and timeouts.
func NewClient() *Client {
	return &Client{
		BaseURL:     DefaultBaseURL,
		UserinfoURL: DefaultUserinfoURL,
		gen:         &http.Client{Timeout: generateTimeout},
		probe:       &http.Client{Timeout: probeTimeout},
	}
}

// GenerateContent calls v1internal:generateContent. The caller owns the
// response body.
func (c *Client) GenerateContent(ctx context.Context, accessToken string, payload any) (*http.Response, error) {
	return c.post(ctx, c.gen, "generateContent", accessToken, payload)
}

// GenerateChat calls v1internal:generateChat, the simplified single-turn
// chat endpoint.
func (c *Client) GenerateChat(ctx context.Context, accessToken string, payload any) (*http.Response, error) {
	return c.post(ctx, c.gen, "generateChat", accessToken, payload)
}

// ProjectInfo is the parsed result of a loadCodeAssist probe.
type ProjectInfo struct {
	ProjectID string
	Tier      string
}

// LoadCodeAssist probes v1internal:loadCodeAssist with one declared IDE
// identity and returns the tenant project and subscription tier. A missing
// project in an otherwise OK response is an error so the caller can try the
// next identity variant.
func (c *Client) LoadCodeAssist(ctx context.Context, accessToken, ideType string) (ProjectInfo, error) {
	resp, err := c.post(ctx, c.probe, "loadCodeAssist", accessToken, map[string]any{
		"metadata": map[string]string{"ideType": ideType},
	})
	if err != nil {
		return ProjectInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return ProjectInfo{}, fmt.Errorf("loadCodeAssist (%s): %d - %s", ideType, resp.StatusCode, util.TruncateBytes(body))
	}

	var parsed struct {
		CloudAICompanionProject string `json:"cloudaicompanionProject"`
		PaidTier                struct {
			ID string `json:"id"`
		} `json:"paidTier"`
		CurrentTier struct {
			ID string `json:"id"`
		} `json:"currentTier"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ProjectInfo{}, fmt.Errorf("loadCodeAssist (%s): decode: %w", ideType, err)
	}
	if parsed.CloudAICompanionProject == "" {
		return ProjectInfo{}, fmt.Errorf("loadCodeAssist (%s): no project in response", ideType)
	}

	tier := parsed.PaidTier.ID
	if tier == "" {
		tier = parsed.CurrentTier.ID
	}
	if tier == "" {
		tier = "free-tier"
	}
	return ProjectInfo{ProjectID: parsed.CloudAICompanionProject, Tier: tier}, nil
}

// FetchAvailableModels probes v1internal:fetchAvailableModels for the
// project and returns the per-model quota snapshot, sorted by name. Only
// the gemini/claude/gpt families are kept.
func (c *Client) FetchAvailableModels(ctx context.Context, accessToken, projectID string) ([]store.ModelQuota, error) {
	resp, err := c.post(ctx, c.probe, "fetchAvailableModels", accessToken, map[string]any{
		"project": projectID,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetchAvailableModels: %d - %s", resp.StatusCode, util.TruncateBytes(body))
	}

	var parsed struct {
		Models map[string]struct {
			QuotaInfo struct {
				RemainingFraction float64 `json:"remainingFraction"`
				ResetTime         string  `json:"resetTime"`
			} `json:"quotaInfo"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("fetchAvailableModels: decode: %w", err)
	}

	models := make([]store.ModelQuota, 0, len(parsed.Models))
	for name, info := range parsed.Models {
		lower := strings.ToLower(name)
		if !strings.Contains(lower, "gemini") && !strings.Contains(lower, "claude") && !strings.Contains(lower, "gpt") {
			continue
		}
		models = append(models, store.ModelQuota{
			Name:       name,
			Percentage: int(info.QuotaInfo.RemainingFraction * 100),
			ResetTime:  info.QuotaInfo.ResetTime,
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

// UserInfo probes the Google userinfo endpoint for the account identity.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (email, name string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UserinfoURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.probe.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("userinfo: %d", resp.StatusCode)
	}
	var parsed struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", fmt.Errorf("userinfo: decode: %w", err)
	}
	return parsed.Email, parsed.Name, nil
}

func (c *Client) post(ctx context.Context, hc *http.Client, method, accessToken string, payload any) (*http.Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", method, err)
	}
	if util.IsVerbose() {
		log.Printf("🔄 [VERBOSE] %s request: %s", method, util.TruncateBytes(raw))
	}

	url := fmt.Sprintf("%s:%s", c.BaseURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	return resp, nil
}
