package token

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/airewrite/antigravity-gateway/internal/store"
	"github.com/airewrite/antigravity-gateway/internal/upstream"
)

// fakeBackend stands in for both the identity provider and the upstream
// API. Behavior toggles let individual tests break specific probes.
type fakeBackend struct {
	tokenCalls    atomic.Int64
	projectCalls  atomic.Int64
	modelCalls    atomic.Int64
	userinfoCalls atomic.Int64

	failProject  bool
	failUserinfo bool
	emptyModels  bool
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "refreshed-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v1internal:loadCodeAssist", func(w http.ResponseWriter, r *http.Request) {
		f.projectCalls.Add(1)
		if f.failProject {
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"cloudaicompanionProject": "tenant-project-1",
			"paidTier":                map[string]string{"id": "g1-pro"},
		})
	})
	mux.HandleFunc("/v1internal:fetchAvailableModels", func(w http.ResponseWriter, r *http.Request) {
		f.modelCalls.Add(1)
		models := map[string]any{}
		if !f.emptyModels {
			models = map[string]any{
				"gemini-3-flash": map[string]any{
					"quotaInfo": map[string]any{"remainingFraction": 0.8},
				},
				"claude-sonnet-4-5": map[string]any{
					"quotaInfo": map[string]any{"remainingFraction": 1.0},
				},
				"imagen-internal": map[string]any{
					"quotaInfo": map[string]any{"remainingFraction": 1.0},
				},
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"models": models})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		f.userinfoCalls.Add(1)
		if f.failUserinfo {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"email": "pool@example.com",
			"name":  "Pool User",
		})
	})
	return mux
}

func newTestManager(t *testing.T, backend *fakeBackend) (*Manager, *store.Store) {
	t.Helper()

	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	client := upstream.NewClient()
	client.BaseURL = srv.URL + "/v1internal"
	client.UserinfoURL = srv.URL + "/userinfo"

	oauthCfg := &oauth2.Config{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		Endpoint:     oauth2.Endpoint{TokenURL: srv.URL + "/token"},
	}
	return NewManager(st, client, oauthCfg), st
}

func seedAccount(t *testing.T, st *store.Store, acc store.Account) {
	t.Helper()
	if err := st.Insert(acc); err != nil {
		t.Fatalf("insert account: %v", err)
	}
}

func TestResolveFreshTokenSkipsRefresh(t *testing.T) {
	backend := &fakeBackend{}
	mgr, st := newTestManager(t, backend)
	seedAccount(t, st, store.Account{
		ID:    "acc-1",
		Email: "a@example.com",
		Token: store.TokenRecord{
			AccessToken:     "live-token",
			RefreshToken:    "rt-1",
			ExpiryTimestamp: time.Now().Add(time.Hour).Unix(),
			ProjectID:       "cached-project",
		},
	})

	access, project, email, err := mgr.Resolve(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if access != "live-token" || project != "cached-project" || email != "a@example.com" {
		t.Fatalf("unexpected resolve result: %q %q %q", access, project, email)
	}
	if n := backend.tokenCalls.Load(); n != 0 {
		t.Fatalf("expected no refresh, got %d", n)
	}
	if n := backend.projectCalls.Load(); n != 0 {
		t.Fatalf("expected no project probes, got %d", n)
	}
}

func TestResolveRefreshesInsideSkewWindow(t *testing.T) {
	backend := &fakeBackend{}
	mgr, st := newTestManager(t, backend)
	// Expires in 200s, inside the 300s skew window
	seedAccount(t, st, store.Account{
		ID: "acc-1",
		Token: store.TokenRecord{
			AccessToken:     "stale-token",
			RefreshToken:    "rt-1",
			ExpiryTimestamp: time.Now().Add(200 * time.Second).Unix(),
			ProjectID:       "cached-project",
		},
	})

	access, _, _, err := mgr.Resolve(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if access != "refreshed-token" {
		t.Fatalf("expected refreshed token, got %q", access)
	}
	if n := backend.tokenCalls.Load(); n != 1 {
		t.Fatalf("expected 1 refresh call, got %d", n)
	}

	// Persisted expiry means the second resolve is a pure cache hit
	if _, _, _, err := mgr.Resolve(context.Background(), "acc-1"); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if n := backend.tokenCalls.Load(); n != 1 {
		t.Fatalf("expected refresh to be cached, got %d calls", n)
	}

	acc, _ := st.Get("acc-1")
	if acc.Token.AccessToken != "refreshed-token" {
		t.Fatal("refreshed token not persisted")
	}
	if acc.Token.RefreshToken != "rt-1" {
		t.Fatal("refresh token must not rotate without an upstream replacement")
	}
}

func TestResolveLazyProjectResolution(t *testing.T) {
	backend := &fakeBackend{}
	mgr, st := newTestManager(t, backend)
	seedAccount(t, st, store.Account{
		ID: "acc-1",
		Token: store.TokenRecord{
			AccessToken:     "live-token",
			RefreshToken:    "rt-1",
			ExpiryTimestamp: time.Now().Add(time.Hour).Unix(),
		},
	})

	_, project, _, err := mgr.Resolve(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if project != "tenant-project-1" {
		t.Fatalf("expected resolved project, got %q", project)
	}
	if n := backend.projectCalls.Load(); n != 1 {
		t.Fatalf("expected first variant to succeed, got %d probes", n)
	}

	acc, _ := st.Get("acc-1")
	if acc.Token.ProjectID != "tenant-project-1" {
		t.Fatal("project id not persisted")
	}
	if acc.Quota.SubscriptionTier != "g1-pro" {
		t.Fatalf("expected paid tier persisted, got %q", acc.Quota.SubscriptionTier)
	}

	// Resolution is one-shot: no further probes on subsequent resolves
	if _, _, _, err := mgr.Resolve(context.Background(), "acc-1"); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if n := backend.projectCalls.Load(); n != 1 {
		t.Fatalf("expected cached project, got %d probes", n)
	}
}

func TestResolvePlaceholderProjectFallback(t *testing.T) {
	backend := &fakeBackend{failProject: true}
	mgr, st := newTestManager(t, backend)
	seedAccount(t, st, store.Account{
		ID: "acc-1",
		Token: store.TokenRecord{
			AccessToken:     "live-token",
			RefreshToken:    "rt-1",
			ExpiryTimestamp: time.Now().Add(time.Hour).Unix(),
		},
	})

	_, project, _, err := mgr.Resolve(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if n := backend.projectCalls.Load(); n != int64(len(ideTypeVariants)) {
		t.Fatalf("expected %d probes, got %d", len(ideTypeVariants), n)
	}
	if !regexp.MustCompile(`^[a-z]+-[a-z]+-[a-z0-9]{5}$`).MatchString(project) {
		t.Fatalf("placeholder project has unexpected shape: %q", project)
	}

	acc, _ := st.Get("acc-1")
	if acc.Quota.SubscriptionTier != "free-tier" {
		t.Fatalf("expected free tier fallback, got %q", acc.Quota.SubscriptionTier)
	}
}

func TestResolveUnknownAccount(t *testing.T) {
	mgr, _ := newTestManager(t, &fakeBackend{})

	_, _, _, err := mgr.Resolve(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error for unknown account")
	}
	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("expected CredentialError, got %T: %v", err, err)
	}
}

func TestRegister(t *testing.T) {
	backend := &fakeBackend{}
	mgr, st := newTestManager(t, backend)

	id, email, err := mgr.Register(context.Background(), "rt-new")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if email != "pool@example.com" {
		t.Fatalf("unexpected email %q", email)
	}

	acc, ok := st.Get(id)
	if !ok {
		t.Fatal("registered account missing from store")
	}
	if acc.Token.RefreshToken != "rt-new" {
		t.Fatalf("refresh token not stored, got %q", acc.Token.RefreshToken)
	}
	if acc.Token.ProjectID != "tenant-project-1" {
		t.Fatalf("project not resolved at registration, got %q", acc.Token.ProjectID)
	}
	// Only gemini/claude/gpt families survive the model filter
	if len(acc.Quota.Models) != 2 {
		t.Fatalf("expected 2 filtered models, got %v", acc.Quota.Models)
	}
	if acc.Quota.Models[0].Name != "claude-sonnet-4-5" {
		t.Fatalf("expected sorted models, got %v", acc.Quota.Models)
	}
}

func TestRegisterSentinelIdentity(t *testing.T) {
	backend := &fakeBackend{failUserinfo: true}
	mgr, st := newTestManager(t, backend)

	id, email, err := mgr.Register(context.Background(), "rt-new")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if email != "unknown@gmail.com" {
		t.Fatalf("expected sentinel email, got %q", email)
	}
	acc, _ := st.Get(id)
	if acc.Name != "Unknown User" {
		t.Fatalf("expected sentinel name, got %q", acc.Name)
	}
}

func TestRefreshQuota(t *testing.T) {
	backend := &fakeBackend{}
	mgr, st := newTestManager(t, backend)
	seedAccount(t, st, store.Account{
		ID: "acc-1",
		Token: store.TokenRecord{
			AccessToken:     "live-token",
			RefreshToken:    "rt-1",
			ExpiryTimestamp: time.Now().Add(time.Hour).Unix(),
			ProjectID:       "cached-project",
		},
	})

	if err := mgr.RefreshQuota(context.Background(), "acc-1"); err != nil {
		t.Fatalf("RefreshQuota: %v", err)
	}
	acc, _ := st.Get("acc-1")
	if len(acc.Quota.Models) != 2 {
		t.Fatalf("expected quota snapshot, got %v", acc.Quota.Models)
	}

	// An empty probe result never clobbers the stored snapshot
	backend.emptyModels = true
	if err := mgr.RefreshQuota(context.Background(), "acc-1"); err != nil {
		t.Fatalf("RefreshQuota (empty): %v", err)
	}
	acc, _ = st.Get("acc-1")
	if len(acc.Quota.Models) != 2 {
		t.Fatalf("empty probe overwrote quota: %v", acc.Quota.Models)
	}
}
