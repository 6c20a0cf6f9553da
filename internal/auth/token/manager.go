// Package token drives the per-account token lifecycle on demand: refresh
// when expiring, resolve the tenant project once, persist through the store.
// There is no background timer; every transition happens inside a caller's
// Resolve.
package token

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/airewrite/antigravity-gateway/internal/store"
	"github.com/airewrite/antigravity-gateway/internal/upstream"
)

// RefreshSkew is how long before expiry a token is already treated as
// expiring.
const RefreshSkew = 300 * time.Second

// ideTypeVariants are the client-identity probes tried in order against
// loadCodeAssist until one yields a project.
var ideTypeVariants = []string{"ANTIGRAVITY", "VSCODE", "INTELLIJ"}

// CredentialError marks an account as unusable for the current attempt
// only; the account is never removed automatically.
type CredentialError struct {
	AccountID string
	Err       error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential error for account %s: %v", e.AccountID, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// Manager composes refresh and project resolution per account.
type Manager struct {
	store  *store.Store
	client *upstream.Client
	oauth  *oauth2.Config
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager wires the manager to its store, upstream client and OAuth
// config.
func NewManager(st *store.Store, client *upstream.Client, oauthCfg *oauth2.Config) *Manager {
	return &Manager{
		store:  st,
		client: client,
		oauth:  oauthCfg,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockFor returns the per-account mutex serializing refresh and project
// resolution, so two concurrent callers for the same account do not both
// hit the identity provider.
func (m *Manager) lockFor(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lk, ok := m.locks[id]
	if !ok {
		lk = &sync.Mutex{}
		m.locks[id] = lk
	}
	return lk
}

func (m *Manager) expiring(t store.TokenRecord) bool {
	return m.now().Unix() >= t.ExpiryTimestamp-int64(RefreshSkew/time.Second)
}

// Resolve returns a currently-usable access token and the resolved project
// id for the account, refreshing and resolving as needed. Each state change
// is persisted exactly once via the store.
func (m *Manager) Resolve(ctx context.Context, accountID string) (accessToken, projectID, email string, err error) {
	acc, ok := m.store.Get(accountID)
	if !ok {
		return "", "", "", &CredentialError{AccountID: accountID, Err: store.ErrNotFound}
	}
	accessToken = acc.Token.AccessToken
	projectID = acc.Token.ProjectID
	email = acc.Email

	if m.expiring(acc.Token) {
		accessToken, err = m.refreshAccount(ctx, accountID)
		if err != nil {
			return "", "", "", err
		}
	}

	if projectID == "" {
		projectID, err = m.resolveAccountProject(ctx, accountID, accessToken)
		if err != nil {
			return "", "", "", err
		}
	}
	return accessToken, projectID, email, nil
}

// refreshAccount performs the refresh exchange under the per-account lock.
// The expiry check is re-evaluated after acquiring the lock: a second
// concurrent caller observes the first one's update and skips its own
// refresh.
func (m *Manager) refreshAccount(ctx context.Context, accountID string) (string, error) {
	lk := m.lockFor(accountID)
	lk.Lock()
	defer lk.Unlock()

	acc, ok := m.store.Get(accountID)
	if !ok {
		return "", &CredentialError{AccountID: accountID, Err: store.ErrNotFound}
	}
	if !m.expiring(acc.Token) {
		return acc.Token.AccessToken, nil
	}

	tok, err := m.refresh(ctx, acc.Token.RefreshToken)
	if err != nil {
		return "", &CredentialError{AccountID: accountID, Err: err}
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = m.now().Add(time.Hour)
	}
	err = m.store.Put(accountID, func(a *store.Account) {
		a.Token.AccessToken = tok.AccessToken
		a.Token.ExpiryTimestamp = expiry.Unix()
		a.Token.ExpiresIn = int64(time.Until(expiry) / time.Second)
		// refresh_token only changes when upstream explicitly rotates it
		if tok.RefreshToken != "" && tok.RefreshToken != a.Token.RefreshToken {
			log.Printf("🔄 Rotating refresh token for %s", a.Email)
			a.Token.RefreshToken = tok.RefreshToken
		}
		a.LastUsed = m.now().Unix()
	})
	if err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}
	log.Printf("✅ Refreshed token for %s (expires %s)", acc.Email, expiry.Format(time.RFC3339))
	return tok.AccessToken, nil
}

// resolveAccountProject probes the identity variants under the per-account
// lock, with the same double-check discipline as refreshAccount. project_id
// is immutable after its first successful resolution.
func (m *Manager) resolveAccountProject(ctx context.Context, accountID, accessToken string) (string, error) {
	lk := m.lockFor(accountID)
	lk.Lock()
	defer lk.Unlock()

	acc, ok := m.store.Get(accountID)
	if !ok {
		return "", &CredentialError{AccountID: accountID, Err: store.ErrNotFound}
	}
	if acc.Token.ProjectID != "" {
		return acc.Token.ProjectID, nil
	}

	info := m.resolveProject(ctx, accessToken)
	err := m.store.Put(accountID, func(a *store.Account) {
		a.Token.ProjectID = info.ProjectID
		a.Quota.SubscriptionTier = info.Tier
	})
	if err != nil {
		return "", fmt.Errorf("persist project id: %w", err)
	}
	log.Printf("✅ Resolved project %s (tier %s) for %s", info.ProjectID, info.Tier, acc.Email)
	return info.ProjectID, nil
}

// resolveProject tries the ordered identity variants and falls back to a
// locally generated placeholder project with the free tier. The fallback is
// a named branch, not an error: callers always get a project id.
func (m *Manager) resolveProject(ctx context.Context, accessToken string) upstream.ProjectInfo {
	for _, ide := range ideTypeVariants {
		info, err := m.client.LoadCodeAssist(ctx, accessToken, ide)
		if err == nil {
			return info
		}
		log.Printf("⚠️ Project probe failed (%s): %v", ide, err)
	}
	return upstream.ProjectInfo{ProjectID: placeholderProjectID(), Tier: "free-tier"}
}

// Register exchanges a long-lived refresh token for a new pooled account:
// initial access token, best-effort identity probe, project and tier
// resolution, model/quota probe, persist, reload.
func (m *Manager) Register(ctx context.Context, refreshToken string) (accountID, email string, err error) {
	tok, err := m.refresh(ctx, refreshToken)
	if err != nil {
		return "", "", fmt.Errorf("refresh exchange failed: %w", err)
	}

	email = "unknown@gmail.com"
	name := "Unknown User"
	if e, n, uerr := m.client.UserInfo(ctx, tok.AccessToken); uerr == nil {
		if e != "" {
			email = e
		}
		if n != "" {
			name = n
		}
	} else {
		log.Printf("⚠️ Userinfo probe failed, keeping sentinel identity: %v", uerr)
	}

	info := m.resolveProject(ctx, tok.AccessToken)

	models, merr := m.client.FetchAvailableModels(ctx, tok.AccessToken, info.ProjectID)
	if merr != nil {
		log.Printf("⚠️ Model probe failed, using defaults: %v", merr)
	}
	if len(models) == 0 {
		models = defaultRegistrationModels()
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = m.now().Add(time.Hour)
	}
	accountID = uuid.New().String()
	now := m.now().Unix()
	acc := store.Account{
		ID:    accountID,
		Email: email,
		Name:  name,
		Token: store.TokenRecord{
			AccessToken:     tok.AccessToken,
			RefreshToken:    refreshToken,
			ExpiresIn:       int64(time.Until(expiry) / time.Second),
			ExpiryTimestamp: expiry.Unix(),
			TokenType:       "Bearer",
			Email:           email,
			ProjectID:       info.ProjectID,
		},
		Quota: store.QuotaRecord{
			Models:           models,
			LastUpdated:      now,
			SubscriptionTier: info.Tier,
		},
		CreatedAt: now,
		LastUsed:  now,
	}
	if err := m.store.Insert(acc); err != nil {
		return "", "", err
	}
	if err := m.store.Load(); err != nil {
		return "", "", err
	}
	log.Printf("✅ Registered account %s (id %s)", email, accountID)
	return accountID, email, nil
}

// RefreshQuota re-probes the model/quota set for one account and persists
// it. Quota is mutated only here, never implicitly.
func (m *Manager) RefreshQuota(ctx context.Context, accountID string) error {
	accessToken, projectID, _, err := m.Resolve(ctx, accountID)
	if err != nil {
		return err
	}
	models, err := m.client.FetchAvailableModels(ctx, accessToken, projectID)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return nil
	}
	return m.store.Put(accountID, func(a *store.Account) {
		a.Quota.Models = models
		a.Quota.LastUpdated = m.now().Unix()
	})
}

// refresh performs the grant_type=refresh_token exchange against the
// identity provider.
func (m *Manager) refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, errors.New("empty refresh token")
	}
	src := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return src.Token()
}

func defaultRegistrationModels() []store.ModelQuota {
	return []store.ModelQuota{
		{Name: "gemini-3-flash", Percentage: 100},
		{Name: "gemini-3-pro-high", Percentage: 100},
		{Name: "gemini-3-pro-low", Percentage: 100},
		{Name: "gemini-3-pro-image", Percentage: 100},
		{Name: "claude-sonnet-4-5", Percentage: 100},
	}
}

// placeholderProjectID generates an adjective-noun-suffix project id used
// when every resolution variant fails.
func placeholderProjectID() string {
	adjectives := []string{"useful", "bright", "swift", "calm", "bold"}
	nouns := []string{"fuze", "wave", "spark", "flow", "core"}
	const chars = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffix := make([]byte, 5)
	for i := range suffix {
		suffix[i] = chars[rand.Intn(len(chars))]
	}
	return fmt.Sprintf("%s-%s-%s", adjectives[rand.Intn(len(adjectives))], nouns[rand.Intn(len(nouns))], suffix)
}
