package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"

	"github.com/airewrite/antigravity-gateway/internal/auth/token"
	"github.com/airewrite/antigravity-gateway/internal/store"
)

type accountView struct {
	ID        string             `json:"id"`
	Email     string             `json:"email"`
	Name      string             `json:"name,omitempty"`
	ProjectID string             `json:"project_id,omitempty"`
	Models    []store.ModelQuota `json:"models,omitempty"`
	Tier      string             `json:"tier,omitempty"`
	CreatedAt int64              `json:"created_at"`
	LastUsed  int64              `json:"last_used,omitempty"`
}

// AccountsHandler handles GET /api/accounts
func AccountsHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts := st.List()
		views := make([]accountView, 0, len(accounts))
		for _, acc := range accounts {
			views = append(views, accountView{
				ID:        acc.ID,
				Email:     acc.Email,
				Name:      acc.Name,
				ProjectID: acc.Token.ProjectID,
				Models:    acc.Quota.Models,
				Tier:      acc.Quota.SubscriptionTier,
				CreatedAt: acc.CreatedAt,
				LastUsed:  acc.LastUsed,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"accounts": views,
			"count":    len(views),
		})
	}
}

// RegisterAccountHandler handles POST /api/accounts with a raw refresh
// token, the headless alternative to the browser flow.
func RegisterAccountHandler(mgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reqBody struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil || strings.TrimSpace(reqBody.RefreshToken) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "refresh_token is required"})
			return
		}

		id, email, err := mgr.Register(r.Context(), reqBody.RefreshToken)
		if err != nil {
			log.Printf("❌ Account registration failed: %v", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id, "email": email})
	}
}

// DeleteAccountHandler handles DELETE /api/accounts/{id}
func DeleteAccountHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		removed, err := st.Delete(id)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if !removed {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "account not found"})
			return
		}
		log.Printf("🗑️ Removed account %s", id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// RefreshQuotaHandler handles POST /api/accounts/{id}/refresh
func RefreshQuotaHandler(mgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := mgr.RefreshQuota(r.Context(), id); err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, store.ErrNotFound) {
				status = http.StatusNotFound
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
	}
}

// RefreshPoolHandler handles POST /api/accounts/refresh. With no ids in
// the body every pooled account is re-probed.
func RefreshPoolHandler(st *store.Store, mgr *token.Manager) http.HandlerFunc {
	type refreshResult struct {
		ID    string `json:"id"`
		Error string `json:"error,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var reqBody struct {
			IDs []string `json:"ids"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&reqBody)
		}
		ids := reqBody.IDs
		if len(ids) == 0 {
			ids = st.IDs()
		}

		results := make([]refreshResult, 0, len(ids))
		refreshed := 0
		for _, id := range ids {
			res := refreshResult{ID: id}
			if err := mgr.RefreshQuota(r.Context(), id); err != nil {
				res.Error = err.Error()
			} else {
				refreshed++
			}
			results = append(results, res)
		}
		log.Printf("🔄 Quota refresh: %d of %d account(s)", refreshed, len(ids))
		writeJSON(w, http.StatusOK, map[string]any{
			"refreshed": refreshed,
			"results":   results,
		})
	}
}

// LoginHandler starts the browser OAuth flow.
func LoginHandler(oauthCfg *oauth2.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := oauthCfg.AuthCodeURL("state",
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("prompt", "consent"),
		)
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
	}
}

// CallbackHandler finishes the browser OAuth flow and registers the
// account behind the granted refresh token.
func CallbackHandler(oauthCfg *oauth2.Config, mgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing authorization code"})
			return
		}

		tok, err := oauthCfg.Exchange(r.Context(), code)
		if err != nil {
			log.Printf("❌ OAuth exchange failed: %v", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "token exchange failed"})
			return
		}
		if tok.RefreshToken == "" {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "no refresh token granted, revoke access and retry"})
			return
		}

		id, email, err := mgr.Register(r.Context(), tok.RefreshToken)
		if err != nil {
			log.Printf("❌ Account registration failed: %v", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("✅ Registered account %s (%s)", email, id)
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "email": email})
	}
}
