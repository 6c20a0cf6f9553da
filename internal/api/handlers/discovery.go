package handlers

import (
	"log"
	"net/http"

	"github.com/airewrite/antigravity-gateway/internal/auth/token"
	"github.com/airewrite/antigravity-gateway/internal/discovery"
)

// ScanCredentialsHandler handles GET /api/discovery/scan. Refresh tokens
// are masked in the response.
func ScanCredentialsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := discovery.ScanAll()
		masked := make([]discovery.Credential, 0, len(result.Credentials))
		for _, cred := range result.Credentials {
			masked = append(masked, cred.Masked())
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"credentials": masked,
			"count":       len(masked),
			"errors":      result.Errors,
		})
	}
}

type importResult struct {
	Source string `json:"source"`
	Path   string `json:"config_path"`
	ID     string `json:"id,omitempty"`
	Email  string `json:"email,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ImportCredentialsHandler handles POST /api/discovery/import. It re-scans
// the local sources and registers every importable credential as a pooled
// account.
func ImportCredentialsHandler(mgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scan := discovery.ScanAll()
		results := make([]importResult, 0, len(scan.Credentials))
		imported := 0
		for _, cred := range scan.Credentials {
			res := importResult{Source: cred.Source, Path: cred.ConfigPath}
			id, email, err := mgr.Register(r.Context(), cred.RefreshToken)
			if err != nil {
				log.Printf("❌ Import from %s failed: %v", cred.ConfigPath, err)
				res.Error = err.Error()
			} else {
				res.ID = id
				res.Email = email
				imported++
			}
			results = append(results, res)
		}
		log.Printf("📥 Imported %d of %d discovered credential(s)", imported, len(scan.Credentials))
		writeJSON(w, http.StatusOK, map[string]any{
			"imported": imported,
			"results":  results,
		})
	}
}
