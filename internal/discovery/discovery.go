// Package discovery scans the local machine for existing Google OAuth
// credentials left behind by AI tooling, so they can be imported into the
// account pool without re-running the browser flow.
package discovery

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Credential is one discovered OAuth credential.
type Credential struct {
	Source       string `json:"source"`
	Email        string `json:"email,omitempty"`
	RefreshToken string `json:"refresh_token"`
	ProjectID    string `json:"project_id,omitempty"`
	ConfigPath   string `json:"config_path"`
}

// ScanError is one path that could not be read or parsed.
type ScanError struct {
	Source string `json:"source"`
	Path   string `json:"path"`
	Error  string `json:"error"`
}

// ScanResult aggregates one full scan.
type ScanResult struct {
	Credentials []Credential `json:"credentials"`
	Errors      []ScanError  `json:"errors,omitempty"`
}

// Source is one known credential location with its parser.
type Source struct {
	Name        string
	ConfigPaths []string
	parse       func(path string) (*Credential, error)
}

// Sources lists the known local credential locations.
var Sources = []Source{
	{
		Name: "antigravity",
		ConfigPaths: []string{
			"~/.gemini/antigravity/google_ai_credentials.json",
		},
		parse: parseAntigravity,
	},
	{
		Name: "gemini-cli",
		ConfigPaths: []string{
			"~/.config/gemini-cli/credentials.json",
			"~/.gemini-cli/credentials.json",
		},
		parse: parseGeminiCLI,
	},
}

// ScanAll walks every known source and collects importable credentials.
// Only records carrying a refresh token are returned; access tokens alone
// cannot seed a pooled account.
func ScanAll() *ScanResult {
	result := &ScanResult{
		Credentials: make([]Credential, 0),
		Errors:      make([]ScanError, 0),
	}
	for _, source := range Sources {
		for _, pattern := range source.ConfigPaths {
			matches, err := filepath.Glob(expandPath(pattern))
			if err != nil {
				result.Errors = append(result.Errors, ScanError{Source: source.Name, Path: pattern, Error: err.Error()})
				continue
			}
			for _, path := range matches {
				cred, err := source.parse(path)
				if err != nil {
					result.Errors = append(result.Errors, ScanError{Source: source.Name, Path: path, Error: err.Error()})
					continue
				}
				if cred == nil || cred.RefreshToken == "" {
					continue
				}
				log.Printf("🔍 Found credentials from %s: %s", source.Name, path)
				result.Credentials = append(result.Credentials, *cred)
			}
		}
	}
	log.Printf("🔍 Discovery: %d importable credential(s) across %d source(s)", len(result.Credentials), len(Sources))
	return result
}

// Masked returns a copy safe to expose over the API: refresh tokens are
// reduced to a short prefix.
func (c Credential) Masked() Credential {
	masked := c
	if len(masked.RefreshToken) > 8 {
		masked.RefreshToken = masked.RefreshToken[:8] + "..."
	}
	return masked
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func parseAntigravity(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		RefreshToken string `json:"refresh_token"`
		Email        string `json:"email"`
		ProjectID    string `json:"project_id"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	return &Credential{
		Source:       "antigravity",
		Email:        parsed.Email,
		RefreshToken: parsed.RefreshToken,
		ProjectID:    parsed.ProjectID,
		ConfigPath:   path,
	}, nil
}

func parseGeminiCLI(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		RefreshToken string `json:"refresh_token"`
		Email        string `json:"email"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	return &Credential{
		Source:       "gemini-cli",
		Email:        parsed.Email,
		RefreshToken: parsed.RefreshToken,
		ConfigPath:   path,
	}, nil
}
