package store

// Account is one pooled OAuth identity plus its cached token and quota
// snapshot. JSON field names match the on-disk account files.
type Account struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Token     TokenRecord `json:"token"`
	Quota     QuotaRecord `json:"quota"`
	CreatedAt int64       `json:"created_at"`
	LastUsed  int64       `json:"last_used"`
}

// TokenRecord holds the OAuth tokens and the lazily resolved project id.
// RefreshToken never changes once registered unless a re-authorization
// explicitly supplies a new one. ProjectID is resolved once and then
// treated as immutable.
type TokenRecord struct {
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
	ExpiresIn       int64  `json:"expires_in,omitempty"`
	ExpiryTimestamp int64  `json:"expiry_timestamp"` // unix seconds
	TokenType       string `json:"token_type,omitempty"`
	Email           string `json:"email,omitempty"`
	ProjectID       string `json:"project_id,omitempty"`
}

// QuotaRecord is an advisory per-account quota snapshot. The router never
// consults it for candidate selection; it is only surfaced to callers.
type QuotaRecord struct {
	Models           []ModelQuota `json:"models"`
	LastUpdated      int64        `json:"last_updated"`
	SubscriptionTier string       `json:"subscription_tier,omitempty"`
}

// ModelQuota is one model's remaining quota as reported by upstream.
type ModelQuota struct {
	Name       string `json:"name"`
	Percentage int    `json:"percentage"`
	ResetTime  string `json:"reset_time,omitempty"`
}

// clone returns a deep copy safe to hand out without holding the store lock.
func (a Account) clone() Account {
	c := a
	if a.Quota.Models != nil {
		c.Quota.Models = make([]ModelQuota, len(a.Quota.Models))
		copy(c.Quota.Models, a.Quota.Models)
	}
	return c
}
