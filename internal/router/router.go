// Package router dispatches one translated request across the credential
// pool: a uniformly shuffled pass over the accounts, one attempt per
// candidate, first success wins.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"

	"github.com/airewrite/antigravity-gateway/internal/logging"
	"github.com/airewrite/antigravity-gateway/internal/translate"
	"github.com/airewrite/antigravity-gateway/internal/upstream"
	"github.com/airewrite/antigravity-gateway/internal/util"
)

// Pool supplies the candidate account ids. Selection is stateless by
// design: a failing account is retried on the very next unrelated call.
type Pool interface {
	IDs() []string
}

// Resolver turns an account id into a usable access token and project id.
type Resolver interface {
	Resolve(ctx context.Context, accountID string) (accessToken, projectID, email string, err error)
}

// Result is the routed response: Text for extracted generations, Raw for
// passthrough bodies such as image output.
type Result struct {
	Text         string
	Raw          json.RawMessage
	AccountEmail string
}

// UpstreamError records one candidate's non-success response or transport
// failure. It is held as the "last error" while the loop continues.
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream call failed: %v", e.Err)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Status, util.TruncateLog(e.Body, 200))
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ExhaustedPoolError is terminal: every candidate failed or none existed.
// It carries the last recorded upstream error for diagnostics.
type ExhaustedPoolError struct {
	Attempts int
	Last     *UpstreamError
}

func (e *ExhaustedPoolError) Error() string {
	if e.Last == nil {
		return "no valid accounts in pool"
	}
	return fmt.Sprintf("all %d accounts failed, last error: %v", e.Attempts, e.Last)
}

func (e *ExhaustedPoolError) Unwrap() error {
	if e.Last == nil {
		return nil
	}
	return e.Last
}

// Router iterates a shuffled view of the pool per call.
type Router struct {
	pool    Pool
	tokens  Resolver
	client  *upstream.Client
	shuffle func([]string)
}

// New builds a Router over the given pool, token resolver and upstream
// client.
func New(pool Pool, tokens Resolver, client *upstream.Client) *Router {
	return &Router{
		pool:   pool,
		tokens: tokens,
		client: client,
		shuffle: func(ids []string) {
			rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		},
	}
}

// Route shapes the turns per request kind and tries each candidate once,
// in permuted order. Credential failures skip the candidate without
// counting as an upstream failure; the first 2xx response short-circuits.
func (r *Router) Route(ctx context.Context, turns []translate.Turn, model string, kind translate.Kind, cfg *translate.GenerationConfig) (*Result, error) {
	ids := r.pool.IDs()
	if len(ids) == 0 {
		return nil, &ExhaustedPoolError{}
	}
	r.shuffle(ids)

	reqID := logging.RequestID(ctx)
	var last *UpstreamError
	for _, id := range ids {
		accessToken, projectID, email, err := r.tokens.Resolve(ctx, id)
		if err != nil {
			log.Printf("⚠️ [%s] Skipping account %s: %v", reqID, id, err)
			continue
		}

		endpoint, payload := translate.BuildUpstream(turns, model, projectID, kind, cfg)
		var resp *http.Response
		if endpoint == translate.EndpointGenerateChat {
			resp, err = r.client.GenerateChat(ctx, accessToken, payload)
		} else {
			resp, err = r.client.GenerateContent(ctx, accessToken, payload)
		}
		if err != nil {
			log.Printf("⚠️ [%s] Transport failure for %s: %v", reqID, email, err)
			last = &UpstreamError{Err: err}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			last = &UpstreamError{Status: resp.StatusCode, Err: readErr}
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			log.Printf("✅ [%s] Success with account %s (%s, kind %s)", reqID, email, model, kind)
			return parseResult(body, kind, email), nil
		}

		log.Printf("⚠️ [%s] Account %s returned %d: %s", reqID, email, resp.StatusCode, util.TruncateBytes(body))
		last = &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}
	return nil, &ExhaustedPoolError{Attempts: len(ids), Last: last}
}

// parseResult extracts text for chat and search responses and passes image
// bodies through untouched, unwrapping the response envelope.
func parseResult(body []byte, kind translate.Kind, email string) *Result {
	if kind == translate.KindImage {
		return &Result{Raw: translate.UnwrapResponse(body), AccountEmail: email}
	}
	ex := translate.ExtractText(body)
	if ex.Raw != nil {
		return &Result{Raw: ex.Raw, AccountEmail: email}
	}
	return &Result{Text: translate.StripArticleMarkers(ex.Text), AccountEmail: email}
}
