package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/airewrite/antigravity-gateway/internal/agent"
	"github.com/airewrite/antigravity-gateway/internal/monitor"
	"github.com/airewrite/antigravity-gateway/internal/router"
	"github.com/airewrite/antigravity-gateway/internal/translate"
)

// DefaultAgentModel backs smart requests that name no model.
const DefaultAgentModel = "gemini-3-flash"

type smartRequest struct {
	Query string `json:"query"`
	Model string `json:"model"`
}

type smartResponse struct {
	Mode     string `json:"mode"`
	Response string `json:"response"`
}

var (
	imageKeywords  = []string{"draw", "paint", "image of", "picture of", "illustration"}
	toolKeywords   = []string{"current time", "what time", "http://", "https://", "calculate", "compute", "evaluate"}
	searchKeywords = []string{"search", "latest", "news", "today's", "current price"}
)

func matchAny(query string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(query, k) {
			return true
		}
	}
	return false
}

// classifyQuery picks the handling mode from the query text.
func classifyQuery(query string) string {
	q := strings.ToLower(query)
	switch {
	case matchAny(q, imageKeywords):
		return "image"
	case matchAny(q, toolKeywords):
		return "agent"
	case matchAny(q, searchKeywords):
		return "search"
	}
	return "chat"
}

// SmartAgentHandler handles /v1/agent/smart: it inspects the query and
// dispatches to image generation, the tool loop, grounded search or a
// plain chat call.
func SmartAgentHandler(rt *router.Router, loop *agent.Loop, mon *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var reqBody smartRequest
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			writeOpenAIError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(reqBody.Query) == "" {
			writeOpenAIError(w, "query must not be empty", http.StatusBadRequest)
			return
		}

		model := reqBody.Model
		if model == "" {
			model = DefaultAgentModel
		}
		mode := classifyQuery(reqBody.Query)
		turns := []translate.Turn{{
			Role:  translate.RoleUser,
			Parts: []translate.Part{{Text: reqBody.Query}},
		}}

		log.Printf("🤖 Smart request: mode=%s model=%s", mode, model)

		var (
			answer string
			kind   = translate.KindChat
			err    error
		)
		switch mode {
		case "image":
			kind = translate.KindImage
			var res *router.Result
			res, err = rt.Route(r.Context(), turns, translate.ImageModel, kind, nil)
			if err == nil {
				answer = chatContent(res, kind)
			}
		case "agent":
			answer, err = loop.Run(r.Context(), turns, model)
		case "search":
			kind = translate.KindSearch
			var res *router.Result
			res, err = rt.Route(r.Context(), turns, model, kind, nil)
			if err == nil {
				answer = res.Text
			}
		default:
			var res *router.Result
			res, err = rt.Route(r.Context(), turns, model, kind, nil)
			if err == nil {
				answer = res.Text
			}
		}

		if err != nil {
			status := statusForRouteError(err)
			record(mon, "smart", model, kind, "", status, start, err)
			writeOpenAIError(w, routeErrorMessage(err), status)
			return
		}
		record(mon, "smart", model, kind, "", http.StatusOK, start, nil)
		writeJSON(w, http.StatusOK, smartResponse{Mode: mode, Response: answer})
	}
}
