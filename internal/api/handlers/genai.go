package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/airewrite/antigravity-gateway/internal/monitor"
	"github.com/airewrite/antigravity-gateway/internal/router"
	"github.com/airewrite/antigravity-gateway/internal/store"
	"github.com/airewrite/antigravity-gateway/internal/translate"
)

// genaiRequest is the content-list request body.
type genaiRequest struct {
	Contents         []translate.Content `json:"contents"`
	GenerationConfig *genaiGenConfig     `json:"generationConfig"`
}

type genaiGenConfig struct {
	Temperature     *float64 `json:"temperature"`
	MaxOutputTokens *int     `json:"maxOutputTokens"`
}

// GenAIHandler handles /v1beta/models/{model}:generateContent
func GenAIHandler(rt *router.Router, mon *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, kind, status, err := genaiGenerate(rt, mon, r)
		if err != nil {
			writeGenAIError(w, routeErrorMessage(err), status)
			return
		}
		writeJSON(w, http.StatusOK, genaiPayload(res, kind))
	}
}

// GenAIStreamHandler handles /v1beta/models/{model}:streamGenerateContent.
// The upstream call is buffered; the client sees one data event with the
// whole response followed by the done marker.
func GenAIStreamHandler(rt *router.Router, mon *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, kind, status, err := genaiGenerate(rt, mon, r)
		if err != nil {
			writeGenAIError(w, routeErrorMessage(err), status)
			return
		}
		SetSSEHeaders(w)
		if err := translate.WriteEventStream(w, genaiPayload(res, kind)); err != nil {
			log.Printf("❌ GenAI stream write failed: %v", err)
		}
	}
}

// genaiGenerate runs the shared request path of both variants.
func genaiGenerate(rt *router.Router, mon *monitor.Monitor, r *http.Request) (*router.Result, translate.Kind, int, error) {
	start := time.Now()
	rawModel := chi.URLParam(r, "model")
	model, kind := translate.NormalizeModel(rawModel)

	var reqBody genaiRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		return nil, kind, http.StatusBadRequest, &translate.ProtocolError{Reason: "invalid request body"}
	}

	turns, err := translate.FromContents(reqBody.Contents)
	if err != nil {
		record(mon, "genai", model, kind, "", http.StatusBadRequest, start, err)
		return nil, kind, http.StatusBadRequest, err
	}
	if len(turns) == 0 {
		err := &translate.ProtocolError{Reason: "contents must not be empty"}
		record(mon, "genai", model, kind, "", http.StatusBadRequest, start, err)
		return nil, kind, http.StatusBadRequest, err
	}

	log.Printf("📨 GenAI request: model=%s kind=%s", model, kind)

	var cfg *translate.GenerationConfig
	if gc := reqBody.GenerationConfig; gc != nil {
		cfg = &translate.GenerationConfig{
			Temperature:     gc.Temperature,
			MaxOutputTokens: gc.MaxOutputTokens,
		}
	}

	res, err := rt.Route(r.Context(), turns, model, kind, cfg)
	if err != nil {
		status := statusForRouteError(err)
		record(mon, "genai", model, kind, "", status, start, err)
		return nil, kind, status, err
	}

	record(mon, "genai", model, kind, res.AccountEmail, http.StatusOK, start, nil)
	return res, kind, http.StatusOK, nil
}

type genaiModel struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

func genaiModelView(name string) genaiModel {
	return genaiModel{
		Name:                       "models/" + name,
		DisplayName:                name,
		SupportedGenerationMethods: []string{"generateContent", "streamGenerateContent"},
	}
}

// GenAIModelsHandler handles GET /v1beta/models with the pooled roster.
func GenAIModelsHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := st.ModelNames()
		models := make([]genaiModel, 0, len(names))
		for _, name := range names {
			models = append(models, genaiModelView(name))
		}
		writeJSON(w, http.StatusOK, map[string]any{"models": models})
	}
}

// GenAIModelHandler handles GET /v1beta/models/{model}.
func GenAIModelHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requested, _ := translate.NormalizeModel(chi.URLParam(r, "model"))
		for _, name := range st.ModelNames() {
			if name == requested {
				writeJSON(w, http.StatusOK, genaiModelView(name))
				return
			}
		}
		writeGenAIError(w, "model not found: "+requested, http.StatusNotFound)
	}
}

// genaiPayload shapes the routed result as a candidate response. Image
// results already carry the candidate envelope and pass through as is.
func genaiPayload(res *router.Result, kind translate.Kind) any {
	if kind == translate.KindImage && len(res.Raw) > 0 {
		return json.RawMessage(res.Raw)
	}
	return translate.WrapText(res.Text)
}
