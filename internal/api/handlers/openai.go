package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/airewrite/antigravity-gateway/internal/agent"
	"github.com/airewrite/antigravity-gateway/internal/monitor"
	"github.com/airewrite/antigravity-gateway/internal/router"
	"github.com/airewrite/antigravity-gateway/internal/store"
	"github.com/airewrite/antigravity-gateway/internal/translate"
)

type chatRequest struct {
	Model       string              `json:"model"`
	Messages    []translate.Message `json:"messages"`
	Stream      bool                `json:"stream"`
	Temperature *float64            `json:"temperature"`
	MaxTokens   *int                `json:"max_tokens"`
}

type chatChoice struct {
	Index        int          `json:"index"`
	Message      *chatMessage `json:"message,omitempty"`
	Delta        *chatMessage `json:"delta,omitempty"`
	FinishReason string       `json:"finish_reason"`
}

type chatMessage struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
}

// AgentModelAlias is the chat-completions model name that routes the
// conversation through the tool loop instead of a single upstream call.
const AgentModelAlias = "smart-agent"

// OpenAIChatHandler handles /v1/chat/completions. Streaming requests are
// emulated: the full upstream answer goes out as a single delta chunk.
// Requests naming the agent alias model run the tool loop.
func OpenAIChatHandler(rt *router.Router, loop *agent.Loop, mon *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var reqBody chatRequest
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			writeOpenAIError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		model, kind := translate.NormalizeModel(reqBody.Model)

		turns, err := translate.FromMessages(reqBody.Messages)
		if err != nil {
			record(mon, "openai", model, kind, "", http.StatusBadRequest, start, err)
			writeOpenAIError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(turns) == 0 {
			writeOpenAIError(w, "messages must not be empty", http.StatusBadRequest)
			return
		}

		log.Printf("📨 Chat request: model=%s kind=%s stream=%v", model, kind, reqBody.Stream)

		if reqBody.Model == AgentModelAlias {
			answer, err := loop.Run(r.Context(), turns, DefaultAgentModel)
			if err != nil {
				status := statusForRouteError(err)
				record(mon, "openai", reqBody.Model, translate.KindChat, "", status, start, err)
				writeOpenAIError(w, routeErrorMessage(err), status)
				return
			}
			record(mon, "openai", reqBody.Model, translate.KindChat, "", http.StatusOK, start, nil)
			if reqBody.Stream {
				writeChatStream(w, reqBody.Model, answer)
				return
			}
			writeJSON(w, http.StatusOK, chatResponse{
				ID:      "chatcmpl-" + uuid.New().String(),
				Object:  "chat.completion",
				Created: time.Now().Unix(),
				Model:   reqBody.Model,
				Choices: []chatChoice{{
					Message:      &chatMessage{Role: "assistant", Content: answer},
					FinishReason: "stop",
				}},
				Usage: &chatUsage{
					CompletionTokens: len(answer),
					TotalTokens:      len(answer),
				},
			})
			return
		}

		var cfg *translate.GenerationConfig
		if reqBody.Temperature != nil || reqBody.MaxTokens != nil {
			cfg = &translate.GenerationConfig{
				Temperature:     reqBody.Temperature,
				MaxOutputTokens: reqBody.MaxTokens,
			}
		}

		res, err := rt.Route(r.Context(), turns, model, kind, cfg)
		if err != nil {
			status := statusForRouteError(err)
			record(mon, "openai", model, kind, "", status, start, err)
			writeOpenAIError(w, routeErrorMessage(err), status)
			return
		}
		record(mon, "openai", model, kind, res.AccountEmail, http.StatusOK, start, nil)

		content := chatContent(res, kind)
		if reqBody.Stream {
			writeChatStream(w, reqBody.Model, content)
			return
		}
		writeJSON(w, http.StatusOK, chatResponse{
			ID:      "chatcmpl-" + uuid.New().String(),
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   reqBody.Model,
			Choices: []chatChoice{{
				Message:      &chatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			}},
			Usage: &chatUsage{
				CompletionTokens: len(content),
				TotalTokens:      len(content),
			},
		})
	}
}

// chatContent renders a routed result as message content. Image results
// become a markdown data URI so chat clients can display them inline.
func chatContent(res *router.Result, kind translate.Kind) string {
	if kind == translate.KindImage {
		if mime, data, ok := translate.ExtractInlineImage(res.Raw); ok {
			return fmt.Sprintf("![image](data:%s;base64,%s)", mime, data)
		}
	}
	return res.Text
}

// writeChatStream emits the two-event emulated stream: one chunk with
// the whole content, then the done marker.
func writeChatStream(w http.ResponseWriter, model, content string) {
	SetSSEHeaders(w)
	chunk := chatResponse{
		ID:      "chatcmpl-" + uuid.New().String(),
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []chatChoice{{
			Delta:        &chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
	}
	if err := translate.WriteEventStream(w, chunk); err != nil {
		log.Printf("❌ Chat stream write failed: %v", err)
	}
}

// OpenAIModelsHandler handles /v1/models with the pooled model roster.
func OpenAIModelsHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := st.ModelNames()
		data := make([]map[string]any, 0, len(names))
		for _, name := range names {
			data = append(data, map[string]any{
				"id":       name,
				"object":   "model",
				"created":  time.Now().Unix(),
				"owned_by": "google",
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"object": "list",
			"data":   data,
		})
	}
}
