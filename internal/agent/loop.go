package agent

import (
	"context"
	"fmt"
	"regexp"

	"github.com/airewrite/antigravity-gateway/internal/router"
	"github.com/airewrite/antigravity-gateway/internal/translate"
)

// MaxTurns bounds how many model calls a single agent run may make.
const MaxTurns = 5

// MaxTurnsMessage is returned as the final answer when the loop runs out
// of turns with a tool call still pending.
const MaxTurnsMessage = "Agent reached maximum turns without final conclusion."

const systemInstruction = `You are a smart AI assistant. You can use the following tools to answer the user's question:

1. get_current_time() - returns the current date and time.
2. visit_url("https://example.com") - fetches a web page and returns its text content.
3. eval_expr("2+2") - evaluates a single arithmetic or constant expression and returns the result.

To use a tool, respond with exactly one call wrapped in tags, for example:
<tool_code>get_current_time()</tool_code>

After each tool call you will receive its output and can continue. When you have the final answer, respond with plain text and no tool call.`

// toolCallPattern matches the marker variants models actually emit,
// including truncated opening tags and fenced blocks.
var toolCallPattern = regexp.MustCompile("(?is)(?:<tool_code>|tool_code>|```tool_code)\\s*([a-zA-Z_]\\w*)\\((.*?)\\)")

// ExtractToolCall scans model output for a tool invocation. It reports
// the tool name, the raw argument text and whether a call was found.
func ExtractToolCall(text string) (name, args string, ok bool) {
	m := toolCallPattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Generator produces one model response for a conversation. Satisfied by
// the request router.
type Generator interface {
	Route(ctx context.Context, turns []translate.Turn, model string, kind translate.Kind, cfg *translate.GenerationConfig) (*router.Result, error)
}

// Loop drives the think/act cycle: call the model, run at most one tool
// per turn, feed the output back, stop on a plain answer.
type Loop struct {
	gen   Generator
	tools *Toolbox
}

// NewLoop wires a loop over a generator and toolbox.
func NewLoop(gen Generator, tools *Toolbox) *Loop {
	return &Loop{gen: gen, tools: tools}
}

// Run executes the loop for the given conversation. The tool roster is
// injected into the first turn so the model knows the calling syntax.
func (l *Loop) Run(ctx context.Context, turns []translate.Turn, model string) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("agent: empty conversation")
	}

	history := make([]translate.Turn, len(turns))
	copy(history, turns)
	history[0] = injectInstruction(history[0])

	for turn := 0; turn < MaxTurns; turn++ {
		res, err := l.gen.Route(ctx, history, model, translate.KindChat, nil)
		if err != nil {
			return "", fmt.Errorf("agent turn %d: %w", turn+1, err)
		}

		name, args, found := ExtractToolCall(res.Text)
		if !found {
			return res.Text, nil
		}

		output := l.tools.Execute(name, args)
		history = append(history,
			translate.Turn{Role: translate.RoleModel, Parts: []translate.Part{{Text: res.Text}}},
			translate.Turn{Role: translate.RoleUser, Parts: []translate.Part{{Text: "TOOL OUTPUT: " + output + "\n\nContinue providing the answer."}}},
		)
	}
	return MaxTurnsMessage, nil
}

// injectInstruction prefixes the system prompt onto a copy of the first
// turn without mutating the caller's slice.
func injectInstruction(first translate.Turn) translate.Turn {
	parts := make([]translate.Part, len(first.Parts))
	copy(parts, first.Parts)
	if len(parts) == 0 {
		parts = []translate.Part{{Text: systemInstruction}}
	} else {
		parts[0].Text = fmt.Sprintf("%s\n\nUser Query: %s", systemInstruction, parts[0].Text)
	}
	return translate.Turn{Role: first.Role, Parts: parts}
}
