// Package agent runs the bounded multi-turn tool-execution loop on top of
// the request router.
package agent

import (
	"fmt"
	gotoken "go/token"
	"go/types"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	visitTimeout  = 10 * time.Second
	visitMaxBytes = 4000
	browserUA     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// denylist blocks process, file and exit primitives before evaluation.
// A hit is reported as tool output text, never as a call failure.
var denylist = []string{"os.", "exec", "syscall", "exit(", "open(", "remove(", "unlink", "process"}

var (
	scriptPattern = regexp.MustCompile(`(?is)<script.*?>.*?</script>`)
	stylePattern  = regexp.MustCompile(`(?is)<style.*?>.*?</style>`)
	tagPattern    = regexp.MustCompile(`<[^>]+>`)
	spacePattern  = regexp.MustCompile(`\s+`)
	quotedArg     = regexp.MustCompile(`["'](.*?)["']`)
)

// Toolbox is the fixed tool set available to the loop: a clock query, a
// URL fetcher and a sandboxed expression evaluator.
type Toolbox struct {
	httpClient *http.Client
	now        func() time.Time
}

// NewToolbox returns a toolbox with production defaults.
func NewToolbox() *Toolbox {
	return &Toolbox{
		httpClient: &http.Client{Timeout: visitTimeout},
		now:        time.Now,
	}
}

// Execute dispatches one parsed tool invocation. Unknown names yield a
// literal string rather than an error so the loop keeps going.
func (t *Toolbox) Execute(name, args string) string {
	switch name {
	case "get_current_time":
		return t.CurrentTime()
	case "visit_url":
		url := args
		if m := quotedArg.FindStringSubmatch(args); m != nil {
			url = m[1]
		}
		return t.VisitURL(strings.TrimSpace(url))
	case "eval_expr":
		return t.EvalExpr(unquote(args))
	}
	return "Unknown tool"
}

// CurrentTime returns the wall clock in the fixed display format.
func (t *Toolbox) CurrentTime() string {
	return t.now().Format("2006-01-02 15:04:05")
}

// VisitURL fetches a page and strips markup, truncating long bodies. All
// failures are reported as output text.
func (t *Toolbox) VisitURL(url string) string {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Sprintf("Exception visiting URL: %v", err)
	}
	req.Header.Set("User-Agent", browserUA)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Exception visiting URL: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Error visiting URL: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Exception visiting URL: %v", err)
	}
	text := scriptPattern.ReplaceAllString(string(body), "")
	text = stylePattern.ReplaceAllString(text, "")
	text = tagPattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
	if len(text) > visitMaxBytes {
		return text[:visitMaxBytes] + "..."
	}
	return text
}

// EvalExpr evaluates one constant expression after the denylist check.
// Only the resulting value is captured; evaluation errors become output.
func (t *Toolbox) EvalExpr(expr string) string {
	lower := strings.ToLower(expr)
	for _, banned := range denylist {
		if strings.Contains(lower, banned) {
			return "Security Error: Dangerous keywords detected."
		}
	}

	tv, err := types.Eval(gotoken.NewFileSet(), nil, gotoken.NoPos, expr)
	if err != nil {
		return fmt.Sprintf("Execution Error: %v", err)
	}
	if tv.Value == nil {
		return "[No Output]"
	}
	return tv.Value.String()
}

// unquote strips one level of matching surrounding quotes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
