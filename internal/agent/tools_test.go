package agent

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCurrentTimeFormat(t *testing.T) {
	tb := NewToolbox()
	tb.now = func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }
	if got := tb.CurrentTime(); got != "2026-03-14 09:26:53" {
		t.Fatalf("CurrentTime = %q", got)
	}
}

func TestEvalExpr(t *testing.T) {
	tb := NewToolbox()
	tests := []struct {
		expr string
		want string
	}{
		{"2+2", "4"},
		{"(10-3)*2", "14"},
		{`len("hello")`, "5"},
		{"1<<10", "1024"},
	}
	for _, tt := range tests {
		if got := tb.EvalExpr(tt.expr); got != tt.want {
			t.Errorf("EvalExpr(%q) = %q, want %q", tt.expr, got, tt.want)
		}
	}
}

func TestEvalExprDenylist(t *testing.T) {
	tb := NewToolbox()
	blocked := []string{
		"os.Getenv(\"HOME\")",
		"exec something",
		"syscall.Kill",
		"exit(1)",
		"open(\"/etc/passwd\")",
	}
	for _, expr := range blocked {
		if got := tb.EvalExpr(expr); got != "Security Error: Dangerous keywords detected." {
			t.Errorf("EvalExpr(%q) = %q, expected security error", expr, got)
		}
	}
}

func TestEvalExprExecutionError(t *testing.T) {
	tb := NewToolbox()
	got := tb.EvalExpr("2+")
	if !strings.HasPrefix(got, "Execution Error:") {
		t.Fatalf("EvalExpr(\"2+\") = %q", got)
	}
}

func TestVisitURLStripsMarkup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "Mozilla") {
			t.Errorf("expected browser user agent, got %q", ua)
		}
		w.Write([]byte(`<html><head><style>body{color:red}</style>
			<script>alert("x")</script></head>
			<body><h1>Title</h1>  <p>Some   text</p></body></html>`))
	}))
	defer srv.Close()

	tb := NewToolbox()
	got := tb.VisitURL(srv.URL)
	if got != "Title Some text" {
		t.Fatalf("VisitURL = %q", got)
	}
}

func TestVisitURLTruncatesLongBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", visitMaxBytes+500)))
	}))
	defer srv.Close()

	tb := NewToolbox()
	got := tb.VisitURL(srv.URL)
	if len(got) != visitMaxBytes+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("len = %d, suffix = %q", len(got), got[len(got)-5:])
	}
}

func TestVisitURLErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	tb := NewToolbox()
	if got := tb.VisitURL(srv.URL); got != "Error visiting URL: 404" {
		t.Fatalf("VisitURL = %q", got)
	}
}

func TestExecuteDispatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("page body"))
	}))
	defer srv.Close()

	tb := NewToolbox()
	tb.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }

	if got := tb.Execute("get_current_time", ""); got != "2026-03-14 09:00:00" {
		t.Fatalf("get_current_time: %q", got)
	}
	if got := tb.Execute("visit_url", `"`+srv.URL+`"`); got != "page body" {
		t.Fatalf("visit_url quoted: %q", got)
	}
	if got := tb.Execute("visit_url", srv.URL); got != "page body" {
		t.Fatalf("visit_url bare: %q", got)
	}
	if got := tb.Execute("eval_expr", `"6*7"`); got != "42" {
		t.Fatalf("eval_expr: %q", got)
	}
	if got := tb.Execute("rm_rf", "x"); got != "Unknown tool" {
		t.Fatalf("unknown tool: %q", got)
	}
}
