package monitor

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/airewrite/antigravity-gateway/internal/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite memory db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if err := gdb.AutoMigrate(&models.RequestLog{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return gdb
}

func TestRecordAndStats(t *testing.T) {
	mon := New(newTestDB(t))

	mon.Record(models.RequestLog{Protocol: "openai", Model: "gemini-3-flash", Status: 200, Duration: 120})
	mon.Record(models.RequestLog{Protocol: "genai", Model: "gemini-3-flash", Status: 502, Error: "all accounts failed"})
	mon.Flush()

	stats := mon.Stats()
	if stats.TotalRequests != 2 || stats.SuccessCount != 1 || stats.ErrorCount != 1 {
		t.Fatalf("stats: %+v", stats)
	}

	logs := mon.Logs(10, 0)
	if len(logs) != 2 {
		t.Fatalf("expected 2 persisted logs, got %d", len(logs))
	}
	for _, l := range logs {
		if l.ID == "" || l.Timestamp == 0 {
			t.Fatalf("id and timestamp must be filled in: %+v", l)
		}
	}
}

func TestStatsReloadFromDB(t *testing.T) {
	gdb := newTestDB(t)
	mon := New(gdb)
	mon.Record(models.RequestLog{Protocol: "openai", Status: 200})
	mon.Record(models.RequestLog{Protocol: "openai", Status: 500})
	mon.Flush()

	reopened := New(gdb)
	stats := reopened.Stats()
	if stats.TotalRequests != 2 || stats.SuccessCount != 1 || stats.ErrorCount != 1 {
		t.Fatalf("reloaded stats: %+v", stats)
	}
}

func TestClear(t *testing.T) {
	mon := New(newTestDB(t))
	mon.Record(models.RequestLog{Protocol: "openai", Status: 200})
	mon.Flush()

	if err := mon.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if stats := mon.Stats(); stats.TotalRequests != 0 {
		t.Fatalf("stats after clear: %+v", stats)
	}
	if logs := mon.Logs(10, 0); len(logs) != 0 {
		t.Fatalf("logs after clear: %v", logs)
	}
}

func TestLogsLimit(t *testing.T) {
	mon := New(newTestDB(t))
	for i := 0; i < 5; i++ {
		mon.Record(models.RequestLog{Protocol: "openai", Status: 200})
	}
	mon.Flush()

	if logs := mon.Logs(3, 0); len(logs) != 3 {
		t.Fatalf("expected limit respected, got %d", len(logs))
	}
}
