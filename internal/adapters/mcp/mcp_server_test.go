package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/ports"
)

var now = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

// mockController is a mock implementation of ports.CycleController for testing.
type mockController struct {
	state   *domain.CurrentState
	err     error
	calls   []string
	minutes []float64
	endAt   time.Time
	started ports.StartWorkRequest
}

func (m *mockController) result(call string) (*domain.CurrentState, error) {
	m.calls = append(m.calls, call)
	if m.err != nil {
		return nil, m.err
	}
	return m.state, nil
}

func (m *mockController) StartWork(ctx context.Context, req ports.StartWorkRequest) (*domain.CurrentState, error) {
	m.started = req
	return m.result("start")
}

func (m *mockController) EndIn(ctx context.Context, minutes float64) (*domain.CurrentState, error) {
	m.minutes = append(m.minutes, minutes)
	return m.result("end_in")
}

func (m *mockController) EndAt(ctx context.Context, t time.Time) (*domain.CurrentState, error) {
	m.endAt = t
	return m.result("end_at")
}

func (m *mockController) EndNow(ctx context.Context) (*domain.CurrentState, error) {
	return m.result("end_now")
}

func (m *mockController) StartLongBreak(ctx context.Context, minutes float64) (*domain.CurrentState, error) {
	m.minutes = append(m.minutes, minutes)
	return m.result("long_break")
}

func (m *mockController) Kill(ctx context.Context) (*domain.CurrentState, error) {
	return m.result("kill")
}

func (m *mockController) State(ctx context.Context) (*domain.CurrentState, error) {
	return m.result("state")
}

type mockHistory struct {
	intervals []*domain.IntervalRecord
	entries   []*domain.BankEntry
	since     time.Time
	query     string
}

func (m *mockHistory) RecentIntervals(ctx context.Context, since time.Time, limit int) ([]*domain.IntervalRecord, error) {
	m.since = since
	return m.intervals, nil
}

func (m *mockHistory) SearchIntervals(ctx context.Context, query string, since time.Time, limit int) ([]*domain.IntervalRecord, error) {
	m.query = query
	m.since = since
	return m.intervals, nil
}

func (m *mockHistory) BankHistory(ctx context.Context, since time.Time) ([]*domain.BankEntry, error) {
	m.since = since
	return m.entries, nil
}

func workingState() *domain.CurrentState {
	deadline := now.Add(25 * time.Minute)
	iv := domain.NewIntervalRecord(domain.IntervalWork, now, &deadline)
	iv.Label = "write tests"
	iv.SetGitContext("main", "abc1234")
	return &domain.CurrentState{
		Cycle: domain.Snapshot{
			At:        now.Add(5 * time.Minute),
			State:     domain.StateWork,
			Interval:  iv,
			Bank:      90 * time.Second,
			WorkCount: 2,
		},
		TodayStats: domain.DailyStats{WorkIntervals: 2, BreaksTaken: 1, TotalWorkTime: 50 * time.Minute},
	}
}

func newTestServer(ctrl *mockController, history ports.HistoryReader) *Server {
	s := NewServer(ctrl, history, "test")
	s.now = func() time.Time { return now }
	return s
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(text.Text), &data); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	return data
}

func TestNewServer(t *testing.T) {
	ctrl := &mockController{}
	server := NewServer(ctrl, nil, "test")

	if server.controller != ctrl {
		t.Error("NewServer() did not set controller correctly")
	}
	if server.server == nil {
		t.Error("NewServer() did not create MCP server")
	}
	if server.IsRunning() {
		t.Error("IsRunning() should return false before Start()")
	}
	if err := server.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestServer_handleGetState(t *testing.T) {
	server := newTestServer(&mockController{state: workingState()}, nil)

	result, err := server.handleGetState(context.Background(), call(nil))
	if err != nil {
		t.Fatalf("handleGetState() error = %v", err)
	}

	data := resultJSON(t, result)
	if data["state"] != "work" {
		t.Errorf("state = %v, want work", data["state"])
	}
	if data["bank"] != "1m30s" {
		t.Errorf("bank = %v, want 1m30s", data["bank"])
	}
	interval, ok := data["interval"].(map[string]interface{})
	if !ok {
		t.Fatal("interval missing")
	}
	if interval["remaining_time"] != "20m0s" {
		t.Errorf("remaining_time = %v, want 20m0s", interval["remaining_time"])
	}
	if interval["label"] != "write tests" {
		t.Errorf("label = %v", interval["label"])
	}
}

func TestServer_handleGetState_Idle(t *testing.T) {
	server := newTestServer(&mockController{state: &domain.CurrentState{Cycle: domain.Snapshot{State: domain.StateIdle}}}, nil)

	result, err := server.handleGetState(context.Background(), call(nil))
	if err != nil {
		t.Fatalf("handleGetState() error = %v", err)
	}
	if data := resultJSON(t, result); data["interval"] != nil {
		t.Errorf("interval = %v, want nil", data["interval"])
	}
}

func TestServer_handleStartWork(t *testing.T) {
	ctrl := &mockController{state: workingState()}
	server := newTestServer(ctrl, nil)

	result, err := server.handleStartWork(context.Background(), call(map[string]interface{}{
		"label":  "write tests",
		"preset": "deep",
	}))
	if err != nil {
		t.Fatalf("handleStartWork() error = %v", err)
	}
	if result.IsError {
		t.Error("handleStartWork() returned error result")
	}
	if ctrl.started.Label != "write tests" || ctrl.started.Preset != "deep" {
		t.Errorf("started = %+v", ctrl.started)
	}
}

func TestServer_handleStartWork_AlreadyActive(t *testing.T) {
	server := newTestServer(&mockController{err: domain.ErrIntervalAlreadyActive}, nil)

	result, err := server.handleStartWork(context.Background(), call(nil))
	if err != nil {
		t.Fatalf("handleStartWork() error = %v", err)
	}
	if !result.IsError {
		t.Error("handleStartWork() should return error result while active")
	}
}

func TestServer_handleEndIn(t *testing.T) {
	ctrl := &mockController{state: workingState()}
	server := newTestServer(ctrl, nil)

	if result, _ := server.handleEndIn(context.Background(), call(map[string]interface{}{})); !result.IsError {
		t.Error("handleEndIn() should require minutes")
	}

	for _, arg := range []interface{}{2.5, "2.5"} {
		result, err := server.handleEndIn(context.Background(), call(map[string]interface{}{"minutes": arg}))
		if err != nil || result.IsError {
			t.Fatalf("handleEndIn(%v) failed: %v", arg, err)
		}
	}
	if len(ctrl.minutes) != 2 || ctrl.minutes[0] != 2.5 || ctrl.minutes[1] != 2.5 {
		t.Errorf("minutes = %v", ctrl.minutes)
	}
}

func TestServer_handleEndAt(t *testing.T) {
	ctrl := &mockController{state: workingState()}
	server := newTestServer(ctrl, nil)

	result, err := server.handleEndAt(context.Background(), call(map[string]interface{}{"at": "09:40"}))
	if err != nil || result.IsError {
		t.Fatalf("handleEndAt() failed: %v", err)
	}
	if want := now.Add(40 * time.Minute); !ctrl.endAt.Equal(want) {
		t.Errorf("endAt = %v, want %v", ctrl.endAt, want)
	}

	result, _ = server.handleEndAt(context.Background(), call(map[string]interface{}{"at": "later"}))
	if !result.IsError {
		t.Error("handleEndAt() should reject an unparseable time")
	}
}

func TestServer_LongBreakDefaultsToConfigured(t *testing.T) {
	ctrl := &mockController{state: workingState()}
	server := newTestServer(ctrl, nil)

	if _, err := server.handleStartLongBreak(context.Background(), call(nil)); err != nil {
		t.Fatalf("handleStartLongBreak() error = %v", err)
	}
	if len(ctrl.minutes) != 1 || ctrl.minutes[0] != 0 {
		t.Errorf("minutes = %v, want [0]", ctrl.minutes)
	}
}

func TestServer_EndNowAndKill(t *testing.T) {
	ctrl := &mockController{state: workingState()}
	server := newTestServer(ctrl, nil)

	if _, err := server.handleEndNow(context.Background(), call(nil)); err != nil {
		t.Fatalf("handleEndNow() error = %v", err)
	}
	if _, err := server.handleKill(context.Background(), call(nil)); err != nil {
		t.Fatalf("handleKill() error = %v", err)
	}
	if strings.Join(ctrl.calls, ",") != "end_now,kill" {
		t.Errorf("calls = %v", ctrl.calls)
	}
}

func TestServer_handleGetHistory(t *testing.T) {
	end := now.Add(25 * time.Minute)
	work := domain.NewIntervalRecord(domain.IntervalWork, now, &end)
	work.End(end, false)
	history := &mockHistory{intervals: []*domain.IntervalRecord{work}}
	server := newTestServer(&mockController{}, history)

	result, err := server.handleGetHistory(context.Background(), call(map[string]interface{}{"days": 3.0}))
	if err != nil {
		t.Fatalf("handleGetHistory() error = %v", err)
	}
	data := resultJSON(t, result)
	if data["total_work_time"] != "25m0s" {
		t.Errorf("total_work_time = %v", data["total_work_time"])
	}
	if !history.since.Equal(now.AddDate(0, 0, -3)) {
		t.Errorf("since = %v", history.since)
	}

	if _, err := server.handleGetHistory(context.Background(), call(map[string]interface{}{"search": "tests", "days": 2})); err != nil {
		t.Fatalf("handleGetHistory() error = %v", err)
	}
	if history.query != "tests" {
		t.Errorf("query = %q", history.query)
	}
	if !history.since.Equal(now.AddDate(0, 0, -2)) {
		t.Errorf("search since = %v", history.since)
	}
}

func TestServer_handleGetBankHistory(t *testing.T) {
	history := &mockHistory{entries: []*domain.BankEntry{
		{At: now, Reason: domain.BankReasonBreakOutcome, Delta: 2 * time.Minute, Balance: 2 * time.Minute},
	}}
	server := newTestServer(&mockController{}, history)

	result, err := server.handleGetBankHistory(context.Background(), call(nil))
	if err != nil {
		t.Fatalf("handleGetBankHistory() error = %v", err)
	}
	data := resultJSON(t, result)
	if data["total_count"] != float64(1) {
		t.Errorf("total_count = %v", data["total_count"])
	}
	if !history.since.Equal(now.AddDate(0, 0, -defaultHistoryDays)) {
		t.Errorf("since = %v", history.since)
	}
}
