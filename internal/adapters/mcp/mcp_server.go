// Package mcp exposes the cycle to AI assistants over the Model Context
// Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/xvierd/thirdtime/internal/config"
	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/ports"
)

const defaultHistoryDays = 7

// Server implements the MCP server using mark3labs/mcp-go.
type Server struct {
	server     *server.MCPServer
	controller ports.CycleController
	history    ports.HistoryReader
	now        func() time.Time
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewServer creates a new MCP server instance. history may be nil, in
// which case the history tools are not registered.
func NewServer(controller ports.CycleController, history ports.HistoryReader, version string) *Server {
	s := &Server{
		controller: controller,
		history:    history,
		now:        time.Now,
	}

	s.server = server.NewMCPServer(
		"thirdtime",
		version,
		server.WithLogging(),
	)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.server.AddTool(
		mcp.NewTool(
			"get_state",
			mcp.WithDescription("Get the current cycle state: running interval, time remaining, break bank and today's totals"),
		),
		s.handleGetState,
	)

	s.server.AddTool(
		mcp.NewTool(
			"start_work",
			mcp.WithDescription("Start a work interval. The break that follows is proportional to the time actually worked"),
			mcp.WithString("label", mcp.Description("What the interval is spent on")),
			mcp.WithString("preset", mcp.Description("Name of a configured work length, matched fuzzily")),
		),
		s.handleStartWork,
	)

	s.server.AddTool(
		mcp.NewTool(
			"end_in",
			mcp.WithDescription("End the current interval after the given number of minutes. Starts work first when idle"),
			mcp.WithNumber("minutes", mcp.Required(), mcp.Description("Minutes from now, fractions allowed; 0 ends now")),
		),
		s.handleEndIn,
	)

	s.server.AddTool(
		mcp.NewTool(
			"end_at",
			mcp.WithDescription("End the current interval at a wall clock time"),
			mcp.WithString("at", mcp.Required(), mcp.Description("RFC3339 timestamp or HH:MM local time")),
		),
		s.handleEndAt,
	)

	s.server.AddTool(
		mcp.NewTool(
			"end_now",
			mcp.WithDescription("End the current interval immediately"),
		),
		s.handleEndNow,
	)

	s.server.AddTool(
		mcp.NewTool(
			"start_long_break",
			mcp.WithDescription("Empty the break bank and take a long break"),
			mcp.WithNumber("minutes", mcp.Description("Length in minutes (default: configured long break)")),
		),
		s.handleStartLongBreak,
	)

	s.server.AddTool(
		mcp.NewTool(
			"kill_cycle",
			mcp.WithDescription("Abort the cycle and return to idle with an empty bank"),
		),
		s.handleKill,
	)

	if s.history == nil {
		return
	}

	s.server.AddTool(
		mcp.NewTool(
			"get_history",
			mcp.WithDescription("List past intervals, newest first"),
			mcp.WithNumber("days", mcp.Description("How many days back to look (default: 7)")),
			mcp.WithString("search", mcp.Description("Fuzzy filter on interval labels")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of intervals")),
		),
		s.handleGetHistory,
	)

	s.server.AddTool(
		mcp.NewTool(
			"get_bank_history",
			mcp.WithDescription("List break bank ledger entries, oldest first"),
			mcp.WithNumber("days", mcp.Description("How many days back to look (default: 7)")),
		),
		s.handleGetBankHistory,
	)
}

// Start begins serving MCP requests via stdio.
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	return server.ServeStdio(s.server)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// IsRunning returns true if the server is active.
func (s *Server) IsRunning() bool {
	if s.ctx == nil {
		return false
	}
	return s.ctx.Err() == nil
}

var _ ports.MCPHandler = (*Server)(nil)

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := s.controller.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current state: %w", err)
	}
	return stateResult(state)
}

func (s *Server) handleStartWork(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := s.controller.StartWork(ctx, ports.StartWorkRequest{
		Label:  request.GetString("label", ""),
		Preset: request.GetString("preset", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start work: %v", err)), nil
	}
	return stateResult(state)
}

func (s *Server) handleEndIn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	minutes, ok := numberArg(request, "minutes")
	if !ok {
		return mcp.NewToolResultError("minutes is required"), nil
	}
	state, err := s.controller.EndIn(ctx, minutes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to reschedule: %v", err)), nil
	}
	return stateResult(state)
}

func (s *Server) handleEndAt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("at")
	if err != nil {
		return mcp.NewToolResultError("at is required: " + err.Error()), nil
	}
	at, err := config.ParseEndAt(raw, s.now())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state, err := s.controller.EndAt(ctx, at)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to reschedule: %v", err)), nil
	}
	return stateResult(state)
}

func (s *Server) handleEndNow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := s.controller.EndNow(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to end interval: %v", err)), nil
	}
	return stateResult(state)
}

func (s *Server) handleStartLongBreak(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	minutes, _ := numberArg(request, "minutes")
	state, err := s.controller.StartLongBreak(ctx, minutes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start long break: %v", err)), nil
	}
	return stateResult(state)
}

func (s *Server) handleKill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := s.controller.Kill(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to kill cycle: %w", err)
	}
	return stateResult(state)
}

func (s *Server) handleGetHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 0
	if l, ok := numberArg(request, "limit"); ok && l > 0 {
		limit = int(l)
	}

	var intervals []*domain.IntervalRecord
	var err error
	if q := request.GetString("search", ""); q != "" {
		intervals, err = s.history.SearchIntervals(ctx, q, s.since(request), limit)
	} else {
		intervals, err = s.history.RecentIntervals(ctx, s.since(request), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	list := make([]map[string]interface{}, 0, len(intervals))
	var workTime time.Duration
	for _, iv := range intervals {
		list = append(list, intervalData(iv))
		if iv.Kind == domain.IntervalWork && iv.EndedAt != nil {
			workTime += iv.EndedAt.Sub(iv.StartTime)
		}
	}

	return jsonResult(map[string]interface{}{
		"intervals":       list,
		"total_count":     len(list),
		"total_work_time": workTime.Round(time.Second).String(),
	})
}

func (s *Server) handleGetBankHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.history.BankHistory(ctx, s.since(request))
	if err != nil {
		return nil, fmt.Errorf("failed to get bank history: %w", err)
	}

	list := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		list = append(list, map[string]interface{}{
			"at":      e.At.Format(time.RFC3339),
			"reason":  string(e.Reason),
			"delta":   e.Delta.Round(time.Second).String(),
			"balance": e.Balance.Round(time.Second).String(),
		})
	}
	return jsonResult(map[string]interface{}{
		"entries":     list,
		"total_count": len(list),
	})
}

func (s *Server) since(request mcp.CallToolRequest) time.Time {
	days := defaultHistoryDays
	if d, ok := numberArg(request, "days"); ok && d > 0 {
		days = int(d)
	}
	return s.now().AddDate(0, 0, -days)
}

// numberArg reads a numeric argument that clients may send as a JSON
// number or as a string.
func numberArg(request mcp.CallToolRequest, key string) (float64, bool) {
	raw, ok := request.GetArguments()[key]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func stateResult(state *domain.CurrentState) (*mcp.CallToolResult, error) {
	snap := state.Cycle
	result := map[string]interface{}{
		"state":      string(snap.State),
		"state_name": snap.State.Label(),
		"bank":       snap.Bank.Round(time.Second).String(),
		"work_count": snap.WorkCount,
		"interval":   nil,
		"today_stats": map[string]interface{}{
			"work_intervals":   state.TodayStats.WorkIntervals,
			"breaks_taken":     state.TodayStats.BreaksTaken,
			"long_breaks":      state.TodayStats.LongBreaks,
			"total_work_time":  state.TodayStats.TotalWorkTime.Round(time.Second).String(),
			"total_break_time": state.TodayStats.TotalBreak.Round(time.Second).String(),
		},
	}

	if snap.Interval != nil {
		data := intervalData(snap.Interval)
		data["remaining_time"] = snap.Remaining().Round(time.Second).String()
		data["progress"] = snap.Progress()
		if overdue := snap.Overdue(); overdue > 0 {
			data["overdue"] = overdue.Round(time.Second).String()
		}
		result["interval"] = data
	}

	return jsonResult(result)
}

func intervalData(iv *domain.IntervalRecord) map[string]interface{} {
	data := map[string]interface{}{
		"id":         iv.ID,
		"kind":       string(iv.Kind),
		"started_at": iv.StartTime.Format(time.RFC3339),
	}
	if iv.Label != "" {
		data["label"] = iv.Label
	}
	if iv.ExpectedEndTime != nil {
		data["expected_end"] = iv.ExpectedEndTime.Format(time.RFC3339)
	}
	if iv.EndedAt != nil {
		data["ended_at"] = iv.EndedAt.Format(time.RFC3339)
		data["forced"] = iv.Forced
	}
	if iv.ExpectedBreak != nil {
		data["planned_break"] = iv.ExpectedBreak.Round(time.Second).String()
	}
	if iv.GitBranch != "" {
		data["git_branch"] = iv.GitBranch
	}
	if iv.GitCommit != "" {
		data["git_commit"] = iv.GitCommit
	}
	return data
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
