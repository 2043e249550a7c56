package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldi/focal/internal/db"
	"github.com/ldi/focal/internal/lifecycle"
)

func newTestServer(t *testing.T) (*server.MCPServer, *db.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "focal.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewServer(database, lifecycle.New(database)), database
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	if tool == nil {
		t.Fatalf("Tool %s not found", name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := tool.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("Handler %s failed: %v", name, err)
	}
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("Result has no content")
	}
	return result.Content[0].(mcp.TextContent).Text
}

func TestServerInitialization(t *testing.T) {
	s, _ := newTestServer(t)
	stdio := server.NewStdioServer(s)

	r, w := io.Pipe()
	stdout := &bytes.Buffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- stdio.Listen(ctx, r, stdout)
	}()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "test-client", Version: "1.0.0"}

	rawReq := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params":  initReq.Params,
	}
	data, err := json.Marshal(rawReq)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	w.Write(data)
	w.Write([]byte("\n"))

	time.Sleep(200 * time.Millisecond)

	if stdout.Len() == 0 {
		t.Fatal("Expected response from server, got none")
	}

	var resp struct {
		ID     int `json:"id"`
		Result struct {
			ServerInfo struct {
				Name string `json:"name"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v\nOutput: %s", err, stdout.String())
	}
	if resp.ID != 1 {
		t.Errorf("Expected id 1, got %v", resp.ID)
	}
	if resp.Result.ServerInfo.Name != "Focal" {
		t.Errorf("Expected server name Focal, got %v", resp.Result.ServerInfo.Name)
	}
}

func TestToolHandlers(t *testing.T) {
	s, database := newTestServer(t)
	ctx := context.Background()

	var taskID string

	t.Run("create_task", func(t *testing.T) {
		result := callTool(t, s, "create_task", map[string]interface{}{
			"description": "write the changelog",
		})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", result.Content[0])
		}

		var created struct {
			ID    string `json:"id"`
			State string `json:"state"`
		}
		if err := json.Unmarshal([]byte(resultText(t, result)), &created); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if created.State != "active" {
			t.Errorf("Expected state active, got %s", created.State)
		}
		taskID = created.ID

		active, err := database.GetActiveTask(ctx)
		if err != nil || active == nil {
			t.Fatalf("Active task not found in DB: %v", err)
		}
	})

	t.Run("create_task_conflict", func(t *testing.T) {
		result := callTool(t, s, "create_task", map[string]interface{}{
			"description": "a second focus",
		})
		if !result.IsError {
			t.Error("Expected conflict error, got success")
		}
	})

	t.Run("get_active_task", func(t *testing.T) {
		result := callTool(t, s, "get_active_task", map[string]interface{}{})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", result.Content[0])
		}
		var got struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(resultText(t, result)), &got); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if got.ID != taskID {
			t.Errorf("Expected active task %s, got %s", taskID, got.ID)
		}
	})

	t.Run("defer_and_resume", func(t *testing.T) {
		until := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
		result := callTool(t, s, "defer_task", map[string]interface{}{
			"until":  until,
			"reason": "waiting on input",
		})
		if result.IsError {
			t.Fatalf("defer_task returned error: %v", result.Content[0])
		}

		result = callTool(t, s, "get_active_task", map[string]interface{}{})
		if text := resultText(t, result); text != `{"active": null}` {
			t.Errorf("Expected no active task, got %s", text)
		}

		result = callTool(t, s, "resume_task", map[string]interface{}{
			"task_id": taskID,
		})
		if result.IsError {
			t.Fatalf("resume_task returned error: %v", result.Content[0])
		}
	})

	t.Run("defer_task_bad_until", func(t *testing.T) {
		result := callTool(t, s, "defer_task", map[string]interface{}{
			"until": "tomorrow-ish",
		})
		if !result.IsError {
			t.Error("Expected error for malformed until, got success")
		}
	})

	t.Run("resume_task_requires_id", func(t *testing.T) {
		result := callTool(t, s, "resume_task", map[string]interface{}{})
		if !result.IsError {
			t.Error("Expected error without task_id, got success")
		}
	})

	t.Run("complete_task", func(t *testing.T) {
		result := callTool(t, s, "complete_task", map[string]interface{}{})
		if result.IsError {
			t.Fatalf("complete_task returned error: %v", result.Content[0])
		}

		task, err := database.GetTask(ctx, taskID)
		if err != nil || task == nil {
			t.Fatalf("Task not found: %v", err)
		}
		if string(task.State) != "completed" {
			t.Errorf("Expected state completed, got %s", task.State)
		}
	})

	t.Run("cancel_task", func(t *testing.T) {
		created := callTool(t, s, "create_task", map[string]interface{}{
			"description": "short-lived",
		})
		if created.IsError {
			t.Fatalf("create_task returned error: %v", created.Content[0])
		}

		result := callTool(t, s, "cancel_task", map[string]interface{}{
			"reason": "superseded",
		})
		if result.IsError {
			t.Fatalf("cancel_task returned error: %v", result.Content[0])
		}
		var cancelled struct {
			State        string  `json:"state"`
			CancelReason *string `json:"cancel_reason"`
		}
		if err := json.Unmarshal([]byte(resultText(t, result)), &cancelled); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if cancelled.State != "cancelled" {
			t.Errorf("Expected state cancelled, got %s", cancelled.State)
		}
		if cancelled.CancelReason == nil || *cancelled.CancelReason != "superseded" {
			t.Errorf("Cancel reason not recorded: %v", cancelled.CancelReason)
		}
	})

	t.Run("list_tasks", func(t *testing.T) {
		result := callTool(t, s, "list_tasks", map[string]interface{}{
			"state": "completed",
		})
		if result.IsError {
			t.Fatalf("list_tasks returned error: %v", result.Content[0])
		}
		var resp struct {
			Tasks []interface{} `json:"tasks"`
		}
		if err := json.Unmarshal([]byte(resultText(t, result)), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if len(resp.Tasks) != 1 {
			t.Errorf("Expected 1 completed task, got %d", len(resp.Tasks))
		}
	})

	t.Run("list_tasks_bad_state", func(t *testing.T) {
		result := callTool(t, s, "list_tasks", map[string]interface{}{
			"state": "limbo",
		})
		if !result.IsError {
			t.Error("Expected error for unknown state, got success")
		}
	})

	t.Run("list_events", func(t *testing.T) {
		result := callTool(t, s, "list_events", map[string]interface{}{
			"task_id": taskID,
		})
		if result.IsError {
			t.Fatalf("list_events returned error: %v", result.Content[0])
		}
		var resp struct {
			Events []struct {
				EventType string `json:"event_type"`
			} `json:"events"`
		}
		if err := json.Unmarshal([]byte(resultText(t, result)), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		want := []string{"CREATED", "DEFERRED", "RESUMED", "COMPLETED"}
		if len(resp.Events) != len(want) {
			t.Fatalf("Expected %d events, got %d", len(want), len(resp.Events))
		}
		for i, e := range resp.Events {
			if e.EventType != want[i] {
				t.Errorf("Event %d = %s, want %s", i, e.EventType, want[i])
			}
		}
	})
}
