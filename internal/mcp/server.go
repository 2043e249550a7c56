// Package mcp exposes the task lifecycle to MCP clients over stdio. Tools
// map one to one onto lifecycle operations, so an agent session obeys the
// same single-focus rules as the CLI.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldi/focal/internal/db"
	"github.com/ldi/focal/internal/lifecycle"
	"github.com/ldi/focal/pkg/models"
)

// NewServer creates a new MCP server.
func NewServer(database *db.DB, engine *lifecycle.Engine) *server.MCPServer {
	s := server.NewMCPServer("Focal", "0.1.0")

	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a new task and make it the active focus. Fails if another task is already active."),
		mcp.WithString("description", mcp.Description("What the task is"), mcp.Required()),
	), createTaskHandler(engine))

	s.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Mark the active task completed."),
		mcp.WithString("task_id", mcp.Description("Task ID (defaults to the active task)")),
	), completeTaskHandler(engine))

	s.AddTool(mcp.NewTool("cancel_task",
		mcp.WithDescription("Cancel a task with an optional reason."),
		mcp.WithString("task_id", mcp.Description("Task ID (defaults to the active task)")),
		mcp.WithString("reason", mcp.Description("Why the task is abandoned")),
	), cancelTaskHandler(engine))

	s.AddTool(mcp.NewTool("defer_task",
		mcp.WithDescription("Park the active task for later, optionally until a given time."),
		mcp.WithString("task_id", mcp.Description("Task ID (defaults to the active task)")),
		mcp.WithString("until", mcp.Description("RFC 3339 time to revisit the task (must be in the future)")),
		mcp.WithString("reason", mcp.Description("Why the task is parked")),
	), deferTaskHandler(engine))

	s.AddTool(mcp.NewTool("resume_task",
		mcp.WithDescription("Bring a deferred task back to active. Fails if another task is active."),
		mcp.WithString("task_id", mcp.Description("Task ID of the deferred task"), mcp.Required()),
	), resumeTaskHandler(engine))

	s.AddTool(mcp.NewTool("get_active_task",
		mcp.WithDescription("Get the currently active task, if any."),
	), getActiveTaskHandler(database))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks with an optional state filter."),
		mcp.WithString("state", mcp.Description("Filter by state (active|completed|cancelled|deferred)")),
	), listTasksHandler(database))

	s.AddTool(mcp.NewTool("list_events",
		mcp.WithDescription("List the audit trail, optionally for one task."),
		mcp.WithString("task_id", mcp.Description("Filter by task ID")),
	), listEventsHandler(database))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func createTaskHandler(engine *lifecycle.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		description := mcp.ParseString(request, "description", "")

		t, err := engine.Create(ctx, description)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return taskResult(t)
	}
}

func completeTaskHandler(engine *lifecycle.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")

		t, err := engine.Complete(ctx, taskID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return taskResult(t)
	}
}

func cancelTaskHandler(engine *lifecycle.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")
		reason := mcp.ParseString(request, "reason", "")

		t, err := engine.Cancel(ctx, taskID, reason)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return taskResult(t)
	}
}

func deferTaskHandler(engine *lifecycle.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")
		reason := mcp.ParseString(request, "reason", "")

		var until *time.Time
		if raw := mcp.ParseString(request, "until", ""); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("until must be RFC 3339: %v", err)), nil
			}
			until = &parsed
		}

		t, err := engine.Defer(ctx, taskID, until, reason)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return taskResult(t)
	}
}

func resumeTaskHandler(engine *lifecycle.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")
		if taskID == "" {
			return mcp.NewToolResultError("task_id is required"), nil
		}

		t, err := engine.Resume(ctx, taskID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return taskResult(t)
	}
}

func getActiveTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := database.GetActiveTask(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if t == nil {
			return mcp.NewToolResultText(`{"active": null}`), nil
		}
		return taskResult(t)
	}
}

func listTasksHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var state *models.TaskState
		if raw := mcp.ParseString(request, "state", ""); raw != "" {
			s := models.TaskState(raw)
			if !s.Valid() {
				return mcp.NewToolResultError(fmt.Sprintf("unknown state %q", raw)), nil
			}
			state = &s
		}

		tasks, err := database.ListTasks(ctx, state)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"tasks": tasks})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func listEventsHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")

		events, err := database.ListEvents(ctx, taskID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"events": events})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func taskResult(t *models.Task) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
