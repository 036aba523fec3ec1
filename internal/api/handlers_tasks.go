package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/nats-io/nats.go"

	"github.com/veritas-mfg/tobacco-aps/internal/db"
	"github.com/veritas-mfg/tobacco-aps/internal/orchestrator"
	"github.com/veritas-mfg/tobacco-aps/internal/queue"
)

// handleStartTask starts a scheduling run for a batch. StartTask itself
// enforces idempotency and the one-active-task-per-batch invariant; this
// handler only maps the outcome onto an HTTP status.
func (s *Server) handleStartTask(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.StartTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.BatchID == "" {
		http.Error(w, "batchId is required", http.StatusBadRequest)
		return
	}

	task, err := s.orch.StartTask(r.Context(), req)
	if err != nil {
		var taskErr *orchestrator.TaskError
		if errors.As(err, &taskErr) && taskErr.Kind == orchestrator.KindTaskAlreadyRunning {
			http.Error(w, taskErr.Error(), http.StatusConflict)
			return
		}
		log.Printf("failed to start task for batch %s: %v", req.BatchID, err)
		http.Error(w, "failed to start task", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(task)
}

// handleGetTask returns one task by id.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	task, err := s.orch.GetTask(r.Context(), taskID)
	if err != nil {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(task)
}

// handleCancelTask requests cancellation of a non-terminal task.
func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "cancelled via API"
	}

	if err := s.orch.CancelTask(r.Context(), taskID, reason); err != nil {
		log.Printf("failed to cancel task %s: %v", taskID, err)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"taskId":  taskID,
	})
}

// handleListTasks lists tasks, optionally filtered by batchId/status.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter := db.ListTasksFilter{
		BatchID: r.URL.Query().Get("batchId"),
		Status:  r.URL.Query().Get("status"),
		Limit:   50,
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 500 {
			filter.Limit = limit
		}
	}

	tasks, err := s.orch.ListTasks(r.Context(), filter)
	if err != nil {
		log.Printf("failed to list tasks: %v", err)
		http.Error(w, "failed to list tasks", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"tasks": tasks,
	})
}

// handleTaskProgressSSE streams a task's progress events over Server-Sent
// Events, grounded on the teacher's handleGetBulkOperationJobProgress: it
// subscribes to the task's NATS progress subject and forwards every
// message verbatim, while a ticker independently polls task status so the
// stream still closes once the task reaches a terminal state even if the
// worker's own terminal publish was missed.
func (s *Server) handleTaskProgressSSE(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, err := s.nats.Subscribe(queue.GetTaskProgressSubject(taskID), func(msg *nats.Msg) {
		fmt.Fprintf(w, "data: %s\n\n", string(msg.Data))
		flusher.Flush()
	})
	if err != nil {
		log.Printf("failed to subscribe to progress for task %s: %v", taskID, err)
		http.Error(w, "failed to subscribe to progress updates", http.StatusInternalServerError)
		return
	}
	defer sub.Unsubscribe()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			task, err := s.orch.GetTask(r.Context(), taskID)
			if err != nil {
				return
			}
			switch task.Status {
			case "COMPLETED", "FAILED", "CANCELLED":
				return
			}
		}
	}
}

// handleListTaskLogs returns a task's stage-log stream, paginated.
func (s *Server) handleListTaskLogs(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	limit := 200
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	logs, err := s.db.ListStageLogs(r.Context(), taskID, limit, offset)
	if err != nil {
		log.Printf("failed to list stage logs for task %s: %v", taskID, err)
		http.Error(w, "failed to list stage logs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"taskId": taskID,
		"logs":   logs,
	})
}
