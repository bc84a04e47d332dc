package handlers

import (
	"context"
	"mime"
	"net/http"

	"github.com/cyp0633/taskcal/server/storage"
	"github.com/google/uuid"
)

// handlePost handles POST requests
func (r *Router) handlePost(w http.ResponseWriter, req *http.Request) {
	resourcePath, ok := r.resolve(w, req)
	if !ok {
		return
	}

	switch resourcePath.Type {
	case storage.ResourceTypeTasks:
		r.createTasks(w, req)

	case storage.ResourceTypeEventCompletion:
		r.setCompleted(w, req, resourcePath.EventID, true)

	case storage.ResourceTypePreview:
		r.preview(w, req)

	default:
		http.Error(w, "Resource type not supported for POST", http.StatusMethodNotAllowed)
	}
}

// createTasks accepts a JSON task, or a text/calendar body whose VTODOs and
// VEVENTs each become a task. A JSON request answers with one TaskResponse,
// a calendar import with a list.
func (r *Router) createTasks(w http.ResponseWriter, req *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get(HeaderContentType))

	if mediaType == "text/calendar" {
		tasks, err := storage.ICSToTasks(http.MaxBytesReader(w, req.Body, maxBodyBytes))
		if err != nil {
			r.writeError(w, err, "failed to import calendar")
			return
		}
		// An import is all or nothing: a failure removes the tasks created
		// before it.
		responses := make([]TaskResponse, 0, len(tasks))
		for _, task := range tasks {
			if task.ID == "" {
				task.ID = uuid.NewString()
			}
			resp, err := r.createTask(req.Context(), task)
			if err != nil {
				for _, created := range responses {
					r.removeTask(req.Context(), created.Task.ID)
				}
				r.writeError(w, err, "failed to create task", "task_id", task.ID)
				return
			}
			responses = append(responses, resp)
		}
		r.writeJSON(w, http.StatusCreated, responses)
		return
	}

	body, err := decodeBody[TaskBody](w, req, r.validate).Get()
	if err != nil {
		r.writeError(w, err, "invalid task body")
		return
	}
	task, err := body.Task().Get()
	if err != nil {
		r.writeError(w, err, "invalid task body")
		return
	}
	resp, err := r.createTask(req.Context(), task)
	if err != nil {
		r.writeError(w, err, "failed to create task", "task_id", task.ID)
		return
	}
	r.writeJSON(w, http.StatusCreated, resp)
}

func (r *Router) createTask(ctx context.Context, task *storage.Task) (TaskResponse, error) {
	unlock := r.locks.lock(task.ID)
	defer unlock()

	if _, err := r.tasks.GetTask(ctx, task.ID); err == nil {
		return TaskResponse{}, &storage.Error{Type: storage.ErrAlreadyExists, Message: "task already exists: " + task.ID}
	} else if !storage.IsType(err, storage.ErrNotFound) {
		return TaskResponse{}, err
	}

	if err := r.tasks.PutTask(ctx, task); err != nil {
		return TaskResponse{}, err
	}
	instances, err := r.materializer.MaterializeNew(ctx, task)
	if err != nil {
		if delErr := r.tasks.DeleteTask(ctx, task.ID); delErr != nil {
			r.logger.Error("failed to roll back task",
				"task_id", task.ID,
				"error", delErr)
		}
		return TaskResponse{}, err
	}

	r.logger.Info("task created",
		"task_id", task.ID,
		"instances", len(instances))
	return TaskResponse{Task: taskBodyFrom(task, r.materializer.Engine()), Instances: instances}, nil
}

// removeTask undoes a createTask. Errors are logged only.
func (r *Router) removeTask(ctx context.Context, taskID string) {
	unlock := r.locks.lock(taskID)
	defer unlock()

	if err := r.materializer.RemoveAll(ctx, taskID); err != nil {
		r.logger.Error("failed to roll back task instances",
			"task_id", taskID,
			"error", err)
	}
	if err := r.tasks.DeleteTask(ctx, taskID); err != nil {
		r.logger.Error("failed to roll back task",
			"task_id", taskID,
			"error", err)
	}
}

func (r *Router) setCompleted(w http.ResponseWriter, req *http.Request, eventID string, completed bool) {
	setter, ok := r.events.(storage.CompletionSetter)
	if !ok {
		http.Error(w, "Completion not supported by the event store", http.StatusNotImplemented)
		return
	}
	if err := setter.SetCompleted(req.Context(), eventID, completed); err != nil {
		r.writeError(w, err, "failed to set completion", "event_id", eventID)
		return
	}
	r.logger.Info("event completion changed",
		"event_id", eventID,
		"completed", completed)
	w.WriteHeader(http.StatusNoContent)
}

// preview expands a rule without touching any store.
func (r *Router) preview(w http.ResponseWriter, req *http.Request) {
	body, err := decodeBody[PreviewBody](w, req, r.validate).Get()
	if err != nil {
		r.writeError(w, err, "invalid preview body")
		return
	}
	due, err := parseDate(body.DueDate)
	if err != nil {
		r.writeError(w, err, "invalid preview body")
		return
	}
	rule, err := body.Recurrence.Rule().Get()
	if err != nil {
		r.writeError(w, err, "invalid preview body")
		return
	}

	engine := r.materializer.Engine()
	resp := PreviewResponse{Occurrences: engine.Expand(due, rule)}
	if rule != nil {
		resp.Label = rule.Label()
		if s, err := engine.RRuleString(due, rule); err == nil {
			resp.RRule = s
		}
	}
	r.writeJSON(w, http.StatusOK, resp)
}
