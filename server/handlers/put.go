package handlers

import (
	"net/http"

	"github.com/cyp0633/taskcal/server/storage"
)

// handlePut handles PUT requests
func (r *Router) handlePut(w http.ResponseWriter, req *http.Request) {
	resourcePath, ok := r.resolve(w, req)
	if !ok {
		return
	}

	if resourcePath.Type != storage.ResourceTypeTask {
		http.Error(w, "Resource type not supported for PUT", http.StatusMethodNotAllowed)
		return
	}

	body, err := decodeBody[TaskBody](w, req, r.validate).Get()
	if err != nil {
		r.writeError(w, err, "invalid task body", "task_id", resourcePath.TaskID)
		return
	}
	if body.ID != "" && body.ID != resourcePath.TaskID {
		r.writeError(w, &storage.Error{Type: storage.ErrInvalidInput, Message: "task id does not match path"},
			"invalid task body", "task_id", resourcePath.TaskID)
		return
	}
	body.ID = resourcePath.TaskID

	task, err := body.Task().Get()
	if err != nil {
		r.writeError(w, err, "invalid task body", "task_id", resourcePath.TaskID)
		return
	}

	unlock := r.locks.lock(task.ID)
	defer unlock()

	ctx := req.Context()
	if _, err := r.tasks.GetTask(ctx, task.ID); err != nil {
		r.writeError(w, err, "failed to get task", "task_id", task.ID)
		return
	}
	if err := r.tasks.PutTask(ctx, task); err != nil {
		r.writeError(w, err, "failed to store task", "task_id", task.ID)
		return
	}
	instances, err := r.materializer.Rematerialize(ctx, task)
	if err != nil {
		r.writeError(w, err, "failed to rematerialize task", "task_id", task.ID)
		return
	}

	r.logger.Info("task updated",
		"task_id", task.ID,
		"instances", len(instances))
	r.writeJSON(w, http.StatusOK, TaskResponse{
		Task:      taskBodyFrom(task, r.materializer.Engine()),
		Instances: instances,
	})
}
