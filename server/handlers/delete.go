package handlers

import (
	"net/http"

	"github.com/cyp0633/taskcal/server/storage"
)

// handleDelete handles DELETE requests
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) {
	resourcePath, ok := r.resolve(w, req)
	if !ok {
		return
	}

	r.logger.Info("handling DELETE request",
		"path", req.URL.Path,
		"resource_type", resourcePath.Type)

	switch resourcePath.Type {
	case storage.ResourceTypeTask:
		unlock := r.locks.lock(resourcePath.TaskID)
		defer unlock()

		ctx := req.Context()
		if _, err := r.tasks.GetTask(ctx, resourcePath.TaskID); err != nil {
			r.writeError(w, err, "task not found for deletion", "task_id", resourcePath.TaskID)
			return
		}
		if err := r.materializer.RemoveAll(ctx, resourcePath.TaskID); err != nil {
			r.writeError(w, err, "failed to remove task instances", "task_id", resourcePath.TaskID)
			return
		}
		if err := r.tasks.DeleteTask(ctx, resourcePath.TaskID); err != nil {
			r.writeError(w, err, "failed to delete task", "task_id", resourcePath.TaskID)
			return
		}
		r.logger.Info("task deleted successfully",
			"task_id", resourcePath.TaskID)
		w.WriteHeader(http.StatusNoContent)

	case storage.ResourceTypeEventCompletion:
		r.setCompleted(w, req, resourcePath.EventID, false)

	default:
		http.Error(w, "Resource type not supported for DELETE", http.StatusMethodNotAllowed)
	}
}
