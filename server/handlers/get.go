package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cyp0633/taskcal/server/storage"
)

// handleGet handles GET requests
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) {
	resourcePath, ok := r.resolve(w, req)
	if !ok {
		return
	}

	switch resourcePath.Type {
	case storage.ResourceTypeTasks:
		tasks, err := r.tasks.ListTasks(req.Context())
		if err != nil {
			r.writeError(w, err, "failed to list tasks")
			return
		}
		bodies := make([]TaskBody, 0, len(tasks))
		for _, task := range tasks {
			bodies = append(bodies, taskBodyFrom(task, r.materializer.Engine()))
		}
		r.writeJSON(w, http.StatusOK, bodies)

	case storage.ResourceTypeTask:
		task, err := r.tasks.GetTask(req.Context(), resourcePath.TaskID)
		if err != nil {
			r.writeError(w, err, "failed to get task", "task_id", resourcePath.TaskID)
			return
		}
		instances, err := r.events.ListEventsByTaskID(req.Context(), task.ID)
		if err != nil {
			r.writeError(w, err, "failed to list events", "task_id", task.ID)
			return
		}
		r.writeJSON(w, http.StatusOK, TaskResponse{
			Task:      taskBodyFrom(task, r.materializer.Engine()),
			Instances: instances,
		})

	case storage.ResourceTypeTaskEvents, storage.ResourceTypeTaskCalendar:
		if _, err := r.tasks.GetTask(req.Context(), resourcePath.TaskID); err != nil {
			r.writeError(w, err, "failed to get task", "task_id", resourcePath.TaskID)
			return
		}
		instances, err := r.events.ListEventsByTaskID(req.Context(), resourcePath.TaskID)
		if err != nil {
			r.writeError(w, err, "failed to list events", "task_id", resourcePath.TaskID)
			return
		}
		if resourcePath.Type == storage.ResourceTypeTaskEvents {
			r.writeJSON(w, http.StatusOK, instances)
			return
		}
		r.writeCalendar(w, instances)

	case storage.ResourceTypeEvents:
		r.listEventsInRange(w, req)

	default:
		http.Error(w, "Resource type not supported for GET", http.StatusMethodNotAllowed)
	}
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Router) writeCalendar(w http.ResponseWriter, instances []storage.EventInstance) {
	ics, err := storage.InstancesToICS(instances, r.now())
	if err != nil {
		r.writeError(w, err, "failed to render calendar")
		return
	}
	w.Header().Set(HeaderContentType, MimeTypeCalendar)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics))
}

// listEventsInRange answers the calendar renderer's range query:
// ?start=YYYY-MM-DD&end=YYYY-MM-DD&user=ID&include_completed=true
func (r *Router) listEventsInRange(w http.ResponseWriter, req *http.Request) {
	lister, ok := r.events.(storage.RangeLister)
	if !ok {
		http.Error(w, "Range queries not supported by the event store", http.StatusNotImplemented)
		return
	}

	query := req.URL.Query()
	filter := storage.Filter{UserID: query.Get("user")}
	var err error
	if filter.Start, err = optionalDate(query.Get("start")); err != nil {
		r.writeError(w, err, "invalid range query", "param", "start")
		return
	}
	if filter.End, err = optionalDate(query.Get("end")); err != nil {
		r.writeError(w, err, "invalid range query", "param", "end")
		return
	}
	if v := query.Get("include_completed"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			r.writeError(w, &storage.Error{Type: storage.ErrInvalidInput, Message: "invalid include_completed", Err: err}, "invalid range query")
			return
		}
		filter.IncludeCompleted = include
	}
	if filter.Start != nil && filter.End != nil && filter.End.Before(*filter.Start) {
		r.writeError(w, &storage.Error{Type: storage.ErrInvalidInput, Message: "end is before start"}, "invalid range query")
		return
	}

	instances, err := lister.ListEventsInRange(req.Context(), filter)
	if err != nil {
		r.writeError(w, err, "failed to list events in range")
		return
	}
	r.writeJSON(w, http.StatusOK, instances)
}
