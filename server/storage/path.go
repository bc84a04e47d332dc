package storage

import (
	"fmt"
	"strings"
)

// ResourceType represents the type of an API resource
type ResourceType int

const (
	ResourceTypeTasks ResourceType = iota
	ResourceTypeTask
	ResourceTypeTaskEvents
	ResourceTypeTaskCalendar
	ResourceTypeEvents
	ResourceTypeEventCompletion
	ResourceTypePreview
)

// String returns the string representation of the ResourceType
func (rt ResourceType) String() string {
	switch rt {
	case ResourceTypeTasks:
		return "tasks"
	case ResourceTypeTask:
		return "task"
	case ResourceTypeTaskEvents:
		return "task-events"
	case ResourceTypeTaskCalendar:
		return "task-calendar"
	case ResourceTypeEvents:
		return "events"
	case ResourceTypeEventCompletion:
		return "event-completion"
	case ResourceTypePreview:
		return "preview"
	default:
		return "unknown"
	}
}

// ResourcePath represents a parsed API resource path
type ResourcePath struct {
	Type    ResourceType
	TaskID  string
	EventID string
}

// String returns the string representation of the ResourcePath
func (rp *ResourcePath) String() string {
	switch rp.Type {
	case ResourceTypeTasks:
		return "/tasks"
	case ResourceTypeTask:
		return fmt.Sprintf("/tasks/%s", rp.TaskID)
	case ResourceTypeTaskEvents:
		return fmt.Sprintf("/tasks/%s/events", rp.TaskID)
	case ResourceTypeTaskCalendar:
		return fmt.Sprintf("/tasks/%s/events.ics", rp.TaskID)
	case ResourceTypeEvents:
		return "/events"
	case ResourceTypeEventCompletion:
		return fmt.Sprintf("/events/%s/complete", rp.EventID)
	case ResourceTypePreview:
		return "/preview"
	default:
		return ""
	}
}

// ParseResourcePath parses an API path into its components
func ParseResourcePath(path string) (*ResourcePath, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("invalid path format")
		}
	}

	switch parts[0] {
	case "tasks":
		switch len(parts) {
		case 1:
			// /tasks
			return &ResourcePath{Type: ResourceTypeTasks}, nil
		case 2:
			// /tasks/<taskid>
			return &ResourcePath{Type: ResourceTypeTask, TaskID: parts[1]}, nil
		case 3:
			// /tasks/<taskid>/events[.ics]
			switch parts[2] {
			case "events":
				return &ResourcePath{Type: ResourceTypeTaskEvents, TaskID: parts[1]}, nil
			case "events.ics":
				return &ResourcePath{Type: ResourceTypeTaskCalendar, TaskID: parts[1]}, nil
			}
		}
	case "events":
		if len(parts) == 1 {
			return &ResourcePath{Type: ResourceTypeEvents}, nil
		}
		// /events/<eventid>/complete
		if len(parts) == 3 && parts[2] == "complete" {
			return &ResourcePath{Type: ResourceTypeEventCompletion, EventID: parts[1]}, nil
		}
	case "preview":
		if len(parts) == 1 {
			return &ResourcePath{Type: ResourceTypePreview}, nil
		}
	}

	return nil, fmt.Errorf("invalid path format")
}
