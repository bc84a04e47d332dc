package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cyp0633/taskcal/server/recurrence"
	"github.com/cyp0633/taskcal/server/storage"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/mo"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// RuleBody is the wire form of a recurrence rule, used in requests and
// responses. Dates are YYYY-MM-DD.
type RuleBody struct {
	Kind      string `json:"kind" validate:"required,oneof=standard custom"`
	Pattern   string `json:"pattern,omitempty" validate:"required_if=Kind standard,omitempty,frequency"`
	Frequency string `json:"frequency,omitempty" validate:"required_if=Kind custom,omitempty,frequency"`
	Interval  int    `json:"interval,omitempty"` // non-positive means 1
	Weekdays  []int  `json:"weekdays,omitempty" validate:"omitempty,dive,weekday"`
	MonthDay  int    `json:"month_day,omitempty"`
	EndKind   string `json:"end_kind,omitempty" validate:"omitempty,oneof=never on_date after_occurrences"`
	EndDate   string `json:"end_date,omitempty" validate:"required_if=EndKind on_date,omitempty,datetime=2006-01-02"`
	EndCount  int    `json:"end_count,omitempty"`
}

// TaskBody is the wire form of a task.
type TaskBody struct {
	ID              string           `json:"id,omitempty" validate:"omitempty,max=128,excludesall=/"`
	Title           string           `json:"title" validate:"required,max=512"`
	DueDate         string           `json:"due_date" validate:"required,datetime=2006-01-02"`
	IsRecurring     bool             `json:"is_recurring"`
	Recurrence      *RuleBody        `json:"recurrence,omitempty" validate:"required_if=IsRecurring true"`
	AssignedUserIDs []string         `json:"assigned_user_ids,omitempty" validate:"omitempty,dive,required"`
	Type            storage.TaskType `json:"type,omitempty" validate:"omitempty,oneof=task meeting reminder payment"`

	// RRule is filled in responses only.
	RRule string `json:"rrule,omitempty"`
}

// PreviewBody asks for an expansion without touching any store.
type PreviewBody struct {
	DueDate    string    `json:"due_date" validate:"required,datetime=2006-01-02"`
	Recurrence *RuleBody `json:"recurrence,omitempty"`
}

// PreviewResponse is the result of a preview.
type PreviewResponse struct {
	Label       string                      `json:"label,omitempty"`
	RRule       string                      `json:"rrule,omitempty"`
	Occurrences []recurrence.OccurrenceDate `json:"occurrences"`
}

// TaskResponse pairs a task with its current instances.
type TaskResponse struct {
	Task      TaskBody                `json:"task"`
	Instances []storage.EventInstance `json:"instances"`
}

// newValidator registers the custom tags used by the request bodies.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		d := fl.Field().Int()
		return d >= int64(time.Sunday) && d <= int64(time.Saturday)
	})
	_ = v.RegisterValidation("frequency", func(fl validator.FieldLevel) bool {
		_, err := recurrence.ParseFrequency(fl.Field().String())
		return err == nil
	})
	return v
}

// decodeBody reads and validates a JSON body.
func decodeBody[T any](w http.ResponseWriter, req *http.Request, v *validator.Validate) mo.Result[*T] {
	var body T
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return mo.Err[*T](&storage.Error{Type: storage.ErrInvalidInput, Message: "malformed JSON body", Err: err})
	}
	if err := v.Struct(&body); err != nil {
		return mo.Err[*T](&storage.Error{Type: storage.ErrInvalidInput, Message: "invalid request", Err: err})
	}
	return mo.Ok(&body)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(recurrence.DateLayout, s)
	if err != nil {
		return time.Time{}, &storage.Error{Type: storage.ErrInvalidInput, Message: fmt.Sprintf("invalid date %q", s), Err: err}
	}
	return t, nil
}

// Rule converts the body into a recurrence rule.
func (b *RuleBody) Rule() mo.Result[recurrence.Rule] {
	if b == nil {
		return mo.Ok[recurrence.Rule](nil)
	}
	spec := &recurrence.RuleSpec{
		Kind:      b.Kind,
		Pattern:   recurrence.Frequency(b.Pattern),
		Frequency: recurrence.Frequency(b.Frequency),
		Interval:  b.Interval,
		Weekdays:  b.Weekdays,
		MonthDay:  b.MonthDay,
		EndKind:   b.EndKind,
		EndCount:  b.EndCount,
	}
	if b.EndDate != "" {
		d, err := parseDate(b.EndDate)
		if err != nil {
			return mo.Err[recurrence.Rule](err)
		}
		spec.EndDate = &d
	}
	rule, err := spec.Rule()
	if err != nil {
		return mo.Err[recurrence.Rule](&storage.Error{Type: storage.ErrInvalidInput, Message: "invalid recurrence", Err: err})
	}
	return mo.Ok(rule)
}

// ruleBodyFrom is the inverse of RuleBody.Rule.
func ruleBodyFrom(rule recurrence.Rule) *RuleBody {
	spec := recurrence.SpecFromRule(rule)
	if spec == nil {
		return nil
	}
	b := &RuleBody{
		Kind:      spec.Kind,
		Pattern:   string(spec.Pattern),
		Frequency: string(spec.Frequency),
		Interval:  spec.Interval,
		Weekdays:  spec.Weekdays,
		MonthDay:  spec.MonthDay,
		EndKind:   spec.EndKind,
		EndCount:  spec.EndCount,
	}
	if spec.EndDate != nil {
		b.EndDate = spec.EndDate.Format(recurrence.DateLayout)
	}
	return b
}

// Task converts the body into a task. A missing id is generated.
func (b *TaskBody) Task() mo.Result[*storage.Task] {
	due, err := parseDate(b.DueDate)
	if err != nil {
		return mo.Err[*storage.Task](err)
	}
	rule, err := b.Recurrence.Rule().Get()
	if err != nil {
		return mo.Err[*storage.Task](err)
	}

	task := &storage.Task{
		ID:              b.ID,
		Title:           b.Title,
		DueDate:         due,
		IsRecurring:     b.IsRecurring && rule != nil,
		AssignedUserIDs: b.AssignedUserIDs,
		Type:            b.Type,
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Type == "" {
		task.Type = storage.TaskTypeTask
	}
	if task.IsRecurring {
		task.Recurrence = mo.Some(rule)
	}
	return mo.Ok(task)
}

// taskBodyFrom renders a task, including its RRULE when it recurs.
func taskBodyFrom(task *storage.Task, engine *recurrence.Engine) TaskBody {
	b := TaskBody{
		ID:              task.ID,
		Title:           task.Title,
		DueDate:         task.DueDate.Format(recurrence.DateLayout),
		IsRecurring:     task.Rule() != nil,
		Recurrence:      ruleBodyFrom(task.Rule()),
		AssignedUserIDs: task.AssignedUserIDs,
		Type:            task.Type,
	}
	if s, err := engine.RRuleString(task.DueDate, task.Rule()); err == nil {
		b.RRule = s
	}
	return b
}
