/*
Package handlers exposes the task calendar over a small JSON API.

# Basic Usage

The simplest way to use this package is with the provided in-memory storage:

	store := memory.New()
	m := materialize.New(store)
	router := handlers.NewRouter(store, store, m, "/api", nil)
	http.Handle("/api/", router)
	http.ListenAndServe(":8080", nil)

# URL Scheme

The router uses a fixed URL scheme below its base URI:
  - /tasks - List (GET) or create (POST) tasks. A text/calendar body
    imports every VTODO and VEVENT it contains.
  - /tasks/<taskid> - Read (GET), replace (PUT) or delete (DELETE) a task
  - /tasks/<taskid>/events - The task's event instances as JSON
  - /tasks/<taskid>/events.ics - The same instances as an iCalendar feed
  - /events?start=&end=&user=&include_completed= - Instances in a date range
  - /events/<eventid>/complete - Mark (POST) or unmark (DELETE) an instance done
  - /preview - Expand a rule without storing anything
  - /metrics - Prometheus metrics

Dates are YYYY-MM-DD calendar dates. Range bounds are inclusive.

# Custom Storage Backend

Any pair of storage.TaskStore and storage.EventStore works. Range queries
and completion need the event store to also implement storage.RangeLister
and storage.CompletionSetter; without them those endpoints answer 501.

# Error Handling

Storage errors map onto status codes:

	storage.ErrNotFound      -> 404
	storage.ErrAlreadyExists -> 409
	storage.ErrInvalidInput  -> 400
	anything else            -> 500
*/
package handlers
