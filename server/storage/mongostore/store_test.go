package mongostore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/cyp0633/taskcal/server/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestRangeFilter(t *testing.T) {
	start, end := day(1), day(31)

	tests := []struct {
		name   string
		filter storage.Filter
		want   bson.M
	}{
		{
			name:   "Empty filter hides completed",
			filter: storage.Filter{},
			want:   bson.M{"completed": false},
		},
		{
			name:   "Everything",
			filter: storage.Filter{IncludeCompleted: true},
			want:   bson.M{},
		},
		{
			name:   "Range and user",
			filter: storage.Filter{Start: &start, End: &end, UserID: "alice", IncludeCompleted: true},
			want: bson.M{
				"instance_date":     bson.M{"$gte": start, "$lte": end},
				"assigned_user_ids": "alice",
			},
		},
		{
			name:   "Open end",
			filter: storage.Filter{Start: &start},
			want: bson.M{
				"instance_date": bson.M{"$gte": start},
				"completed":     false,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rangeFilter(tt.filter))
		})
	}
}

func TestWrapErr(t *testing.T) {
	assert.NoError(t, wrapErr("noop", nil))
	cause := errors.New("server selection timeout")
	err := wrapErr("find", cause)
	assert.True(t, storage.IsType(err, storage.ErrUnavailable))
	assert.ErrorIs(t, err, cause)
}

func TestStore_Integration(t *testing.T) {
	uri := os.Getenv("TASKCAL_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TASKCAL_TEST_MONGO_URI not set")
	}
	ctx := context.Background()

	s, err := Connect(ctx, uri, "taskcal_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })

	taskID := uuid.NewString()
	t.Cleanup(func() { _ = s.DeleteEventsByTaskID(ctx, taskID) })

	events := []storage.EventInstance{
		storage.NewMockInstance(uuid.NewString(), taskID, day(15), 1, "alice"),
		storage.NewMockInstance(uuid.NewString(), taskID, day(1), 0, "alice"),
	}
	require.NoError(t, s.InsertEvents(ctx, events))

	err = s.InsertEvents(ctx, events[:1])
	assert.True(t, storage.IsType(err, storage.ErrAlreadyExists), "err = %v", err)

	listed, err := s.ListEventsByTaskID(ctx, taskID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, events[1].ID, listed[0].ID)
	assert.Equal(t, day(1), listed[0].InstanceDate)

	require.NoError(t, s.SetCompleted(ctx, events[0].ID, true))
	start, end := day(1), day(31)
	ranged, err := s.ListEventsInRange(ctx, storage.Filter{Start: &start, End: &end, UserID: "alice"})
	require.NoError(t, err)
	ids := make([]string, 0, len(ranged))
	for _, e := range ranged {
		ids = append(ids, e.ID)
	}
	assert.Contains(t, ids, events[1].ID)
	assert.NotContains(t, ids, events[0].ID)

	assert.True(t, storage.IsType(s.SetCompleted(ctx, uuid.NewString(), true), storage.ErrNotFound))

	require.NoError(t, s.DeleteEventsByTaskID(ctx, taskID))
	listed, err = s.ListEventsByTaskID(ctx, taskID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}
