// Package mongostore keeps event instances in a MongoDB collection.
package mongostore

import (
	"context"
	"time"

	"github.com/cyp0633/taskcal/server/recurrence"
	"github.com/cyp0633/taskcal/server/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "event_instances"

// Store implements storage.EventStore, storage.RangeLister and
// storage.CompletionSetter on a mongo collection.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var (
	_ storage.EventStore       = (*Store)(nil)
	_ storage.RangeLister      = (*Store)(nil)
	_ storage.CompletionSetter = (*Store)(nil)
)

// New wraps an existing collection.
func New(collection *mongo.Collection) *Store {
	return &Store{collection: collection}
}

// Connect dials uri, checks the server and prepares the collection's indexes.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, wrapErr("connect", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, wrapErr("ping", err)
	}

	s := New(client.Database(database).Collection(CollectionName))
	s.client = client
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// Close disconnects the client if the store owns one.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the task and date indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "task_id", Value: 1},
				{Key: "index", Value: 1},
			},
			Options: options.Index().SetName("task_instances"),
		},
		{
			Keys: bson.D{
				{Key: "instance_date", Value: 1},
				{Key: "task_id", Value: 1},
			},
			Options: options.Index().SetName("instance_date"),
		},
		{
			Keys:    bson.D{{Key: "assigned_user_ids", Value: 1}},
			Options: options.Index().SetName("assigned_users"),
		},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return wrapErr("create indexes", err)
	}
	return nil
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: op, Err: err}
	}
	return &storage.Error{Type: storage.ErrUnavailable, Message: op, Err: err}
}

func (s *Store) InsertEvents(ctx context.Context, events []storage.EventInstance) error {
	if len(events) == 0 {
		return nil
	}
	docs := make([]any, 0, len(events))
	for _, e := range events {
		if e.AssignedUserIDs == nil {
			e.AssignedUserIDs = []string{}
		}
		docs = append(docs, e)
	}
	_, err := s.collection.InsertMany(ctx, docs)
	return wrapErr("insert events", err)
}

func (s *Store) DeleteEventsByTaskID(ctx context.Context, taskID string) error {
	_, err := s.collection.DeleteMany(ctx, bson.M{"task_id": taskID})
	return wrapErr("delete events", err)
}

func (s *Store) ListEventsByTaskID(ctx context.Context, taskID string) ([]storage.EventInstance, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "instance_date", Value: 1},
		{Key: "index", Value: 1},
	})
	return s.find(ctx, bson.M{"task_id": taskID}, opts)
}

func (s *Store) ListEventsInRange(ctx context.Context, filter storage.Filter) ([]storage.EventInstance, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "instance_date", Value: 1},
		{Key: "task_id", Value: 1},
		{Key: "index", Value: 1},
	})
	return s.find(ctx, rangeFilter(filter), opts)
}

// rangeFilter translates a storage filter into a mongo query document.
func rangeFilter(filter storage.Filter) bson.M {
	query := bson.M{}
	date := bson.M{}
	if filter.Start != nil {
		date["$gte"] = *filter.Start
	}
	if filter.End != nil {
		date["$lte"] = *filter.End
	}
	if len(date) > 0 {
		query["instance_date"] = date
	}
	if filter.UserID != "" {
		query["assigned_user_ids"] = filter.UserID
	}
	if !filter.IncludeCompleted {
		query["completed"] = false
	}
	return query
}

func (s *Store) SetCompleted(ctx context.Context, instanceID string, completed bool) error {
	result, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": instanceID},
		bson.M{"$set": bson.M{"completed": completed}})
	if err != nil {
		return wrapErr("set completed", err)
	}
	if result.MatchedCount == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "event instance not found"}
	}
	return nil
}

func (s *Store) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]storage.EventInstance, error) {
	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, wrapErr("find events", err)
	}
	defer cursor.Close(ctx)

	events := make([]storage.EventInstance, 0)
	if err := cursor.All(ctx, &events); err != nil {
		return nil, wrapErr("decode events", err)
	}
	for i := range events {
		events[i].InstanceDate = recurrence.DateOf(events[i].InstanceDate)
	}
	return events, nil
}
