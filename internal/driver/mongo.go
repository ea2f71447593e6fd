package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrInvalidMongoQuery = errors.New("invalid query format: expected [db.]collection.find(filter)")

type MongoDriver struct {
	uri    string
	client *mongo.Client
}

func NewMongoDriver(uri string) *MongoDriver {
	return &MongoDriver{uri: uri}
}

func (d *MongoDriver) Name() string {
	return "mongo"
}

func (d *MongoDriver) connect(ctx context.Context) (*mongo.Client, error) {
	if d.client == nil {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(d.uri))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		d.client = client
	}
	return d.client, nil
}

func (d *MongoDriver) Ping(ctx context.Context) error {
	client, err := d.connect(ctx)
	if err != nil {
		return err
	}
	return client.Ping(ctx, nil)
}

type findQuery struct {
	db         string
	collection string
	filter     bson.M
}

// parseFindQuery parses "db.collection.find({...})" or
// "collection.find({...})". The database defaults to the one in the URI.
func parseFindQuery(query string) (findQuery, error) {
	var q findQuery

	start := strings.Index(query, "(")
	end := strings.LastIndex(query, ")")
	if start == -1 || end == -1 || end < start {
		return q, ErrInvalidMongoQuery
	}

	filter := strings.TrimSpace(query[start+1 : end])
	if filter == "" {
		filter = "{}"
	}
	if err := json.Unmarshal([]byte(filter), &q.filter); err != nil {
		return q, fmt.Errorf("invalid filter JSON: %w", err)
	}

	segments := strings.Split(strings.TrimSpace(query[:start]), ".")
	if segments[len(segments)-1] != "find" {
		return q, errors.New("only 'find' command is supported")
	}

	switch len(segments) {
	case 3:
		q.db, q.collection = segments[0], segments[1]
	case 2:
		q.collection = segments[0]
	default:
		return q, ErrInvalidMongoQuery
	}
	if q.collection == "" {
		return q, ErrInvalidMongoQuery
	}
	return q, nil
}

func (d *MongoDriver) Query(ctx context.Context, query string) (RowStreamer, error) {
	q, err := parseFindQuery(query)
	if err != nil {
		return nil, err
	}

	client, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := client.Database(q.db).Collection(q.collection).Find(ctx, q.filter)
	if err != nil {
		return nil, fmt.Errorf("mongo find failed: %w", err)
	}
	return &MongoStreamer{cursor: cursor, ctx: ctx}, nil
}

func (d *MongoDriver) Close() error {
	if d.client != nil {
		return d.client.Disconnect(context.Background())
	}
	return nil
}

type staticColumn struct {
	name, typ string
}

func (c staticColumn) Name() string             { return c.name }
func (c staticColumn) DatabaseTypeName() string { return c.typ }

// MongoStreamer exposes each document as a single String column holding
// its JSON encoding.
type MongoStreamer struct {
	cursor *mongo.Cursor
	ctx    context.Context
	row    bson.M
	err    error
}

func (s *MongoStreamer) Columns() ([]string, error) {
	return []string{"document"}, nil
}

func (s *MongoStreamer) ColumnTypes() ([]ColumnType, error) {
	return []ColumnType{staticColumn{name: "document", typ: "String"}}, nil
}

func (s *MongoStreamer) Next() bool {
	if s.cursor.Next(s.ctx) {
		s.row = nil
		if err := s.cursor.Decode(&s.row); err != nil {
			s.err = err
			return false
		}
		return true
	}
	s.err = s.cursor.Err()
	return false
}

func (s *MongoStreamer) Scan(dest ...any) error {
	if len(dest) != 1 {
		return errors.New("expected exactly 1 destination for document")
	}

	data, err := json.Marshal(s.row)
	if err != nil {
		return err
	}

	switch v := dest[0].(type) {
	case *string:
		*v = string(data)
	case *any:
		*v = string(data)
	default:
		return errors.New("destination must be *string or *any")
	}
	return nil
}

func (s *MongoStreamer) Err() error {
	return s.err
}

func (s *MongoStreamer) Close() error {
	return s.cursor.Close(s.ctx)
}
