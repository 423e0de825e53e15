package planstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/temotskipa/autoredistrict/pkg/plan"
)

// MongoStore keeps plans in a MongoDB collection, for multi-instance server
// deployments.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// planDoc is the stored document. The full plan rides along as JSON so the
// collection schema stays stable when the plan format grows fields.
type planDoc struct {
	ID           string    `bson:"_id"`
	CreatedAt    time.Time `bson:"created_at"`
	Districts    int       `bson:"districts"`
	Population   int64     `bson:"population"`
	MaxDeviation float64   `bson:"max_deviation"`
	Data         []byte    `bson:"data"`
}

// NewMongoStore connects to MongoDB at uri and verifies the connection.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection("plans"),
	}, nil
}

func (s *MongoStore) Save(ctx context.Context, p *plan.Plan) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	info := infoOf(p)
	doc := planDoc{
		ID:           p.ID,
		CreatedAt:    p.CreatedAt,
		Districts:    info.Districts,
		Population:   info.Population,
		MaxDeviation: info.MaxDeviation,
		Data:         data,
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*plan.Plan, error) {
	var doc planDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find plan: %w", err)
	}
	var p plan.Plan
	if err := json.Unmarshal(doc.Data, &p); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", id, err)
	}
	return &p, nil
}

func (s *MongoStore) List(ctx context.Context) ([]Info, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"data": 0})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer cur.Close(ctx)

	var infos []Info
	for cur.Next(ctx) {
		var doc planDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode plan doc: %w", err)
		}
		infos = append(infos, Info{
			ID:           doc.ID,
			CreatedAt:    doc.CreatedAt,
			Districts:    doc.Districts,
			Population:   doc.Population,
			MaxDeviation: doc.MaxDeviation,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return infos, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

var _ Store = (*MongoStore)(nil)
