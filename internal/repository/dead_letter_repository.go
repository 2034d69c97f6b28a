package repository

import (
	"context"

	"agriconecta-api/internal/notify"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDeadLetterRepository guarda las notificaciones que agotaron los reintentos.
type MongoDeadLetterRepository struct {
	col *mongo.Collection
}

func NewMongoDeadLetterRepository(db *mongo.Database) *MongoDeadLetterRepository {
	return &MongoDeadLetterRepository{col: db.Collection("notification_dead_letters")}
}

func (m *MongoDeadLetterRepository) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "failed_at", Value: -1}}},
		{Keys: bson.D{{Key: "notification.order_id", Value: 1}}},
	})
	return err
}

func (m *MongoDeadLetterRepository) Save(ctx context.Context, dl notify.DeadLetter) error {
	_, err := m.col.InsertOne(ctx, dl)
	return err
}

// List devuelve las más recientes primero.
func (m *MongoDeadLetterRepository) List(ctx context.Context, limit int64) ([]notify.DeadLetter, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "failed_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := m.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []notify.DeadLetter
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
