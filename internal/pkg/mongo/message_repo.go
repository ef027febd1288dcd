package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MessageRepo interface {
	SaveMessage(ctx context.Context, msg *ArchivedMessage) error
	GetHistory(ctx context.Context, a, b []string, limit int) ([]*ArchivedMessage, error)
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database, collection string) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection(collection),
	}
}

// SaveMessage 按 _id upsert，重试不会产生重复
func (s *messageRepoImpl) SaveMessage(ctx context.Context, msg *ArchivedMessage) error {
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": msg.ID}, msg, options.Replace().SetUpsert(true))
	return err
}

// GetHistory a、b 为双方的全部标识，返回最近 limit 条，从旧到新
func (s *messageRepoImpl) GetHistory(ctx context.Context, a, b []string, limit int) ([]*ArchivedMessage, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_ids": bson.M{"$in": a}, "receiver_ids": bson.M{"$in": b}},
		bson.M{"sender_ids": bson.M{"$in": b}, "receiver_ids": bson.M{"$in": a}},
	}}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var messages []*ArchivedMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
