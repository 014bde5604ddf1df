package users

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const collectionName = "users"

// MongoRepository は MongoDB の users コレクションを使った Repository 実装です。
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository は MongoRepository を作成します。
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		coll: db.Collection(collectionName),
	}
}

// EnsureIndexes はメールアドレスのユニークインデックスを作成します。
// 重複登録の拒否はこのインデックスに依存するため、起動時に必ず呼びます。
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users: failed to create email index: %w", err)
	}
	return nil
}

// Create はユーザーを保存し、採番されたIDを書き戻します。
func (r *MongoRepository) Create(ctx context.Context, u *User) error {
	result, err := r.coll.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("users: insert failed: %w", err)
	}

	id, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return fmt.Errorf("users: unexpected inserted id type %T", result.InsertedID)
	}
	u.ID = id
	return nil
}

// FindByEmail はメールアドレスでユーザーを検索します。
func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: find by email failed: %w", err)
	}
	return &u, nil
}

// FindByID はIDでユーザーを検索します。
// 不正な形式のIDは削除済みユーザーと同じく ErrNotFound として扱います。
func (r *MongoRepository) FindByID(ctx context.Context, id string) (*User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var u User
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: find by id failed: %w", err)
	}
	return &u, nil
}
