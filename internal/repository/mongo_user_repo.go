package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hitoshi/signbridge/internal/model"
)

// UsersCollection はユーザープロフィールを保持するコレクション名。
const UsersCollection = "users"

// MongoUserRepo はMongoDBを使用したユーザープロフィールリポジトリ。
type MongoUserRepo struct {
	coll *mongo.Collection
}

// NewMongoUserRepo はMongoUserRepoを生成する。
func NewMongoUserRepo(db *mongo.Database) *MongoUserRepo {
	return &MongoUserRepo{coll: db.Collection(UsersCollection)}
}

// FindByUserID は指定user_idのプロフィールを取得する。見つからない場合はnilを返す。
func (r *MongoUserRepo) FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error) {
	var profile model.UserProfile
	err := r.coll.FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user profile: %w", err)
	}
	return &profile, nil
}

// CreateIfAbsent は$setOnInsertによるupsertでプロフィールを作成する。
// 既存ドキュメントには一切書き込まない。
func (r *MongoUserRepo) CreateIfAbsent(ctx context.Context, profile *model.UserProfile) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "user_id", Value: profile.UserID}},
		bson.D{{Key: "$setOnInsert", Value: profile}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		// 同時リクエストでunique indexに衝突した場合は既存扱いとする
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create user profile: %w", err)
	}
	return res.UpsertedCount > 0, nil
}

// compile-time interface check
var _ UserProfileRepository = (*MongoUserRepo)(nil)
