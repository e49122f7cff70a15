package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hitoshi/signbridge/internal/model"
)

// UploadedFilesCollection はアップロード記録を保持するコレクション名。
// 契約一覧も同じコレクションから読み取る。
const UploadedFilesCollection = "uploadedfiles"

// MongoUploadedFileRepo はMongoDBを使用したアップロード記録リポジトリ。
type MongoUploadedFileRepo struct {
	coll *mongo.Collection
}

// NewMongoUploadedFileRepo はMongoUploadedFileRepoを生成する。
func NewMongoUploadedFileRepo(db *mongo.Database) *MongoUploadedFileRepo {
	return &MongoUploadedFileRepo{coll: db.Collection(UploadedFilesCollection)}
}

// Insert はアップロード記録を追加する。IDはMongoDBが採番する。
func (r *MongoUploadedFileRepo) Insert(ctx context.Context, file *model.UploadedFile) error {
	if _, err := r.coll.InsertOne(ctx, file); err != nil {
		return fmt.Errorf("failed to insert uploaded file: %w", err)
	}
	return nil
}

// MongoContractRepo はアップロード記録コレクションを契約一覧として読み取るリポジトリ。
type MongoContractRepo struct {
	coll *mongo.Collection
}

// NewMongoContractRepo はMongoContractRepoを生成する。
func NewMongoContractRepo(db *mongo.Database) *MongoContractRepo {
	return &MongoContractRepo{coll: db.Collection(UploadedFilesCollection)}
}

// CountByUserID はユーザーの契約数を返す。
func (r *MongoContractRepo) CountByUserID(ctx context.Context, userID string) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "userId", Value: userID}})
	if err != nil {
		return 0, fmt.Errorf("failed to count contracts: %w", err)
	}
	return n, nil
}

// ListByUserID はユーザーの契約をcreatedAt降順で取得する。contentは射影で除外する。
func (r *MongoContractRepo) ListByUserID(ctx context.Context, userID string, skip, limit int64) ([]model.Contract, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit).
		SetProjection(bson.D{{Key: "content", Value: 0}})

	cursor, err := r.coll.Find(ctx, bson.D{{Key: "userId", Value: userID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode contracts: %w", err)
	}

	contracts := make([]model.Contract, 0, len(docs))
	for _, doc := range docs {
		contracts = append(contracts, toContract(doc))
	}
	return contracts, nil
}

// toContract はBSONドキュメントをJSONに直列化可能な形へ変換する。
// ObjectIDは16進文字列、DateTimeはtime.Timeに置き換える。
func toContract(doc bson.M) model.Contract {
	c := make(model.Contract, len(doc))
	for k, v := range doc {
		switch tv := v.(type) {
		case bson.ObjectID:
			c[k] = tv.Hex()
		case bson.DateTime:
			c[k] = tv.Time().UTC()
		default:
			c[k] = v
		}
	}
	return c
}

// compile-time interface checks
var (
	_ UploadedFileRepository = (*MongoUploadedFileRepo)(nil)
	_ ContractRepository     = (*MongoContractRepo)(nil)
)
