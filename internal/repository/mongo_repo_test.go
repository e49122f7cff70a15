package repository

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MongoUserRepoはUserProfileRepositoryインターフェースを満たすことを検証
func TestMongoUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserProfileRepository = (*MongoUserRepo)(nil)
}

// MongoUploadedFileRepoはUploadedFileRepositoryインターフェースを満たすことを検証
func TestMongoUploadedFileRepo_ImplementsInterface(t *testing.T) {
	var _ UploadedFileRepository = (*MongoUploadedFileRepo)(nil)
}

// MongoContractRepoはContractRepositoryインターフェースを満たすことを検証
func TestMongoContractRepo_ImplementsInterface(t *testing.T) {
	var _ ContractRepository = (*MongoContractRepo)(nil)
}

// toContractがObjectIDとDateTimeをJSON向けの値に変換することを検証
func TestToContract_ConvertsBSONTypes(t *testing.T) {
	oid := bson.NewObjectID()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	got := toContract(bson.M{
		"_id":       oid,
		"userId":    "u-1",
		"createdAt": bson.NewDateTimeFromTime(created),
		"action":    "wesignature",
	})

	if got["_id"] != oid.Hex() {
		t.Errorf("_id = %v, want %s", got["_id"], oid.Hex())
	}
	if ts, ok := got["createdAt"].(time.Time); !ok || !ts.Equal(created) {
		t.Errorf("createdAt = %v, want %v", got["createdAt"], created)
	}
	if got["userId"] != "u-1" || got["action"] != "wesignature" {
		t.Errorf("plain fields not preserved: %+v", got)
	}
}
