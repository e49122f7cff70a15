// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/signbridge/internal/model"
)

// SessionRepository はセッションIdentityの永続化インターフェース。
type SessionRepository interface {
	// Save はトークンに紐づくIdentityをTTL付きで保存する。同一トークンは上書きされる。
	Save(ctx context.Context, token string, identity *model.Identity, ttl time.Duration) error
	// FindByToken はトークンに紐づくIdentityを取得する。存在しないか期限切れの場合はnilを返す。
	FindByToken(ctx context.Context, token string) (*model.Identity, error)
	// Delete はトークンに紐づくIdentityを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, token string) error
}

// UserProfileRepository はユーザープロフィールの永続化インターフェース。
type UserProfileRepository interface {
	// FindByUserID は指定user_idのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error)

	// CreateIfAbsent はプロフィールが存在しない場合のみ作成する。
	// 既存のプロフィールは変更しない。作成した場合はtrueを返す。
	CreateIfAbsent(ctx context.Context, profile *model.UserProfile) (bool, error)
}

// UploadedFileRepository はアップロード記録の永続化インターフェース。
// 追記専用で、更新・削除は提供しない。
type UploadedFileRepository interface {
	Insert(ctx context.Context, file *model.UploadedFile) error
}

// ContractRepository は契約レコードの読み取りインターフェース。
type ContractRepository interface {
	// CountByUserID はユーザーの契約数を返す。
	CountByUserID(ctx context.Context, userID string) (int64, error)

	// ListByUserID はユーザーの契約をcreatedAt降順で取得する。
	// 本文（base64のcontent）は含めない。
	ListByUserID(ctx context.Context, userID string, skip, limit int64) ([]model.Contract, error)
}
