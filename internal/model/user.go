// Package model はドメインモデルを定義する。
package model

import "time"

// Identity はセッションに保持される呼び出し元ユーザーの情報を表す。
// WeSignatureからのリダイレクト時に書き込まれ、以降の操作で参照される。
type Identity struct {
	UserID string `json:"user_id"`
	APIKey string `json:"api_key"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// Valid は必須項目がすべて揃っているかを返す。
func (i *Identity) Valid() bool {
	return i != nil && i.UserID != "" && i.APIKey != "" && i.Name != "" && i.Email != ""
}

// UserProfile はWeSignatureユーザーのプロフィールを表す。
// user_idで一意であり、作成後に削除されることはない。
type UserProfile struct {
	UserID       string    `bson:"user_id" json:"user_id"`
	APIKey       string    `bson:"api_key" json:"-"`
	Name         string    `bson:"name" json:"name"`
	LastName     string    `bson:"last_name,omitempty" json:"last_name,omitempty"`
	Email        string    `bson:"email" json:"email"`
	ParentURL    string    `bson:"parent_url,omitempty" json:"parent_url,omitempty"`
	ProfileImage string    `bson:"profile_image,omitempty" json:"profile_image,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}
