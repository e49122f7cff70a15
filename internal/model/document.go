// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Action はアップロードされたファイルに対して行われた操作を表す。
type Action string

const (
	// ActionSignature は署名依頼としてWeSignatureに送信したことを示す。
	ActionSignature Action = "wesignature"
	// ActionFile はWeFileに保存したことを示す。
	ActionFile Action = "wefile"
	// ActionTemplate はテンプレートとして保存したことを示す。
	ActionTemplate Action = "template"
)

// Valid は定義済みのアクションかを返す。
func (a Action) Valid() bool {
	switch a {
	case ActionSignature, ActionFile, ActionTemplate:
		return true
	default:
		return false
	}
}

// UploadedFile はアップロードされたファイルと実行された操作の監査記録を表す。
// 追記専用であり、このシステムから更新・削除されることはない。
type UploadedFile struct {
	ID        string    `bson:"_id,omitempty" json:"_id,omitempty"`
	UserID    string    `bson:"userId" json:"userId"`
	Email     string    `bson:"email" json:"email"`
	Name      string    `bson:"name" json:"name"`
	Filename  string    `bson:"filename" json:"filename"`
	Content   string    `bson:"content" json:"-"` // base64
	Action    Action    `bson:"action" json:"action"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Contract は一覧表示用の契約レコード。
// 外部のアップロードフローで作成されたドキュメントの任意フィールドをそのまま保持する。
type Contract map[string]any

// ContractPage はページネーション付きの契約一覧。
type ContractPage struct {
	Data           []Contract
	TotalDocuments int64
	CurrentPage    int
	TotalPages     int
}

// Signer は署名依頼の送付先（名前とメールアドレス）を表す。
// メールアドレスが不明な第三者は空文字列となり、収集はWeSignature側で行われる。
type Signer struct {
	Name  string `json:"name"`
	Email string `json:"email_address"`
}

// NormalizeName は名前を比較用に正規化する。
// 前後の空白を除去し、小文字化し、連続する空白を1つにまとめる。
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
