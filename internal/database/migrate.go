// Package database はMongoDB・Redisへの接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mongodb"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.json
var migrationsFS embed.FS

// MigrationURL はmongoURLにデータベース名を埋め込んだマイグレーション用URLを返す。
// golang-migrateのmongodbドライバはURLのパスからデータベース名を読み取る。
func MigrationURL(mongoURL, database string) (string, error) {
	u, err := url.Parse(mongoURL)
	if err != nil {
		return "", fmt.Errorf("invalid mongo url: %w", err)
	}
	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return "", fmt.Errorf("unsupported mongo url scheme: %q", u.Scheme)
	}
	if database == "" {
		database = strings.TrimPrefix(u.Path, "/")
	}
	if database == "" {
		return "", errors.New("database name is required")
	}
	u.Path = "/" + database
	return u.String(), nil
}

// NewMigrator はマイグレーション実行用のmigrateインスタンスを生成する。
func NewMigrator(mongoURL, database string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	dbURL, err := MigrationURL(mongoURL, database)
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations はすべてのマイグレーション（インデックス作成）を適用する。
// すでに最新の場合はエラーなしで返る。
func RunMigrations(mongoURL, database string) error {
	m, err := NewMigrator(mongoURL, database)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
