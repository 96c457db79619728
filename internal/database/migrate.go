// Package database はPostgreSQL・Redisへの接続とスキーママイグレーションを提供する。
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// スキーマ定義はバイナリに埋め込み、実行環境にSQLファイルを配置しない。
//
//go:embed migrations/*.sql
var schemaFS embed.FS

// SchemaVersion はマイグレーション適用後のスキーマ状態。
type SchemaVersion struct {
	Version uint // 適用済みの最新マイグレーション番号（未適用なら0）
	Dirty   bool // 前回のマイグレーションが途中で失敗した場合true
}

// NewMigrator は埋め込みSQLをソースとするmigrateインスタンスを生成する。
// 呼び出し側でCloseすること。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(schemaFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded schema: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations はusers・favoritesテーブルのマイグレーションをすべて適用する。
// 適用済みの場合は何もしない。
func RunMigrations(databaseURL string) error {
	_, err := withMigrator(databaseURL, func(m *migrate.Migrate) error {
		return m.Up()
	})
	return err
}

// RollbackMigrations は直近steps件のマイグレーションを取り消し、取り消し後の状態を返す。
func RollbackMigrations(databaseURL string, steps int) (SchemaVersion, error) {
	if steps <= 0 {
		return SchemaVersion{}, fmt.Errorf("rollback steps must be positive: %d", steps)
	}
	return withMigrator(databaseURL, func(m *migrate.Migrate) error {
		return m.Steps(-steps)
	})
}

// CurrentVersion は現在のスキーマ状態を返す。
func CurrentVersion(databaseURL string) (SchemaVersion, error) {
	return withMigrator(databaseURL, func(*migrate.Migrate) error { return nil })
}

// withMigrator はfnを実行し、実行後のスキーマ状態を返す。
// ErrNoChangeは成功として扱う。
func withMigrator(databaseURL string, fn func(m *migrate.Migrate) error) (SchemaVersion, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return SchemaVersion{}, err
	}
	defer m.Close()

	if err := fn(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return SchemaVersion{}, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return SchemaVersion{}, nil
	}
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	return SchemaVersion{Version: version, Dirty: dirty}, nil
}
