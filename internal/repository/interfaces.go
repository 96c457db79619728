// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/moviefav/internal/model"
)

// 一意制約違反を表すセンチネルエラー。
// サービス層はerrors.Isで判定し、409系のAPIErrorに変換する。
var (
	ErrEmailTaken        = errors.New("email already registered")
	ErrDuplicateFavorite = errors.New("favorite already exists")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は正規化済みemailでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。emailが既に存在する場合はErrEmailTakenを返す。
	Create(ctx context.Context, user *model.User) error
}

// FavoriteRepository はお気に入りデータの永続化インターフェース。
type FavoriteRepository interface {
	// Create はお気に入りを作成する。
	// 同一ユーザーが同じmovie_idを登録済みの場合はErrDuplicateFavoriteを返す。
	Create(ctx context.Context, fav *model.Favorite) error

	// ListByUserID は指定ユーザーのお気に入りをcreated_at昇順で返す。
	// 0件の場合は空スライスを返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Favorite, error)

	// DeleteByIDAndUserID はidとuser_idの両方が一致するお気に入りを削除する。
	// 削除対象が存在しなかった場合はfalseを返す。
	DeleteByIDAndUserID(ctx context.Context, id, userID string) (bool, error)
}
