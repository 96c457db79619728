package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/moviefav/internal/model"
)

// PostgresFavoriteRepo はPostgreSQLを使用したお気に入りリポジトリ。
type PostgresFavoriteRepo struct {
	db *sql.DB
}

// NewPostgresFavoriteRepo はPostgresFavoriteRepoを生成する。
func NewPostgresFavoriteRepo(db *sql.DB) *PostgresFavoriteRepo {
	return &PostgresFavoriteRepo{db: db}
}

// Create はお気に入りを作成する。
func (r *PostgresFavoriteRepo) Create(ctx context.Context, fav *model.Favorite) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO favorites (id, user_id, movie_id, title, poster, year, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		fav.ID, fav.UserID, fav.MovieID, fav.Title, fav.Poster, fav.Year, fav.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateFavorite
	}
	if err != nil {
		return fmt.Errorf("お気に入りの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByUserID は指定ユーザーのお気に入りを登録順で返す。
// created_atが同一の場合はidで順序を確定させる。
func (r *PostgresFavoriteRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Favorite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, movie_id, title, poster, year, created_at
		 FROM favorites
		 WHERE user_id = $1
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	favorites := make([]*model.Favorite, 0)
	for rows.Next() {
		fav := &model.Favorite{}
		if err := rows.Scan(&fav.ID, &fav.UserID, &fav.MovieID, &fav.Title, &fav.Poster, &fav.Year, &fav.CreatedAt); err != nil {
			return nil, fmt.Errorf("お気に入りのスキャンに失敗しました: %w", err)
		}
		favorites = append(favorites, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("お気に入り一覧の走査に失敗しました: %w", err)
	}

	return favorites, nil
}

// DeleteByIDAndUserID は所有者条件付きでお気に入りを削除する。
// 存在確認と削除を1文で行うため、他ユーザーの行は決して削除されない。
func (r *PostgresFavoriteRepo) DeleteByIDAndUserID(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ FavoriteRepository = (*PostgresFavoriteRepo)(nil)
