// Package favorite はユーザーごとのお気に入り映画の登録・一覧・削除を提供する。
// すべての操作は呼び出し元ユーザーの所有するレコードに限定される。
package favorite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/moviefav/internal/model"
	"github.com/hitoshi/moviefav/internal/repository"
)

// Sanitizer はお気に入りのメタデータを保存前に検証する。
type Sanitizer interface {
	Text(raw string) (string, error)
	ImageURL(raw string) (string, error)
}

// favoritesテーブルの列長（文字数）。
const (
	maxMovieIDLength = 64
	maxTitleLength   = 500
	maxYearLength    = 32
)

// movieIDPattern は映画APIの識別子（例: tt0133093）として受け付ける文字種。
var movieIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// AddInput はお気に入り登録の入力値。
type AddInput struct {
	MovieID string
	Title   string
	Poster  string
	Year    string
}

// Service はお気に入りに関するビジネスロジックを提供する。
type Service struct {
	repo      repository.FavoriteRepository
	sanitizer Sanitizer
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.FavoriteRepository, sanitizer Sanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Add はお気に入りを登録する。
// movieIdとtitleは必須。同じ映画を再登録した場合はDUPLICATE_FAVORITEを返す。
func (s *Service) Add(ctx context.Context, userID string, in AddInput) (*model.Favorite, error) {
	movieID := strings.TrimSpace(in.MovieID)
	title, titleErr := s.sanitizer.Text(in.Title)

	var missing []string
	if movieID == "" {
		missing = append(missing, "movieId")
	}
	if title == "" && titleErr == nil {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		return nil, model.NewMissingFieldError(missing...)
	}

	if !movieIDPattern.MatchString(movieID) {
		return nil, model.NewInvalidFieldError("movieId", "英数字と . _ - のみ使用できます")
	}
	if utf8.RuneCountInString(movieID) > maxMovieIDLength {
		return nil, model.NewInvalidFieldError("movieId", fmt.Sprintf("%d文字以内で指定してください", maxMovieIDLength))
	}

	if titleErr != nil {
		return nil, model.NewInvalidFieldError("title", "HTMLタグや文字参照は使用できません")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, model.NewInvalidFieldError("title", fmt.Sprintf("%d文字以内で指定してください", maxTitleLength))
	}

	year, err := s.sanitizer.Text(in.Year)
	if err != nil {
		return nil, model.NewInvalidFieldError("year", "HTMLタグや文字参照は使用できません")
	}
	if utf8.RuneCountInString(year) > maxYearLength {
		return nil, model.NewInvalidFieldError("year", fmt.Sprintf("%d文字以内で指定してください", maxYearLength))
	}

	poster, err := s.sanitizer.ImageURL(in.Poster)
	if err != nil {
		return nil, model.NewInvalidFieldError("poster", "http(s)のURLを指定してください")
	}

	fav := &model.Favorite{
		ID:        uuid.New().String(),
		UserID:    userID,
		MovieID:   movieID,
		Title:     title,
		Poster:    poster,
		Year:      year,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.Create(ctx, fav); err != nil {
		if errors.Is(err, repository.ErrDuplicateFavorite) {
			return nil, model.NewDuplicateFavoriteError(movieID)
		}
		return nil, fmt.Errorf("failed to create favorite: %w", err)
	}

	slog.Info("favorite added",
		slog.String("user_id", userID),
		slog.String("favorite_id", fav.ID),
		slog.String("movie_id", movieID),
	)
	return fav, nil
}

// List はユーザーのお気に入りを登録順で返す。0件の場合も空スライスを返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Favorite, error) {
	favorites, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	if favorites == nil {
		favorites = []*model.Favorite{}
	}
	return favorites, nil
}

// Remove はユーザー自身のお気に入りを削除する。
// 存在しない場合と他ユーザーの所有である場合はどちらもFAVORITE_NOT_FOUNDを返す。
func (s *Service) Remove(ctx context.Context, userID, favoriteID string) error {
	// UUID形式でないIDはDBに問い合わせず不存在として扱う
	if _, err := uuid.Parse(favoriteID); err != nil {
		return model.NewFavoriteNotFoundError(favoriteID)
	}

	deleted, err := s.repo.DeleteByIDAndUserID(ctx, favoriteID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	if !deleted {
		return model.NewFavoriteNotFoundError(favoriteID)
	}

	slog.Info("favorite removed",
		slog.String("user_id", userID),
		slog.String("favorite_id", favoriteID),
	)
	return nil
}
