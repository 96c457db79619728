// Package auth はユーザー登録・ログインとベアラートークンの発行・検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/moviefav/internal/model"
	"github.com/hitoshi/moviefav/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BcryptCost int // パスワードハッシュのコスト（既定: bcrypt.DefaultCost）
}

// usersテーブルの列長（文字数）。
const (
	maxUsernameLength = 100
	maxEmailLength    = 320
)

// Result は登録・ログイン成功時に返すユーザーとトークンの組。
type Result struct {
	User  *model.User
	Token string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	issuer    *Issuer
	cost      int
	dummyHash []byte
	now       func() time.Time
}

// NewService はServiceを生成する。
// 存在しないemailでのログイン時にも比較処理を行うため、起動時にダミーハッシュを1つ生成する。
func NewService(userRepo repository.UserRepository, issuer *Issuer, config ServiceConfig) *Service {
	cost := config.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("moviefav-dummy-password"), cost)
	if err != nil {
		slog.Warn("failed to generate dummy password hash", slog.String("error", err.Error()))
	}

	return &Service{
		userRepo:  userRepo,
		issuer:    issuer,
		cost:      cost,
		dummyHash: dummy,
		now:       time.Now,
	}
}

// NormalizeEmail はemailを前後空白除去・小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register はユーザーを新規登録し、トークンを発行する。
// 同じemail（大文字小文字を区別しない）が登録済みの場合はEMAIL_TAKENを返す。
func (s *Service) Register(ctx context.Context, username, email, password string) (*Result, error) {
	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)

	var missing []string
	if username == "" {
		missing = append(missing, "username")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, model.NewMissingFieldError(missing...)
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, model.NewInvalidFieldError("username", fmt.Sprintf("%d文字以内で指定してください", maxUsernameLength))
	}
	if utf8.RuneCountInString(email) > maxEmailLength {
		return nil, model.NewInvalidFieldError("email", fmt.Sprintf("%d文字以内で指定してください", maxEmailLength))
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, model.NewInvalidFieldError("password", "72バイト以内で指定してください")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	return &Result{User: user, Token: token}, nil
}

// Login はemailとパスワードで認証し、トークンを発行する。
// ユーザー不存在とパスワード不一致はどちらもINVALID_CREDENTIALSを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = NormalizeEmail(email)

	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, model.NewMissingFieldError(missing...)
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// 応答時間でアカウントの存在を推測されないよう、ダミーハッシュと比較する
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return &Result{User: user, Token: token}, nil
}

// GetCurrentUser はトークンから得たユーザーIDでユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
