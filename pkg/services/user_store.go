package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	config "energenius/configs"
	"energenius/pkg/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials はユーザー名またはパスワードが一致しない場合に返される
	ErrInvalidCredentials = errors.New("Invalid username or password")
	// ErrUserExists はユーザー名またはメールアドレスが既に登録済みの場合に返される
	ErrUserExists = errors.New("User with this username or email already exists")
)

// UserStore はユーザーの認証と登録を行います
type UserStore interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	Create(ctx context.Context, input NewUser) (*models.User, error)
	Count(ctx context.Context) (int, error)
}

// NewUser はユーザー登録の入力
type NewUser struct {
	Username string
	Email    string
	Name     string
	Password string
	Role     string
}

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Validate は登録内容を検証する
func (u NewUser) Validate() error {
	switch {
	case len(u.Username) < 3:
		return errors.New("Username must be at least 3 characters long")
	case !usernamePattern.MatchString(u.Username):
		return errors.New("Username can only contain letters, numbers, dots, underscores and hyphens")
	case !emailPattern.MatchString(u.Email):
		return errors.New("Please enter a valid email address")
	case len(u.Password) < 6:
		return errors.New("Password must be at least 6 characters long")
	}
	return nil
}

func (u NewUser) withDefaults() NewUser {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		u.Name = u.Username
	}
	if u.Role == "" {
		u.Role = "user"
	}
	return u
}

// HashPassword はbcryptでパスワードをハッシュ化する
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func recordToUser(rec config.UserRecord) *models.User {
	user := &models.User{
		ID:       rec.ID,
		Username: rec.Username,
		Email:    rec.Email,
		Name:     rec.Name,
		Role:     rec.Role,
	}
	if !rec.CreatedAt.IsZero() {
		user.CreatedAt = rec.CreatedAt.Format(time.RFC3339)
	}
	return user
}

// FileUserStore はusers.yamlをバックエンドとするUserStore
type FileUserStore struct {
	mu   sync.RWMutex
	path string
	file *config.UsersFile
}

// NewFileUserStore はYAMLファイルを読み込んでFileUserStoreを生成します
func NewFileUserStore(path string) (*FileUserStore, error) {
	file, err := config.LoadUsersFile(path)
	if err != nil {
		return nil, err
	}
	return &FileUserStore{path: path, file: file}, nil
}

// Authenticate はユーザー名とパスワードを検証する
func (s *FileUserStore) Authenticate(_ context.Context, username, password string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.file.Find(username)
	if !ok || !checkPassword(rec.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return recordToUser(*rec), nil
}

// Create はユーザーを追加してファイルに保存する
func (s *FileUserStore) Create(_ context.Context, input NewUser) (*models.User, error) {
	input = input.withDefaults()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.file.Users {
		if rec.Username == input.Username || strings.EqualFold(rec.Email, input.Email) {
			return nil, ErrUserExists
		}
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	rec := config.UserRecord{
		ID:           uuid.New().String(),
		Username:     input.Username,
		Email:        input.Email,
		Name:         input.Name,
		Role:         input.Role,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	s.file.Users = append(s.file.Users, rec)
	if err := config.SaveUsersFile(s.path, s.file); err != nil {
		s.file.Users = s.file.Users[:len(s.file.Users)-1]
		return nil, err
	}
	return recordToUser(rec), nil
}

// Count は登録ユーザー数を返す
func (s *FileUserStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.file.Users), nil
}

// OpenUserStore はDATABASE_DSNが設定されていればMySQL、なければusers.yamlのストアを開きます。
// 戻り値のclose関数は終了時に呼び出してください。
func OpenUserStore(ctx context.Context, cfg *config.Config) (UserStore, func() error, error) {
	if cfg.DatabaseDSN != "" {
		store, err := NewMySQLUserStore(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	store, err := NewFileUserStore(cfg.UsersFile)
	if err != nil {
		return nil, nil, err
	}
	return store, func() error { return nil }, nil
}
