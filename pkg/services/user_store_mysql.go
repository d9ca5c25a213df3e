package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	config "energenius/configs"
	"energenius/pkg/models"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id            VARCHAR(36)  NOT NULL PRIMARY KEY,
	username      VARCHAR(64)  NOT NULL UNIQUE,
	email         VARCHAR(255) NOT NULL UNIQUE,
	name          VARCHAR(255) NOT NULL,
	role          VARCHAR(32)  NOT NULL DEFAULT 'user',
	password_hash VARCHAR(255) NOT NULL,
	created_at    DATETIME     NOT NULL
)`

// MySQLUserStore はMySQLのusersテーブルをバックエンドとするUserStore
type MySQLUserStore struct {
	db *sql.DB
}

// NewMySQLUserStore はDSNで接続し、usersテーブルを用意します
func NewMySQLUserStore(ctx context.Context, dsn string) (*MySQLUserStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("DSNの解析に失敗: %w", err)
	}
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("データベース接続の作成に失敗: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースに接続できません: %w", err)
	}
	if _, err := db.ExecContext(ctx, createUsersTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("usersテーブルの作成に失敗: %w", err)
	}
	return &MySQLUserStore{db: db}, nil
}

// Close はデータベース接続を閉じる
func (s *MySQLUserStore) Close() error {
	return s.db.Close()
}

// Authenticate はユーザー名とパスワードを検証する
func (s *MySQLUserStore) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var rec config.UserRecord
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, name, role, password_hash, created_at FROM users WHERE username = ?",
		username,
	).Scan(&rec.ID, &rec.Username, &rec.Email, &rec.Name, &rec.Role, &rec.PasswordHash, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	if !checkPassword(rec.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return recordToUser(rec), nil
}

// Create はユーザーを登録する
func (s *MySQLUserStore) Create(ctx context.Context, input NewUser) (*models.User, error) {
	input = input.withDefaults()
	if err := input.Validate(); err != nil {
		return nil, err
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

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (id, username, email, name, role, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Username, strings.ToLower(rec.Email), rec.Name, rec.Role, rec.PasswordHash, rec.CreatedAt,
	)
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの登録に失敗: %w", err)
	}
	return recordToUser(rec), nil
}

// Count は登録ユーザー数を返す
func (s *MySQLUserStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("ユーザー数の取得に失敗: %w", err)
	}
	return n, nil
}
