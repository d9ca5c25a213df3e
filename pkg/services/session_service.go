package services

import (
	"errors"
	"fmt"
	"time"

	"energenius/pkg/models"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookieName はセッショントークンを保持するCookie名
const SessionCookieName = "session"

// ErrInvalidSession はトークンが無効または期限切れの場合に返される
var ErrInvalidSession = errors.New("invalid or expired session")

// SessionClaims はセッショントークンのクレーム
type SessionClaims struct {
	User models.User `json:"user"`
	jwt.RegisteredClaims
}

// SessionService は署名付きセッショントークンを発行・検証します
type SessionService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionService は新しいSessionServiceを生成します
func NewSessionService(secret string, ttl time.Duration) *SessionService {
	return &SessionService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL はトークンの有効期間を返す
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Issue はユーザーのセッショントークンを発行する
func (s *SessionService) Issue(user models.User) (string, error) {
	now := s.now()
	claims := &SessionClaims{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("セッショントークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Parse はトークンを検証し、ユーザー情報を返す
func (s *SessionService) Parse(tokenString string) (*models.User, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}
	return &claims.User, nil
}
