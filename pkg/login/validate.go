package login

import (
	"strings"
	"unicode/utf8"
)

// Field は入力欄
type Field int

const (
	FieldUsername Field = iota
	FieldPassword
)

func (f Field) String() string {
	switch f {
	case FieldUsername:
		return "username"
	case FieldPassword:
		return "password"
	}
	return "unknown"
}

// 入力の最小文字数
const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

// ValidateUsername はユーザー名を検証し、エラーメッセージを返す。問題なければ空文字。
func ValidateUsername(value string) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return "Username is required"
	case utf8.RuneCountInString(value) < MinUsernameLength:
		return "Username must be at least 3 characters"
	}
	return ""
}

// ValidatePassword はパスワードを検証し、エラーメッセージを返す。問題なければ空文字。
func ValidatePassword(value string) string {
	switch {
	case value == "":
		return "Password is required"
	case utf8.RuneCountInString(value) < MinPasswordLength:
		return "Password must be at least 6 characters"
	}
	return ""
}

func validate(field Field, value string) string {
	if field == FieldPassword {
		return ValidatePassword(value)
	}
	return ValidateUsername(value)
}
