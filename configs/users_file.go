package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// UserRecord はusers.yamlに保存されるユーザー1件分の定義
type UserRecord struct {
	ID           string    `yaml:"id"`
	Username     string    `yaml:"username"`
	Email        string    `yaml:"email"`
	Name         string    `yaml:"name"`
	Role         string    `yaml:"role"`
	PasswordHash string    `yaml:"password_hash"`
	CreatedAt    time.Time `yaml:"created_at"`
}

// UsersFile はusers.yamlの構造を定義
type UsersFile struct {
	Users []UserRecord `yaml:"users"`
}

// LoadUsersFile はYAMLファイルからユーザー一覧を読み込む。
// ファイルが存在しない場合は空の一覧を返す。
func LoadUsersFile(path string) (*UsersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &UsersFile{}, nil
		}
		return nil, fmt.Errorf("ユーザーファイルの読み込みに失敗: %w", err)
	}

	var file UsersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("YAMLのパースに失敗: %w", err)
	}
	return &file, nil
}

// SaveUsersFile はユーザー一覧をYAMLとして書き出す
func SaveUsersFile(path string, file *UsersFile) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("YAMLの生成に失敗: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ディレクトリの作成に失敗: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("ユーザーファイルの書き込みに失敗: %w", err)
	}
	return nil
}

// Find はユーザー名でレコードを探す
func (f *UsersFile) Find(username string) (*UserRecord, bool) {
	for i := range f.Users {
		if f.Users[i].Username == username {
			return &f.Users[i], true
		}
	}
	return nil, false
}
