// Command createuser はログイン用のユーザーを登録します。
// DATABASE_DSNが設定されていればMySQL、なければusers.yamlに保存します。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	config "energenius/configs"
	"energenius/pkg/services"

	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}
	os.Exit(run(context.Background(), config.LoadConfig(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, cfg *config.Config, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("createuser", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var input services.NewUser
	fs.StringVar(&input.Username, "username", "", "username (letters, numbers, . _ -)")
	fs.StringVar(&input.Email, "email", "", "email address")
	fs.StringVar(&input.Name, "name", "", "display name (defaults to username)")
	fs.StringVar(&input.Password, "password", os.Getenv("CREATEUSER_PASSWORD"), "password, at least 6 characters")
	fs.StringVar(&input.Role, "role", "user", "role")
	fs.StringVar(&cfg.UsersFile, "users-file", cfg.UsersFile, "users.yaml path when DATABASE_DSN is empty")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	users, closeUsers, err := services.OpenUserStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(errOut, "❌ ユーザーストアを開けません: %v\n", err)
		return 1
	}
	defer closeUsers()

	user, err := users.Create(ctx, input)
	if err != nil {
		fmt.Fprintf(errOut, "❌ ユーザー登録に失敗: %v\n", err)
		return 1
	}

	fmt.Fprintf(out, "✅ ユーザーを登録しました: %s (%s, role=%s)\n", user.Username, user.Email, user.Role)
	return 0
}
