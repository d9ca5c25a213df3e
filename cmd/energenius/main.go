// Command energenius はサーバーにログインし、ファイルをアップロードして予測結果を表示・保存するCLIです。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"energenius/pkg/client"
	"energenius/pkg/dashboard"
	"energenius/pkg/login"

	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	url      string
	user     string
	password string
	file     string
	models   string
	period   int
	view     string
	format   string
	out      string
	retry    int
	timeout  time.Duration
}

func parseFlags(args []string, errOut io.Writer) (*options, error) {
	fs := flag.NewFlagSet("energenius", flag.ContinueOnError)
	fs.SetOutput(errOut)

	o := &options{}
	fs.StringVar(&o.url, "url", getEnv("ENERGENIUS_URL", "http://localhost:5050"), "server base URL")
	fs.StringVar(&o.user, "user", os.Getenv("ENERGENIUS_USER"), "username")
	fs.StringVar(&o.password, "password", os.Getenv("ENERGENIUS_PASSWORD"), "password")
	fs.StringVar(&o.file, "file", "", "Excel or CSV file with 24 hourly rows")
	fs.StringVar(&o.models, "models", "nbeats", "comma separated models (nbeats, cnn-nbeats, nbeats-cnn)")
	fs.IntVar(&o.period, "period", 24, "prediction period in hours")
	fs.StringVar(&o.view, "view", "table", "result view: table or chart")
	fs.StringVar(&o.format, "format", "", "export format: csv, excel or pdf")
	fs.StringVar(&o.out, "out", ".", "directory for the chart and exported files")
	fs.IntVar(&o.retry, "retry", 0, "retries while the prediction service is unavailable")
	fs.DurationVar(&o.timeout, "timeout", 2*time.Minute, "request timeout")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.file == "" {
		return nil, errors.New("-file is required")
	}
	return o, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// run はログインから予測、エクスポート、ログアウトまでを順に実行し、終了コードを返す
func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	o, err := parseFlags(args, errOut)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(errOut, "✗ %v\n", err)
		}
		return 2
	}
	viewMode, ok := dashboard.ParseViewMode(o.view)
	if !ok {
		fmt.Fprintf(errOut, "✗ unknown view %q\n", o.view)
		return 2
	}

	c, err := client.New(o.url, client.WithTimeout(o.timeout))
	if err != nil {
		fmt.Fprintf(errOut, "✗ %v\n", err)
		return 1
	}

	lv := &loginView{out: errOut}
	if err := login.NewController(c, lv).Submit(ctx, o.user, o.password); err != nil {
		return 1
	}

	dv := &dashboardView{out: out, errOut: errOut, dir: o.out}
	dash := dashboard.NewController(c, dv)
	if err := dash.Init(ctx); err != nil {
		fmt.Fprintf(errOut, "✗ %v\n", err)
		return 1
	}
	defer dash.Logout(context.Background())

	if err := dash.SetModels(splitModels(o.models)); err != nil {
		fmt.Fprintf(errOut, "✗ %v\n", err)
		return 2
	}
	if err := dash.SetPeriod(o.period); err != nil {
		fmt.Fprintf(errOut, "✗ %v\n", err)
		return 2
	}

	file, err := dashboard.OpenFile(o.file)
	if err != nil {
		fmt.Fprintf(errOut, "✗ %v\n", err)
		return 1
	}
	if err := dash.SelectFile(ctx, file); err != nil {
		return 1
	}

	if viewMode == dashboard.ViewTable {
		dash.ShowTable()
	}
	if err := predict(ctx, dash, o.retry); err != nil {
		return 1
	}

	if o.format != "" {
		if err := dash.Export(ctx, o.format); err != nil {
			return 1
		}
	}
	if dv.writeErr != nil {
		return 1
	}
	return 0
}

// predict はサービス停止中なら待ってから指定回数まで再試行する
func predict(ctx context.Context, dash *dashboard.Controller, retries int) error {
	err := dash.Predict(ctx)
	for attempt := 1; attempt <= retries && unavailable(err); attempt++ {
		wait := time.Duration(attempt) * 2 * time.Second
		log.Printf("🔄 予測サービス停止中。%v後に再試行します (%d/%d)", wait, attempt, retries)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		err = dash.RetryPrediction(ctx)
	}
	return err
}

func unavailable(err error) bool {
	apiErr, ok := client.AsAPIError(err)
	return ok && apiErr.IsServiceUnavailable()
}

func splitModels(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
