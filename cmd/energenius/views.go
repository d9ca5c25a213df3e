package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"energenius/pkg/dashboard"
	"energenius/pkg/login"
	"energenius/pkg/models"
)

// loginView はログイン画面の表示を端末に出力する
type loginView struct {
	out      io.Writer
	redirect string
}

func (v *loginView) ShowFieldError(field login.Field, message string) {
	fmt.Fprintf(v.out, "✗ %s: %s\n", field, message)
}

func (v *loginView) ClearFieldError(login.Field) {}

func (v *loginView) ShowAlert(message string) {
	fmt.Fprintf(v.out, "✗ %s\n", message)
}

func (v *loginView) HideAlert() {}

func (v *loginView) SetSubmitEnabled(bool) {}

func (v *loginView) Redirect(url string) { v.redirect = url }

// dashboardView はダッシュボードの表示を端末とファイルに出力する
type dashboardView struct {
	out    io.Writer
	errOut io.Writer
	dir    string

	redirect    string
	unavailable string
	written     []string
	writeErr    error
}

var levelMarks = map[dashboard.Level]string{
	dashboard.LevelInfo:    "ℹ",
	dashboard.LevelSuccess: "✓",
	dashboard.LevelWarning: "!",
	dashboard.LevelError:   "✗",
}

func (v *dashboardView) Notify(level dashboard.Level, message string) {
	w := v.out
	if level == dashboard.LevelError || level == dashboard.LevelWarning {
		w = v.errOut
	}
	fmt.Fprintf(w, "%s %s\n", levelMarks[level], message)
}

func (v *dashboardView) Redirect(url string) { v.redirect = url }

func (v *dashboardView) SetUser(name string) {
	fmt.Fprintf(v.out, "Prijavljen: %s\n", name)
}

func (v *dashboardView) RenderPreview(upload *models.UploadData) {
	if upload == nil {
		return
	}
	s := upload.Statistics
	fmt.Fprintf(v.out, "%s: %d redova, %d kolona\n", upload.FileName, s.TotalRows, s.TotalColumns)
	fmt.Fprintf(v.out, "  prosjek %.2f  max %.2f  min %.2f  ukupno %.2f\n",
		s.AvgConsumption, s.PeakConsumption, s.MinConsumption, s.TotalConsumption)
}

func (v *dashboardView) SetPredictEnabled(bool) {}

func (v *dashboardView) ShowServiceUnavailable(message string) {
	v.unavailable = message
	fmt.Fprintf(v.errOut, "✗ %s\n", message)
}

func (v *dashboardView) HideServiceUnavailable() { v.unavailable = "" }

func (v *dashboardView) RenderChart(png []byte) {
	v.save("chart.png", png)
}

func (v *dashboardView) RenderTable(table dashboard.Table) {
	w := tabwriter.NewWriter(v.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, strings.Join(table.Headers, "\t")+"\t")
	for _, row := range table.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t")+"\t")
	}
	w.Flush()
}

func (v *dashboardView) ClearResults() {}

func (v *dashboardView) Download(name string, data []byte) {
	v.save(name, data)
}

func (v *dashboardView) save(name string, data []byte) {
	path := filepath.Join(v.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		v.writeErr = fmt.Errorf("%s の書き込みに失敗: %w", path, err)
		fmt.Fprintf(v.errOut, "✗ %v\n", v.writeErr)
		return
	}
	v.written = append(v.written, path)
	fmt.Fprintf(v.out, "Sačuvano: %s\n", path)
}
