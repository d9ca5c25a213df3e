// Package fixtures はテスト用のアップロードファイルと疑似ML APIを提供します。
package fixtures

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/xuri/excelize/v2"
)

// Headers はアップロードファイルの列
var Headers = []string{
	"Sjutra praznik", "Dan u nedelji", "Dan u mjesecu", "Mjesec", "Sat",
	"Temp. min Pg", "Temp. max Pg", "Temp. sr Pg",
	"Temp. min Nk", "Temp. max Nk", "Temp. sr Nk",
	"Temp. min Pv", "Temp. max Pv", "Temp. sr Pv",
	"Temp. min Br", "Temp. max Br", "Temp. sr Br",
	"Temp. min Ul", "Temp. max Ul", "Temp. sr Ul",
	"Temp. min Ct", "Temp. max Ct", "Temp. sr Ct",
	"Prethodna 24h",
}

// StartHour はサンプルの「Sat」列の最初の値
const StartHour = 7

// Consumption はサンプルのi行目の消費量
func Consumption(i int) float64 {
	return 400 + float64(i)*10.5
}

// Rows は24行のサンプルデータを返す。日単位の列と「Sat」は先頭行だけに値がある。
func Rows() [][]string {
	rows := make([][]string, 24)
	for i := range rows {
		row := make([]string, len(Headers))
		if i == 0 {
			row[0], row[1], row[2], row[3], row[4] = "0", "3", "15", "10", fmt.Sprint(StartHour)
		}
		for j := 5; j < 23; j++ {
			row[j] = fmt.Sprintf("%.1f", 10+float64(j%3)*2.5)
		}
		row[23] = fmt.Sprintf("%.1f", Consumption(i))
		rows[i] = row
	}
	return rows
}

// CSV はヘッダー付きのサンプルCSVを返す
func CSV(t testing.TB) []byte {
	return CSVFrom(t, Headers, Rows())
}

// CSVFrom は任意のヘッダーと行からCSVを作る
func CSVFrom(t testing.TB, headers []string, rows [][]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// XLSX はサンプルデータのExcelファイルを返す
func XLSX(t testing.TB) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &Headers); err != nil {
		t.Fatal(err)
	}
	for i, row := range Rows() {
		values := make([]interface{}, len(row))
		for j, v := range row {
			if v != "" {
				values[j] = v
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// MLServer は/healthzと/predict/{model}に応答する疑似ML API
type MLServer struct {
	*httptest.Server

	// Healthy がfalseの間は/healthzが503を返す
	Healthy atomic.Bool
	// Calls は予測リクエストの回数
	Calls atomic.Int32

	mu       sync.Mutex
	forecast []float64
	lastData [][]float64
}

// NewMLServer は健全な状態の疑似ML APIを起動する。テスト終了時に停止します。
func NewMLServer(t testing.TB) *MLServer {
	m := &MLServer{forecast: DefaultForecast()}
	m.Healthy.Store(true)
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Close)
	return m
}

// DefaultForecast は1000から1ずつ増える24個の予測値
func DefaultForecast() []float64 {
	out := make([]float64, 24)
	for i := range out {
		out[i] = 1000 + float64(i)
	}
	return out
}

// SetForecast は返却する予測値を差し替える
func (m *MLServer) SetForecast(values []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecast = values
}

// LastData は最後に受け取った入力行列を返す
func (m *MLServer) LastData() [][]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastData
}

func (m *MLServer) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/healthz":
		if !m.Healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "down"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	case strings.HasPrefix(r.URL.Path, "/predict/"):
		m.Calls.Add(1)
		var body struct {
			Data [][]float64 `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error_message": err.Error()})
			return
		}
		m.mu.Lock()
		m.lastData = body.Data
		forecast := m.forecast
		m.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":  true,
			"forecast": forecast,
			"metadata": map[string]interface{}{"processing_time": 0.25},
		})
	default:
		http.NotFound(w, r)
	}
}
