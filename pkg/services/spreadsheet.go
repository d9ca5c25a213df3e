package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"energenius/pkg/models"

	"github.com/xuri/excelize/v2"
)

// 列名
const (
	ColumnHoliday     = "Sjutra praznik"
	ColumnWeekday     = "Dan u nedelji"
	ColumnDayOfMonth  = "Dan u mjesecu"
	ColumnMonth       = "Mjesec"
	ColumnHour        = "Sat"
	ColumnConsumption = "Prethodna 24h"
)

// ExpectedColumns はアップロードファイルに必要な列（順序固定）
var ExpectedColumns = []string{
	ColumnHoliday,
	ColumnWeekday,
	ColumnDayOfMonth,
	ColumnMonth,
	ColumnHour,
	"Temp. min Pg", "Temp. max Pg", "Temp. sr Pg",
	"Temp. min Nk", "Temp. max Nk", "Temp. sr Nk",
	"Temp. min Pv", "Temp. max Pv", "Temp. sr Pv",
	"Temp. min Br", "Temp. max Br", "Temp. sr Br",
	"Temp. min Ul", "Temp. max Ul", "Temp. sr Ul",
	"Temp. min Ct", "Temp. max Ct", "Temp. sr Ct",
	ColumnConsumption,
}

// ErrUnsupportedFormat は拡張子が対象外の場合に返される
var ErrUnsupportedFormat = errors.New("File must be Excel or CSV format (.xlsx, .xls, or .csv)")

// Sheet はアップロードファイルの先頭シート
type Sheet struct {
	Headers []string
	Rows    [][]string
}

// IsSupportedFileName は拡張子がアップロード対象かを判定する
func IsSupportedFileName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls", ".csv":
		return true
	}
	return false
}

// ReadSheet はExcelまたはCSVのバイト列から先頭シートを読み込む
func ReadSheet(name string, data []byte) (*Sheet, error) {
	var rows [][]string

	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls":
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("Excelファイルの読み込みに失敗: %w", err)
		}
		defer f.Close()

		sheet := f.GetSheetName(0)
		if sheet == "" {
			return nil, fmt.Errorf("シートが見つかりません")
		}
		// 書式付きの数値（例: "1,234.50"）ではなく保存値を読む
		rows, err = f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("Excelシートの行取得に失敗: %w", err)
		}
	case ".csv":
		r := csv.NewReader(bytes.NewReader(data))
		r.FieldsPerRecord = -1
		var err error
		rows, err = r.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("CSVファイルの解析に失敗: %w", err)
		}
	default:
		return nil, ErrUnsupportedFormat
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("ファイルが空です")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	// excelizeは末尾の空セルを省略するので列数を揃える
	var dataRows [][]string
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		padded := make([]string, len(headers))
		for i := range padded {
			if i < len(row) {
				padded[i] = strings.TrimSpace(row[i])
			}
		}
		dataRows = append(dataRows, padded)
	}

	return &Sheet{Headers: headers, Rows: dataRows}, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ValidateStructure は行数と列構成を検証し、エラーメッセージの一覧を返す
func ValidateStructure(s *Sheet) []string {
	var errs []string

	if len(s.Rows) != models.HoursPerDay {
		errs = append(errs, fmt.Sprintf("Must have exactly %d data rows, found %d rows", models.HoursPerDay, len(s.Rows)))
	}
	if len(s.Headers) != len(ExpectedColumns) {
		errs = append(errs, fmt.Sprintf("Must have exactly %d columns, found %d columns", len(ExpectedColumns), len(s.Headers)))
	}
	for i, expected := range ExpectedColumns {
		found := "missing"
		if i < len(s.Headers) {
			found = s.Headers[i]
		}
		if found != expected {
			errs = append(errs, fmt.Sprintf("Column %d should be '%s', found '%s'", i+1, expected, found))
		}
	}
	if len(errs) > 0 {
		return errs
	}

	if n := countNonEmpty(s, ColumnConsumption); n != models.HoursPerDay {
		errs = append(errs, fmt.Sprintf("'%s' must have all %d values, found %d", ColumnConsumption, models.HoursPerDay, n))
	}
	if n := countNonEmpty(s, ColumnHour); n != 1 && n != models.HoursPerDay {
		errs = append(errs, fmt.Sprintf("'%s' must have 1 or %d values, found %d", ColumnHour, models.HoursPerDay, n))
	}
	return errs
}

// column は列名からインデックスを返す
func (s *Sheet) column(name string) int {
	return findIndex(s.Headers, name)
}

func countNonEmpty(s *Sheet, name string) int {
	idx := s.column(name)
	if idx < 0 {
		return 0
	}
	n := 0
	for _, row := range s.Rows {
		if row[idx] != "" {
			n++
		}
	}
	return n
}

// Preview は日単位の列を前方補完したプレビューを返す。
// 時刻列に値が1つしかない場合は、その時刻から連続する24時間を埋める。
func (s *Sheet) Preview() models.Preview {
	rows := make([][]string, len(s.Rows))
	for i, row := range s.Rows {
		rows[i] = append([]string(nil), row...)
	}

	hourIdx := s.column(ColumnHour)
	consumptionIdx := s.column(ColumnConsumption)

	for col := range s.Headers {
		if col == hourIdx || col == consumptionIdx {
			continue
		}
		last := ""
		for _, row := range rows {
			if row[col] == "" {
				row[col] = last
			} else {
				last = row[col]
			}
		}
	}

	if hourIdx >= 0 && countNonEmpty(s, ColumnHour) == 1 {
		start := s.StartHour()
		for i, row := range rows {
			row[hourIdx] = strconv.Itoa((start + i) % models.HoursPerDay)
		}
	}

	return models.Preview{
		Columns: append([]string(nil), s.Headers...),
		Rows:    rows,
	}
}

// StartHour は時刻列の最初の値を返す（値がなければ0）
func (s *Sheet) StartHour() int {
	idx := s.column(ColumnHour)
	if idx < 0 {
		return 0
	}
	for _, row := range s.Rows {
		if row[idx] == "" {
			continue
		}
		if v, ok := parseNumber(row[idx]); ok {
			return int(v)
		}
	}
	return 0
}

// Consumption は「Prethodna 24h」列の値を返す。数値でないセルはnil。
func (s *Sheet) Consumption() []*float64 {
	idx := s.column(ColumnConsumption)
	out := make([]*float64, len(s.Rows))
	if idx < 0 {
		return out
	}
	for i, row := range s.Rows {
		if v, ok := parseNumber(row[idx]); ok {
			out[i] = models.Float(v)
		}
	}
	return out
}

// Statistics は消費量列の基本統計量を計算する
func (s *Sheet) Statistics() models.Statistics {
	stats := models.Statistics{
		TotalRows:    len(s.Rows),
		TotalColumns: len(s.Headers),
	}

	var values []float64
	for _, v := range s.Consumption() {
		if v != nil {
			values = append(values, *v)
		}
	}
	if len(values) == 0 {
		return stats
	}

	stats.PeakConsumption = math.Inf(-1)
	stats.MinConsumption = math.Inf(1)
	for _, v := range values {
		stats.TotalConsumption += v
		stats.PeakConsumption = math.Max(stats.PeakConsumption, v)
		stats.MinConsumption = math.Min(stats.MinConsumption, v)
	}
	stats.AvgConsumption = stats.TotalConsumption / float64(len(values))
	return stats
}

// Matrix はMLモデル入力用の24x24行列を作る。空欄や数値でないセルは0。
func (s *Sheet) Matrix() ([][]float64, error) {
	if len(s.Rows) != models.HoursPerDay || len(s.Headers) != len(ExpectedColumns) {
		return nil, fmt.Errorf("Expected %dx%d data, got %dx%d",
			models.HoursPerDay, len(ExpectedColumns), len(s.Rows), len(s.Headers))
	}

	matrix := make([][]float64, len(s.Rows))
	for i, row := range s.Rows {
		matrix[i] = make([]float64, len(row))
		for j, cell := range row {
			if v, ok := parseNumber(cell); ok {
				matrix[i][j] = v
			}
		}
	}
	return matrix, nil
}

func parseNumber(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// HourLabels は開始時刻から24時間分の "HH:00" ラベルを作る
func HourLabels(startHour int) []string {
	labels := make([]string, models.HoursPerDay)
	for i := range labels {
		labels[i] = fmt.Sprintf("%02d:00", (startHour+i)%models.HoursPerDay)
	}
	return labels
}
