package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"energenius/pkg/models"

	"github.com/xuri/excelize/v2"
)

// ErrNoExportData はエクスポート対象のデータがない場合に返される
var ErrNoExportData = errors.New("No data to export")

const missingValue = "--"

// ExportTable はエクスポート用に整形した表
type ExportTable struct {
	Headers []string
	Rows    [][]string
}

// BuildExportTable は予測結果を時刻ごとの行に整形する
func BuildExportTable(result *models.PredictionResult) ExportTable {
	hours := HourLabels(result.StartHour)

	headers := []string{ColumnHour, ColumnConsumption}
	for _, modelType := range result.ModelTypes {
		upper := strings.ToUpper(modelType)
		headers = append(headers,
			"Predikcija "+upper,
			"Ocekivani interval odstupanja "+upper,
		)
	}

	rows := make([][]string, len(hours))
	for i, hour := range hours {
		row := []string{hour, missingValue}
		if i < len(result.Historical) && result.Historical[i] != nil {
			row[1] = formatValue(*result.Historical[i])
		}
		for _, modelType := range result.ModelTypes {
			p := result.Predictions[modelType]
			value, interval := missingValue, missingValue
			if i < len(p.Values) {
				value = formatValue(p.Values[i])
			}
			if i < len(p.ConfidenceMin) && i < len(p.ConfidenceMax) {
				interval = formatValue(p.ConfidenceMin[i]) + "-" + formatValue(p.ConfidenceMax[i])
			}
			row = append(row, value, interval)
		}
		rows[i] = row
	}

	return ExportTable{Headers: headers, Rows: rows}
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

// Exporter は予測結果をダウンロード用ファイルに変換します
type Exporter struct {
	now func() time.Time
}

// NewExporter は新しいExporterを生成します
func NewExporter() *Exporter {
	return &Exporter{now: time.Now}
}

// Export は指定形式でファイルを生成する
func (e *Exporter) Export(result *models.PredictionResult, format string) (*models.ExportFile, error) {
	if result == nil {
		return nil, ErrNoExportData
	}
	if format == "" {
		format = models.FormatCSV
	}

	table := BuildExportTable(result)
	base := "predikcija_" + e.now().Format("20060102_150405")

	switch format {
	case models.FormatCSV:
		data, err := table.csv()
		if err != nil {
			return nil, err
		}
		return &models.ExportFile{Name: base + ".csv", Data: data}, nil
	case models.FormatExcel:
		data, err := table.xlsx()
		if err != nil {
			return nil, err
		}
		return &models.ExportFile{Name: base + ".xlsx", Data: data}, nil
	case models.FormatPDF:
		data, err := table.text()
		if err != nil {
			return nil, err
		}
		return &models.ExportFile{Name: base + ".txt", Data: data}, nil
	}
	return nil, fmt.Errorf("Unsupported export format: %s", format)
}

func (t ExportTable) csv() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Headers); err != nil {
		return nil, fmt.Errorf("CSVの書き込みに失敗: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("CSVの書き込みに失敗: %w", err)
	}
	return buf.Bytes(), nil
}

func (t ExportTable) xlsx() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &t.Headers); err != nil {
		return nil, fmt.Errorf("Excelヘッダーの書き込みに失敗: %w", err)
	}
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("Excel行の書き込みに失敗: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("Excelファイルの生成に失敗: %w", err)
	}
	return buf.Bytes(), nil
}

func (t ExportTable) text() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("Predikcija potrošnje električne energije\n")
	buf.WriteString(strings.Repeat("=", 45) + "\n\n")

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, strings.Join(t.Headers, "\t")+"\t")
	for _, row := range t.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t")+"\t")
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("テキストの生成に失敗: %w", err)
	}
	return buf.Bytes(), nil
}
