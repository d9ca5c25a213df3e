package dashboard

import (
	"fmt"
	"strings"

	"energenius/pkg/models"
)

const missingCell = "--"

// Table は結果表示用の表
type Table struct {
	Headers []string
	Rows    [][]string
}

// BuildTable は予測結果を時刻ごとの行に並べる
func BuildTable(result *models.PredictionResult) Table {
	if result == nil {
		return Table{}
	}
	headers := []string{"Sat", "Prethodna 24h"}
	for _, modelType := range result.ModelTypes {
		name := strings.ToUpper(modelType)
		headers = append(headers, name, name+" min", name+" max")
	}

	rows := make([][]string, len(result.Hours))
	for i, hour := range result.Hours {
		row := []string{hour, missingCell}
		if i < len(result.Historical) && result.Historical[i] != nil {
			row[1] = formatCell(*result.Historical[i])
		}
		for _, modelType := range result.ModelTypes {
			p := result.Predictions[modelType]
			row = append(row, cellAt(p.Values, i), cellAt(p.ConfidenceMin, i), cellAt(p.ConfidenceMax, i))
		}
		rows[i] = row
	}
	return Table{Headers: headers, Rows: rows}
}

func cellAt(values []float64, i int) string {
	if i < len(values) {
		return formatCell(values[i])
	}
	return missingCell
}

func formatCell(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
