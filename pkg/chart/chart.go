// Package chart は予測結果をPNGのグラフに描画します。
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"energenius/pkg/models"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData は描画する予測結果がない場合に返される
var ErrNoData = errors.New("no prediction data to render")

// 既定の画像サイズ
const (
	DefaultWidth  = 1024
	DefaultHeight = 480
)

// modelColors はモデルごとの線の色
var modelColors = map[string]drawing.Color{
	models.ModelNBeats:    gochart.ColorBlue,
	models.ModelCNNNBeats: gochart.ColorGreen,
	models.ModelNBeatsCNN: gochart.ColorOrange,
}

func lineStyle(col drawing.Color, width float64) gochart.Style {
	return gochart.Style{
		StrokeColor: col,
		StrokeWidth: width,
	}
}

func bandStyle(col drawing.Color) gochart.Style {
	return gochart.Style{
		StrokeColor:     col.WithAlpha(110),
		StrokeWidth:     1,
		StrokeDashArray: []float64{4, 3},
	}
}

// RenderPNG は実績値、各モデルの予測値と信頼区間を折れ線グラフとして描画します。
// widthとheightが0以下の場合は既定のサイズを使います。
func RenderPNG(result *models.PredictionResult, width, height int) ([]byte, error) {
	if result == nil || len(result.Hours) == 0 {
		return nil, ErrNoData
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	xs := make([]float64, len(result.Hours))
	ticks := make([]gochart.Tick, len(result.Hours))
	for i, hour := range result.Hours {
		xs[i] = float64(i)
		label := ""
		if i%3 == 0 {
			label = hour
		}
		ticks[i] = gochart.Tick{Value: float64(i), Label: label}
	}

	b := newBounds()
	var series []gochart.Series

	// 実績値は数値のある時刻だけを描く
	var histX, histY []float64
	for i, v := range result.Historical {
		if i < len(xs) && v != nil {
			histX = append(histX, xs[i])
			histY = append(histY, *v)
			b.add(*v)
		}
	}
	if len(histX) >= 2 {
		series = append(series, gochart.ContinuousSeries{
			Name:    "Prethodna 24h",
			XValues: histX,
			YValues: histY,
			Style:   lineStyle(gochart.ColorAlternateGray, 2),
		})
	}

	for _, modelType := range result.ModelTypes {
		p, ok := result.Predictions[modelType]
		if !ok || len(p.Values) < 2 {
			continue
		}
		col, ok := modelColors[modelType]
		if !ok {
			col = gochart.ColorRed
		}
		n := minInt(len(p.Values), len(xs))
		name := strings.ToUpper(modelType)

		series = append(series, gochart.ContinuousSeries{
			Name:    "Predikcija " + name,
			XValues: xs[:n],
			YValues: p.Values[:n],
			Style:   lineStyle(col, 2),
		})
		b.add(p.Values[:n]...)

		if len(p.ConfidenceMin) >= n && len(p.ConfidenceMax) >= n {
			series = append(series,
				gochart.ContinuousSeries{Name: name + " min", XValues: xs[:n], YValues: p.ConfidenceMin[:n], Style: bandStyle(col)},
				gochart.ContinuousSeries{Name: name + " max", XValues: xs[:n], YValues: p.ConfidenceMax[:n], Style: bandStyle(col)},
			)
			b.add(p.ConfidenceMin[:n]...)
			b.add(p.ConfidenceMax[:n]...)
		}
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}

	yMin, yMax := b.padded()
	ch := gochart.Chart{
		Title:      "Predikcija potrošnje",
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 24}},
		XAxis: gochart.XAxis{
			Name:  "Sat",
			Range: &gochart.ContinuousRange{Min: 0, Max: xs[len(xs)-1]},
			Ticks: ticks,
		},
		YAxis: gochart.YAxis{
			Name:  "MWh",
			Range: &gochart.ContinuousRange{Min: yMin, Max: yMax},
		},
		Series: series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("グラフの描画に失敗: %w", err)
	}
	return buf.Bytes(), nil
}

type bounds struct {
	min, max float64
}

func newBounds() *bounds {
	return &bounds{min: math.MaxFloat64, max: -math.MaxFloat64}
}

func (b *bounds) add(values ...float64) {
	for _, v := range values {
		b.min = math.Min(b.min, v)
		b.max = math.Max(b.max, v)
	}
}

// padded は上下に5%の余白を付けた範囲を返す。値が1つだけでも高さが0にならないようにする。
func (b *bounds) padded() (float64, float64) {
	if b.max < b.min {
		return 0, 1
	}
	span := b.max - b.min
	if span == 0 {
		span = math.Max(math.Abs(b.max), 1)
	}
	return b.min - span*0.05, b.max + span*0.05
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
