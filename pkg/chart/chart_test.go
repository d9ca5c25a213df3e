package chart

import (
	"bytes"
	"fmt"
	"image/png"
	"testing"

	"energenius/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(modelTypes ...string) *models.PredictionResult {
	hours := make([]string, 24)
	historical := make([]*float64, 24)
	predictions := map[string]models.ModelPrediction{}
	for i := range hours {
		hours[i] = fmt.Sprintf("%02d:00", i)
		if i%5 != 0 {
			historical[i] = models.Float(500 + float64(i)*3)
		}
	}
	for k, modelType := range modelTypes {
		p := models.ModelPrediction{}
		for i := 0; i < 24; i++ {
			v := 520 + float64(i)*2 + float64(k)*10
			p.Values = append(p.Values, v)
			p.ConfidenceMin = append(p.ConfidenceMin, v*0.97)
			p.ConfidenceMax = append(p.ConfidenceMax, v*1.03)
		}
		predictions[modelType] = p
	}
	return &models.PredictionResult{
		Hours:       hours,
		Historical:  historical,
		ModelTypes:  modelTypes,
		Predictions: predictions,
	}
}

func TestRenderPNG(t *testing.T) {
	data, err := RenderPNG(sampleResult(models.ModelNBeats, models.ModelCNNNBeats), 800, 400)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 400, img.Bounds().Dy())
}

func TestRenderPNGDefaultSize(t *testing.T) {
	data, err := RenderPNG(sampleResult(models.ModelNBeatsCNN), 0, 0)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, cfg.Width)
	assert.Equal(t, DefaultHeight, cfg.Height)
}

func TestRenderPNGFlatValues(t *testing.T) {
	result := sampleResult(models.ModelNBeats)
	p := result.Predictions[models.ModelNBeats]
	for i := range p.Values {
		p.Values[i], p.ConfidenceMin[i], p.ConfidenceMax[i] = 100, 100, 100
	}
	for i := range result.Historical {
		result.Historical[i] = nil
	}

	_, err := RenderPNG(result, 400, 300)
	assert.NoError(t, err)
}

func TestRenderPNGNoData(t *testing.T) {
	_, err := RenderPNG(nil, 100, 100)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = RenderPNG(&models.PredictionResult{}, 100, 100)
	assert.ErrorIs(t, err, ErrNoData)

	result := sampleResult()
	for i := range result.Historical {
		result.Historical[i] = nil
	}
	_, err = RenderPNG(result, 100, 100)
	assert.ErrorIs(t, err, ErrNoData)
}
