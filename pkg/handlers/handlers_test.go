package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"energenius/internal/fixtures"
	"energenius/internal/testserver"
	"energenius/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postJSON(t *testing.T, c *http.Client, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := c.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func postFile(t *testing.T, c *http.Client, url, name string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	resp, err := c.Post(url, w.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func login(t *testing.T, b *testserver.Backend) *http.Client {
	t.Helper()
	c := newClient(t)
	resp := postJSON(t, c, b.URL+"/auth/login", models.LoginRequest{
		Username: testserver.Username,
		Password: testserver.Password,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return c
}

func upload(t *testing.T, b *testserver.Backend, c *http.Client) models.UploadData {
	t.Helper()
	resp := postFile(t, c, b.URL+"/api/upload", "consumption.csv", fixtures.CSV(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body models.APIResponse[models.UploadData]
	decode(t, resp, &body)
	require.True(t, body.Success)
	return body.Data
}

func TestHealthCheck(t *testing.T) {
	b := testserver.New(t)

	resp, err := http.Get(b.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "online", body["ml_service"])
	assert.EqualValues(t, 1, body["users"])

	b.ML.Healthy.Store(false)
	resp, err = http.Get(b.URL + "/health")
	require.NoError(t, err)
	decode(t, resp, &body)
	assert.Equal(t, "offline", body["ml_service"])
}

func TestLoginLogoutFlow(t *testing.T) {
	b := testserver.New(t)
	c := newClient(t)

	t.Run("missing fields", func(t *testing.T) {
		resp := postJSON(t, c, b.URL+"/auth/login", models.LoginRequest{Username: "  "})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := postJSON(t, c, b.URL+"/auth/login", models.LoginRequest{Username: testserver.Username, Password: "nope-nope"})
		var body models.LoginResponse
		decode(t, resp, &body)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.False(t, body.Success)
		assert.Equal(t, "Invalid username or password", body.Message)
	})

	resp := postJSON(t, c, b.URL+"/auth/login", models.LoginRequest{
		Username: " " + testserver.Username + " ",
		Password: testserver.Password,
	})
	var loginBody models.LoginResponse
	decode(t, resp, &loginBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, loginBody.Success)
	assert.Equal(t, "/dashboard.html", loginBody.Redirect)
	require.NotNil(t, loginBody.User)
	assert.Equal(t, testserver.Name, loginBody.User.Name)

	resp, err := c.Get(b.URL + "/auth/check-session")
	require.NoError(t, err)
	var status models.SessionStatus
	decode(t, resp, &status)
	assert.True(t, status.Authenticated)
	assert.Equal(t, testserver.Username, status.User.Username)

	resp = postJSON(t, c, b.URL+"/auth/logout", struct{}{})
	var logoutBody models.LogoutResponse
	decode(t, resp, &logoutBody)
	assert.True(t, logoutBody.Success)
	assert.Equal(t, "/index.html", logoutBody.Redirect)

	resp, err = c.Get(b.URL + "/auth/check-session")
	require.NoError(t, err)
	status = models.SessionStatus{}
	decode(t, resp, &status)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, status.Authenticated)
	assert.Nil(t, status.User)
}

func TestUploadRequiresSession(t *testing.T) {
	b := testserver.New(t)

	resp := postFile(t, newClient(t), b.URL+"/api/upload", "consumption.csv", fixtures.CSV(t))
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, b.Uploads.Len())
}

func TestUpload(t *testing.T) {
	b := testserver.New(t)
	c := login(t, b)

	for _, tc := range []struct {
		name string
		data []byte
	}{
		{"consumption.csv", fixtures.CSV(t)},
		{"consumption.xlsx", fixtures.XLSX(t)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp := postFile(t, c, b.URL+"/api/upload", tc.name, tc.data)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var body models.APIResponse[models.UploadData]
			decode(t, resp, &body)
			data := body.Data

			assert.NotEmpty(t, data.FileID)
			assert.Equal(t, tc.name, data.FileName)
			assert.Equal(t, fixtures.Headers, data.Preview.Columns)
			require.Len(t, data.Preview.Rows, 24)
			// 「Sat」は開始時刻から連続して埋められる
			assert.Equal(t, "7", data.Preview.Rows[0][4])
			assert.Equal(t, "23", data.Preview.Rows[16][4])
			assert.Equal(t, "6", data.Preview.Rows[23][4])
			// 日単位の列は前方補完される
			assert.Equal(t, "10", data.Preview.Rows[23][3])

			assert.Equal(t, 24, data.Statistics.TotalRows)
			assert.Equal(t, 24, data.Statistics.TotalColumns)
			assert.InDelta(t, fixtures.Consumption(23), data.Statistics.PeakConsumption, 1e-9)
			assert.InDelta(t, fixtures.Consumption(0), data.Statistics.MinConsumption, 1e-9)
		})
	}
}

func TestUploadRejectsInvalidFiles(t *testing.T) {
	b := testserver.New(t, testserver.WithMaxUploadBytes(4<<10))
	c := login(t, b)

	t.Run("unsupported extension", func(t *testing.T) {
		resp := postFile(t, c, b.URL+"/api/upload", "notes.txt", []byte("hello"))
		var body map[string]interface{}
		decode(t, resp, &body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body["message"], ".xlsx")
	})

	t.Run("wrong row count", func(t *testing.T) {
		data := fixtures.CSVFrom(t, fixtures.Headers, fixtures.Rows()[:23])
		resp := postFile(t, c, b.URL+"/api/upload", "short.csv", data)
		var body map[string]interface{}
		decode(t, resp, &body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body["message"], "Validation failed")
		assert.Contains(t, body["message"], "found 23 rows")
	})

	t.Run("wrong header", func(t *testing.T) {
		headers := append([]string(nil), fixtures.Headers...)
		headers[4] = "Hour"
		resp := postFile(t, c, b.URL+"/api/upload", "renamed.csv", fixtures.CSVFrom(t, headers, fixtures.Rows()))
		var body map[string]interface{}
		decode(t, resp, &body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body["message"], "Column 5 should be 'Sat', found 'Hour'")
	})

	t.Run("missing file field", func(t *testing.T) {
		resp, err := c.Post(b.URL+"/api/upload", "application/json", strings.NewReader("{}"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("too large", func(t *testing.T) {
		resp := postFile(t, c, b.URL+"/api/upload", "big.csv", bytes.Repeat([]byte("1,"), 5<<10))
		resp.Body.Close()
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})

	assert.Equal(t, 0, b.Uploads.Len())
}

func TestPredictAndExport(t *testing.T) {
	b := testserver.New(t)
	c := login(t, b)
	uploaded := upload(t, b, c)

	resp := postJSON(t, c, b.URL+"/api/predict", models.PredictRequest{
		FileID:     uploaded.FileID,
		ModelTypes: []string{models.ModelNBeats, models.ModelCNNNBeats},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.APIResponse[*models.PredictionResult]
	decode(t, resp, &body)
	result := body.Data
	require.NotNil(t, result)

	assert.Equal(t, "online", result.ServiceStatus)
	assert.Equal(t, fixtures.StartHour, result.StartHour)
	assert.Equal(t, "07:00", result.Hours[0])
	assert.Equal(t, "06:00", result.Hours[23])
	assert.Equal(t, 24, result.PredictionPeriod)
	assert.Equal(t, "country-level", result.PredictionType)
	assert.InDelta(t, 0.5, result.TotalProcessingTime, 1e-9)
	assert.EqualValues(t, 2, b.ML.Calls.Load())

	nbeats := result.Predictions[models.ModelNBeats]
	require.Len(t, nbeats.Values, 24)
	assert.InDelta(t, 1000*0.97, nbeats.ConfidenceMin[0], 1e-9)
	assert.InDelta(t, 1000*1.03, nbeats.ConfidenceMax[0], 1e-9)

	// 入力行列の「Sat」列は未入力なら0
	input := b.ML.LastData()
	require.Len(t, input, 24)
	assert.Equal(t, float64(fixtures.StartHour), input[0][4])
	assert.Equal(t, 0.0, input[1][4])

	t.Run("csv export", func(t *testing.T) {
		resp := postJSON(t, c, b.URL+"/api/export", models.ExportRequest{Data: result, Format: models.FormatCSV})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
		assert.Regexp(t, `attachment; filename="predikcija_\d{8}_\d{6}\.csv"`, resp.Header.Get("Content-Disposition"))

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 25)
		assert.Equal(t, "Sat,Prethodna 24h,Predikcija NBEATS,Ocekivani interval odstupanja NBEATS,Predikcija CNN-NBEATS,Ocekivani interval odstupanja CNN-NBEATS", lines[0])
		assert.Equal(t, "07:00,400.0000,1000.0000,970.0000-1030.0000,1000.0000,970.0000-1030.0000", lines[1])
	})

	t.Run("excel export", func(t *testing.T) {
		resp := postJSON(t, c, b.URL+"/api/export", models.ExportRequest{Data: result, Format: models.FormatExcel})
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")
	})

	t.Run("missing data", func(t *testing.T) {
		resp := postJSON(t, c, b.URL+"/api/export", map[string]string{"format": "csv"})
		var body map[string]interface{}
		decode(t, resp, &body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "No data to export", body["message"])
	})
}

func TestPredictErrors(t *testing.T) {
	b := testserver.New(t)
	c := login(t, b)
	uploaded := upload(t, b, c)

	t.Run("unknown file", func(t *testing.T) {
		resp := postJSON(t, c, b.URL+"/api/predict", models.PredictRequest{FileID: "missing"})
		var body map[string]interface{}
		decode(t, resp, &body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid or missing file", body["message"])
	})

	t.Run("no models", func(t *testing.T) {
		resp := postJSON(t, c, b.URL+"/api/predict", map[string]interface{}{"fileId": uploaded.FileID, "modelTypes": []string{}})
		var body map[string]interface{}
		decode(t, resp, &body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "At least one model must be selected", body["message"])
	})

	t.Run("unknown model", func(t *testing.T) {
		resp := postJSON(t, c, b.URL+"/api/predict", models.PredictRequest{FileID: uploaded.FileID, ModelTypes: []string{"lstm"}})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("service offline", func(t *testing.T) {
		b.ML.Healthy.Store(false)
		defer b.ML.Healthy.Store(true)

		resp := postJSON(t, c, b.URL+"/api/predict", models.PredictRequest{FileID: uploaded.FileID})
		var body map[string]interface{}
		decode(t, resp, &body)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "offline", body["service_status"])
	})

	t.Run("short forecast", func(t *testing.T) {
		b.ML.SetForecast([]float64{1, 2, 3})
		defer b.ML.SetForecast(fixtures.DefaultForecast())

		resp := postJSON(t, c, b.URL+"/api/predict", models.PredictRequest{FileID: uploaded.FileID})
		var body map[string]interface{}
		decode(t, resp, &body)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "error", body["service_status"])
	})

	t.Run("other user's file", func(t *testing.T) {
		stored := b.Uploads.Save("consumption.csv", "someone-else", fixtures.CSV(t))
		resp := postJSON(t, c, b.URL+"/api/predict", models.PredictRequest{FileID: stored.ID})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLoginRateLimit(t *testing.T) {
	b := testserver.New(t, testserver.WithRateLimit())
	c := newClient(t)

	for i := 0; i < 3; i++ {
		resp := postJSON(t, c, b.URL+"/auth/login", models.LoginRequest{Username: "x", Password: "y"})
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := postJSON(t, c, b.URL+"/auth/login", models.LoginRequest{Username: "x", Password: "y"})
	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Rate limit exceeded. Please try again later.", body["message"])
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestMaintenanceMode(t *testing.T) {
	b := testserver.New(t)
	c := login(t, b)

	resp := postJSON(t, c, b.URL+"/api/admin/maintenance/start", map[string]string{"username": "admin", "password": "wrong"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, c, b.URL+"/api/admin/maintenance/start", map[string]string{"username": "admin", "password": "admin-pass"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := c.Get(b.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = postFile(t, c, b.URL+"/api/upload", "consumption.csv", fixtures.CSV(t))
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = c.Get(b.URL + "/api/admin/health-status")
	require.NoError(t, err)
	var status map[string]bool
	decode(t, resp, &status)
	assert.True(t, status["isMaintenanceMode"])

	resp = postJSON(t, c, b.URL+"/api/admin/maintenance/stop", map[string]string{"username": "admin", "password": "admin-pass"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = c.Get(b.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMonitoringLogs(t *testing.T) {
	b := testserver.New(t)
	c := login(t, b)
	upload(t, b, c)

	resp, err := c.Get(b.URL + "/api/monitoring/logs?period=1h")
	require.NoError(t, err)
	var body struct {
		RequestsOverTime []map[string]interface{} `json:"requestsOverTime"`
		Endpoints        map[string]int           `json:"endpoints"`
	}
	decode(t, resp, &body)
	assert.Len(t, body.RequestsOverTime, 1)
	assert.Equal(t, 1, body.Endpoints["/api/upload"])
	assert.Equal(t, 1, body.Endpoints["/auth/login"])
}

func TestPages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>login</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dashboard.html"), []byte("<h1>dashboard</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	b := testserver.New(t, testserver.WithFrontendDir(dir))
	anon := newClient(t)

	resp, err := anon.Get(b.URL + "/")
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "login")

	resp, err = anon.Get(b.URL + "/dashboard.html")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	for _, path := range []string{"//dashboard.html", "/x/../dashboard.html", "/static/../DASHBOARD.html"} {
		resp, err = anon.Get(b.URL + path)
		require.NoError(t, err)
		data, _ = io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.NotContains(t, string(data), "<h1>dashboard</h1>", path)
	}

	resp, err = anon.Get(b.URL + "/app.js")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = anon.Get(b.URL + "/missing.js")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	c := login(t, b)
	resp, err = c.Get(b.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard.html", resp.Header.Get("Location"))

	resp, err = c.Get(b.URL + "/dashboard.html")
	require.NoError(t, err)
	data, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(data), "dashboard")
	resp, err = c.Get(b.URL + "//dashboard.html")
	require.NoError(t, err)
	data, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "<h1>dashboard</h1>")
}
