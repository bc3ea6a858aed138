package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/agrolog/apollo/internal/httpclient"
	"github.com/agrolog/apollo/internal/llm"
	"github.com/agrolog/apollo/internal/metrics"
	"github.com/agrolog/apollo/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- mocks ---

type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, text string) (model.Classification, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(model.Classification), args.Error(1)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) ExtractTable(ctx context.Context, message string) (model.Table, error) {
	args := m.Called(ctx, message)
	return args.Get(0).(model.Table), args.Error(1)
}

func (m *MockExtractor) ExtractTableFromImage(ctx context.Context, photo []byte, declared string) (model.Table, error) {
	args := m.Called(ctx, photo, declared)
	return args.Get(0).(model.Table), args.Error(1)
}

func (m *MockExtractor) Transcribe(ctx context.Context, audio []byte, ext string) (string, error) {
	args := m.Called(ctx, audio, ext)
	return args.String(0), args.Error(1)
}

type recordingOutput struct {
	mu      sync.Mutex
	records []model.Record
}

func (o *recordingOutput) Write(_ context.Context, r model.Record) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, r)
	return nil
}

func (o *recordingOutput) Close() error { return nil }

func doJSON(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorInfo {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Error
}

// --- classify ---

func setupClassify(cls Classifier, audit *recordingOutput) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set("request_id", "req-1"); c.Next() })
	var h *ClassifyHandler
	if audit != nil {
		h = NewClassifyHandler(cls, audit, metrics.New())
	} else {
		h = NewClassifyHandler(cls, nil, nil)
	}
	router.POST("/classify_message", h.Classify)
	return router
}

func TestClassify(t *testing.T) {
	t.Run("returns rounded probability and raw argmax", func(t *testing.T) {
		cls := new(MockClassifier)
		res := model.NewClassification(model.ClassProbabilities{0.13, 0.87})
		cls.On("Classify", mock.Anything, "Пахота зяби под мн тр").Return(res, nil)
		audit := &recordingOutput{}

		w := doJSON(t, setupClassify(cls, audit), "/classify_message", `{"message":"Пахота зяби под мн тр"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"probability":0.87,"prediction":1}`, w.Body.String())
		cls.AssertExpectations(t)

		require.Len(t, audit.records, 1)
		assert.Equal(t, "req-1", audit.records[0].RequestID)
		assert.Equal(t, "http", audit.records[0].Source)
		assert.Equal(t, 0.87, audit.records[0].Probability)
	})

	t.Run("empty message is valid", func(t *testing.T) {
		cls := new(MockClassifier)
		cls.On("Classify", mock.Anything, "").Return(model.NewClassification(model.ClassProbabilities{0.7, 0.3}), nil)

		w := doJSON(t, setupClassify(cls, nil), "/classify_message", `{"message":""}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"probability":0.3,"prediction":0}`, w.Body.String())
	})

	t.Run("missing message is 422", func(t *testing.T) {
		cls := new(MockClassifier)
		w := doJSON(t, setupClassify(cls, nil), "/classify_message", `{"text":"x"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)
		cls.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
	})

	t.Run("non-string message is 422", func(t *testing.T) {
		w := doJSON(t, setupClassify(new(MockClassifier), nil), "/classify_message", `{"message":42}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("malformed json is 422", func(t *testing.T) {
		w := doJSON(t, setupClassify(new(MockClassifier), nil), "/classify_message", `{"message":`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("inference failure is 500 without a default value", func(t *testing.T) {
		cls := new(MockClassifier)
		cls.On("Classify", mock.Anything, "x").Return(model.Classification{}, fmt.Errorf("engine: %w", model.ErrInference))
		audit := &recordingOutput{}

		w := doJSON(t, setupClassify(cls, audit), "/classify_message", `{"message":"x"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "INFERENCE_ERROR", decodeError(t, w).Code)
		assert.NotContains(t, w.Body.String(), "probability")
		assert.Empty(t, audit.records)
	})
}

// --- extract ---

func setupExtract(ex Extractor) *gin.Engine {
	router := gin.New()
	var h *ExtractHandler
	if ex == nil {
		h = NewExtractHandler(nil, nil)
	} else {
		h = NewExtractHandler(ex, metrics.New())
	}
	router.POST("/process_message", h.ProcessMessage)
	router.POST("/process_photo", h.ProcessPhoto)
	router.POST("/transcribe_audio", h.TranscribeAudio)
	return router
}

func TestExtract(t *testing.T) {
	perDay := 26.0
	table := model.Table{Table: []model.TableRow{{Division: "АОР", Operation: "Пахота", Culture: "Соя товарная", PerDay: &perDay}}}

	t.Run("process message", func(t *testing.T) {
		ex := new(MockExtractor)
		ex.On("ExtractTable", mock.Anything, "Пахота зяби").Return(table, nil)

		w := doJSON(t, setupExtract(ex), "/process_message", `{"message":"Пахота зяби"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		var got model.Table
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Len(t, got.Table, 1)
		assert.Equal(t, "Пахота", got.Table[0].Operation)
		assert.Nil(t, got.Table[0].Date)
		ex.AssertExpectations(t)
	})

	t.Run("process photo decodes base64", func(t *testing.T) {
		ex := new(MockExtractor)
		ex.On("ExtractTableFromImage", mock.Anything, []byte("img"), "png").Return(table, nil)

		body := fmt.Sprintf(`{"photo":%q,"type":"png"}`, base64.StdEncoding.EncodeToString([]byte("img")))
		w := doJSON(t, setupExtract(ex), "/process_photo", body)

		assert.Equal(t, http.StatusOK, w.Code)
		ex.AssertExpectations(t)
	})

	t.Run("process photo rejects bad base64", func(t *testing.T) {
		ex := new(MockExtractor)
		w := doJSON(t, setupExtract(ex), "/process_photo", `{"photo":"@@@","type":"png"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		ex.AssertNotCalled(t, "ExtractTableFromImage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unsupported media is 422", func(t *testing.T) {
		ex := new(MockExtractor)
		ex.On("ExtractTableFromImage", mock.Anything, mock.Anything, "jpg").
			Return(model.Table{}, fmt.Errorf("llm: photo is text/plain: %w", llm.ErrUnsupportedMedia))

		body := fmt.Sprintf(`{"photo":%q,"type":"jpg"}`, base64.StdEncoding.EncodeToString([]byte("text")))
		w := doJSON(t, setupExtract(ex), "/process_photo", body)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "UNSUPPORTED_MEDIA", decodeError(t, w).Code)
	})

	t.Run("transcribe audio", func(t *testing.T) {
		ex := new(MockExtractor)
		ex.On("Transcribe", mock.Anything, []byte("OggS"), "ogg").Return("Пахота зяби", nil)

		body := fmt.Sprintf(`{"audio":%q,"type":"ogg"}`, base64.StdEncoding.EncodeToString([]byte("OggS")))
		w := doJSON(t, setupExtract(ex), "/transcribe_audio", body)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"text":"Пахота зяби"}`, w.Body.String())
	})

	t.Run("upstream failure is 502", func(t *testing.T) {
		ex := new(MockExtractor)
		ex.On("ExtractTable", mock.Anything, "x").
			Return(model.Table{}, fmt.Errorf("llm process_message: %w", &httpclient.APIError{StatusCode: 500, Body: "boom"}))

		w := doJSON(t, setupExtract(ex), "/process_message", `{"message":"x"}`)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "UPSTREAM_ERROR", decodeError(t, w).Code)
	})

	t.Run("disabled without extractor", func(t *testing.T) {
		router := setupExtract(nil)
		for _, path := range []string{"/process_message", "/process_photo", "/transcribe_audio"} {
			w := doJSON(t, router, path, `{}`)
			assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
			assert.Equal(t, "LLM_DISABLED", decodeError(t, w).Code, path)
		}
	})
}

func TestDecodeBase64(t *testing.T) {
	want := []byte{0xfb, 0xff, 0x01}
	for _, s := range []string{
		base64.StdEncoding.EncodeToString(want),
		base64.RawStdEncoding.EncodeToString(want),
		base64.URLEncoding.EncodeToString(want),
		"data:image/png;base64," + base64.StdEncoding.EncodeToString(want),
	} {
		got, err := decodeBase64(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
	_, err := decodeBase64("not base64!")
	assert.Error(t, err)
}

// --- errors ---

func TestMapError(t *testing.T) {
	tests := []struct {
		name               string
		err                error
		expectedStatusCode int
		expectedCode       string
	}{
		{"dimension mismatch", &model.DimensionMismatchError{Got: 312, Want: 768}, http.StatusInternalServerError, "DIMENSION_MISMATCH"},
		{"tokenization", fmt.Errorf("embedder: %w", model.ErrTokenization), http.StatusInternalServerError, "TOKENIZATION_ERROR"},
		{"inference", model.ErrInference, http.StatusInternalServerError, "INFERENCE_ERROR"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable, "CANCELLED"},
		{"llm disabled", ErrLLMDisabled, http.StatusServiceUnavailable, "LLM_DISABLED"},
		{"unsupported media", llm.ErrUnsupportedMedia, http.StatusUnprocessableEntity, "UNSUPPORTED_MEDIA"},
		{"bad answer", llm.ErrBadAnswer, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"api error", &httpclient.APIError{StatusCode: 429}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"unknown error", errors.New("some unknown error"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := MapError(tt.err)
			assert.Equal(t, tt.expectedStatusCode, resp.StatusCode)
			assert.Equal(t, tt.expectedCode, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

// --- health ---

func TestHealthHandler(t *testing.T) {
	t.Run("healthy with classifier", func(t *testing.T) {
		h := NewHealthHandler("0.4.0", true, 312, false, true)
		router := gin.New()
		router.GET("/health", h.Health)
		router.GET("/ready", h.Ready)

		req, _ := http.NewRequest("GET", "/health", http.NoBody)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var status HealthStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "0.4.0", status.Version)
		assert.Equal(t, 312, status.EmbeddingDim)
		assert.Equal(t, "not configured", status.Components["llm"])
		assert.Equal(t, "ok", status.Components["audit"])

		req, _ = http.NewRequest("GET", "/ready", http.NoBody)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "ready")
	})

	t.Run("not ready without classifier", func(t *testing.T) {
		h := NewHealthHandler("0.4.0", false, 0, true, false)
		router := gin.New()
		router.GET("/health", h.Health)
		router.GET("/ready", h.Ready)

		req, _ := http.NewRequest("GET", "/ready", http.NoBody)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		req, _ = http.NewRequest("GET", "/health", http.NoBody)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "not loaded")
	})
}
