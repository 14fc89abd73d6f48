package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cohesion/internal/errors"
	"github.com/hpungsan/cohesion/internal/request"
)

func fruitRequest() *request.AnalysisRequest {
	return &request.AnalysisRequest{
		Category: "Fruits",
		Items:    []string{"apple", "banana", "cherry"},
		Method:   request.MethodMean,
	}
}

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *wireRequest) {
	t.Helper()
	var got wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/calculate-cohesion" {
			http.Error(w, `{"error":"unexpected route"}`, http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestScore_Success(t *testing.T) {
	srv, got := newTestServer(t, http.StatusOK,
		`{"cohesion_score":0.8123,"similarities":[0.9,0.75,0.8],"mean_score":0.8167,"variance":0.0039}`)
	client := NewClient(srv.URL+"/api/calculate-cohesion", 5*time.Second, nil)

	res, err := client.Score(context.Background(), fruitRequest())
	require.NoError(t, err)
	require.Equal(t, 0.8123, res.CohesionScore)
	require.Equal(t, []float64{0.9, 0.75, 0.8}, res.Similarities)
	require.NotNil(t, res.MeanScore)

	require.Equal(t, "Fruits", got.Category)
	require.Equal(t, []string{"apple", "banana", "cherry"}, got.Items)
	require.Equal(t, "mean", got.AggregationMethod)
}

func TestScore_ShapeMismatch(t *testing.T) {
	for _, body := range []string{
		`{"cohesion_score":0.5,"similarities":[0.9,0.75]}`,
		`{"cohesion_score":0.5,"similarities":[0.9,0.75,0.8,0.1]}`,
		`{"cohesion_score":0.5}`,
	} {
		srv, _ := newTestServer(t, http.StatusOK, body)
		client := NewClient(srv.URL+"/api/calculate-cohesion", 5*time.Second, nil)

		res, err := client.Score(context.Background(), fruitRequest())
		require.Nil(t, res, body)
		require.True(t, errors.Is(err, errors.ErrShapeMismatch), "body %s: got %v", body, err)
	}
}

func TestScore_ServiceErrorMessage(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusBadRequest, `{"error":"category must not be empty"}`)
	client := NewClient(srv.URL+"/api/calculate-cohesion", 5*time.Second, nil)

	_, err := client.Score(context.Background(), fruitRequest())
	cErr, ok := errors.As(err)
	require.True(t, ok)
	require.Equal(t, errors.ErrService, cErr.Code)
	require.Equal(t, http.StatusBadRequest, cErr.Status)
	require.Equal(t, "category must not be empty", cErr.Message)
}

func TestScore_ServiceErrorFallbackMessage(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusInternalServerError, `<html>oops</html>`)
	client := NewClient(srv.URL+"/api/calculate-cohesion", 5*time.Second, nil)

	_, err := client.Score(context.Background(), fruitRequest())
	cErr, ok := errors.As(err)
	require.True(t, ok)
	require.Equal(t, errors.ErrService, cErr.Code)
	require.Equal(t, "calculation failed", cErr.Message)
}

func TestScore_MalformedSuccessBody(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `not json`)
	client := NewClient(srv.URL+"/api/calculate-cohesion", 5*time.Second, nil)

	_, err := client.Score(context.Background(), fruitRequest())
	require.True(t, errors.Is(err, errors.ErrService), "got %v", err)
}

func TestScore_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/api/calculate-cohesion"
	srv.Close()

	client := NewClient(endpoint, time.Second, nil)
	_, err := client.Score(context.Background(), fruitRequest())
	require.True(t, errors.Is(err, errors.ErrTransport), "got %v", err)
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" || r.URL.Path == "/scoring/api/health" {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/api/calculate-cohesion", time.Second, nil)
	require.NoError(t, client.Health(context.Background()))

	prefixed := NewClient(srv.URL+"/scoring/api/calculate-cohesion?v=1", time.Second, nil)
	require.NoError(t, prefixed.Health(context.Background()), "health keeps the gateway prefix")

	missing := NewClient(srv.URL+"/other/api/calculate-cohesion", time.Second, nil)
	require.True(t, errors.Is(missing.Health(context.Background()), errors.ErrService))
}

func TestHealthPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/api/calculate-cohesion", "/api/health"},
		{"/scoring/api/calculate-cohesion", "/scoring/api/health"},
		{"/calculate", "/health"},
		{"", "/health"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, healthPath(tt.in), tt.in)
	}
}

func TestProject_EndToEnd(t *testing.T) {
	req := fruitRequest()
	res := &Result{CohesionScore: 0.8123, Similarities: []float64{0.9, 0.75, 0.8}}

	v := Project(req, res)
	require.Equal(t, "0.8123", v.ScoreDisplay)
	require.Equal(t, "Fruits", v.Category)
	require.Equal(t, 3, v.ItemCount)
	require.Equal(t, "Mean", v.MethodLabel)
	require.Equal(t, []Row{
		{Item: "apple", Similarity: 0.9, Display: "0.9000"},
		{Item: "banana", Similarity: 0.75, Display: "0.7500"},
		{Item: "cherry", Similarity: 0.8, Display: "0.8000"},
	}, v.Rows)
	require.Empty(t, v.MeanDisplay)
}

func TestProject_MedianLabelAndExtras(t *testing.T) {
	mean, variance := 0.5, 0.01
	req := &request.AnalysisRequest{Category: "Tools", Items: []string{"saw"}, Method: request.MethodMedian}
	v := Project(req, &Result{CohesionScore: 0.123456, Similarities: []float64{0.123456}, MeanScore: &mean, Variance: &variance})

	require.Equal(t, "0.1235", v.ScoreDisplay)
	require.Equal(t, "Median", v.MethodLabel)
	require.Equal(t, "0.5000", v.MeanDisplay)
	require.Equal(t, "0.0100", v.Variance)
}
