package handlers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/cropadvisor/internal/handlers"
	"github.com/nkiryanov/cropadvisor/internal/handlers/middleware"
	"github.com/nkiryanov/cropadvisor/internal/service/auth"
	"github.com/nkiryanov/cropadvisor/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/cropadvisor/internal/service/predictor"
	"github.com/nkiryanov/cropadvisor/internal/testutil"
)

// Allow to use a function as recommender
type stubRecommender func(features [predictor.NumFeatures]float64) string

func (f stubRecommender) Recommend(features [predictor.NumFeatures]float64) string {
	return f(features)
}

// Full router with production auth service and stub recommender
func newAppServer(t *testing.T) string {
	t.Helper()

	repo := testutil.NewMemUserRepo()

	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"}, repo)
	require.NoError(t, err)

	authService, err := auth.NewService(auth.Config{}, tokenManager, repo)
	require.NoError(t, err)

	recommender := stubRecommender(func(features [predictor.NumFeatures]float64) string {
		return "Rice is the best crop to be cultivated right there."
	})

	router := handlers.NewRouter(
		handlers.NewAuth(authService),
		handlers.NewPredict(recommender),
		middleware.AuthMiddleware(authService),
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL
}

func Test_Router(t *testing.T) {
	t.Parallel()

	predictBody := `{
		"Nitrogen": 90,
		"Phosporus": 42,
		"Potassium": 43,
		"Temperature": 20.88,
		"Humidity": 82.0,
		"pH": 6.5,
		"Rainfall": 202.94
	}`

	// Register and login, return the auth cookies
	loginUser := func(t *testing.T, url string) []*http.Cookie {
		t.Helper()

		resp, err := http.Post(url+"/auth/register", "application/json",
			strings.NewReader(`{"username": "nk", "email": "nk@example.com", "password": "StrongEnoughPassword"}`))
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()

		resp, err = http.Post(url+"/auth/login", "application/json",
			strings.NewReader(`{"email": "nk@example.com", "password": "StrongEnoughPassword"}`))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()

		return resp.Cookies()
	}

	t.Run("home", func(t *testing.T) {
		url := newAppServer(t)

		resp, err := http.Get(url + "/")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var data struct {
			Message string            `json:"message"`
			Routes  map[string]string `json:"routes"`
		}
		require.NoError(t, json.Unmarshal(body, &data))
		require.Contains(t, data.Message, "Welcome")
		require.Contains(t, data.Routes, "Predict")
	})

	t.Run("unknown path", func(t *testing.T) {
		url := newAppServer(t)

		resp, err := http.Get(url + "/unknown")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("predict requires auth", func(t *testing.T) {
		url := newAppServer(t)

		resp, err := http.Post(url+"/predict", "application/json", strings.NewReader(predictBody))
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", string(body))
		require.JSONEq(t, `
			{
				"error": "service_error",
				"message": "Unauthorized"
			}`, string(body))
	})

	t.Run("predict ok with auth cookie", func(t *testing.T) {
		url := newAppServer(t)
		cookies := loginUser(t, url)

		req, err := http.NewRequest(http.MethodPost, url+"/predict", strings.NewReader(predictBody))
		require.NoError(t, err)
		for _, c := range cookies {
			req.AddCookie(c)
		}

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", string(body))
		require.JSONEq(t, `
			{
				"result": "Rice is the best crop to be cultivated right there."
			}`, string(body))
	})

	t.Run("predict fail with tampered cookie", func(t *testing.T) {
		url := newAppServer(t)
		cookies := loginUser(t, url)

		req, err := http.NewRequest(http.MethodPost, url+"/predict", strings.NewReader(predictBody))
		require.NoError(t, err)
		for _, c := range cookies {
			if c.Name == "auth_token" {
				c.Value += "tamper"
			}
			req.AddCookie(c)
		}

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("predict get not allowed", func(t *testing.T) {
		url := newAppServer(t)

		resp, err := http.Get(url + "/predict")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}
