package handlers

import (
	"net/http"

	"github.com/nkiryanov/cropadvisor/internal/handlers/render"
)

func handleHome() http.Handler {
	type response struct {
		Message string            `json:"message"`
		Routes  map[string]string `json:"routes"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, response{
			Message: "Welcome to the Farmer Backend API! 🌱",
			Routes: map[string]string{
				"Home":     "/",
				"Login":    "/auth/login",
				"Register": "/auth/register",
				"Refresh":  "/auth/refresh",
				"Logout":   "/auth/logout",
				"Predict":  "/predict",
			},
		})
	})
}
