package handlers

import (
	"net/http"

	"github.com/nkiryanov/cropadvisor/internal/handlers/render"
	"github.com/nkiryanov/cropadvisor/internal/service/predictor"
)

// Crop recommender
type Recommender interface {
	Recommend(features [predictor.NumFeatures]float64) string
}

type PredictHandler struct {
	recommender Recommender
}

func NewPredict(recommender Recommender) *PredictHandler {
	return &PredictHandler{recommender: recommender}
}

func (h *PredictHandler) Handler() http.Handler {
	return http.HandlerFunc(h.predict)
}

func (h *PredictHandler) predict(w http.ResponseWriter, r *http.Request) {
	// Field names match the trained model inputs, typo included
	type PredictRequest struct {
		Nitrogen    float64 `json:"Nitrogen"`
		Phosporus   float64 `json:"Phosporus"`
		Potassium   float64 `json:"Potassium"`
		Temperature float64 `json:"Temperature"`
		Humidity    float64 `json:"Humidity"`
		PH          float64 `json:"pH"`
		Rainfall    float64 `json:"Rainfall"`
	}
	type PredictSuccessResponse struct {
		Result string `json:"result"`
	}

	// Missing fields default to zero, an empty or malformed body is an error
	data, err := render.BindAndValidate[PredictRequest](w, r)
	if err != nil {
		return
	}

	result := h.recommender.Recommend([predictor.NumFeatures]float64{
		data.Nitrogen,
		data.Phosporus,
		data.Potassium,
		data.Temperature,
		data.Humidity,
		data.PH,
		data.Rainfall,
	})

	render.JSON(w, PredictSuccessResponse{Result: result})
}
