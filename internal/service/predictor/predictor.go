package predictor

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Number of input features: N, P, K, temperature, humidity, pH, rainfall
const NumFeatures = 7

// Label to crop mapping the classifier was trained with
var cropNames = map[int]string{
	1: "Rice", 2: "Maize", 3: "Jute", 4: "Cotton", 5: "Coconut",
	6: "Papaya", 7: "Orange", 8: "Apple", 9: "Muskmelon", 10: "Watermelon",
	11: "Grapes", 12: "Mango", 13: "Banana", 14: "Pomegranate", 15: "Lentil",
	16: "Blackgram", 17: "Mungbean", 18: "Mothbeans", 19: "Pigeonpeas",
	20: "Kidneybeans", 21: "Chickpea", 22: "Coffee",
}

// Pre-trained classifier parameters as exported from the training pipeline:
// two feature scalers applied in order and one centroid per class label
type ModelFile struct {
	MinMax   MinMaxScaler   `json:"minmax_scaler"`
	Standard StandardScaler `json:"standard_scaler"`
	Classes  []Class        `json:"classes"`
}

type MinMaxScaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

type Class struct {
	Label    int       `json:"label"`
	Centroid []float64 `json:"centroid"`
}

// Predictor classifies a feature vector into a crop label
// Stateless after Load, safe for concurrent use
type Predictor struct {
	model ModelFile
}

// Load model parameters from JSON file
// The caller is expected to treat a failure as fatal at startup
func Load(path string) (*Predictor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error while opening model file. Err: %w", err)
	}
	defer f.Close() // nolint:errcheck

	var model ModelFile
	if err := json.NewDecoder(f).Decode(&model); err != nil {
		return nil, fmt.Errorf("error while decoding model file. Err: %w", err)
	}

	if err := validateModel(model); err != nil {
		return nil, fmt.Errorf("model file %q is malformed. Err: %w", path, err)
	}

	return &Predictor{model: model}, nil
}

func validateModel(m ModelFile) error {
	if len(m.Classes) == 0 {
		return fmt.Errorf("model has no classes")
	}

	vectors := map[string][]float64{
		"minmax min":     m.MinMax.Min,
		"minmax max":     m.MinMax.Max,
		"standard mean":  m.Standard.Mean,
		"standard scale": m.Standard.Scale,
	}
	for name, v := range vectors {
		if len(v) != NumFeatures {
			return fmt.Errorf("%s must have %d values, got %d", name, NumFeatures, len(v))
		}
	}

	for _, c := range m.Classes {
		if len(c.Centroid) != NumFeatures {
			return fmt.Errorf("class %d centroid must have %d values, got %d", c.Label, NumFeatures, len(c.Centroid))
		}
	}

	return nil
}

// Predict returns the class label for the feature vector:
// min-max scale, standard scale, then nearest centroid
func (p *Predictor) Predict(features [NumFeatures]float64) int {
	scaled := p.scale(features)

	best := p.model.Classes[0].Label
	bestDist := math.Inf(1)
	for _, c := range p.model.Classes {
		dist := 0.0
		for i, v := range c.Centroid {
			d := scaled[i] - v
			dist += d * d
		}
		if dist < bestDist {
			best = c.Label
			bestDist = dist
		}
	}

	return best
}

// Recommend returns the user facing recommendation text for the feature vector
func (p *Predictor) Recommend(features [NumFeatures]float64) string {
	crop, ok := cropNames[p.Predict(features)]
	if !ok {
		crop = "Unknown"
	}

	return fmt.Sprintf("%s is the best crop to be cultivated right there.", crop)
}

func (p *Predictor) scale(features [NumFeatures]float64) [NumFeatures]float64 {
	var scaled [NumFeatures]float64
	for i, x := range features {
		span := p.model.MinMax.Max[i] - p.model.MinMax.Min[i]
		if span != 0 {
			x = (x - p.model.MinMax.Min[i]) / span
		}
		if p.model.Standard.Scale[i] != 0 {
			x = (x - p.model.Standard.Mean[i]) / p.model.Standard.Scale[i]
		}
		scaled[i] = x
	}
	return scaled
}
