package classifier

import (
	"context"
	"fmt"
	"math"
	"strings"

	"civicfix_backend/platform/config"
	"civicfix_backend/platform/logger"
)

// Prediction is a classifier verdict. Confidence is a percentage in [0, 100].
type Prediction struct {
	Label      string
	Confidence float64
}

// Classifier labels a report photo.
type Classifier interface {
	Classify(ctx context.Context, image []byte, mimeType string) (Prediction, error)
}

// Predict runs c and never fails: an error or empty label becomes "other"
// with zero confidence.
func Predict(ctx context.Context, c Classifier, image []byte, mimeType string, log *logger.Logger) Prediction {
	p, err := c.Classify(ctx, image, mimeType)
	if err != nil {
		if log != nil {
			log.WithContext(ctx).Warn("image classification failed", "error", err)
		}
		return Prediction{Label: LabelOther}
	}
	p.Label = strings.TrimSpace(p.Label)
	if p.Label == "" {
		return Prediction{Label: LabelOther}
	}
	p.Confidence = clampConfidence(p.Confidence)
	return p
}

// New builds the classifier selected by cfg. It returns nil when
// classification is disabled.
func New(ctx context.Context, cfg config.ClassifierConfig, table RoutingTable) (Classifier, error) {
	switch cfg.GetClassifierProvider() {
	case "", "none":
		return nil, nil
	case "http":
		return NewHTTPModel(cfg.GetClassifierURL(), nil), nil
	case "gemini":
		return NewGemini(ctx, cfg.GetGeminiAPIKey(), cfg.GetGeminiModel(), table.Labels())
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.GetClassifierProvider())
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
