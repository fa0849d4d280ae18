package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"google.golang.org/genai"
)

const geminiPrompt = `You label photos of civic infrastructure problems reported by citizens.
Choose exactly one label from the allowed list that best describes the main issue in the photo.
Use "other" when none fits. Report your confidence as a percentage between 0 and 100.`

// Gemini classifies photos with a Gemini vision model constrained to the
// routing table's labels.
type Gemini struct {
	client *genai.Client
	model  string
	labels []string
}

// NewGemini creates a Gemini-backed classifier.
func NewGemini(ctx context.Context, apiKey, model string, labels []string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, labels: labels}, nil
}

type geminiVerdict struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func (g *Gemini) Classify(ctx context.Context, image []byte, mimeType string) (Prediction, error) {
	content := &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
			genai.NewPartFromText(geminiPrompt),
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"label":      {Type: genai.TypeString, Enum: g.labels},
				"confidence": {Type: genai.TypeNumber},
			},
			Required: []string{"label", "confidence"},
		},
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("gemini classify: %w", err)
	}

	return parseGeminiVerdict(resp.Text(), g.labels)
}

func parseGeminiVerdict(text string, labels []string) (Prediction, error) {
	var verdict geminiVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &verdict); err != nil {
		return Prediction{}, fmt.Errorf("decode gemini verdict: %w", err)
	}
	if !slices.Contains(labels, verdict.Label) {
		return Prediction{}, fmt.Errorf("gemini returned unknown label %q", verdict.Label)
	}
	return Prediction{Label: verdict.Label, Confidence: verdict.Confidence}, nil
}
