package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/Discovera/internal/core"
	"github.com/markdave123-py/Discovera/internal/core/discovery"
	"github.com/markdave123-py/Discovera/internal/models"
)

const classifierSystemPrompt = `You segment legal discovery productions. You are given the text of consecutive pages from a merged, Bates-stamped production PDF. Identify where one constituent document ends and the next begins.

Respond with a JSON array only. Each element describes one document found in the given pages:
{"start_page": <0-based index within the given pages>, "end_page": <0-based, inclusive>, "confidence": <0..1>, "document_type": "EMAIL|CONTRACT|MEMO|LETTER|FINANCIAL_RECORD|COURT_FILING|OTHER", "title": "<short title if apparent>", "bates_range": "<e.g. ABC0001-ABC0004 if stamped>", "indicators": ["<signals used, e.g. letterhead, signature block, new subject line>"]}

Cover every page you were given. Do not include any prose outside the JSON array.`

type GeminiClassifier struct {
	client    *genai.Client
	modelName string
}

func NewGeminiClassifier(ctx context.Context, apiKey, modelName string) (*GeminiClassifier, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiClassifier{client: cl, modelName: modelName}, nil
}

func (g *GeminiClassifier) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// ClassifyWindow asks the model for boundary candidates within one page
// window. Returned page indices are window-local; the detector translates
// them to absolute coordinates.
func (g *GeminiClassifier) ClassifyWindow(ctx context.Context, pages []string) ([]models.Boundary, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.ResponseMIMEType = "application/json"
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(classifierSystemPrompt)},
	}

	var sb strings.Builder
	for i, page := range pages {
		fmt.Fprintf(&sb, "=== PAGE %d ===\n%s\n\n", i, page)
	}

	resp, err := m.GenerateContent(ctx, genai.Text(sb.String()))
	if err != nil {
		return nil, fmt.Errorf("gemini classify: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: empty candidates", discovery.ErrMalformedResponse)
	}

	var out strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			out.WriteString(string(t))
		}
	}

	boundaries, err := parseBoundaries(out.String())
	if err != nil {
		return nil, err
	}
	return boundaries, nil
}

// parseBoundaries tolerates markdown code fences around the JSON payload.
func parseBoundaries(raw string) ([]models.Boundary, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var boundaries []models.Boundary
	if err := json.Unmarshal([]byte(raw), &boundaries); err != nil {
		return nil, fmt.Errorf("%w: %v", discovery.ErrMalformedResponse, err)
	}
	return boundaries, nil
}

var _ core.BoundaryClassifier = (*GeminiClassifier)(nil)
