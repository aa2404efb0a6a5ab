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

const factSystemPrompt = `You extract discrete factual assertions from legal discovery documents: dates, parties, amounts, obligations, admissions and events. Respond with a JSON array only, each element:
{"text": "<one self-contained fact>", "category": "date|party|amount|obligation|admission|event|other", "confidence": <0..1>}
Return [] when the text contains no extractable facts. No prose outside the array.`

type GeminiFactExtractor struct {
	client    *genai.Client
	modelName string
}

func NewGeminiFactExtractor(ctx context.Context, apiKey, modelName string) (*GeminiFactExtractor, error) {
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
	return &GeminiFactExtractor{client: cl, modelName: modelName}, nil
}

func (g *GeminiFactExtractor) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiFactExtractor) ExtractFacts(ctx context.Context, documentType, text string) ([]models.Fact, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.ResponseMIMEType = "application/json"
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(factSystemPrompt)},
	}

	prompt := fmt.Sprintf("Document type: %s\n\n%s", documentType, text)
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini facts: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, nil
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}

	raw := strings.TrimSpace(sb.String())
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var facts []models.Fact
	if err := json.Unmarshal([]byte(raw), &facts); err != nil {
		return nil, fmt.Errorf("%w: %v", discovery.ErrMalformedResponse, err)
	}
	return facts, nil
}

var _ core.FactExtractor = (*GeminiFactExtractor)(nil)
