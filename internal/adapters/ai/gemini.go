package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/analysis-service/internal/domain"
	"google.golang.org/genai"

	_ "embed"
)

//go:embed prompt.txt
var analysisPrompt string

// GeminiAnalyzer invokes the Gemini API to derive key moments for a video.
// The model's output is returned raw; structural validation happens in the
// pipeline, not here.
type GeminiAnalyzer struct {
	client       *genai.Client
	model        string
	videoBaseURL string
}

func NewGeminiAnalyzer(ctx context.Context, apiKey, model, videoBaseURL string) (*GeminiAnalyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini analyzer requires an api key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiAnalyzer{
		client:       client,
		model:        model,
		videoBaseURL: strings.TrimSuffix(videoBaseURL, "/"),
	}, nil
}

func (a *GeminiAnalyzer) Analyze(ctx context.Context, videoID uuid.UUID) (domain.RawAnalysis, error) {
	videoURL := fmt.Sprintf("%s/%s.mp4", a.videoBaseURL, videoID)

	parts := []*genai.Part{
		genai.NewPartFromText(analysisPrompt),
		genai.NewPartFromURI(videoURL, "video/mp4"),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := a.client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return domain.RawAnalysis{}, fmt.Errorf("generate content for video %s: %w", videoID, err)
	}
	responseText := result.Text()
	if responseText == "" {
		return domain.RawAnalysis{}, fmt.Errorf("empty model response for video %s", videoID)
	}
	return parseAnalysisResponse(responseText)
}

func parseAnalysisResponse(response string) (domain.RawAnalysis, error) {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")
	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return domain.RawAnalysis{}, fmt.Errorf("no JSON found in model response")
	}
	jsonStr := response[startIdx : endIdx+1]

	var raw domain.RawAnalysis
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return domain.RawAnalysis{}, fmt.Errorf("unmarshal model response: %w", err)
	}
	return raw, nil
}
