package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agarciaarin-ops/SCUMM-AI/pkg/prompts"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/state"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiService implements GenerativeService using the Gemini API.
type GeminiService struct {
	client     *genai.Client
	imageModel string
	logger     *slog.Logger
}

// Ensure GeminiService implements GenerativeService interface
var _ GenerativeService = (*GeminiService)(nil)

// NewGeminiService creates a new Gemini service instance.
func NewGeminiService(ctx context.Context, apiKey string, imageModel string, logger *slog.Logger) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiService{
		client:     client,
		imageModel: imageModel,
		logger:     logger,
	}, nil
}

// Close releases the underlying API client.
func (s *GeminiService) Close() error {
	return s.client.Close()
}

// GenerateWorld requests a structured world-initialization reply from the
// given text model tier.
func (s *GeminiService) GenerateWorld(ctx context.Context, settings state.Settings, model string) (string, error) {
	return s.structuredCall(ctx, model, []genai.Part{genai.Text(prompts.WorldPrompt(settings))})
}

// GenerateTurn requests a structured gameplay reply, attaching the current
// rendered scene for multimodal grounding when available.
func (s *GeminiService) GenerateTurn(ctx context.Context, req TurnRequest) (string, error) {
	parts := []genai.Part{genai.Text(req.Prompt)}
	if len(req.ReferenceImage) > 0 {
		parts = append(parts, genai.ImageData("png", req.ReferenceImage))
	}
	return s.structuredCall(ctx, req.Model, parts)
}

func (s *GeminiService) structuredCall(ctx context.Context, model string, parts []genai.Part) (string, error) {
	m := s.client.GenerativeModel(model)
	m.ResponseMIMEType = "application/json"

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned no text content")
	}

	s.logger.Debug("Gemini structured reply received", "model", model, "length", len(text))
	return text, nil
}

// GenerateImage renders the scene with the configured image model. With a
// reference image the call is an edit of the current scene; without one it
// is a fresh generation.
func (s *GeminiService) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error) {
	m := s.client.GenerativeModel(s.imageModel)

	parts := []genai.Part{genai.Text(imagePrompt(req))}
	if len(req.ReferenceImage) > 0 {
		parts = append(parts, genai.ImageData("png", req.ReferenceImage))
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini image request failed: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if blob, ok := part.(genai.Blob); ok && len(blob.Data) > 0 {
				s.logger.Debug("Gemini image received", "mime_type", blob.MIMEType, "bytes", len(blob.Data))
				return blob.Data, nil
			}
		}
	}

	return nil, fmt.Errorf("gemini returned no image data")
}

// imagePrompt assembles the full image instruction from the scene
// description, style hints and key elements.
func imagePrompt(req ImageRequest) string {
	var sb strings.Builder
	if len(req.ReferenceImage) > 0 {
		sb.WriteString("Edit the attached scene so that it matches this description, keeping composition and style consistent: ")
	}
	sb.WriteString(req.Prompt)
	if req.StyleHints != "" {
		sb.WriteString("\nArt style: " + req.StyleHints)
	}
	if len(req.KeyElements) > 0 {
		sb.WriteString("\nMake sure these elements are visible: " + strings.Join(req.KeyElements, ", "))
	}
	return sb.String()
}

func extractText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}
