package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// VisionReader transcribes the text printed on a bill image or PDF.
type VisionReader interface {
	ReadText(ctx context.Context, data []byte, mimeType string) (string, error)
}

const billTranscriptionPrompt = `Transcreva integralmente o texto desta conta de energia elétrica, linha por linha, ` +
	`preservando rótulos, valores em reais, datas e números exatamente como aparecem. ` +
	`Não resuma, não interprete e não acrescente comentários.`

// GeminiVisionReader uses a multimodal Gemini model as OCR.
type GeminiVisionReader struct {
	client  *genai.Client
	modelID string
}

var _ VisionReader = (*GeminiVisionReader)(nil)

func NewGeminiVisionReader(ctx context.Context, apiKey, modelID string) (*GeminiVisionReader, error) {
	client, err := newGenaiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = DefaultGeminiModel
	}
	return &GeminiVisionReader{client: client, modelID: modelID}, nil
}

func (r *GeminiVisionReader) ReadText(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("llm: image data required")
	}
	format, err := blobFormat(mimeType)
	if err != nil {
		return "", err
	}
	model := r.client.GenerativeModel(r.modelID)
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx, genai.Blob{MIMEType: format, Data: data}, genai.Text(billTranscriptionPrompt))
	if err != nil {
		return "", fmt.Errorf("llm: gemini vision failed: %w", err)
	}
	text, _, err := geminiText(resp)
	return text, err
}

func (r *GeminiVisionReader) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func blobFormat(mimeType string) (string, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return "image/jpeg", nil
	case "image/png", "image/webp", "image/heic", "application/pdf":
		return mimeType, nil
	default:
		return "", fmt.Errorf("llm: unsupported media type %q", mimeType)
	}
}
