package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domainllm "reqforge/internal/domain/services/llm"
)

const geminiName = "gemini"

// VertexBackend calls Gemini through Vertex AI with one service-account
// credential.
type VertexBackend struct {
	client *genai.Client
}

var _ domainllm.Backend = (*VertexBackend)(nil)

// NewVertexBackend creates a client for projectID/region. An empty
// credentialsFile falls back to application default credentials.
func NewVertexBackend(ctx context.Context, projectID, region, credentialsFile string) (*VertexBackend, error) {
	if projectID == "" {
		return nil, fmt.Errorf("vertex project id is required: %w", domainllm.ErrNoCredentials)
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := genai.NewClient(ctx, projectID, region, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexBackend{client: client}, nil
}

func (b *VertexBackend) Name() string { return geminiName }

func (b *VertexBackend) Generate(ctx context.Context, prompt, model string) (string, error) {
	resp, err := b.client.GenerativeModel(model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyGoogleError(err)
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("%s: response contained no text", geminiName)
	}
	return text, nil
}

// Close releases the underlying gRPC connection.
func (b *VertexBackend) Close() error {
	return b.client.Close()
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

// classifyGoogleError maps RESOURCE_EXHAUSTED and HTTP 429 to a rate limit.
func classifyGoogleError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return &domainllm.RateLimitError{Backend: geminiName, Err: err}
	}
	if status.Code(err) == codes.ResourceExhausted {
		return &domainllm.RateLimitError{Backend: geminiName, Err: err}
	}
	if strings.Contains(strings.ToLower(err.Error()), "quota") {
		return &domainllm.RateLimitError{Backend: geminiName, Err: err}
	}
	return err
}
