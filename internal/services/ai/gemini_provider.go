package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/contexo-app/contexo/internal/common"
	"github.com/contexo-app/contexo/internal/models"
)

// GeminiProvider is the keyed provider: it requires an explicit API
// credential and becomes usable the moment that credential validates.
type GeminiProvider struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	timeout time.Duration
	limiter *rate.Limiter
	retry   *RetryConfig

	mu     sync.Mutex
	client *genai.Client
	apiKey string
}

// NewGeminiProvider creates the keyed Gemini provider. No client is built
// until a credential is supplied and validated.
func NewGeminiProvider(config *common.GeminiConfig, logger arbor.ILogger) (*GeminiProvider, error) {
	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid gemini timeout duration '%s': %w", config.Timeout, err)
	}

	interval, err := time.ParseDuration(config.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid gemini rate limit duration '%s': %w", config.RateLimit, err)
	}

	return &GeminiProvider{
		config:  config,
		logger:  logger,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		retry:   NewDefaultRetryConfig(),
	}, nil
}

// Tag returns the provider identity
func (p *GeminiProvider) Tag() models.ProviderTag {
	return models.ProviderGemini
}

// DefaultModel returns the configured default model
func (p *GeminiProvider) DefaultModel() string {
	return p.config.Model
}

// ValidateCredential builds a client for the secret and issues a
// lightweight catalog call to verify it. On success the client is kept
// for subsequent generation calls.
func (p *GeminiProvider) ValidateCredential(ctx context.Context, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("credential is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  secret,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	// One page of the model list is the cheapest authenticated call
	if _, err := listGeminiModels(ctx, client); err != nil {
		return fmt.Errorf("credential validation call failed: %w", err)
	}

	p.mu.Lock()
	p.client = client
	p.apiKey = secret
	p.mu.Unlock()

	p.logger.Debug().Msg("Gemini credential validated")
	return nil
}

// getClient returns the validated client, or an error if no credential
// has been accepted yet
func (p *GeminiProvider) getClient() (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil, fmt.Errorf("no validated credential")
	}
	return p.client, nil
}

// listGeminiModels fetches generation-capable models from the API
func listGeminiModels(ctx context.Context, client *genai.Client) ([]models.ModelInfo, error) {
	var catalog []models.ModelInfo
	for model, err := range client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}
		id := strings.TrimPrefix(model.Name, "models/")
		if !strings.HasPrefix(id, "gemini-") {
			continue
		}
		catalog = append(catalog, models.ModelInfo{
			ID:          id,
			DisplayName: model.DisplayName,
			Description: model.Description,
		})
	}
	return catalog, nil
}

// ListModels fetches the current model catalog
func (p *GeminiProvider) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	client, err := p.getClient()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	catalog, err := listGeminiModels(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to list Gemini models: %w", err)
	}

	p.logger.Debug().Int("count", len(catalog)).Msg("Fetched Gemini model catalog")
	return catalog, nil
}

// Generate produces text from a plain prompt
func (p *GeminiProvider) Generate(ctx context.Context, prompt, modelID string) (string, error) {
	return p.generateText(ctx, prompt, modelID)
}

// ProcessFiles compiles the given files into a single markdown document
func (p *GeminiProvider) ProcessFiles(ctx context.Context, files []models.FileInput, documentName, modelID string) (string, error) {
	return p.generateText(ctx, buildCompilationPrompt(files, documentName), modelID)
}

// Condense produces a shortened version of the given content
func (p *GeminiProvider) Condense(ctx context.Context, content, modelID string) (string, error) {
	return p.generateText(ctx, buildCondensePrompt(content), modelID)
}

// generateText is the single generation path: rate limit, bounded timeout,
// rate-limit-aware retry, text extraction.
func (p *GeminiProvider) generateText(ctx context.Context, prompt, modelID string) (string, error) {
	client, err := p.getClient()
	if err != nil {
		return "", err
	}

	if modelID == "" {
		modelID = p.config.Model
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.config.Temperature),
	}

	var resp *genai.GenerateContentResponse
	var apiErr error

	for attempt := 0; attempt <= p.retry.MaxRetries; attempt++ {
		resp, apiErr = client.Models.GenerateContent(ctx, modelID, contents, config)
		if apiErr == nil {
			break
		}

		if attempt == p.retry.MaxRetries {
			break
		}

		var backoff time.Duration
		if IsRateLimitError(apiErr) {
			backoff = p.retry.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		} else {
			backoff = time.Duration(attempt+1) * 2 * time.Second
		}

		p.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Gemini API call")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", fmt.Errorf("Gemini API call failed after %d retries: %w", p.retry.MaxRetries, apiErr)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini API")
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty text in Gemini response")
	}

	return text, nil
}
