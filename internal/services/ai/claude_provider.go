package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/contexo-app/contexo/internal/common"
	"github.com/contexo-app/contexo/internal/interfaces"
	"github.com/contexo-app/contexo/internal/models"
)

// ClaudeProvider is the account provider: it rides on an interactive
// session captured outside the generation path (an OAuth token stored in
// settings), not on an API key supplied by the user. The session token is
// written by the auth capture endpoint; SignIn picks it up and verifies it.
type ClaudeProvider struct {
	config   *common.ClaudeConfig
	settings interfaces.SettingsService
	logger   arbor.ILogger
	timeout  time.Duration
	limiter  *rate.Limiter
	retry    *RetryConfig

	mu          sync.Mutex
	client      *anthropic.Client
	token       *oauth2.Token
	source      oauth2.TokenSource
	lastConnect *time.Time

	initOnce sync.Once
	initDone chan struct{}
}

// NewClaudeProvider creates the account Claude provider. The client shell
// initializes in the background; authentication happens at SignIn.
func NewClaudeProvider(config *common.ClaudeConfig, settings interfaces.SettingsService, logger arbor.ILogger) (*ClaudeProvider, error) {
	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid claude timeout duration '%s': %w", config.Timeout, err)
	}

	interval, err := time.ParseDuration(config.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid claude rate limit duration '%s': %w", config.RateLimit, err)
	}

	p := &ClaudeProvider{
		config:   config,
		settings: settings,
		logger:   logger,
		timeout:  timeout,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		retry:    NewDefaultRetryConfig(),
		initDone: make(chan struct{}),
	}

	p.initOnce.Do(func() {
		close(p.initDone)
	})

	return p, nil
}

// Tag returns the provider identity
func (p *ClaudeProvider) Tag() models.ProviderTag {
	return models.ProviderClaude
}

// DefaultModel returns the configured default model
func (p *ClaudeProvider) DefaultModel() string {
	return p.config.Model
}

// IsAvailable reports whether the client runtime has finished loading
func (p *ClaudeProvider) IsAvailable() bool {
	select {
	case <-p.initDone:
		return true
	default:
		return false
	}
}

// WaitForReady blocks until the client runtime is loaded or the timeout
// elapses. Fails closed: a slow runtime yields false, never a hang.
func (p *ClaudeProvider) WaitForReady(ctx context.Context, timeout time.Duration) bool {
	select {
	case <-p.initDone:
		return true
	case <-ctx.Done():
		return false
	case <-time.After(timeout):
		return false
	}
}

// HealthCheck probes the provider runtime without a network round trip
func (p *ClaudeProvider) HealthCheck(ctx context.Context) interfaces.HealthResult {
	if !p.IsAvailable() {
		return interfaces.HealthResult{Healthy: false, Message: "client runtime not loaded"}
	}

	// A stored session that fails to parse means the capture is corrupt;
	// report unhealthy so the caller re-captures rather than signs in.
	record := p.settings.Get()
	if record.ClaudeSessionToken != "" {
		if _, err := parseSessionToken(record.ClaudeSessionToken); err != nil {
			return interfaces.HealthResult{Healthy: false, Message: fmt.Sprintf("stored session unreadable: %v", err)}
		}
	}

	return interfaces.HealthResult{Healthy: true}
}

// parseSessionToken decodes the serialized OAuth token from settings
func parseSessionToken(raw string) (*oauth2.Token, error) {
	var token oauth2.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("session token has no access token")
	}
	return &token, nil
}

// CaptureSession serializes an externally obtained session credential into
// settings, where SignIn picks it up
func (p *ClaudeProvider) CaptureSession(ctx context.Context, credential models.SessionCredential) error {
	if credential.AccessToken == "" {
		return fmt.Errorf("session credential has no access token")
	}

	token := oauth2.Token{
		AccessToken:  credential.AccessToken,
		RefreshToken: credential.RefreshToken,
		Expiry:       credential.ExpiresAt,
	}
	if !token.Valid() {
		return fmt.Errorf("session credential already expired at %s", credential.ExpiresAt.Format(time.RFC3339))
	}

	raw, err := json.Marshal(&token)
	if err != nil {
		return fmt.Errorf("failed to serialize session token: %w", err)
	}

	p.settings.Update(func(r *models.ConfigRecord) {
		r.ClaudeSessionToken = string(raw)
	})

	p.logger.Info().Msg("Claude session captured")
	return nil
}

// IsSignedIn reports whether a usable session exists
func (p *ClaudeProvider) IsSignedIn(ctx context.Context) bool {
	p.mu.Lock()
	if p.token != nil && p.token.Valid() {
		p.mu.Unlock()
		return true
	}
	p.mu.Unlock()

	record := p.settings.Get()
	if record.ClaudeSessionToken == "" {
		return false
	}
	token, err := parseSessionToken(record.ClaudeSessionToken)
	if err != nil {
		return false
	}
	return token.Valid()
}

// SignIn establishes the session from the captured token and builds the
// authenticated client
func (p *ClaudeProvider) SignIn(ctx context.Context) error {
	record := p.settings.Get()
	if record.ClaudeSessionToken == "" {
		return fmt.Errorf("no captured session; sign in through the provider prompt first")
	}

	token, err := parseSessionToken(record.ClaudeSessionToken)
	if err != nil {
		return err
	}
	if !token.Valid() {
		return fmt.Errorf("captured session has expired")
	}

	source := oauth2.ReuseTokenSource(token, oauth2.StaticTokenSource(token))
	client := anthropic.NewClient(
		option.WithAuthToken(token.AccessToken),
	)

	p.mu.Lock()
	p.token = token
	p.source = source
	p.client = &client
	p.mu.Unlock()

	p.logger.Debug().Msg("Claude session established")
	return nil
}

// SignOut discards the current session and clears the stored token
func (p *ClaudeProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.client = nil
	p.token = nil
	p.source = nil
	p.lastConnect = nil
	p.mu.Unlock()

	p.settings.Update(func(r *models.ConfigRecord) {
		r.ClaudeSessionToken = ""
		r.ClaudeConnected = false
	})

	p.logger.Info().Msg("Claude session discarded")
	return nil
}

// TestConnection performs a network round trip against the model catalog
func (p *ClaudeProvider) TestConnection(ctx context.Context) bool {
	client, err := p.getClient()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if _, err := client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		p.logger.Warn().Err(err).Msg("Claude connection test failed")
		return false
	}

	now := time.Now()
	p.mu.Lock()
	p.lastConnect = &now
	p.mu.Unlock()

	return true
}

// GetAuthStatus reports the session state for display
func (p *ClaudeProvider) GetAuthStatus(ctx context.Context) models.AuthStatus {
	status := models.AuthStatus{
		IsSignedIn:        p.IsSignedIn(ctx),
		ConnectionQuality: "offline",
	}

	p.mu.Lock()
	if p.lastConnect != nil {
		status.LastConnected = p.lastConnect.Format(time.RFC3339)
		if time.Since(*p.lastConnect) < 5*time.Minute {
			status.ConnectionQuality = "good"
		} else {
			status.ConnectionQuality = "degraded"
		}
	}
	p.mu.Unlock()

	return status
}

// getClient returns the authenticated client, or an error before sign-in
func (p *ClaudeProvider) getClient() (*anthropic.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil, fmt.Errorf("no active session")
	}
	return p.client, nil
}

// ListModels fetches the current model catalog
func (p *ClaudeProvider) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	client, err := p.getClient()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	page, err := client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to list Claude models: %w", err)
	}

	catalog := make([]models.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		catalog = append(catalog, models.ModelInfo{
			ID:          string(m.ID),
			DisplayName: m.DisplayName,
		})
	}

	p.logger.Debug().Int("count", len(catalog)).Msg("Fetched Claude model catalog")
	return catalog, nil
}

// Generate produces text from a plain prompt
func (p *ClaudeProvider) Generate(ctx context.Context, prompt, modelID string) (string, error) {
	return p.complete(ctx, "", prompt, modelID)
}

// ProcessFiles compiles the given files into a single markdown document
func (p *ClaudeProvider) ProcessFiles(ctx context.Context, files []models.FileInput, documentName, modelID string) (string, error) {
	return p.complete(ctx, "", buildCompilationPrompt(files, documentName), modelID)
}

// Condense produces a shortened version of the given content
func (p *ClaudeProvider) Condense(ctx context.Context, content, modelID string) (string, error) {
	return p.complete(ctx, "", buildCondensePrompt(content), modelID)
}

// HandleMessage answers a user message with provider-side context assembly:
// file context rides in the system prompt, the message stays the sole turn
func (p *ClaudeProvider) HandleMessage(ctx context.Context, message string, context []models.FileInput, modelID string) (string, error) {
	system := ""
	if len(context) > 0 {
		system = buildContextPrompt("", context)
	}
	return p.complete(ctx, system, message, modelID)
}

// complete is the single generation path: rate limit, bounded timeout,
// rate-limit-aware retry, text extraction
func (p *ClaudeProvider) complete(ctx context.Context, system, prompt, modelID string) (string, error) {
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

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		MaxTokens: int64(p.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if p.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(p.config.Temperature))
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	var resp *anthropic.Message
	var apiErr error

	for attempt := 0; attempt <= p.retry.MaxRetries; attempt++ {
		resp, apiErr = client.Messages.New(ctx, params)
		if apiErr == nil {
			break
		}

		if attempt == p.retry.MaxRetries {
			break
		}

		backoff := time.Duration(attempt+1) * 2 * time.Second
		if IsRateLimitError(apiErr) {
			backoff = p.retry.CalculateBackoff(attempt, 0)
		}

		p.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Claude API call")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", fmt.Errorf("Claude API call failed after %d retries: %w", p.retry.MaxRetries, apiErr)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	if text == "" {
		return "", fmt.Errorf("empty response from Claude API")
	}

	return text, nil
}
