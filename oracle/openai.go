package oracle

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/c360/sembridge/errors"
	"github.com/c360/sembridge/fuzzy"
	"github.com/c360/sembridge/metric"
	"github.com/c360/sembridge/pkg/retry"
	"github.com/c360/sembridge/rules"
)

// Config configures the OpenAI-compatible chat client.
type Config struct {
	// BaseURL of any OpenAI-compatible inference service.
	// Examples:
	//   - Ollama: "http://localhost:11434/v1"
	//   - LocalAI: "http://localhost:8080/v1"
	//   - OpenAI: "https://api.openai.com/v1"
	BaseURL string `json:"base_url"`

	// Model consulted first for every rule.
	Model string `json:"model"`

	// FallbackModels are tried in order when the active model is not
	// served. No other failure kind walks this list.
	FallbackModels []string `json:"fallback_models,omitempty"`

	// APIKey is optional; local services accept any value.
	APIKey string `json:"api_key,omitempty"`

	// Timeout bounds each completion call. Defaults to 30 seconds.
	Timeout time.Duration `json:"timeout,omitempty"`

	// RequestsPerSecond throttles the aggregate request rate across all
	// concurrent rule evaluations. Zero disables throttling.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`

	// Burst is the throttle bucket size, default 1 when throttled.
	Burst int `json:"burst,omitempty"`

	// Params are the sampling parameters sent with every call. The zero
	// value selects DefaultInferenceParams.
	Params InferenceParams `json:"params,omitempty"`

	// PromptTemplate overrides DefaultPromptTemplate when set.
	PromptTemplate string `json:"prompt_template,omitempty"`

	// Logger for consultation diagnostics (optional).
	Logger *slog.Logger `json:"-"`

	// Registry receives consultation metrics (optional).
	Registry *metric.MetricsRegistry `json:"-"`
}

// OpenAIClient consults any OpenAI-compatible chat completion endpoint.
// It is safe for concurrent use.
type OpenAIClient struct {
	client  *openai.Client
	baseURL string
	models  []string
	params  InferenceParams
	prompt  *PromptBuilder
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
	metrics *clientMetrics
}

var _ Client = (*OpenAIClient)(nil)

type clientMetrics struct {
	consultations *prometheus.CounterVec
	latency       prometheus.Histogram
	fallbacks     prometheus.Counter
}

// NewOpenAIClient validates cfg and builds the client. No network
// traffic happens here; use Verify for a startup reachability check.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.BaseURL == "" {
		return nil, invalidClientConfig("base URL is required")
	}
	if cfg.Model == "" {
		return nil, invalidClientConfig("model is required")
	}

	prompt, err := NewPromptBuilder(cfg.PromptTemplate)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	// Local services don't check the key but the client requires one.
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	params := cfg.Params
	if params == (InferenceParams{}) {
		params = DefaultInferenceParams()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "oracle")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	c := &OpenAIClient{
		client:  openai.NewClientWithConfig(clientConfig),
		baseURL: cfg.BaseURL,
		models:  append([]string{cfg.Model}, cfg.FallbackModels...),
		params:  params,
		prompt:  prompt,
		limiter: limiter,
		timeout: timeout,
		logger:  logger,
	}
	if cfg.Registry != nil {
		c.initializeMetrics(cfg.Registry)
	}
	return c, nil
}

func invalidClientConfig(detail string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidConfig, detail),
		"oracle.OpenAIClient", "NewOpenAIClient", "config validation")
}

func (c *OpenAIClient) initializeMetrics(registry *metric.MetricsRegistry) {
	labels := prometheus.Labels{"component": "oracle"}

	consultations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "sembridge",
		Subsystem:   "oracle",
		Name:        "consultations_total",
		ConstLabels: labels,
		Help:        "Completion calls by model and outcome",
	}, []string{"model", "status"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   "sembridge",
		Subsystem:   "oracle",
		Name:        "latency_seconds",
		ConstLabels: labels,
		Help:        "Completion call latency",
		Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "sembridge",
		Subsystem:   "oracle",
		Name:        "fallbacks_total",
		ConstLabels: labels,
		Help:        "Consultations answered by a fallback model",
	})

	serviceName := "oracle"
	if err := registry.RegisterCounterVec(serviceName, "consultations_total", consultations); err != nil {
		return
	}
	if err := registry.RegisterHistogram(serviceName, "latency_seconds", latency); err != nil {
		return
	}
	if err := registry.RegisterCounter(serviceName, "fallbacks_total", fallbacks); err != nil {
		return
	}

	c.metrics = &clientMetrics{
		consultations: consultations,
		latency:       latency,
		fallbacks:     fallbacks,
	}
}

// Invoke consults the oracle about one rule. The configured model is
// tried first; each fallback model is tried in order only when the
// previous one was reported unavailable. Timeouts and unreachable
// services fail immediately, so a slow service costs at most one
// per-call timeout per rule.
func (c *OpenAIClient) Invoke(ctx context.Context, rule rules.Rule, state []fuzzy.Description) (string, error) {
	prompt, err := c.prompt.Build(rule, state)
	if err != nil {
		return "", err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", errors.WrapTransient(err, "oracle.OpenAIClient", "Invoke", "rate limit wait")
		}
	}

	var lastErr error
	for i, model := range c.models {
		reply, err := c.complete(ctx, model, prompt)
		if err == nil {
			if i > 0 {
				if c.metrics != nil {
					c.metrics.fallbacks.Inc()
				}
				c.logger.Info("Fallback model answered",
					"model", model,
					"rule_id", rule.ID)
			}
			return reply, nil
		}
		lastErr = err
		if !stderrors.Is(err, errors.ErrModelUnavailable) {
			return "", err
		}
		c.logger.Warn("Model unavailable, trying next",
			"model", model,
			"rule_id", rule.ID,
			"error", err)
	}
	return "", lastErr
}

func (c *OpenAIClient) complete(ctx context.Context, model, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.params.Temperature,
		MaxTokens:   c.params.MaxTokens,
		TopP:        c.params.TopP,
		// Ollama's compatibility layer reads frequency_penalty as its
		// repeat penalty. Top-k has no OpenAI-compatible field and
		// stays client side.
		FrequencyPenalty: c.params.RepeatPenalty,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(callCtx, req)
	elapsed := time.Since(start)
	if err != nil {
		classified := c.classify(err, model)
		c.observe(model, statusLabel(classified), elapsed)
		return "", classified
	}
	c.observe(model, "ok", elapsed)

	if len(resp.Choices) == 0 {
		return "", errors.WrapTransient(
			fmt.Errorf("model %q returned no choices", model),
			"oracle.OpenAIClient", "Invoke", "chat completion")
	}
	return resp.Choices[0].Message.Content, nil
}

// classify maps transport and API errors onto the package sentinels so
// callers can branch on the failure kind instead of message text.
func (c *OpenAIClient) classify(err error, model string) error {
	const component, method = "oracle.OpenAIClient", "Invoke"

	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.WrapTransient(
			fmt.Errorf("%w: model %q gave no reply within %s", errors.ErrOracleTimeout, model, c.timeout),
			component, method, "chat completion")
	}
	if stderrors.Is(err, context.Canceled) {
		return errors.WrapTransient(err, component, method, "chat completion")
	}

	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return c.classifyStatus(apiErr.HTTPStatusCode, apiErr.Message, model)
	}
	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return c.classifyStatus(reqErr.HTTPStatusCode, reqErr.Error(), model)
	}

	// Anything else is transport level: refused connections, DNS
	// failures, TLS faults.
	return errors.WrapTransient(
		fmt.Errorf("%w: %v", errors.ErrOracleUnreachable, err),
		component, method, "chat completion")
}

func (c *OpenAIClient) classifyStatus(status int, message, model string) error {
	const component, method = "oracle.OpenAIClient", "Invoke"
	switch {
	case status == http.StatusNotFound:
		return errors.WrapTransient(
			fmt.Errorf("%w: %q (%s)", errors.ErrModelUnavailable, model, message),
			component, method, "chat completion")
	case status == http.StatusTooManyRequests:
		return errors.WrapTransient(
			fmt.Errorf("service throttled model %q: %s", model, message),
			component, method, "chat completion")
	case status >= 500:
		return errors.WrapTransient(
			fmt.Errorf("%w: status %d: %s", errors.ErrOracleUnreachable, status, message),
			component, method, "chat completion")
	default:
		return errors.WrapInvalid(
			fmt.Errorf("service rejected request for model %q: status %d: %s", model, status, message),
			component, method, "chat completion")
	}
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case stderrors.Is(err, errors.ErrOracleTimeout):
		return "timeout"
	case stderrors.Is(err, errors.ErrModelUnavailable):
		return "model_unavailable"
	case stderrors.Is(err, errors.ErrOracleUnreachable):
		return "unreachable"
	default:
		return "error"
	}
}

func (c *OpenAIClient) observe(model, status string, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.consultations.WithLabelValues(model, status).Inc()
	c.metrics.latency.Observe(elapsed.Seconds())
}

// Models returns the model names the service reports, sorted.
func (c *OpenAIClient) Models(ctx context.Context) ([]string, error) {
	resp, err := c.client.ListModels(ctx)
	if err != nil {
		sentinel := errors.ErrOracleUnreachable
		if stderrors.Is(err, context.DeadlineExceeded) {
			sentinel = errors.ErrOracleTimeout
		}
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", sentinel, err),
			"oracle.OpenAIClient", "Models", "list models")
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.ID)
	}
	sort.Strings(names)
	return names, nil
}

// Healthy reports whether the service answers a model listing probe
// within the configured timeout.
func (c *OpenAIClient) Healthy(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.client.ListModels(probeCtx)
	return err == nil
}

// Verify confirms the service is reachable, retrying briefly so a
// service that is still starting does not fail the whole pipeline. A
// configured model the service does not report is logged, not fatal:
// some runtimes pull models lazily on first use.
func (c *OpenAIClient) Verify(ctx context.Context) error {
	available, err := retry.DoWithResult(ctx, retry.Quick(), func() ([]string, error) {
		return c.Models(ctx)
	})
	if err != nil {
		return err
	}

	serving := make(map[string]bool, len(available))
	for _, name := range available {
		serving[name] = true
	}
	var missing []string
	for _, model := range c.models {
		if !serving[model] {
			missing = append(missing, model)
		}
	}
	if len(missing) > 0 {
		c.logger.Warn("Configured models not reported by service",
			"missing", missing,
			"available", len(available))
	}

	c.logger.Info("Inference service verified",
		"endpoint", c.baseURL,
		"models", len(available))
	return nil
}

// Model returns the primary model name.
func (c *OpenAIClient) Model() string { return c.models[0] }
