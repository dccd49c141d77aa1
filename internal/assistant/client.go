// Package assistant talks to an Ollama-compatible text generation server.
package assistant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"resty.dev/v3"
)

const (
	tagsPath     = "/api/tags"
	generatePath = "/api/generate"

	// MaxSamples is how many writing samples go into one prompt.
	MaxSamples = 3
)

// Status values reported by Status.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// Config describes the provider endpoint.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client is a thin provider client. It is safe for concurrent use.
type Client struct {
	client *resty.Client
	model  string
}

// NewClient builds a client for cfg.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	c.AddResponseMiddleware(latencyMiddleware)

	return &Client{client: c, model: cfg.Model}
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx)
}

// Model is a model installed on the provider.
type Model struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at,omitempty"`
	Size       int64  `json:"size,omitempty"`
}

// ProviderStatus is the reachability report returned to clients.
type ProviderStatus struct {
	Status string  `json:"status"`
	Models []Model `json:"models,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Status asks the provider which models it has. Failures are reported in the
// result rather than returned.
func (c *Client) Status(ctx context.Context) ProviderStatus {
	type tags struct {
		Models []Model `json:"models"`
	}

	res, err := c.r(ctx).
		SetResult(&tags{}).
		Get(tagsPath)
	if err != nil || res.IsError() {
		return ProviderStatus{Status: StatusDisconnected, Error: "Writing assistant service is not available"}
	}

	installed := res.Result().(*tags).Models
	if installed == nil {
		installed = []Model{}
	}
	return ProviderStatus{Status: StatusConnected, Models: installed}
}

// Sample is one piece of the author's own writing used as a style example.
type Sample struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate runs a single non-streaming completion.
// An unreachable provider yields an UNAVAILABLE AppError.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := observability.StartSpan(ctx, "assistant", "generate")

	res, err := c.r(ctx).
		SetBody(generateRequest{
			Model:  c.model,
			Prompt: prompt,
			Stream: false,
			Options: generateOptions{
				Temperature: 0.7,
				TopP:        0.9,
				NumPredict:  1000,
			},
		}).
		SetResult(&generateResponse{}).
		Post(generatePath)
	if err != nil {
		observability.AssistantRequests.WithLabelValues("unreachable").Inc()
		observability.EndSpan(span, err)
		return "", models.NewUnavailableError("Writing assistant service is not running. Start it and try again.", err)
	}
	if res.IsError() {
		err = fmt.Errorf("assistant responded %d: %s", res.StatusCode(), strings.TrimSpace(res.String()))
		observability.AssistantRequests.WithLabelValues("error").Inc()
		observability.EndSpan(span, err)
		return "", models.NewInternalError(err)
	}

	observability.AssistantRequests.WithLabelValues("ok").Inc()
	observability.EndSpan(span, nil)
	return res.Result().(*generateResponse).Response, nil
}

// BuildPrompt assembles the few-shot prompt from the author's samples and a plot.
func BuildPrompt(plot string, samples []Sample) string {
	var b strings.Builder
	b.WriteString("You are an AI writing assistant. Based on the following writing samples and a new plot idea, ")
	b.WriteString("generate content in the same style and voice as the samples.\n\nWriting Samples:\n")
	for i, s := range samples {
		fmt.Fprintf(&b, "\nSample %d - %s:\n%s\n", i+1, s.Title, s.Content)
	}
	fmt.Fprintf(&b, "\nNew Plot/Idea: %s\n\nGenerate content in the same style as the samples above:", plot)
	return b.String()
}

func latencyMiddleware(_ *resty.Client, response *resty.Response) error {
	path := response.Request.URL
	if u, err := url.Parse(response.Request.URL); err == nil {
		path = u.Path
	}
	observability.AssistantLatency.WithLabelValues(
		path,
		strconv.Itoa(response.StatusCode()),
	).Observe(response.Duration().Seconds())
	return nil
}
