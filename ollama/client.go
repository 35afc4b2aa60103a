package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "llama3.1:latest"
)

type Client struct {
	client  *api.Client
	model   string
	baseURL string
}

type StreamCallback func(chunk string) error

// Options maps onto Ollama's per-request model options. Zero values are
// omitted so the server default applies.
type Options struct {
	Temperature float64
	NumPredict  int
}

func (o Options) toMap() map[string]any {
	m := make(map[string]any)
	if o.Temperature > 0 {
		m["temperature"] = o.Temperature
	}
	if o.NumPredict > 0 {
		m["num_predict"] = o.NumPredict
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func NewClient(baseURL, model string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultHost
	}
	if model == "" {
		model = DefaultModel
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &Client{
		client:  api.NewClient(parsedURL, http.DefaultClient),
		model:   model,
		baseURL: baseURL,
	}, nil
}

// Chat streams a completion for messages through callback.
func (c *Client) Chat(ctx context.Context, messages []api.Message, opts Options, callback StreamCallback) error {
	stream := true
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  opts.toMap(),
	}

	return c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if callback == nil || resp.Message.Content == "" {
			return nil
		}
		return callback(resp.Message.Content)
	})
}

func (c *Client) GetModel() string {
	return c.model
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.List(ctx)
	return err
}
