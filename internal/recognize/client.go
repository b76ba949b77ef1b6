package recognize

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Client defaults matching the vision endpoint contract.
const (
	DefaultModel      = "gpt-4-vision-preview"
	DefaultMaxRetries = 3
	DefaultTimeout    = 30 * time.Second

	maxResponseTokens = 300
)

// resultPrompt instructs the model to answer with the exact JSON contract
// the parser expects.
const resultPrompt = `Identify the item in the image. Always give your best
guess, never answer that nothing was found. Reply strictly as JSON:
{
    "category": "<waste class>-<subclass>-<item name>",
    "composition": "main material composition",
    "degradation_time": "approximate time to degrade in nature",
    "recycling_value": "recycling value and disposal advice",
    "confidence": <certainty between 0.0 and 1.0>
}`

// ClientConfig configures the HTTP recognition client.
type ClientConfig struct {
	APIURL     string
	APIKey     string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// Client calls an OpenAI-compatible chat completions endpoint with the
// captured image inlined as a base64 data URL.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient creates a recognition client. Zero-value config fields fall
// back to the package defaults.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// chatRequest is the wire shape of the completion call.
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Recognize classifies the image at path. The endpoint is retried up to
// MaxRetries times; context cancellation aborts between and during attempts.
func (c *Client) Recognize(ctx context.Context, imagePath string) (*Result, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrImageMissing, imagePath)
		}
		return nil, fmt.Errorf("read image: %w", err)
	}

	body, err := json.Marshal(c.payload(data))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := c.send(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		log.Printf("recognize: attempt %d/%d failed: %v", attempt, c.cfg.MaxRetries, err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("recognition failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) payload(image []byte) chatRequest {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	return chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: resultPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
		MaxTokens: maxResponseTokens,
	}
}

func (c *Client) send(ctx context.Context, body []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResult
	}

	var raw Result
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &raw); err != nil {
		// The model answered, just not in the agreed shape. Fall back to
		// the unknown classification rather than failing the cycle.
		log.Printf("recognize: response is not valid JSON: %q", parsed.Choices[0].Message.Content)
		return normalize(Result{}), nil
	}

	return normalize(raw), nil
}
