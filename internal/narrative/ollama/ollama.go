package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/kafadas/kinjo/internal/narrative"
)

const systemPrompt = `You write short, warm reflections about a person's acts of kindness.
Use only the statistics and notes provided. Never invent names.
Reply with JSON: {"summary": string, "suggestions": [string, ...]} with at most 3 suggestions.`

// Provider calls the Ollama generate API.
type Provider struct {
	client  *resty.Client
	model   string
	limiter *rate.Limiter
}

// New creates a Provider against baseURL. perMinute <= 0 disables rate limiting.
func New(baseURL, model string, perMinute int) *Provider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(2 * time.Minute)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return &Provider{client: c, model: model, limiter: limiter}
}

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
	Format string `json:"format"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Generate implements narrative.Generator.
func (p *Provider) Generate(ctx context.Context, req narrative.Request) (*narrative.Narrative, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body := generateRequest{
		Model:  p.model,
		System: systemPrompt,
		Prompt: buildPrompt(req),
		Format: "json",
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(&body).
		Post("/api/generate")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("ollama status %d: %s", resp.StatusCode(), resp.String())
	}

	var gr generateResponse
	if err := json.Unmarshal(resp.Body(), &gr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if gr.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", gr.Error)
	}
	var out narrative.Narrative
	if err := json.Unmarshal([]byte(gr.Response), &out); err != nil {
		return nil, fmt.Errorf("decode narrative: %w", err)
	}
	out.Summary = strings.TrimSpace(out.Summary)
	if out.Summary == "" {
		return nil, fmt.Errorf("ollama returned an empty summary")
	}
	if out.Suggestions == nil {
		out.Suggestions = []string{}
	}
	return &out, nil
}

func buildPrompt(req narrative.Request) string {
	var sb strings.Builder
	sb.WriteString("Statistics:\n")
	sb.Write(req.Computed)
	if len(req.Context) > 0 {
		sb.WriteString("\n\nNotes:\n")
		for _, c := range req.Context {
			sb.WriteString("- ")
			sb.WriteString(c)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// HealthPing implements health.HealthPinger by checking /api/tags for the configured model.
func (p *Provider) HealthPing(ctx context.Context) error {
	var data struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	resp, err := p.client.R().SetContext(ctx).SetResult(&data).Get("/api/tags")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("ollama status %d", resp.StatusCode())
	}
	want := baseModelName(p.model)
	for _, m := range data.Models {
		if baseModelName(m.Name) == want {
			return nil
		}
	}
	return fmt.Errorf("model %s not found", want)
}

func baseModelName(name string) string {
	return strings.SplitN(name, ":", 2)[0]
}
