// Package gemini provides the narrative collaborator on the Google Gemini API
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/interfaces"
	"github.com/bobmcallan/digest/internal/models"
)

const DefaultModel = "gemini-2.0-flash"

// Client generates narrative text from structured findings
type Client struct {
	client *genai.Client
	model  string
	logger *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client: genaiClient,
		model:  DefaultModel,
		logger: common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// GenerateContent generates AI content from a prompt
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug().Str("model", c.model).Int("prompt_len", len(prompt)).Msg("Generating content")

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return extractTextFromResponse(result)
}

// Summarize produces one narrative section from the report findings
func (c *Client) Summarize(ctx context.Context, section models.NarrativeSection, findings []byte) (string, error) {
	prompt, err := BuildPrompt(section, findings)
	if err != nil {
		return "", err
	}
	text, err := c.GenerateContent(ctx, prompt)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty %s narrative", section)
	}
	return text, nil
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}

	return sb.String(), nil
}

const promptRules = `Rules:
- Use only the figures in the JSON below. Do not invent prices, news or events.
- Do not recommend buying, selling or holding any security.
- Write concise Markdown: short paragraphs or bullet points, no headings above level 3.
- Amounts are in %s; percentages are already multiplied by 100.
`

var sectionInstructions = map[models.NarrativeSection]string{
	models.NarrativeAnalysis: `You are summarising a private investor's daily portfolio digest.
Describe what happened today: the aggregate daily result, the positions that moved the
most, any positions flagged by alerts, and how the portfolio compares with the broad
market movers and benchmark indices listed.`,
	models.NarrativeInsights: `You are writing the "insights" section of a private investor's daily digest.
Point out themes across today's figures: concentration of gains or losses, positions far
from their cost basis, sectors or names recurring among market movers, and risks worth
watching. Keep it factual and neutral.`,
}

// BuildPrompt renders the prompt for a section. Only structured findings are embedded.
func BuildPrompt(section models.NarrativeSection, findings []byte) (string, error) {
	instructions, ok := sectionInstructions[section]
	if !ok {
		return "", fmt.Errorf("unknown narrative section %q", section)
	}

	currency := "the reporting currency"
	if cur := reportingCurrency(findings); cur != "" {
		currency = cur
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf(promptRules, currency))
	sb.WriteString("\nFindings (JSON):\n```json\n")
	sb.Write(findings)
	sb.WriteString("\n```\n")
	return sb.String(), nil
}

// reportingCurrency peeks at the findings for the currency code without a full decode
func reportingCurrency(findings []byte) string {
	const key = `"reporting_currency":"`
	s := string(findings)
	i := strings.Index(s, key)
	if i < 0 {
		return ""
	}
	rest := s[i+len(key):]
	if j := strings.IndexByte(rest, '"'); j > 0 {
		return rest[:j]
	}
	return ""
}

// Ensure Client implements Summarizer
var _ interfaces.Summarizer = (*Client)(nil)
