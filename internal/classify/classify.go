package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/archlens/archlens/internal/config"
)

// Category labels an article by its primary reader value.
const (
	CategoryWhat = "WHAT"
	CategoryHow  = "HOW"
	CategoryWhy  = "WHY"
)

// Confidence levels reported by the backend.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

const (
	// maxContentChars bounds how much article text is sent per request.
	// Classification quality is a function of the prefix, not full text.
	maxContentChars = 3000

	// maxTags caps the tag list after validation.
	maxTags = 5
)

const systemPrompt = `You are a Senior Technical Editor for an engineering publication. Your job is to classify technical blog posts for a content aggregator.

### CLASSIFICATION TAXONOMY
Classify the input text into exactly one of these three categories based on the **Primary Reader Value**:

1. **WHAT (News & Status)**
   - **Core Intent:** To inform about a temporal event.
   - **Signals:** Release notes, funding announcements, "We launched X", feature lists, changelogs.
   - **Reader Goal:** "I want to know what is new."

2. **HOW (Implementation & Practice)**
   - **Core Intent:** To teach a skill or explain a mechanism.
   - **Signals:** Code snippets, "How to", tutorials, debugging guides, benchmarks, deep-dives into internal mechanics (e.g., "How the Go scheduler works").
   - **Reader Goal:** "I want to build this" or "I want to understand how this works under the hood."

3. **WHY (Strategy & Culture)**
   - **Core Intent:** To persuade or reflect.
   - **Signals:** "Why we chose X", architectural trade-offs, post-mortems, team culture, career advice, industry predictions, hot takes/opinions.
   - **Reader Goal:** "I want to understand the decision-making process."

### TIE-BREAKING RULES
- If a post explains "How" we built it to justify "Why" we built it -> Prioritize **WHY**.
- If a post announces a feature (What) but spends 80% of the text showing code examples (How) -> Prioritize **HOW**.

### TAGGING RULES
- Extract specific technologies, languages, frameworks, or libraries.
- **Avoid** generic tags like "Technology", "Coding", "Software Engineering", "Blog".
- **Normalize** casing (e.g., use "Node.js" not "node").
- Max 5 tags.

### OUTPUT FORMAT
Respond ONLY with valid JSON. Do not include markdown formatting.

{
    "reasoning": "A brief 1-sentence explanation of why you chose this category.",
    "category": "WHAT|HOW|WHY",
    "confidence": "High|Medium|Low",
    "tags": ["SpecificTool", "Language", "Framework"]
}`

// Result is a validated classification.
type Result struct {
	Category   string   `json:"category"`
	Confidence string   `json:"confidence"`
	Tags       []string `json:"tags"`
}

// Fallback is the deterministic result used whenever the backend response
// cannot be validated.
func Fallback() Result {
	return Result{Category: CategoryWhat, Confidence: ConfidenceLow, Tags: []string{}}
}

// Classifier labels articles via an OpenAI-compatible chat completions
// endpoint.
type Classifier struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
	prompt  string
	log     *slog.Logger
}

// New builds a Classifier from configuration. A missing API key is a
// configuration fault and fails construction; anything that goes wrong per
// article later degrades to Fallback() instead.
func New(cfg config.LLMConfig, log *slog.Logger) (*Classifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("classifier: no API key configured (set OPENAI_API_KEY or MOONSHOT_API_KEY)")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	// Accept base URLs given with or without the /v1 suffix.
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = systemPrompt
	}

	return &Classifier{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: baseURL,
		model:   model,
		apiKey:  cfg.APIKey,
		prompt:  prompt,
		log:     log,
	}, nil
}

// Classify labels one article. It always returns a usable Result: backend,
// parse and validation failures yield Fallback() so a classification fault
// never aborts ingestion of an otherwise valid article.
func (c *Classifier) Classify(ctx context.Context, title, content string) Result {
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	raw, err := c.complete(ctx, title, content)
	if err != nil {
		c.log.Warn("classification request failed", "title", title, "error", err)
		return Fallback()
	}

	result, err := parseResult(raw)
	if err != nil {
		c.log.Warn("classification response invalid", "title", title, "error", err)
		return Fallback()
	}
	return result
}

func (c *Classifier) complete(ctx context.Context, title, content string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": c.prompt},
			{"role": "user", "content": fmt.Sprintf("Article title: %s\n\nArticle content:\n%s", title, content)},
		},
		"temperature":     0.1,
		"response_format": map[string]string{"type": "json_object"},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create classification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call classification backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]any
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("classification backend status %d: %v", resp.StatusCode, errResp)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode classification response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("classification backend: no choices returned")
	}
	return result.Choices[0].Message.Content, nil
}

// parseResult validates the raw model output: it must be JSON carrying
// category, confidence and tags. Tags are clamped to maxTags.
func parseResult(raw string) (Result, error) {
	raw = strings.TrimSpace(raw)

	// Handle markdown code block wrapping.
	if strings.HasPrefix(raw, "```") {
		if idx := strings.Index(raw[3:], "\n"); idx >= 0 {
			raw = raw[3+idx+1:]
		}
		if strings.HasSuffix(raw, "```") {
			raw = raw[:len(raw)-3]
		}
		raw = strings.TrimSpace(raw)
	}

	var parsed struct {
		Category   string    `json:"category"`
		Confidence string    `json:"confidence"`
		Tags       *[]string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Result{}, fmt.Errorf("parse classification: %w", err)
	}
	if parsed.Category == "" || parsed.Confidence == "" || parsed.Tags == nil {
		return Result{}, fmt.Errorf("classification missing required fields")
	}

	tags := *parsed.Tags
	if tags == nil {
		tags = []string{}
	}
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return Result{Category: parsed.Category, Confidence: parsed.Confidence, Tags: tags}, nil
}
