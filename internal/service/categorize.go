package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/aretelabs/arete/internal/domain"
	"github.com/aretelabs/arete/internal/llm"
	"go.uber.org/zap"
)

// KeyCategory labels a signal grouping key with a semantic topic and an
// identity category.
type KeyCategory struct {
	Label    string          `json:"label"`
	Category domain.Category `json:"category"`
}

// Categorizer maps a grouping key (plus sample payload text) to a
// KeyCategory. Returning (nil, nil) means "unknown here, try the next
// variant"; composition decides precedence.
type Categorizer interface {
	Categorize(ctx context.Context, key string, samples []string) (*KeyCategory, error)
}

// CategorizerChain tries each categorizer in order and returns the first
// definite answer. Errors are treated as "unknown" so a failing external
// classifier never blocks heuristic categorization.
type CategorizerChain struct {
	categorizers []Categorizer
	logger       *zap.Logger
}

func NewCategorizerChain(logger *zap.Logger, categorizers ...Categorizer) *CategorizerChain {
	return &CategorizerChain{categorizers: categorizers, logger: logger}
}

func (c *CategorizerChain) Categorize(ctx context.Context, key string, samples []string) (*KeyCategory, error) {
	for _, cat := range c.categorizers {
		result, err := cat.Categorize(ctx, key, samples)
		if err != nil {
			c.logger.Debug("categorizer failed, trying next", zap.String("key", key), zap.Error(err))
			continue
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// StaticTableCategorizer resolves well-known keys from a fixed lookup
// table.
type StaticTableCategorizer struct {
	table map[string]KeyCategory
}

func NewStaticTableCategorizer() *StaticTableCategorizer {
	return &StaticTableCategorizer{table: map[string]KeyCategory{
		"stackoverflow.com":     {Label: "software development", Category: domain.CategoryExpertise},
		"news.ycombinator.com":  {Label: "tech industry news", Category: domain.CategoryContext},
		"arxiv.org":             {Label: "academic research", Category: domain.CategoryExpertise},
		"kaggle.com":            {Label: "data science", Category: domain.CategoryExpertise},
		"leetcode.com":          {Label: "algorithm practice", Category: domain.CategoryFocus},
		"figma.com":             {Label: "design work", Category: domain.CategoryFocus},
		"notion.so":             {Label: "personal organization", Category: domain.CategoryContext},
		"docs.google.com":       {Label: "document writing", Category: domain.CategoryFocus},
		"developer.mozilla.org": {Label: "web development", Category: domain.CategoryExpertise},
		"pkg.go.dev":            {Label: "Go development", Category: domain.CategoryExpertise},
		"docs.python.org":       {Label: "Python development", Category: domain.CategoryExpertise},
		"huggingface.co":        {Label: "machine learning", Category: domain.CategoryExpertise},
	}}
}

func (c *StaticTableCategorizer) Categorize(_ context.Context, key string, _ []string) (*KeyCategory, error) {
	if kc, ok := c.table[key]; ok {
		result := kc
		return &result, nil
	}
	return nil, nil
}

// KeywordCategorizer applies keyword heuristics over observed payload text
// when the key itself is unknown.
type KeywordCategorizer struct{}

func NewKeywordCategorizer() *KeywordCategorizer {
	return &KeywordCategorizer{}
}

var keywordRules = []struct {
	keywords []string
	label    string
	category domain.Category
}{
	{[]string{"tutorial", "documentation", "reference", "api"}, "technical reference", domain.CategoryExpertise},
	{[]string{"error", "debug", "stack trace", "exception"}, "troubleshooting", domain.CategoryExpertise},
	{[]string{"course", "learn", "lesson", "exercise"}, "learning", domain.CategoryFocus},
	{[]string{"ticket", "issue", "sprint", "deadline"}, "project work", domain.CategoryFocus},
	{[]string{"recipe", "travel", "fitness", "workout"}, "personal interests", domain.CategoryContext},
}

func (c *KeywordCategorizer) Categorize(_ context.Context, _ string, samples []string) (*KeyCategory, error) {
	text := strings.ToLower(strings.Join(samples, " "))
	if text == "" {
		return nil, nil
	}
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return &KeyCategory{Label: rule.label, Category: rule.category}, nil
			}
		}
	}
	return nil, nil
}

// ClassifierCategorizer delegates unknown keys to the external classifier,
// caching results per key for the session.
type ClassifierCategorizer struct {
	client domain.ClassifierClient
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]*KeyCategory
}

func NewClassifierCategorizer(client domain.ClassifierClient, logger *zap.Logger) *ClassifierCategorizer {
	return &ClassifierCategorizer{
		client: client,
		logger: logger,
		cache:  make(map[string]*KeyCategory),
	}
}

type categorizeResponse struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Label    string `json:"label"`
	Category string `json:"category"`
}

func (c *ClassifierCategorizer) Categorize(ctx context.Context, key string, samples []string) (*KeyCategory, error) {
	if c.client == nil {
		return nil, nil
	}

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	prompt := llm.CategorizePromptFor(key, samples)
	raw, err := c.client.Complete(ctx, prompt, 256)
	if err != nil {
		return nil, err
	}

	obj := extractJSONObject(raw)
	if obj == "" {
		return nil, nil
	}
	var resp categorizeResponse
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		c.logger.Debug("categorizer response unparsable", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	if resp.Label == "" || !domain.ValidCategory(resp.Category) {
		return nil, nil
	}

	result := &KeyCategory{Label: resp.Label, Category: domain.Category(resp.Category)}
	c.mu.Lock()
	c.cache[key] = result
	c.mu.Unlock()
	return result, nil
}
