package generate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jupark12/go-content-queue/logger"
	"github.com/jupark12/go-content-queue/metrics"
	"github.com/jupark12/go-content-queue/models"
)

var (
	// ErrAPIKeyNotSet is returned when a completer is built without credentials.
	ErrAPIKeyNotSet = errors.New("completion API key not set")

	errNotJSON = errors.New("completion is not a valid JSON object")
)

// CompletionRequest is one call to a text-completion service.
type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
	// JSON asks for a single JSON object as the response.
	JSON bool
}

// Completer sends prompts to a text-completion service.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Name identifies the provider in logs and metrics.
	Name() string
}

// Params are the fixed completion parameters for one prompt variant.
type Params struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Generator builds prompts and returns the model output verbatim. Article
// output is not validated; product output must be a JSON object.
type Generator struct {
	completer Completer
	article   Params
	product   Params
	metrics   *metrics.Metrics
	log       logger.Logger
}

// NewGenerator creates a generator. m may be nil.
func NewGenerator(c Completer, article, product Params, m *metrics.Metrics, log logger.Logger) *Generator {
	return &Generator{
		completer: c,
		article:   article,
		product:   product,
		metrics:   m,
		log:       log,
	}
}

// GenerateArticle returns HTML markup for one extracted page.
func (g *Generator) GenerateArticle(ctx context.Context, page *models.PageData) (string, error) {
	return g.complete(ctx, CompletionRequest{
		System:      ArticleSystemPrompt,
		Prompt:      BuildArticlePrompt(page),
		Model:       g.article.Model,
		MaxTokens:   g.article.MaxTokens,
		Temperature: g.article.Temperature,
	})
}

// GenerateProduct returns a JSON object describing the product.
func (g *Generator) GenerateProduct(ctx context.Context, product *models.ProductData) (string, error) {
	out, err := g.complete(ctx, CompletionRequest{
		System:      ProductSystemPrompt,
		Prompt:      BuildProductPrompt(product),
		Model:       g.product.Model,
		MaxTokens:   g.product.MaxTokens,
		Temperature: g.product.Temperature,
		JSON:        true,
	})
	if err != nil {
		return "", err
	}

	out = strings.TrimSpace(out)
	var obj map[string]any
	if err := json.Unmarshal([]byte(out), &obj); err != nil {
		return "", &models.GenerationError{Err: errors.Join(errNotJSON, err)}
	}
	return out, nil
}

func (g *Generator) complete(ctx context.Context, req CompletionRequest) (string, error) {
	out, err := g.completer.Complete(ctx, req)
	g.metrics.CompletionCalled(g.completer.Name(), err)
	if err != nil {
		g.log.Warn("Completion failed",
			logger.String("provider", g.completer.Name()),
			logger.String("model", req.Model),
			logger.Error(err),
		)
		return "", &models.GenerationError{Err: err}
	}
	return out, nil
}
