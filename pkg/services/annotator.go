package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ekaya-inc/review-engine/pkg/apperrors"
	"github.com/ekaya-inc/review-engine/pkg/jsonutil"
	"github.com/ekaya-inc/review-engine/pkg/llm"
	"github.com/ekaya-inc/review-engine/pkg/models"
)

// annotatorSystemMessage is sent with every classification request.
const annotatorSystemMessage = "You are a helpful assistant."

// SentimentAnnotator classifies a review's tone and sentiment.
// Every failure wraps apperrors.ErrAnnotationFailed; callers do not retry.
type SentimentAnnotator interface {
	Classify(ctx context.Context, text string, stars int) (*models.Sentiment, error)
}

// AnnotatorConfig tunes the annotator's call discipline.
type AnnotatorConfig struct {
	// Timeout bounds one provider call. Zero means no extra deadline.
	Timeout time.Duration
	// RequestsPerSecond throttles calls. Zero disables throttling.
	RequestsPerSecond float64
	Breaker           llm.CircuitBreakerConfig
}

type sentimentAnnotator struct {
	client  llm.LLMClient
	timeout time.Duration
	limiter *rate.Limiter
	breaker *llm.CircuitBreaker
	logger  *zap.Logger
}

func NewSentimentAnnotator(client llm.LLMClient, cfg AnnotatorConfig, logger *zap.Logger) SentimentAnnotator {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &sentimentAnnotator{
		client:  client,
		timeout: cfg.Timeout,
		limiter: limiter,
		breaker: llm.NewCircuitBreaker(cfg.Breaker),
		logger:  logger.Named("annotator"),
	}
}

var _ SentimentAnnotator = (*sentimentAnnotator)(nil)

// BuildSentimentPrompt renders the classification prompt for one review.
func BuildSentimentPrompt(text string, stars int) string {
	return fmt.Sprintf(`Analyze the following review for tone and sentiment.
Review Text: "%s"
Star Rating: %d/10
Provide the tone (e.g., formal, informal, positive, negative, neutral) and sentiment (positive, negative, neutral).
Respond with JSON.`, text, stars)
}

func (a *sentimentAnnotator) Classify(ctx context.Context, text string, stars int) (*models.Sentiment, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			// Not the provider's fault; leave the breaker alone.
			return nil, fmt.Errorf("%w: rate limiter: %w", apperrors.ErrAnnotationFailed, err)
		}
	}

	if err := a.breaker.Allow(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrAnnotationFailed, err)
	}

	result, err := a.client.GenerateJSON(ctx, annotatorSystemMessage, BuildSentimentPrompt(text, stars))
	if err != nil {
		a.breaker.RecordFailure()
		return nil, fmt.Errorf("%w: %w", apperrors.ErrAnnotationFailed, err)
	}
	a.breaker.RecordSuccess()

	sentiment, err := parseSentiment(result.Content)
	if err != nil {
		a.logger.Debug("Malformed annotator response",
			zap.String("model", a.client.GetModel()),
			zap.Int("content_len", len(result.Content)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", apperrors.ErrAnnotationFailed, err)
	}
	return sentiment, nil
}

// parseSentiment reads {"tone": ..., "sentiment": ...} from a reply.
// Non-string scalars are stringified; a missing or blank field is an error.
func parseSentiment(content string) (*models.Sentiment, error) {
	raw, err := llm.ExtractJSONObject(content)
	if err != nil {
		return nil, llm.NewError(llm.ErrorTypeResponse, "malformed response", false, err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, llm.NewError(llm.ErrorTypeResponse, "malformed response", false, err)
	}

	tone, ok := jsonutil.StringField(obj, "tone")
	if !ok {
		return nil, llm.NewError(llm.ErrorTypeResponse, "missing tone", false, nil)
	}
	sentiment, ok := jsonutil.StringField(obj, "sentiment")
	if !ok {
		return nil, llm.NewError(llm.ErrorTypeResponse, "missing sentiment", false, nil)
	}

	return &models.Sentiment{Tone: tone, Sentiment: sentiment}, nil
}
