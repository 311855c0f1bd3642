// Package analysis turns free-form inference output into sentiment records and department picks.
package analysis

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/reviewdesk/internal/llm"
	"github.com/hyperjump/reviewdesk/internal/models"
	"github.com/hyperjump/reviewdesk/pkg/utils"
)

const sentimentPrompt = `당신은 금융 앱 리뷰의 감정을 분석하는 전문가입니다.
주어진 리뷰 텍스트를 분석하여 다음 형식으로 응답해주세요:

감정: positive/negative/neutral 중 하나
점수: -1.0(매우 부정) ~ 1.0(매우 긍정) 사이의 실수
신뢰도: 0.0 ~ 1.0 사이의 실수

응답 형식:
감정: [감정]
점수: [점수]
신뢰도: [신뢰도]`

// SentimentResult is a bounded sentiment record.
type SentimentResult struct {
	Label      models.Sentiment `json:"sentiment"`
	Score      float64          `json:"score"`
	Confidence float64          `json:"confidence"`
}

// DefaultSentiment is returned whenever inference fails.
func DefaultSentiment() SentimentResult {
	return SentimentResult{Label: models.SentimentNeutral}
}

// SentimentClassifier classifies review text with one inference call.
type SentimentClassifier struct {
	client llm.Client
	logger *zap.Logger
}

// NewSentimentClassifier creates a classifier backed by client.
func NewSentimentClassifier(client llm.Client, logger *zap.Logger) *SentimentClassifier {
	return &SentimentClassifier{client: client, logger: utils.OrNop(logger)}
}

// Classify never fails: any inference error yields DefaultSentiment.
func (c *SentimentClassifier) Classify(ctx context.Context, text string) SentimentResult {
	if c.client == nil || !c.client.Available() {
		return DefaultSentiment()
	}
	resp, err := c.client.Complete(ctx, []llm.Message{
		llm.System(sentimentPrompt),
		llm.User("리뷰 텍스트: " + text),
	})
	if err != nil {
		c.logger.Warn("sentiment inference failed, using default", zap.Error(err))
		return DefaultSentiment()
	}
	return ParseSentiment(resp)
}

// ParseSentiment reads "label: value" lines from an inference reply. Lines it does not
// recognize are ignored. Numbers are clamped to their ranges; an unparseable number or an
// unknown label leaves that field at its default.
func ParseSentiment(resp string) SentimentResult {
	result := DefaultSentiment()
	for _, line := range strings.Split(resp, "\n") {
		key, value, ok := splitLabel(line)
		if !ok {
			continue
		}
		switch key {
		case "감정", "sentiment", "label":
			if s, ok := normalizeSentiment(value); ok {
				result.Label = s
			}
		case "점수", "score":
			if v, ok := parseNumber(value); ok {
				result.Score = utils.Clamp(v, -1, 1)
			}
		case "신뢰도", "confidence":
			if v, ok := parseNumber(value); ok {
				result.Confidence = utils.Clamp(v, 0, 1)
			}
		}
	}
	return result
}

// splitLabel splits "  - **감정**: negative" into ("감정", "negative").
func splitLabel(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*# ")
	i := strings.IndexAny(line, ":：")
	if i < 0 {
		return "", "", false
	}
	key := strings.ToLower(strings.Trim(line[:i], "*_ "))
	_, width := utf8.DecodeRuneInString(line[i:])
	value := strings.TrimSpace(line[i+width:])
	return key, value, true
}

func normalizeSentiment(value string) (models.Sentiment, bool) {
	v := strings.ToLower(strings.Trim(value, "[]*_.\"' "))
	if f := strings.Fields(v); len(f) > 0 {
		v = f[0]
	}
	switch v {
	case "positive", "긍정":
		return models.SentimentPositive, true
	case "negative", "부정":
		return models.SentimentNegative, true
	case "neutral", "중립":
		return models.SentimentNeutral, true
	}
	return "", false
}

func parseNumber(value string) (float64, bool) {
	v := strings.Trim(value, "[]*_\"' ")
	if f := strings.Fields(v); len(f) > 0 {
		v = f[0]
	}
	v = strings.TrimRight(v, ",.")
	n, err := strconv.ParseFloat(v, 64)
	// Out-of-range literals such as 1e999 come back as ±Inf with ErrRange and are clamped.
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	if math.IsNaN(n) {
		return 0, false
	}
	return n, true
}
