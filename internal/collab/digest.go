package collab

import (
	"fmt"
	"strings"

	"github.com/hyperjump/reviewdesk/internal/llm"
	"github.com/hyperjump/reviewdesk/internal/models"
	"github.com/hyperjump/reviewdesk/pkg/utils"
)

const terminateMarker = "TERMINATE"

// DigestEntry is the bounded summary of one review shown to the roles.
type DigestEntry struct {
	ID        int64
	Rating    *int
	Platform  models.Platform
	Sentiment models.Sentiment
	Excerpt   string
}

// Digest summarizes at most limit reviews, truncating content to excerptLen runes.
func Digest(reviews []*models.Review, limit, excerptLen int) []DigestEntry {
	if limit > 0 && len(reviews) > limit {
		reviews = reviews[:limit]
	}
	entries := make([]DigestEntry, 0, len(reviews))
	for _, r := range reviews {
		if r == nil {
			continue
		}
		entries = append(entries, DigestEntry{
			ID:        r.ID,
			Rating:    r.Rating,
			Platform:  r.Platform,
			Sentiment: r.Sentiment,
			Excerpt:   utils.Truncate(strings.TrimSpace(r.Content), excerptLen),
		})
	}
	return entries
}

func (e DigestEntry) String() string {
	rating := "N/A"
	if e.Rating != nil {
		rating = fmt.Sprintf("%d", *e.Rating)
	}
	sentiment := string(e.Sentiment)
	if sentiment == "" {
		sentiment = "N/A"
	}
	return fmt.Sprintf("리뷰 ID: %d\n평점: %s/5\n플랫폼: %s\n감정: %s\n내용: %s",
		e.ID, rating, e.Platform, sentiment, e.Excerpt)
}

// Brief builds the driver's opening message for a digest.
func Brief(analysisType string, entries []DigestEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "분석 유형: %s\n다음 리뷰 데이터를 분석해주세요:\n\n", analysisType)
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(e.String())
	}
	b.WriteString(`

분석 요청사항:
1. 주요 이슈 및 트렌드 식별
2. 고객 만족도 평가
3. 개선 방안 제시
4. 우선순위 제안

분석 결과를 JSON 형태로 정리해주세요. 분석이 끝나면 JSON 객체로 답하거나 `)
	b.WriteString(terminateMarker)
	b.WriteString("를 포함하세요.")
	return b.String()
}

// roleMessages renders the transcript from the point of view of speaker.
func roleMessages(speaker string, tr Transcript) []llm.Message {
	role := roles[speaker]
	msgs := []llm.Message{llm.System(role.Brief + "\n다른 참여자의 의견을 참고하여 당신의 관점에서 한 번 답하세요.")}
	for _, t := range tr.Turns() {
		if t.Speaker == speaker {
			msgs = append(msgs, llm.Assistant(t.Content))
			continue
		}
		msgs = append(msgs, llm.User(fmt.Sprintf("[%s] %s", t.Speaker, t.Content)))
	}
	return msgs
}
