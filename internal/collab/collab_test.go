package collab

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/reviewdesk/internal/llm"
	"github.com/hyperjump/reviewdesk/internal/models"
)

func sampleReviews(n int) []*models.Review {
	reviews := make([]*models.Review, 0, n)
	for i := 0; i < n; i++ {
		rating := 1 + i%5
		reviews = append(reviews, &models.Review{
			ID:        int64(i + 1),
			CompanyID: 1,
			Content:   strings.Repeat("로그인이 안돼요 ", 40),
			Rating:    &rating,
			Platform:  models.PlatformGooglePlay,
			Sentiment: models.SentimentNegative,
		})
	}
	return reviews
}

type fakeReader struct {
	reviews []*models.Review
	err     error
}

func (f *fakeReader) GetReviewsByIDs(_ context.Context, ids []int64) ([]*models.Review, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Review
	for _, id := range ids {
		for _, r := range f.reviews {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// stallClient answers the first n calls and then blocks until the context ends.
type stallClient struct {
	mu      sync.Mutex
	answers int
	calls   int
}

func (s *stallClient) Complete(ctx context.Context, _ []llm.Message) (string, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	if n <= s.answers {
		return "검토 중입니다", nil
	}
	<-ctx.Done()
	return "", ctx.Err()
}

func (s *stallClient) Available() bool { return true }
func (s *stallClient) Name() string    { return "stall" }

func TestAnalyzeEmptyBatch(t *testing.T) {
	client := llm.NewScriptedClient("{}")
	o := New(client, &fakeReader{})

	res, err := o.Analyze(context.Background(), nil, "financial")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Status != StatusEmpty || res.Reason != ReasonNoReviews {
		t.Errorf("got status=%s reason=%s", res.Status, res.Reason)
	}
	if client.Calls() != 0 {
		t.Errorf("expected no inference calls, got %d", client.Calls())
	}
	if res.RunID == "" {
		t.Error("expected run id")
	}
}

func TestAnalyzeUnknownIDsIsEmpty(t *testing.T) {
	o := New(llm.NewScriptedClient("{}"), &fakeReader{reviews: sampleReviews(2)})
	res, err := o.Analyze(context.Background(), []int64{99}, "technical")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Status != StatusEmpty {
		t.Errorf("status = %s, want empty", res.Status)
	}
}

func TestAnalyzeReaderError(t *testing.T) {
	o := New(llm.NewScriptedClient("{}"), &fakeReader{err: errors.New("db down")})
	if _, err := o.Analyze(context.Background(), []int64{1}, "financial"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAnalyzeUnavailable(t *testing.T) {
	tests := []struct {
		name       string
		client     llm.Client
		settings   Settings
		wantReason string
	}{
		{"nil client", nil, DefaultSettings(), ReasonInference},
		{"provider down", &llm.ScriptedClient{Down: true}, DefaultSettings(), ReasonInference},
		{"disabled", llm.NewScriptedClient("{}"), Settings{Enabled: false}, ReasonDisabled},
		{"role error", &llm.ScriptedClient{Err: errors.New("boom")}, DefaultSettings(), ReasonInference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(tt.client, nil, WithSettings(tt.settings))
			res := o.AnalyzeReviews(context.Background(), sampleReviews(3), "financial")
			if res.Status != StatusUnavailable || res.Reason != tt.wantReason {
				t.Errorf("got status=%s reason=%s", res.Status, res.Reason)
			}
			if len(res.Transcript) != 0 || res.Result != nil || res.Rounds != 0 {
				t.Errorf("unavailable result should carry no partial output: %+v", res)
			}
		})
	}
}

func TestAnalyzeConcludesOnJSON(t *testing.T) {
	client := llm.NewScriptedClient(
		"고객 불만이 로그인에 집중되어 있습니다.",
		`정리합니다: {"issues": ["로그인 실패"], "priority": "high"}`,
	)
	o := New(client, nil)

	res := o.AnalyzeReviews(context.Background(), sampleReviews(3), "financial")
	if res.Status != StatusConcluded || res.Reason != ReasonTerminalMarker {
		t.Fatalf("got status=%s reason=%s", res.Status, res.Reason)
	}
	if res.Rounds != 2 || client.Calls() != 2 {
		t.Errorf("rounds=%d calls=%d, want 2", res.Rounds, client.Calls())
	}
	if !res.Structured || res.Result["priority"] != "high" {
		t.Errorf("unexpected result: %+v", res.Result)
	}
	if len(res.Transcript) != 3 || res.Transcript[0].Speaker != RoleCoordinator {
		t.Fatalf("unexpected transcript: %+v", res.Transcript)
	}
	if res.Transcript[1].Speaker != RoleFinancialAnalyst || res.Transcript[2].Speaker != RoleCustomerService {
		t.Errorf("speakers out of order: %s, %s", res.Transcript[1].Speaker, res.Transcript[2].Speaker)
	}
}

func TestAnalyzeConcludesOnTerminate(t *testing.T) {
	client := llm.NewScriptedClient("분석을 마칩니다. TERMINATE")
	res := New(client, nil).AnalyzeReviews(context.Background(), sampleReviews(1), "technical")
	if res.Status != StatusConcluded || res.Reason != ReasonTerminalMarker || res.Rounds != 1 {
		t.Fatalf("got status=%s reason=%s rounds=%d", res.Status, res.Reason, res.Rounds)
	}
	if res.Structured {
		t.Error("TERMINATE without JSON should fall back to the summary")
	}
	msgs, ok := res.Result["messages"].([]string)
	if !ok || len(msgs) != 1 || !strings.HasPrefix(msgs[0], RoleTechAnalyst) {
		t.Errorf("unexpected fallback messages: %#v", res.Result["messages"])
	}
}

func TestAnalyzeMaxRounds(t *testing.T) {
	client := llm.NewScriptedClient("의견 없음")
	o := New(client, nil, WithSettings(Settings{Enabled: true, MaxRounds: 4}))

	res := o.AnalyzeReviews(context.Background(), sampleReviews(2), "comprehensive")
	if res.Status != StatusConcluded || res.Reason != ReasonMaxRounds {
		t.Fatalf("got status=%s reason=%s", res.Status, res.Reason)
	}
	if res.Rounds != 4 || client.Calls() != 4 {
		t.Errorf("rounds=%d calls=%d, want 4", res.Rounds, client.Calls())
	}
	if res.Structured || res.Result["analysis"] != "분석 완료" {
		t.Errorf("expected fallback summary, got %+v", res.Result)
	}
	if msgs := res.Result["messages"].([]string); len(msgs) != fallbackMessages {
		t.Errorf("fallback carried %d messages, want %d", len(msgs), fallbackMessages)
	}
}

func TestAnalyzeTimeout(t *testing.T) {
	client := &stallClient{answers: 1}
	o := New(client, nil, WithSettings(Settings{Enabled: true, MaxRounds: 10, Timeout: 50 * time.Millisecond}))

	start := time.Now()
	res := o.AnalyzeReviews(context.Background(), sampleReviews(2), "financial")
	if time.Since(start) > 5*time.Second {
		t.Fatal("analysis did not honor its timeout")
	}
	if res.Status != StatusTimedOut || res.Reason != ReasonTimeout {
		t.Fatalf("got status=%s reason=%s", res.Status, res.Reason)
	}
	if res.Rounds != 1 || len(res.Transcript) != 2 {
		t.Errorf("expected the partial transcript, got rounds=%d turns=%d", res.Rounds, len(res.Transcript))
	}
	if res.Result == nil {
		t.Error("expected a fallback result")
	}
}

func TestAnalyzeUnknownTypeFallsBack(t *testing.T) {
	res := New(llm.NewScriptedClient("{}"), nil).AnalyzeReviews(context.Background(), sampleReviews(1), "marketing")
	if res.AnalysisType != TypeFinancial || res.RequestedType != "marketing" {
		t.Errorf("got type=%s requested=%s", res.AnalysisType, res.RequestedType)
	}
	if len(res.Participants) != 2 || res.Participants[0] != RoleFinancialAnalyst {
		t.Errorf("unexpected participants: %v", res.Participants)
	}
}

func TestBriefIsBounded(t *testing.T) {
	client := llm.NewScriptedClient("TERMINATE")
	o := New(client, nil, WithSettings(Settings{Enabled: true, DigestLimit: 5, ExcerptLength: 10}))
	o.AnalyzeReviews(context.Background(), sampleReviews(30), "financial")

	msgs := client.Call(0)
	brief := msgs[len(msgs)-1].Content
	if got := strings.Count(brief, "리뷰 ID:"); got != 5 {
		t.Errorf("brief lists %d reviews, want 5", got)
	}
	if !strings.Contains(brief, "내용: 로그인이 안돼요 로...") {
		t.Errorf("content excerpt not truncated:\n%s", brief)
	}
	if msgs[0].Role != llm.RoleSystem {
		t.Errorf("first message role = %s, want system", msgs[0].Role)
	}
}

func TestNextSpeaker(t *testing.T) {
	parts := []string{"a", "b", "c"}
	tr := Transcript{}.Append(Turn{Speaker: RoleCoordinator})
	var order []string
	for i := 0; i < 5; i++ {
		s := NextSpeaker(parts, tr)
		if again := NextSpeaker(parts, tr); again != s {
			t.Fatalf("NextSpeaker not deterministic: %s vs %s", s, again)
		}
		order = append(order, s)
		tr = tr.Append(Turn{Speaker: s})
	}
	if got := strings.Join(order, ","); got != "a,b,c,a,b" {
		t.Errorf("order = %s", got)
	}
	if NextSpeaker(nil, tr) != "" {
		t.Error("expected no speaker for empty participants")
	}
}

func TestTranscriptAppendDoesNotMutate(t *testing.T) {
	base := Transcript{}.Append(Turn{Speaker: "a", Content: "1"})
	left := base.Append(Turn{Speaker: "b", Content: "2"})
	right := base.Append(Turn{Speaker: "c", Content: "3"})

	if base.Len() != 1 {
		t.Errorf("base len = %d", base.Len())
	}
	if left.Turns()[1].Speaker != "b" || right.Turns()[1].Speaker != "c" {
		t.Error("appends share storage")
	}
	turns := left.Turns()
	turns[0].Content = "changed"
	if left.Turns()[0].Content != "1" {
		t.Error("Turns exposes internal storage")
	}
}

func TestMachineTransitions(t *testing.T) {
	m := newMachine()
	if err := m.to(StateTurn); err == nil {
		t.Error("idle -> turn should be rejected")
	}
	for _, s := range []State{StateBriefed, StateTurn, StateTurn, StateConcluded} {
		if err := m.to(s); err != nil {
			t.Fatalf("to %s: %v", s, err)
		}
	}
	if !m.state.Terminal() {
		t.Error("concluded should be terminal")
	}
	if err := m.to(StateTurn); err == nil {
		t.Error("transition out of a terminal state should be rejected")
	}
}

func TestFindJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string
		ok      bool
	}{
		{"plain", `{"a": 1}`, "a", true},
		{"surrounded by prose", "결과는 다음과 같습니다 {\"a\": 1} 이상입니다", "a", true},
		{"last object wins", `{"a": 1} 그리고 {"b": 2}`, "b", true},
		{"brace inside string", `{"a": "}{"}`, "a", true},
		{"nested", `{"outer": {"inner": 1}}`, "outer", true},
		{"unbalanced", `{"a": 1`, "", false},
		{"not json", `{이건 JSON이 아닙니다}`, "", false},
		{"invalid last falls back to earlier", `{"a": 1} {broken}`, "a", true},
		{"no braces", "TERMINATE", "", false},
		{"stray quote in prose braces", "참고 {\"주의} 최종: {\"summary\": \"로그인 오류\"}", "summary", true},
		{"stray brace before object", "중괄호 { 하나만 열고 {\"a\": 1}", "a", true},
		{"empty object", "{}", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, ok := FindJSONObject(tt.input)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && tt.wantKey != "" {
				if _, has := obj[tt.wantKey]; !has {
					t.Errorf("missing key %q in %v", tt.wantKey, obj)
				}
			}
		})
	}
}

func TestExtractResultSkipsDriver(t *testing.T) {
	tr := Transcript{}.
		Append(Turn{Speaker: RoleCoordinator, Content: `{"brief": true}`}).
		Append(Turn{Speaker: RoleCustomerService, Content: "의견입니다"})

	res, structured := ExtractResult(tr)
	if structured {
		t.Fatalf("driver brief should not be extracted: %v", res)
	}
	if res["analysis"] != "분석 완료" {
		t.Errorf("unexpected fallback: %v", res)
	}
}

func TestResolveGroup(t *testing.T) {
	tests := []struct {
		tag      string
		wantType string
		wantLen  int
	}{
		{"financial", TypeFinancial, 2},
		{"TECHNICAL", TypeTechnical, 2},
		{" comprehensive ", TypeComprehensive, 3},
		{"", TypeFinancial, 2},
		{"unknown", TypeFinancial, 2},
	}
	for _, tt := range tests {
		got, members := ResolveGroup(tt.tag)
		if got != tt.wantType || len(members) != tt.wantLen {
			t.Errorf("ResolveGroup(%q) = %s %v", tt.tag, got, members)
		}
	}
}

func TestStatus(t *testing.T) {
	st := New(llm.NewScriptedClient(), nil).Status()
	if !st.Enabled || !st.Available || st.Provider != "scripted" {
		t.Errorf("unexpected status: %+v", st)
	}
	if len(st.Agents) != 4 || len(st.Groups) != 3 {
		t.Errorf("agents=%v groups=%v", st.Agents, st.Groups)
	}

	st = New(nil, nil).Status()
	if st.Available {
		t.Error("nil client should not be available")
	}
}
