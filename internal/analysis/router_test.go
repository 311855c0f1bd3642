package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/reviewdesk/internal/llm"
	"github.com/hyperjump/reviewdesk/internal/models"
)

func testCatalog() []*models.Department {
	return []*models.Department{
		{Name: "고객서비스팀", Description: "고객 문의", Keywords: []string{"문의", "상담"}},
		{Name: "보안팀", Description: "보안 및 인증", Keywords: []string{"로그인", "보안", "인증"}},
		{Name: "앱개발팀", Description: "앱 오류", Keywords: []string{"버그", "오류"}},
	}
}

func TestMatchDepartment(t *testing.T) {
	catalog := testCatalog()
	tests := []struct {
		resp string
		want string
	}{
		{"보안팀", "보안팀"},
		{"  이 리뷰는 보안팀에 배정해야 합니다.", "보안팀"},
		{"앱개발팀 또는 고객서비스팀", "고객서비스팀"},
		{"마케팅팀", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MatchDepartment(tt.resp, catalog); got != tt.want {
			t.Errorf("MatchDepartment(%q) = %q, want %q", tt.resp, got, tt.want)
		}
	}
}

func TestDepartmentRouter_Route(t *testing.T) {
	client := llm.NewScriptedClient("보안팀")
	r := NewDepartmentRouter(client, nil)

	got := r.Route(context.Background(), "로그인이 안돼요", testCatalog())
	if got != "보안팀" {
		t.Errorf("Route() = %q, want 보안팀", got)
	}
	system := client.Call(0)[0].Content
	for _, name := range []string{"고객서비스팀", "보안팀", "앱개발팀", "로그인"} {
		if !strings.Contains(system, name) {
			t.Errorf("prompt missing %q", name)
		}
	}
}

func TestDepartmentRouter_EmptyCatalogSkipsInference(t *testing.T) {
	client := llm.NewScriptedClient("보안팀")
	r := NewDepartmentRouter(client, nil)
	if got := r.Route(context.Background(), "text", nil); got != "" {
		t.Errorf("expected none, got %q", got)
	}
	if client.Calls() != 0 {
		t.Errorf("expected no inference call, got %d", client.Calls())
	}
}

func TestDepartmentRouter_NeverInventsDepartment(t *testing.T) {
	r := NewDepartmentRouter(llm.NewScriptedClient("신설된 데이터팀"), nil)
	if got := r.Route(context.Background(), "text", testCatalog()); got != "" {
		t.Errorf("expected none, got %q", got)
	}
	r = NewDepartmentRouter(&llm.ScriptedClient{Err: errors.New("timeout")}, nil)
	if got := r.Route(context.Background(), "text", testCatalog()); got != "" {
		t.Errorf("expected none on error, got %q", got)
	}
}
