package analysis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/reviewdesk/internal/llm"
	"github.com/hyperjump/reviewdesk/internal/models"
	"github.com/hyperjump/reviewdesk/pkg/utils"
)

// DepartmentRouter picks one department from a catalog with one inference call.
type DepartmentRouter struct {
	client llm.Client
	logger *zap.Logger
}

// NewDepartmentRouter creates a router backed by client.
func NewDepartmentRouter(client llm.Client, logger *zap.Logger) *DepartmentRouter {
	return &DepartmentRouter{client: client, logger: utils.OrNop(logger)}
}

// Route returns the chosen department name, or "" when the catalog is empty, inference fails,
// or the reply names no catalog entry. The result is always a name from catalog.
func (r *DepartmentRouter) Route(ctx context.Context, text string, catalog []*models.Department) string {
	if len(catalog) == 0 || r.client == nil || !r.client.Available() {
		return ""
	}
	resp, err := r.client.Complete(ctx, []llm.Message{
		llm.System(routingPrompt(catalog)),
		llm.User("리뷰 내용: " + text),
	})
	if err != nil {
		r.logger.Warn("department inference failed", zap.Error(err))
		return ""
	}
	return MatchDepartment(resp, catalog)
}

// MatchDepartment returns the first catalog name, in catalog order, contained in resp.
func MatchDepartment(resp string, catalog []*models.Department) string {
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return ""
	}
	for _, d := range catalog {
		if d.Name != "" && strings.Contains(resp, d.Name) {
			return d.Name
		}
	}
	return ""
}

func routingPrompt(catalog []*models.Department) string {
	var b strings.Builder
	b.WriteString("당신은 금융 앱 리뷰를 적절한 부서에 배정하는 전문가입니다.\n\n사용 가능한 부서:\n")
	for _, d := range catalog {
		fmt.Fprintf(&b, "- %s: %s (키워드: %s)\n", d.Name, d.Description, strings.Join(d.Keywords, ", "))
	}
	b.WriteString("\n주어진 리뷰 내용을 분석하여 가장 적합한 부서 이름을 응답해주세요.\n부서 이름만 정확히 응답하세요.")
	return b.String()
}
