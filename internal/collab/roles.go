// Package collab runs a bounded, turn-based conversation among analysis roles over a batch of
// stored reviews and extracts a structured synthesis from it.
package collab

import "strings"

// Role names.
const (
	RoleCoordinator      = "review_coordinator"
	RoleFinancialAnalyst = "financial_analyst"
	RoleCustomerService  = "customer_service"
	RoleTechAnalyst      = "tech_analyst"
)

// Analysis types accepted by the orchestrator.
const (
	TypeFinancial     = "financial"
	TypeTechnical     = "technical"
	TypeComprehensive = "comprehensive"
	// DefaultType is used for unrecognized analysis types.
	DefaultType = TypeFinancial
)

// Role is a conversation participant with a fixed behavioral brief.
type Role struct {
	Name  string `json:"name"`
	Brief string `json:"-"`
}

var roles = map[string]Role{
	RoleFinancialAnalyst: {
		Name: RoleFinancialAnalyst,
		Brief: `당신은 금융 전문 분석가입니다.
금융사 앱 리뷰를 분석하여 다음을 수행합니다:
1. 금융 상품 관련 이슈 식별
2. 고객 만족도 분석
3. 경쟁사 대비 강약점 분석
4. 개선 방안 제시`,
	},
	RoleCustomerService: {
		Name: RoleCustomerService,
		Brief: `당신은 고객 서비스 전문가입니다.
고객 리뷰를 분석하여 다음을 수행합니다:
1. 고객 불만사항 분류
2. 긴급도 평가
3. 대응 방안 제시
4. 고객 만족도 개선 방안 제안`,
	},
	RoleTechAnalyst: {
		Name: RoleTechAnalyst,
		Brief: `당신은 기술 분석 전문가입니다.
앱 관련 기술적 이슈를 분석하여 다음을 수행합니다:
1. 기술적 문제 식별 및 분류
2. 버그 및 성능 이슈 분석
3. 기술적 개선 방안 제시
4. 개발 우선순위 제안`,
	},
}

// groups lists the speaking order of each analysis type.
var groups = map[string][]string{
	TypeFinancial:     {RoleFinancialAnalyst, RoleCustomerService},
	TypeTechnical:     {RoleTechAnalyst, RoleCustomerService},
	TypeComprehensive: {RoleFinancialAnalyst, RoleTechAnalyst, RoleCustomerService},
}

// ResolveGroup returns the analysis type actually used for tag and its participants in
// speaking order. Unknown tags fall back to DefaultType.
func ResolveGroup(tag string) (string, []string) {
	t := strings.ToLower(strings.TrimSpace(tag))
	members, ok := groups[t]
	if !ok {
		t = DefaultType
		members = groups[DefaultType]
	}
	return t, append([]string(nil), members...)
}

// GroupNames returns the analysis types in a stable order.
func GroupNames() []string {
	return []string{TypeFinancial, TypeTechnical, TypeComprehensive}
}

// RoleNames returns the driver followed by every analysis role.
func RoleNames() []string {
	return []string{RoleCoordinator, RoleFinancialAnalyst, RoleCustomerService, RoleTechAnalyst}
}
