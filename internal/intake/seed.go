package intake

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/reviewdesk/internal/models"
)

var seedCompanies = []models.Company{
	{Name: "카카오뱅크", AppID: "com.kakaobank.channel", Category: "인터넷은행"},
	{Name: "토스", AppID: "viva.republica.toss", Category: "핀테크"},
	{Name: "국민은행", AppID: "com.kbstar.kbbank", Category: "시중은행"},
	{Name: "신한은행", AppID: "com.shinhan.sbanking", Category: "시중은행"},
	{Name: "우리은행", AppID: "com.wooribank.smart", Category: "시중은행"},
}

var seedDepartments = []models.Department{
	{Name: "고객서비스팀", Description: "고객 문의 및 불만 처리", Keywords: []string{"고객센터", "문의", "상담", "불만", "서비스"}},
	{Name: "앱개발팀", Description: "모바일 앱 개발 및 유지보수", Keywords: []string{"앱", "버그", "오류", "업데이트", "기능", "화면"}},
	{Name: "보안팀", Description: "보안 및 인증 관련 업무", Keywords: []string{"보안", "인증", "로그인", "비밀번호", "해킹", "안전"}},
	{Name: "상품기획팀", Description: "금융상품 기획 및 관리", Keywords: []string{"상품", "금리", "수수료", "대출", "예금", "투자"}},
	{Name: "마케팅팀", Description: "마케팅 및 프로모션", Keywords: []string{"이벤트", "혜택", "프로모션", "광고", "마케팅"}},
}

type seedReview struct {
	content  string
	rating   int
	platform models.Platform
}

var seedReviews = []seedReview{
	{"앱이 정말 편리하고 사용하기 쉬워요. 특히 송금 기능이 빠르고 간편합니다.", 5, models.PlatformGooglePlay},
	{"로그인이 자꾸 안되고 앱이 느려요. 개선이 필요합니다.", 2, models.PlatformAppStore},
	{"고객센터 응답이 너무 늦어요. 문의한지 3일이 지났는데 답변이 없네요.", 1, models.PlatformGooglePlay},
	{"새로운 기능들이 계속 추가되어서 좋아요. 특히 가계부 기능이 유용합니다.", 4, models.PlatformAppStore},
	{"보안이 강화되어서 안심이 되지만, 인증 과정이 너무 복잡해요.", 3, models.PlatformGooglePlay},
}

// SeedReport counts what Seed created.
type SeedReport struct {
	Companies   int `json:"companies"`
	Departments int `json:"departments"`
	Reviews     int `json:"reviews"`
}

// Seed creates the sample companies and departments that do not exist yet. With reviews set,
// it also ingests sample reviews for the first company through the normal pipeline.
func (p *Pipeline) Seed(ctx context.Context, reviews bool) (*SeedReport, error) {
	report := &SeedReport{}

	existing, err := p.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}
	appIDs := make(map[string]bool, len(existing))
	for _, c := range existing {
		appIDs[c.AppID] = true
	}
	for _, c := range seedCompanies {
		if appIDs[c.AppID] {
			continue
		}
		if err := p.CreateCompany(ctx, &c); err != nil {
			return report, fmt.Errorf("seed company %s: %w", c.Name, err)
		}
		existing = append(existing, &c)
		report.Companies++
	}

	departments, err := p.ListDepartments(ctx)
	if err != nil {
		return report, err
	}
	names := make(map[string]bool, len(departments))
	for _, d := range departments {
		names[d.Name] = true
	}
	for _, d := range seedDepartments {
		if names[d.Name] {
			continue
		}
		d.Keywords = append([]string(nil), d.Keywords...)
		if err := p.CreateDepartment(ctx, &d); err != nil {
			return report, fmt.Errorf("seed department %s: %w", d.Name, err)
		}
		report.Departments++
	}

	if reviews && len(existing) > 0 {
		now := time.Now().UTC()
		for i, r := range seedReviews {
			rating := r.rating
			date := now.AddDate(0, 0, -i)
			if _, err := p.Ingest(ctx, models.ReviewInput{
				CompanyID:  existing[0].ID,
				Content:    r.content,
				Rating:     &rating,
				ReviewDate: &date,
				Platform:   r.platform,
			}); err != nil {
				return report, fmt.Errorf("seed review: %w", err)
			}
			report.Reviews++
		}
	}

	p.logger.Info("seed completed",
		zap.Int("companies", report.Companies),
		zap.Int("departments", report.Departments),
		zap.Int("reviews", report.Reviews),
	)
	return report, nil
}
