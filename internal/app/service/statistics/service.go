package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/pkg/types"
)

type StatisticType string

const (
	// Workspace breakdowns
	StatisticTypeWorkspacesByPlan           StatisticType = "workspaces_by_plan"
	StatisticTypeWorkspacesByStatus         StatisticType = "workspaces_by_status"
	StatisticTypeWorkspacesByTopology       StatisticType = "workspaces_by_topology"
	StatisticTypeWorkspacesByProduct        StatisticType = "workspaces_by_product"
	StatisticTypeWorkspacesByProvisionState StatisticType = "workspaces_by_provision_state"
	StatisticTypeDailyNewWorkspaceCount     StatisticType = "daily_new_workspace_count"

	// Totals
	StatisticTypeTotalDatabaseSizeMB StatisticType = "total_database_size_mb"
	StatisticTypeExpiringSoonCount   StatisticType = "expiring_soon_count"

	// Plan changes
	StatisticTypeDailyPlanChangeCount StatisticType = "daily_plan_change_count"
)

// AllStatisticTypes is what the dashboard shows when no data items are asked for.
var AllStatisticTypes = []StatisticType{
	StatisticTypeWorkspacesByPlan,
	StatisticTypeWorkspacesByStatus,
	StatisticTypeWorkspacesByTopology,
	StatisticTypeWorkspacesByProduct,
	StatisticTypeWorkspacesByProvisionState,
	StatisticTypeDailyNewWorkspaceCount,
	StatisticTypeTotalDatabaseSizeMB,
	StatisticTypeExpiringSoonCount,
	StatisticTypeDailyPlanChangeCount,
}

// ExpiringWindow is how far ahead expiring_soon_count looks.
const ExpiringWindow = 7 * 24 * time.Hour

// filterFields are the workspace columns a dashboard can be narrowed by. They
// only apply to statistics computed from the workspace table.
var filterFields = []string{"product_id", "plan", "topology", "status"}

var planChangeStatistics = []StatisticType{StatisticTypeDailyPlanChangeCount}

type DataItem struct {
	ID StatisticType `json:"id"`
}

type Request struct {
	Filters   []*types.CommonFilter `json:"filters"`
	DataItems []*DataItem           `json:"data_items"`
}

// filtersFor returns the filters applicable to statisticType.
func (r *Request) filtersFor(statisticType StatisticType) types.FiltersAnd {
	if r == nil || lo.Contains(planChangeStatistics, statisticType) {
		return nil
	}
	return types.FiltersAnd(r.Filters)
}

type ResponseDataItem struct {
	Date  string `json:"date,omitempty"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type Response struct {
	DataItems map[StatisticType][]ResponseDataItem `json:"data_items"`
}

// Service computes dashboard statistics over the metadata database.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Service { return &Service{db: db, now: time.Now} }

// dateExpr formats column as YYYY-MM-DD in the current dialect.
func (s *Service) dateExpr(column string) string {
	if s.db.Dialector.Name() == "sqlite" {
		return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
	}
	return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD')", column)
}

func (s *Service) workspaces(ctx context.Context, request *Request, statisticType StatisticType) *gorm.DB {
	q := s.db.WithContext(ctx).Table((models.Workspace{}).TableName())
	if filters := request.filtersFor(statisticType); len(filters) > 0 {
		q = q.Where(clause.Where{Exprs: []clause.Expression{filters}})
	}
	return q
}

func (s *Service) countBy(ctx context.Context, request *Request, statisticType StatisticType, column string) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	q := s.workspaces(ctx, request, statisticType).
		Select(column + " as label, count(*) as value").
		Group(column).
		Order("label")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getWorkspacesByProduct(ctx context.Context, request *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	q := s.workspaces(ctx, request, StatisticTypeWorkspacesByProduct).
		Select("product.name as label, count(*) as value").
		Joins("JOIN product ON product.id = workspace.product_id").
		Group("product.name").
		Order("label")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyNewWorkspaceCount(ctx context.Context, request *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	date := s.dateExpr("created_at")
	q := s.workspaces(ctx, request, StatisticTypeDailyNewWorkspaceCount).
		Select(date + " as date, count(*) as value").
		Group(date).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getTotalDatabaseSizeMB(ctx context.Context, request *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	q := s.workspaces(ctx, request, StatisticTypeTotalDatabaseSizeMB).
		Select("CAST(COALESCE(SUM(db_size_mb), 0) AS INTEGER) as value")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getExpiringSoonCount(ctx context.Context, request *Request) ([]ResponseDataItem, error) {
	now := s.now()
	var n int64
	err := s.workspaces(ctx, request, StatisticTypeExpiringSoonCount).
		Where("subscription_end IS NOT NULL AND subscription_end >= ? AND subscription_end < ?", now, now.Add(ExpiringWindow)).
		Where("plan <> ?", types.PlanLifetime).
		Count(&n).Error
	if err != nil {
		return nil, err
	}
	return []ResponseDataItem{{Value: n}}, nil
}

func (s *Service) getDailyPlanChangeCount(ctx context.Context, _ *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	date := s.dateExpr("created_at")
	q := s.db.WithContext(ctx).Table((models.PlanChange{}).TableName()).
		Select(date + " as date, count(*) as value").
		Group(date).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getStatistic(ctx context.Context, request *Request, dataItem *DataItem) ([]ResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeWorkspacesByPlan:
		return s.countBy(ctx, request, dataItem.ID, "plan")
	case StatisticTypeWorkspacesByStatus:
		return s.countBy(ctx, request, dataItem.ID, "status")
	case StatisticTypeWorkspacesByTopology:
		return s.countBy(ctx, request, dataItem.ID, "topology")
	case StatisticTypeWorkspacesByProvisionState:
		return s.countBy(ctx, request, dataItem.ID, "provision_state")
	case StatisticTypeWorkspacesByProduct:
		return s.getWorkspacesByProduct(ctx, request)
	case StatisticTypeDailyNewWorkspaceCount:
		return s.getDailyNewWorkspaceCount(ctx, request)
	case StatisticTypeTotalDatabaseSizeMB:
		return s.getTotalDatabaseSizeMB(ctx, request)
	case StatisticTypeExpiringSoonCount:
		return s.getExpiringSoonCount(ctx, request)
	case StatisticTypeDailyPlanChangeCount:
		return s.getDailyPlanChangeCount(ctx, request)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", dataItem.ID)
	}
}

// GetStatistic computes every requested data item concurrently. Without
// data items every statistic is computed.
func (s *Service) GetStatistic(ctx context.Context, request *Request) (*Response, error) {
	if request == nil {
		request = &Request{}
	}
	for _, f := range request.Filters {
		if err := f.Validate(filterFields); err != nil {
			return nil, err
		}
	}
	items := request.DataItems
	if len(items) == 0 {
		items = lo.Map(AllStatisticTypes, func(t StatisticType, _ int) *DataItem { return &DataItem{ID: t} })
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(items))
	resChan := make(chan *lo.Entry[StatisticType, []ResponseDataItem], len(items))

	for _, item := range items {
		wg.Add(1)
		go func(di *DataItem) {
			defer wg.Done()
			res, err := s.getStatistic(ctx, request, di)
			if err != nil {
				errChan <- fmt.Errorf("failed to compute %s: %w", di.ID, err)
				return
			}
			resChan <- &lo.Entry[StatisticType, []ResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	wg.Wait()
	close(errChan)
	close(resChan)

	if err := <-errChan; err != nil {
		return nil, err
	}
	results := make(map[StatisticType][]ResponseDataItem, len(items))
	for entry := range resChan {
		results[entry.Key] = entry.Value
	}
	return &Response{DataItems: results}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
