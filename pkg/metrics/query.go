package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// SessionMetrics represents aggregated metrics for one coaching session.
type SessionMetrics struct {
	SessionID       string `json:"session_id"`
	UserTokens      int64  `json:"user_tokens"`
	AssistantTokens int64  `json:"assistant_tokens"`
	TotalTokens     int64  `json:"total_tokens"`
}

// QueryService provides methods to query recorded metrics from a
// Prometheus server.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a new metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// GetSessionMetrics retrieves aggregated token counts for one session.
func (q *QueryService) GetSessionMetrics(ctx context.Context, sessionID string) (*SessionMetrics, error) {
	metrics := &SessionMetrics{
		SessionID: sessionID,
	}

	userQuery := fmt.Sprintf(`sum(coach_tokens_total{session_id=%q, direction="user"})`, sessionID)
	userResult, _, err := q.queryAPI.Query(ctx, userQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query user tokens: %w", err)
	}
	if vector, ok := userResult.(model.Vector); ok && len(vector) > 0 {
		metrics.UserTokens = int64(vector[0].Value)
	}

	assistantQuery := fmt.Sprintf(`sum(coach_tokens_total{session_id=%q, direction="assistant"})`, sessionID)
	assistantResult, _, err := q.queryAPI.Query(ctx, assistantQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query assistant tokens: %w", err)
	}
	if vector, ok := assistantResult.(model.Vector); ok && len(vector) > 0 {
		metrics.AssistantTokens = int64(vector[0].Value)
	}

	metrics.TotalTokens = metrics.UserTokens + metrics.AssistantTokens
	return metrics, nil
}

// GetAnomalyCounts retrieves rejected-input counts broken down by
// anomaly category across all sessions.
func (q *QueryService) GetAnomalyCounts(ctx context.Context) (map[string]int64, error) {
	result, _, err := q.queryAPI.Query(ctx, `sum by (category) (coach_anomalies_total)`, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query anomaly counts: %w", err)
	}

	counts := make(map[string]int64)
	if vector, ok := result.(model.Vector); ok {
		for _, sample := range vector {
			if category, ok := sample.Metric["category"]; ok {
				counts[string(category)] = int64(sample.Value)
			}
		}
	}
	return counts, nil
}

// GetFallbackRate returns the ratio of fallback-resolved turns to all
// turns over the given window. A window with no turns returns zero.
func (q *QueryService) GetFallbackRate(ctx context.Context, window time.Duration) (float64, error) {
	rangeSel := model.Duration(window).String()

	turnsResult, _, err := q.queryAPI.Query(ctx,
		fmt.Sprintf(`sum(increase(coach_turns_total[%s]))`, rangeSel), time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to query turn count: %w", err)
	}
	var turns float64
	if vector, ok := turnsResult.(model.Vector); ok && len(vector) > 0 {
		turns = float64(vector[0].Value)
	}
	if turns == 0 {
		return 0, nil
	}

	fallbackResult, _, err := q.queryAPI.Query(ctx,
		fmt.Sprintf(`sum(increase(coach_fallbacks_total[%s]))`, rangeSel), time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to query fallback count: %w", err)
	}
	var fallbacks float64
	if vector, ok := fallbackResult.(model.Vector); ok && len(vector) > 0 {
		fallbacks = float64(vector[0].Value)
	}

	return fallbacks / turns, nil
}
