package procurement

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Statistics is the dashboard rollup over a snapshot of requests.
type Statistics struct {
	TotalRequests      int                 `json:"total_requests"`
	StatusDistribution map[Status]int      `json:"status_distribution"`
	PriceStats         PriceStats          `json:"price_stats"`
	CommodityBreakdown []CommodityBreakdown `json:"commodity_breakdown"`
}

// PriceStats summarises request totals.
type PriceStats struct {
	TotalCost   decimal.Decimal `json:"total_cost"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// CommodityBreakdown is the per-group count and spend.
type CommodityBreakdown struct {
	CommodityGroup string          `json:"commodity_group"`
	Count          int             `json:"count"`
	TotalValue     decimal.Decimal `json:"total_value"`
}

// Aggregate computes statistics without modifying requests. Only statuses that occur
// appear in the distribution; uncategorised requests are left out of the breakdown,
// which is returned in first-seen order and untruncated.
func Aggregate(requests []ProcurementRequest) Statistics {
	stats := Statistics{
		TotalRequests:      len(requests),
		StatusDistribution: map[Status]int{},
		PriceStats:         PriceStats{TotalCost: decimal.Zero, AverageCost: decimal.Zero},
		CommodityBreakdown: []CommodityBreakdown{},
	}

	index := map[string]int{}
	for _, r := range requests {
		stats.StatusDistribution[r.Status]++
		stats.PriceStats.TotalCost = stats.PriceStats.TotalCost.Add(r.TotalCost)

		if !r.HasCommodityGroup() {
			continue
		}
		i, ok := index[r.CommodityGroup]
		if !ok {
			i = len(stats.CommodityBreakdown)
			index[r.CommodityGroup] = i
			stats.CommodityBreakdown = append(stats.CommodityBreakdown, CommodityBreakdown{
				CommodityGroup: r.CommodityGroup,
				TotalValue:     decimal.Zero,
			})
		}
		stats.CommodityBreakdown[i].Count++
		stats.CommodityBreakdown[i].TotalValue = stats.CommodityBreakdown[i].TotalValue.Add(r.TotalCost)
	}

	if stats.TotalRequests > 0 {
		stats.PriceStats.AverageCost = stats.PriceStats.TotalCost.
			Div(decimal.NewFromInt(int64(stats.TotalRequests))).
			Round(2)
	}
	return stats
}

// TopCommodities returns the n largest groups by count (ties by name) as a new slice.
func TopCommodities(breakdown []CommodityBreakdown, n int) []CommodityBreakdown {
	out := append([]CommodityBreakdown(nil), breakdown...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].CommodityGroup < out[j].CommodityGroup
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
