package report

import (
	"sort"
	"time"

	"cust-segmentation/pkg/models"
)

// MonthLabel : "Jan", "Feb", ...
func MonthLabel(m time.Month) string {
	return m.String()[:3]
}

type yearMonth struct {
	year  int
	month time.Month
}

func sortedMonths(set map[yearMonth]struct{}) []yearMonth {
	out := make([]yearMonth, 0, len(set))
	for ym := range set {
		out = append(out, ym)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].year != out[j].year {
			return out[i].year < out[j].year
		}
		return out[i].month < out[j].month
	})
	return out
}

// ChurnPivot met les comptes de churn en tableau (année, mois) × m_quant, cellules absentes à 0.
func ChurnPivot(counts []models.ChurnCount) []models.ChurnPivotRow {
	months := map[yearMonth]struct{}{}
	cells := map[yearMonth]*[5]int{}
	for _, c := range counts {
		if c.MQuant < 1 || c.MQuant > 5 {
			continue
		}
		ym := yearMonth{c.Year, c.Month}
		months[ym] = struct{}{}
		row, ok := cells[ym]
		if !ok {
			row = &[5]int{}
			cells[ym] = row
		}
		row[c.MQuant-1] += c.Churned
	}

	out := make([]models.ChurnPivotRow, 0, len(months))
	for _, ym := range sortedMonths(months) {
		out = append(out, models.ChurnPivotRow{
			Year:       ym.year,
			Month:      ym.month,
			MonthLabel: MonthLabel(ym.month),
			BySegment:  *cells[ym],
		})
	}
	return out
}

// NewCustomersByMonth compte les clients par mois d'inscription. Les dates d'inscription absentes sont ignorées.
func NewCustomersByMonth(customers []models.ScoredCustomer) []models.NewCustomersRow {
	counts := map[yearMonth]int{}
	months := map[yearMonth]struct{}{}
	for _, c := range customers {
		if c.JoinDate.IsZero() {
			continue
		}
		ym := yearMonth{c.JoinDate.Year(), c.JoinDate.Month()}
		months[ym] = struct{}{}
		counts[ym]++
	}
	out := make([]models.NewCustomersRow, 0, len(months))
	for _, ym := range sortedMonths(months) {
		out = append(out, models.NewCustomersRow{
			Year:       ym.year,
			Month:      ym.month,
			MonthLabel: MonthLabel(ym.month),
			Customers:  counts[ym],
		})
	}
	return out
}

type segmentPair struct {
	m, af int
}

// SourceBreakdown compte les clients distincts par (m_quant, af_quant) et source marketing.
// Retourne aussi la liste triée des sources rencontrées (colonnes du pivot).
func SourceBreakdown(customers []models.ScoredCustomer) ([]models.SourceBreakdownRow, []string) {
	seen := map[segmentPair]map[string]map[string]struct{}{}
	sources := map[string]struct{}{}
	for _, c := range customers {
		k := segmentPair{c.MQuant, c.AFQuant}
		bySource, ok := seen[k]
		if !ok {
			bySource = map[string]map[string]struct{}{}
			seen[k] = bySource
		}
		src := c.MarketingSource
		if src == "" {
			src = models.DefaultMarketingSource
		}
		if bySource[src] == nil {
			bySource[src] = map[string]struct{}{}
		}
		bySource[src][c.CustomerID] = struct{}{}
		sources[src] = struct{}{}
	}

	names := make([]string, 0, len(sources))
	for s := range sources {
		names = append(names, s)
	}
	sort.Strings(names)

	keys := make([]segmentPair, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].m != keys[j].m {
			return keys[i].m < keys[j].m
		}
		return keys[i].af < keys[j].af
	})

	rows := make([]models.SourceBreakdownRow, 0, len(keys))
	for _, k := range keys {
		row := models.SourceBreakdownRow{MQuant: k.m, AFQuant: k.af, BySource: map[string]int{}}
		for _, s := range names {
			row.BySource[s] = len(seen[k][s])
		}
		rows = append(rows, row)
	}
	return rows, names
}
