package calculator

import (
	"context"
	"fmt"
	"time"

	"cust-segmentation/pkg/logger"
	"cust-segmentation/pkg/models"
	"cust-segmentation/pkg/report"
	"cust-segmentation/pkg/segmentation"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
)

// Source fournit la table de transactions. start/end bornent [start, end) quand non nuls ;
// une source peut les ignorer, Run filtre de toute façon.
type Source interface {
	Transactions(ctx context.Context, start, end time.Time) ([]models.Transaction, error)
}

// SourceFunc adapte une fonction en Source.
type SourceFunc func(ctx context.Context, start, end time.Time) ([]models.Transaction, error)

func (f SourceFunc) Transactions(ctx context.Context, start, end time.Time) ([]models.Transaction, error) {
	return f(ctx, start, end)
}

const stages = 4 // load, filtre, segmentation, rapports

func Run(ctx context.Context, src Source, cfg models.Config, log *logger.Logger) (models.Result, error) {
	if cfg.Now.IsZero() {
		return models.Result{}, fmt.Errorf("now non défini")
	}
	if log == nil {
		log = logger.Nop()
	}
	start, end, err := Window(cfg)
	if err != nil {
		return models.Result{}, err
	}

	var bar *progressbar.ProgressBar
	if cfg.ShowProgress {
		bar = progressbar.Default(stages, "segmentation")
	}
	step := func() {
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	runID := uuid.NewString()
	log = log.With("run_id", runID, "now", cfg.Now.Format(time.RFC3339))

	txs, err := src.Transactions(ctx, start, end)
	if err != nil {
		return models.Result{}, fmt.Errorf("load: %w", err)
	}
	step()
	loaded := len(txs)
	txs = filterWindow(txs, start, end)
	log.Debug("transactions loaded", "rows", loaded, "in_window", len(txs),
		"start", formatBound(start), "end", formatBound(end))
	step()

	if err := ctx.Err(); err != nil {
		return models.Result{}, err
	}
	out, err := segmentation.Segment(txs, segmentation.Options{
		Now:       cfg.Now,
		CutPoints: cfg.CutPoints,
		Policy:    segmentation.ChurnPolicy(cfg.ChurnThresholds),
	})
	if err != nil {
		return models.Result{}, fmt.Errorf("segment: %w", err)
	}
	step()
	if cfg.Verbose {
		b := out.Boundaries
		log.Debug("quantile boundaries",
			"cut_points", b.CutPoints, "recency", b.Recency, "frequency", b.Frequency,
			"monetary", b.Monetary, "avg_days", b.AvgDays)
	}

	res := models.Result{
		RunID:        runID,
		Now:          cfg.Now,
		Transactions: len(txs),
		Duplicates:   out.Duplicates,
		Customers:    out.Customers,
		Churn:        out.Churn,
		ChurnCounts:  out.ChurnCounts,
		ChurnPivot:   fillMonths(report.ChurnPivot(out.ChurnCounts)),
		NewCustomers: report.NewCustomersByMonth(out.Customers),
	}
	res.Sources, res.SourceNames = report.SourceBreakdown(out.Customers)
	step()

	churned := 0
	for _, c := range res.Churn {
		if c.IsChurned {
			churned++
		}
	}
	log.Info("segmentation done",
		"transactions", res.Transactions, "duplicates", res.Duplicates,
		"customers", len(res.Customers), "churned", churned)
	return res, nil
}

// Window convertit start_month/end_month (MMYYYY, optionnels) en [start, end),
// les mois étant pris dans cfg.Location.
func Window(cfg models.Config) (time.Time, time.Time, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	var start, end time.Time
	if cfg.StartMonthInclusive != "" {
		s, err := parseMonth(cfg.StartMonthInclusive)
		if err != nil {
			return start, end, fmt.Errorf("start_month: %w", err)
		}
		start = time.Date(s.Year(), s.Month(), 1, 0, 0, 0, 0, loc)
	}
	if cfg.EndMonthInclusive != "" {
		e, err := parseMonth(cfg.EndMonthInclusive)
		if err != nil {
			return start, end, fmt.Errorf("end_month: %w", err)
		}
		end = time.Date(e.Year(), e.Month()+1, 1, 0, 0, 0, 0, loc)
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_month < start_month")
	}
	return start, end, nil
}

func filterWindow(txs []models.Transaction, start, end time.Time) []models.Transaction {
	if start.IsZero() && end.IsZero() {
		return txs
	}
	out := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		// timestamp absent : conservé, la validation le rejettera
		if !tx.Timestamp.IsZero() {
			if !start.IsZero() && tx.Timestamp.Before(start) {
				continue
			}
			if !end.IsZero() && !tx.Timestamp.Before(end) {
				continue
			}
		}
		out = append(out, tx)
	}
	return out
}

// fillMonths ajoute une ligne à zéro pour chaque mois sans churn entre le premier et le dernier mois.
func fillMonths(rows []models.ChurnPivotRow) []models.ChurnPivotRow {
	if len(rows) == 0 {
		return rows
	}
	byMonth := make(map[time.Time]models.ChurnPivotRow, len(rows))
	for _, r := range rows {
		byMonth[time.Date(r.Year, r.Month, 1, 0, 0, 0, 0, time.UTC)] = r
	}
	first, last := rows[0], rows[len(rows)-1]
	months := monthsBetweenInclusive(
		time.Date(first.Year, first.Month, 1, 0, 0, 0, 0, time.UTC),
		time.Date(last.Year, last.Month, 1, 0, 0, 0, 0, time.UTC),
	)
	out := make([]models.ChurnPivotRow, 0, len(months))
	for _, m := range months {
		r, ok := byMonth[m]
		if !ok {
			r = models.ChurnPivotRow{Year: m.Year(), Month: m.Month(), MonthLabel: report.MonthLabel(m.Month())}
		}
		out = append(out, r)
	}
	return out
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return formatMonth(t)
}

// parseMonth("MMYYYY") -> 1er jour du mois UTC
func parseMonth(mmyyyy string) (time.Time, error) {
	if len(mmyyyy) != 6 {
		return time.Time{}, fmt.Errorf("format attendu MMYYYY (ex: 012025)")
	}
	for _, c := range mmyyyy {
		if c < '0' || c > '9' {
			return time.Time{}, fmt.Errorf("format attendu MMYYYY (ex: 012025)")
		}
	}
	month := int(mmyyyy[0]-'0')*10 + int(mmyyyy[1]-'0')
	year := int(mmyyyy[2]-'0')*1000 + int(mmyyyy[3]-'0')*100 + int(mmyyyy[4]-'0')*10 + int(mmyyyy[5]-'0')
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("mois invalide")
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// monthsBetweenInclusive liste le 1er de chaque mois entre start et end.
func monthsBetweenInclusive(start, end time.Time) []time.Time {
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	var out []time.Time
	for !cur.After(last) {
		out = append(out, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

func formatMonth(t time.Time) string {
	return fmt.Sprintf("%02d/%04d", int(t.Month()), t.Year())
}
