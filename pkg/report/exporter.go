package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cust-segmentation/pkg/models"
)

// Table est une sortie tabulaire : colonnes nommées, une valeur par colonne et par ligne.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Records convertit la table en liste d'objets colonne → valeur.
func (t Table) Records() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

const dateLayout = "2006-01-02"

func formatDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(dateLayout)
}

// Tables construit toutes les sorties d'un run, dans un ordre fixe.
func Tables(res models.Result) []Table {
	customers := Table{
		Name: "segments",
		Columns: []string{
			"member_id", "member", "date_joined", "last_purchase_date", "avg_days_between_purch",
			"monetary", "recency", "frequency", "r_quant", "f_quant", "m_quant", "af_quant",
			"rfm_score", "marketing_source",
		},
	}
	for _, c := range res.Customers {
		var avg any
		if c.AvgDaysBetweenPurchases != nil {
			avg = *c.AvgDaysBetweenPurchases
		}
		customers.Rows = append(customers.Rows, []any{
			c.CustomerID, c.CustomerName, formatDate(c.JoinDate), formatDate(c.LastPurchaseDate), avg,
			c.Monetary, c.Recency, c.Frequency, c.RQuant, c.FQuant, c.MQuant, c.AFQuant,
			c.RFMCode, c.MarketingSource,
		})
	}

	churn := Table{
		Name: "churn",
		Columns: []string{
			"member_id", "member", "m_quant", "churn_days", "last_purchase_date",
			"days_since_last", "churn", "year", "month",
		},
	}
	for _, r := range res.Churn {
		flag := 0
		if r.IsChurned {
			flag = 1
		}
		churn.Rows = append(churn.Rows, []any{
			r.CustomerID, r.CustomerName, r.MQuant, r.ChurnThresholdDays, formatDate(r.LastPurchaseDate),
			r.DaysSinceLast, flag, r.Year, int(r.Month),
		})
	}

	counts := Table{
		Name:    "churn_by_segment_month",
		Columns: []string{"year", "month", "yer_mon", "m_quant", "churned", "customers"},
	}
	for _, c := range res.ChurnCounts {
		counts.Rows = append(counts.Rows, []any{
			c.Year, int(c.Month), fmt.Sprintf("%d_%d", c.Year, int(c.Month)), c.MQuant, c.Churned, c.Customers,
		})
	}

	pivot := Table{
		Name:    "churn_pivot",
		Columns: []string{"year", "month", "1", "2", "3", "4", "5"},
	}
	for _, p := range res.ChurnPivot {
		row := []any{p.Year, p.MonthLabel}
		for _, v := range p.BySegment {
			row = append(row, v)
		}
		pivot.Rows = append(pivot.Rows, row)
	}

	newCustomers := Table{Name: "new_customers", Columns: []string{"year", "month", "customers"}}
	for _, n := range res.NewCustomers {
		newCustomers.Rows = append(newCustomers.Rows, []any{n.Year, n.MonthLabel, n.Customers})
	}

	sources := Table{Name: "marketing_sources", Columns: append([]string{"m_quant", "af_quant"}, res.SourceNames...)}
	for _, s := range res.Sources {
		row := []any{s.MQuant, s.AFQuant}
		for _, name := range res.SourceNames {
			row = append(row, s.BySource[name])
		}
		sources.Rows = append(sources.Rows, row)
	}

	return []Table{customers, churn, counts, pivot, newCustomers, sources}
}

func ExportJSON(filename string, data interface{}) error {
	// Make sure the folder exists
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

func ExportCSV(filename string, t Table) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = cell(v)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

func TimestampedFilename(baseDir, name, ext string, at time.Time) string {
	return filepath.Join(baseDir, fmt.Sprintf("%s_%s.%s", name, at.Format("20060102_150405"), ext))
}

// WriteAll exporte chaque table dans outDir au format "json" ou "csv". Retourne les fichiers écrits.
func WriteAll(outDir, format string, res models.Result) ([]string, error) {
	if format != "json" && format != "csv" {
		return nil, fmt.Errorf("format inconnu %q (json|csv)", format)
	}
	var files []string
	for _, t := range Tables(res) {
		filename := TimestampedFilename(outDir, t.Name, format, res.Now)
		var err error
		if format == "json" {
			err = ExportJSON(filename, t.Records())
		} else {
			err = ExportCSV(filename, t)
		}
		if err != nil {
			return files, fmt.Errorf("%s: %w", t.Name, err)
		}
		files = append(files, filename)
	}
	return files, nil
}
