package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cust-segmentation/pkg/models"
)

// Tables nomme les tables de l'entrepôt.
type Tables struct {
	Source      string
	Profiles    string
	Churn       string
	ChurnCounts string
}

func (t Tables) check() error {
	for _, name := range []string{t.Source, t.Profiles, t.Churn, t.ChurnCounts} {
		if err := checkTable(name); err != nil {
			return err
		}
	}
	return nil
}

var (
	profileColumns = []string{
		"run_id", "computed_at", "member_id", "member", "date_joined", "last_purchase_date",
		"avg_days_between_purch", "monetary", "recency", "frequency",
		"r_quant", "f_quant", "m_quant", "af_quant", "rfm_score", "marketing_source",
	}
	churnColumns = []string{
		"run_id", "computed_at", "member_id", "member", "m_quant", "churn_days",
		"last_purchase_date", "days_since_last", "churn", "year", "month",
	}
	churnCountColumns = []string{
		"run_id", "computed_at", "year", "month", "m_quant", "churned", "customers",
	}
)

func schemaStatements(t Tables) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			member_id VARCHAR(64) NULL,
			member VARCHAR(255) NULL,
			trans_no VARCHAR(64) NULL,
			sale_date DATETIME NULL,
			product_sku VARCHAR(128) NULL,
			net_sales DECIMAL(14,2) NULL,
			date_joined DATE NULL,
			marketing_source VARCHAR(128) NULL,
			quantity DOUBLE NULL,
			units VARCHAR(16) NULL,
			KEY idx_sale_date (sale_date),
			KEY idx_member (member_id)
		)`, t.Source),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id CHAR(36) NOT NULL,
			computed_at DATETIME NOT NULL,
			member_id VARCHAR(64) NOT NULL,
			member VARCHAR(255) NULL,
			date_joined DATE NULL,
			last_purchase_date DATETIME NOT NULL,
			avg_days_between_purch DOUBLE NULL,
			monetary DOUBLE NOT NULL,
			recency INT NOT NULL,
			frequency INT NOT NULL,
			r_quant TINYINT NOT NULL,
			f_quant TINYINT NOT NULL,
			m_quant TINYINT NOT NULL,
			af_quant TINYINT NOT NULL,
			rfm_score CHAR(4) NOT NULL,
			marketing_source VARCHAR(128) NOT NULL,
			PRIMARY KEY (run_id, member_id)
		)`, t.Profiles),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id CHAR(36) NOT NULL,
			computed_at DATETIME NOT NULL,
			member_id VARCHAR(64) NOT NULL,
			member VARCHAR(255) NULL,
			m_quant TINYINT NOT NULL,
			churn_days INT NOT NULL,
			last_purchase_date DATETIME NOT NULL,
			days_since_last INT NOT NULL,
			churn TINYINT NOT NULL,
			year SMALLINT NOT NULL,
			month TINYINT NOT NULL,
			PRIMARY KEY (run_id, member_id)
		)`, t.Churn),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id CHAR(36) NOT NULL,
			computed_at DATETIME NOT NULL,
			year SMALLINT NOT NULL,
			month TINYINT NOT NULL,
			m_quant TINYINT NOT NULL,
			churned INT NOT NULL,
			customers INT NOT NULL,
			PRIMARY KEY (run_id, year, month, m_quant)
		)`, t.ChurnCounts),
	}
}

// EnsureSchema crée les tables absentes. Les tables existantes ne sont pas modifiées.
func EnsureSchema(ctx context.Context, db *sql.DB, t Tables) error {
	if err := t.check(); err != nil {
		return err
	}
	for _, stmt := range schemaStatements(t) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

func insertStatement(table string, columns []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), marks)
}

func nullableDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func transactionArgs(tx models.Transaction) []any {
	return []any{
		tx.CustomerID, tx.CustomerName, tx.OrderID, tx.Timestamp.UTC(), tx.SKU,
		tx.NetAmount, nullableDate(tx.JoinDate), tx.MarketingSource, tx.Quantity, tx.Unit,
	}
}

func profileArgs(runID string, now time.Time, c models.ScoredCustomer) []any {
	var avg any
	if c.AvgDaysBetweenPurchases != nil {
		avg = *c.AvgDaysBetweenPurchases
	}
	return []any{
		runID, now.UTC(), c.CustomerID, c.CustomerName, nullableDate(c.JoinDate), c.LastPurchaseDate.UTC(),
		avg, c.Monetary, c.Recency, c.Frequency,
		c.RQuant, c.FQuant, c.MQuant, c.AFQuant, c.RFMCode, c.MarketingSource,
	}
}

func churnArgs(runID string, now time.Time, r models.ChurnRecord) []any {
	churned := 0
	if r.IsChurned {
		churned = 1
	}
	return []any{
		runID, now.UTC(), r.CustomerID, r.CustomerName, r.MQuant, r.ChurnThresholdDays,
		r.LastPurchaseDate.UTC(), r.DaysSinceLast, churned, r.Year, int(r.Month),
	}
}

func churnCountArgs(runID string, now time.Time, c models.ChurnCount) []any {
	return []any{runID, now.UTC(), c.Year, int(c.Month), c.MQuant, c.Churned, c.Customers}
}

// execRows insère toutes les lignes dans une seule transaction SQL.
func execRows(ctx context.Context, tx *sql.Tx, table string, columns []string, n int, args func(i int) []any) error {
	stmt, err := tx.PrepareContext(ctx, insertStatement(table, columns))
	if err != nil {
		return fmt.Errorf("prepare %s: %w", table, err)
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("insert %s ligne %d: %w", table, i, err)
		}
	}
	return nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// InsertTransactions ajoute des lignes de ventes nettoyées à la table source.
func InsertTransactions(ctx context.Context, db *sql.DB, table string, txs []models.Transaction) error {
	if err := checkTable(table); err != nil {
		return err
	}
	return withTx(ctx, db, func(tx *sql.Tx) error {
		return execRows(ctx, tx, table, salesColumns, len(txs), func(i int) []any {
			return transactionArgs(txs[i])
		})
	})
}

// WriteResult écrit les trois tables dérivées d'un run, toutes ou aucune.
func WriteResult(ctx context.Context, db *sql.DB, t Tables, res models.Result) error {
	if err := t.check(); err != nil {
		return err
	}
	return withTx(ctx, db, func(tx *sql.Tx) error {
		if err := execRows(ctx, tx, t.Profiles, profileColumns, len(res.Customers), func(i int) []any {
			return profileArgs(res.RunID, res.Now, res.Customers[i])
		}); err != nil {
			return err
		}
		if err := execRows(ctx, tx, t.Churn, churnColumns, len(res.Churn), func(i int) []any {
			return churnArgs(res.RunID, res.Now, res.Churn[i])
		}); err != nil {
			return err
		}
		return execRows(ctx, tx, t.ChurnCounts, churnCountColumns, len(res.ChurnCounts), func(i int) []any {
			return churnCountArgs(res.RunID, res.Now, res.ChurnCounts[i])
		})
	})
}
