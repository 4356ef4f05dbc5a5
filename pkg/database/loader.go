package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"

	"cust-segmentation/pkg/models"

	_ "github.com/go-sql-driver/mysql"
)

// Open DSN mariadb:// ou mysql:// → format MySQL driver
func Open(dsn string) (*sql.DB, string, error) {
	mysqlDSN, err := toMySQLDSN(dsn)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, mysqlDSN, nil
}

func toMySQLDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "mariadb://") || strings.HasPrefix(dsn, "mysql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		user := ""
		pass := ""
		if u.User != nil {
			user = u.User.Username()
			pw, _ := u.User.Password()
			pass = pw
		}
		host := u.Host
		db := strings.TrimPrefix(u.Path, "/")
		if user == "" || host == "" || db == "" {
			return "", fmt.Errorf("dsn incomplet (user/host/db)")
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&interpolateParams=true",
			user, pass, host, db), nil
	}
	return dsn, nil
}

var tableNameRE = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func checkTable(name string) error {
	if !tableNameRE.MatchString(name) {
		return fmt.Errorf("table invalide: %q", name)
	}
	return nil
}

// Window borne les lignes chargées à [Start, End). Une borne nulle n'est pas appliquée.
type Window struct {
	Start time.Time
	End   time.Time
}

// Colonnes de la table de ventes, dans l'ordre de SELECT et d'INSERT.
var salesColumns = []string{
	"member_id", "member", "trans_no", "sale_date", "product_sku",
	"net_sales", "date_joined", "marketing_source", "quantity", "units",
}

func buildLoadQuery(table string, w Window) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	// Always work in UTC and format as MySQL DATETIME strings
	const layout = "2006-01-02 15:04:05"
	where := []string{"1=1"}
	var args []any
	if !w.Start.IsZero() {
		where = append(where, "sale_date >= ?")
		args = append(args, w.Start.UTC().Format(layout))
	}
	if !w.End.IsZero() {
		where = append(where, "sale_date < ?")
		args = append(args, w.End.UTC().Format(layout))
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY sale_date, member_id, trans_no`,
		strings.Join(salesColumns, ", "), table, strings.Join(where, " AND "))
	return q, args, nil
}

// LoadTransactions lit les lignes de ventes déjà nettoyées (voir InsertTransactions).
// Les dates, stockées en UTC, sont rendues dans loc (défaut UTC) comme celles des exports CSV.
// Une valeur NULL obligatoire est laissée vide : la validation du calcul la rejettera.
func LoadTransactions(ctx context.Context, db *sql.DB, table string, w Window, loc *time.Location) ([]models.Transaction, error) {
	if loc == nil {
		loc = time.UTC
	}
	q, args, err := buildLoadQuery(table, w)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var (
			memberID, member, transNo, sku, source, units sql.NullString
			saleDate, joined                              sql.NullTime
			netSales, qty                                 sql.NullFloat64
		)
		if err := rows.Scan(&memberID, &member, &transNo, &saleDate, &sku,
			&netSales, &joined, &source, &qty, &units); err != nil {
			return nil, err
		}
		tx := models.Transaction{
			CustomerID:      memberID.String,
			CustomerName:    member.String,
			OrderID:         transNo.String,
			SKU:             sku.String,
			MarketingSource: source.String,
			Quantity:        qty.Float64,
			Unit:            units.String,
		}
		if saleDate.Valid {
			tx.Timestamp = saleDate.Time.In(loc)
		}
		if joined.Valid {
			tx.JoinDate = joined.Time.In(loc)
		}
		if netSales.Valid {
			tx.NetAmount = netSales.Float64
		} else {
			tx.NetAmount = math.NaN()
		}
		if tx.MarketingSource == "" {
			tx.MarketingSource = models.DefaultMarketingSource
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
