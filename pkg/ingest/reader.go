package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"cust-segmentation/pkg/models"
	"cust-segmentation/pkg/money"
	"cust-segmentation/pkg/segmentation"

	"github.com/schollz/progressbar/v3"
)

// Colonnes des exports "All Sales Reports".
const (
	ColDate            = "Date"
	ColOrder           = "Trans No."
	ColSKU             = "Product SKU"
	ColNetSales        = "Net Sales"
	ColMemberID        = "Member ID"
	ColMember          = "Member"
	ColDateJoined      = "Date Joined"
	ColMarketingSource = "Marketing Source"
	ColQuantitySold    = "Quantity Sold"
)

var requiredColumns = []string{ColDate, ColOrder, ColNetSales, ColMemberID}

type Options struct {
	SkipRows    int // lignes de bandeau avant l'en-tête
	DateLayouts []string
	Location    *time.Location // défaut UTC
	Progress    bool
}

// RowError : valeur obligatoire illisible. Correspond à segmentation.ErrDataFormat via errors.Is.
type RowError struct {
	File   string
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s:%d: colonne %q: %v", e.File, e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() []error { return []error{segmentation.ErrDataFormat, e.Err} }

// Discover liste les fichiers *.csv d'un dossier, triés par nom.
func Discover(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadDir lit tous les exports d'un dossier en une seule table. Les doublons entre fichiers
// sont conservés ici et retirés par le calcul.
func LoadDir(dir string, opts Options) ([]models.Transaction, int, error) {
	paths, err := Discover(dir)
	if err != nil {
		return nil, 0, err
	}
	if len(paths) == 0 {
		return nil, 0, fmt.Errorf("aucun fichier csv dans %s", dir)
	}
	txs, err := LoadFiles(paths, opts)
	return txs, len(paths), err
}

func LoadFiles(paths []string, opts Options) ([]models.Transaction, error) {
	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.Default(int64(len(paths)), "sales reports")
	}
	var all []models.Transaction
	for _, p := range paths {
		txs, err := ReadFile(p, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, txs...)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return all, nil
}

func ReadFile(path string, opts Options) ([]models.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, filepath.Base(path), opts)
}

// Read parse un export CSV. name sert uniquement aux messages d'erreur.
func Read(r io.Reader, name string, opts Options) ([]models.Transaction, error) {
	if len(opts.DateLayouts) == 0 {
		return nil, fmt.Errorf("aucun format de date configuré")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	for i := 0; i < opts.SkipRows; i++ {
		if _, err := cr.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%s: fichier vide", name)
			}
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: en-tête absent", name)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	cols := indexColumns(header)
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%s: colonne obligatoire %q absente", name, c)
		}
	}

	var out []models.Transaction
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}
		row := record{fields: rec, cols: cols}
		tx, col, err := row.transaction(opts)
		if err != nil {
			return nil, &RowError{File: name, Line: line, Column: col, Err: err}
		}
		out = append(out, tx)
	}
	return out, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	return cols
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

type record struct {
	fields []string
	cols   map[string]int
}

func (r record) get(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// transaction convertit une ligne ; retourne la colonne fautive en cas d'erreur.
func (r record) transaction(opts Options) (models.Transaction, string, error) {
	tx := models.Transaction{
		OrderID:         r.get(ColOrder),
		SKU:             r.get(ColSKU),
		CustomerName:    CleanMemberName(r.get(ColMember)),
		MarketingSource: r.get(ColMarketingSource),
	}
	if tx.MarketingSource == "" {
		tx.MarketingSource = models.DefaultMarketingSource
	}

	tx.CustomerID = r.get(ColMemberID)
	if tx.CustomerID == "" {
		return tx, ColMemberID, fmt.Errorf("valeur absente")
	}
	ts, err := ParseDate(r.get(ColDate), opts.DateLayouts, opts.Location)
	if err != nil {
		return tx, ColDate, err
	}
	tx.Timestamp = ts

	amount, err := money.Parse(r.get(ColNetSales))
	if err != nil {
		return tx, ColNetSales, err
	}
	tx.NetAmount = amount.Float64()

	if raw := r.get(ColDateJoined); raw != "" {
		joined, err := ParseDate(raw, opts.DateLayouts, opts.Location)
		if err != nil {
			return tx, ColDateJoined, err
		}
		tx.JoinDate = joined
	}
	tx.Quantity, tx.Unit = SplitQuantity(r.get(ColQuantitySold))
	return tx, "", nil
}

// ParseDate essaie chaque format dans l'ordre.
func ParseDate(raw string, layouts []string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("date absente")
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date illisible %q", raw)
}

// SplitQuantity sépare "3.5 g" ou "2ea" en quantité et unité. Valeur illisible → (0, "").
func SplitQuantity(raw string) (float64, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ""
	}
	end := strings.IndexFunc(raw, func(r rune) bool {
		return !(unicode.IsDigit(r) || r == '.' || r == '-' || r == ',')
	})
	num, unit := raw, ""
	if end >= 0 {
		num, unit = raw[:end], strings.TrimSpace(raw[end:])
	}
	q, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return 0, ""
	}
	return q, unit
}

// CleanMemberName ne garde que les lettres et les espaces, espaces multiples réduits.
func CleanMemberName(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsLetter(r) || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
