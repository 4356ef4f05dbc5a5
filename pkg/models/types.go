package models

import (
	"time"
)

/*
LOAD → types simples pour les lignes de ventes lues depuis les exports (CSV ou table MySQL).
*/

// Transaction représente une ligne de vente (un article d'une commande) déjà nettoyée.
type Transaction struct {
	CustomerID      string
	CustomerName    string
	OrderID         string
	Timestamp       time.Time
	SKU             string
	NetAmount       float64
	JoinDate        time.Time
	MarketingSource string // "None" si absent
	Quantity        float64
	Unit            string
}

// DefaultMarketingSource remplace une source marketing vide.
const DefaultMarketingSource = "None"

/*
COMPUTE → tables dérivées produites par le pipeline de segmentation.
*/

// CustomerProfile contient les statistiques agrégées d'un client.
type CustomerProfile struct {
	CustomerID       string
	CustomerName     string
	JoinDate         time.Time
	LastPurchaseDate time.Time
	MarketingSource  string
	Monetary         float64
	Recency          int // jours entiers entre "now" et le dernier achat
	Frequency        int // commandes distinctes
	// AvgDaysBetweenPurchases est nil quand Frequency == 1.
	AvgDaysBetweenPurchases *float64
}

// SegmentScore regroupe les scores ordinaux (1 = meilleur client) d'un client.
type SegmentScore struct {
	RQuant  int
	FQuant  int
	MQuant  int
	AFQuant int
	RFMCode string // chiffres r, f, m, af
}

// ScoredCustomer est un profil client avec ses scores.
type ScoredCustomer struct {
	CustomerProfile
	SegmentScore
}

// ChurnRecord indique si un client est considéré perdu à la date "now".
type ChurnRecord struct {
	CustomerID         string
	CustomerName       string
	MQuant             int
	LastPurchaseDate   time.Time
	ChurnThresholdDays int
	DaysSinceLast      int
	IsChurned          bool
	Year               int
	Month              time.Month
}

// ChurnCount est le nombre de clients perdus par segment monétaire et par mois de dernier achat.
type ChurnCount struct {
	Year      int
	Month     time.Month
	MQuant    int
	Churned   int
	Customers int
}

/*
REPORT → vues de présentation construites à partir des tables dérivées.
*/

// ChurnPivotRow est une ligne (année, mois) du pivot de churn, une colonne par segment.
type ChurnPivotRow struct {
	Year       int
	Month      time.Month
	MonthLabel string
	BySegment  [5]int // index 0 → m_quant 1
}

// NewCustomersRow compte les nouveaux clients par mois d'inscription.
type NewCustomersRow struct {
	Year       int
	Month      time.Month
	MonthLabel string
	Customers  int
}

// SourceBreakdownRow compte les clients distincts par (m_quant, af_quant) et source marketing.
type SourceBreakdownRow struct {
	MQuant   int
	AFQuant  int
	BySource map[string]int
}

// Result contient toutes les tables produites par un run.
type Result struct {
	RunID        string
	Now          time.Time
	Transactions int
	Duplicates   int
	Customers    []ScoredCustomer // triés par Monetary décroissant
	Churn        []ChurnRecord
	ChurnCounts  []ChurnCount
	ChurnPivot   []ChurnPivotRow
	NewCustomers []NewCustomersRow
	Sources      []SourceBreakdownRow
	SourceNames  []string
}

/*
CONFIG → paramètres globaux
*/

// Config contient les paramètres de configuration passés à la fonction de calcul.
type Config struct {
	Now                 time.Time      // figé au démarrage du run
	Location            *time.Location // fuseau des dates sources, défaut UTC
	StartMonthInclusive string         // "MMYYYY", optionnel
	EndMonthInclusive   string         // "MMYYYY", optionnel
	CutPoints           []float64      // défaut 0.2/0.4/0.6/0.8
	ChurnThresholds     map[int]int    // m_quant → jours d'inactivité
	Verbose             bool           // Flag pour activer les logs détaillés.
	ShowProgress        bool
}
