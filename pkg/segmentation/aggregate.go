package segmentation

import (
	"math"
	"sort"
	"strings"
	"time"

	"cust-segmentation/pkg/models"
	"cust-segmentation/pkg/money"
)

const secondsPerDay = 24 * 60 * 60

// instant identifie un horodatage sans passer par UnixNano, qui déborde hors de 1678-2262.
type instant struct {
	sec  int64
	nsec int
}

func instantOf(t time.Time) instant {
	return instant{sec: t.Unix(), nsec: t.Nanosecond()}
}

type lineKey struct {
	customerID string
	orderID    string
	ts         instant
	sku        string
	amount     uint64
}

// Deduplicate supprime les lignes identiques sur (client, commande, date, sku, montant).
// L'ordre de première apparition est conservé. Retourne aussi le nombre de doublons retirés.
func Deduplicate(txs []models.Transaction) ([]models.Transaction, int) {
	seen := make(map[lineKey]struct{}, len(txs))
	out := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		amount := tx.NetAmount
		if amount == 0 {
			amount = 0 // -0 et +0 sont le même montant
		}
		k := lineKey{
			customerID: tx.CustomerID,
			orderID:    tx.OrderID,
			ts:         instantOf(tx.Timestamp),
			sku:        tx.SKU,
			amount:     math.Float64bits(amount),
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, tx)
	}
	return out, len(txs) - len(out)
}

// Validate vérifie les champs obligatoires de chaque ligne. La première ligne invalide fait échouer tout le run.
func Validate(txs []models.Transaction, now time.Time) error {
	if len(txs) == 0 {
		return ErrEmptyInput
	}
	for i, tx := range txs {
		switch {
		case strings.TrimSpace(tx.CustomerID) == "":
			return &DataFormatError{Row: i, Field: "customer_id", Reason: "absent"}
		case tx.Timestamp.IsZero():
			return &DataFormatError{Row: i, Field: "timestamp", Reason: "absent"}
		case tx.Timestamp.After(now):
			return &DataFormatError{Row: i, Field: "timestamp", Reason: "postérieur à now"}
		case math.IsNaN(tx.NetAmount) || math.IsInf(tx.NetAmount, 0):
			return &DataFormatError{Row: i, Field: "net_amount", Reason: "non numérique"}
		}
	}
	return nil
}

type customerAcc struct {
	id        string
	name      string
	nameTS    time.Time
	source    string
	sourceTS  time.Time
	joinDate  time.Time
	amounts   []float64
	orders    map[string]struct{}
	purchases map[instant]time.Time
	last      time.Time
}

// Aggregate regroupe les transactions en un profil par client, trié par identifiant client.
// Les doublons exacts sont retirés avant tout calcul.
func Aggregate(txs []models.Transaction, now time.Time) ([]models.CustomerProfile, error) {
	if err := Validate(txs, now); err != nil {
		return nil, err
	}
	txs, _ = Deduplicate(txs)
	return aggregateUnique(txs, now)
}

// aggregateUnique suppose des lignes déjà validées et dédoublonnées.
func aggregateUnique(txs []models.Transaction, now time.Time) ([]models.CustomerProfile, error) {
	byCustomer := map[string]*customerAcc{}
	for _, tx := range txs {
		acc, ok := byCustomer[tx.CustomerID]
		if !ok {
			acc = &customerAcc{
				id:        tx.CustomerID,
				orders:    map[string]struct{}{},
				purchases: map[instant]time.Time{},
			}
			byCustomer[tx.CustomerID] = acc
		}
		acc.add(tx)
	}

	profiles := make([]models.CustomerProfile, 0, len(byCustomer))
	for _, acc := range byCustomer {
		p, err := acc.profile(now)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].CustomerID < profiles[j].CustomerID })
	return profiles, nil
}

func (a *customerAcc) add(tx models.Transaction) {
	a.amounts = append(a.amounts, tx.NetAmount)
	a.orders[tx.OrderID] = struct{}{}
	// une commande multi-articles = un seul achat (client, commande, date)
	a.purchases[instantOf(tx.Timestamp)] = tx.Timestamp
	if tx.Timestamp.After(a.last) {
		a.last = tx.Timestamp
	}

	// nom : celui de la ligne la plus récente (égalité → plus grand lexicographiquement)
	if name := strings.TrimSpace(tx.CustomerName); name != "" {
		if a.name == "" || tx.Timestamp.After(a.nameTS) || (tx.Timestamp.Equal(a.nameTS) && name > a.name) {
			a.name, a.nameTS = name, tx.Timestamp
		}
	}
	// source : première source connue (égalité → plus petite lexicographiquement)
	if src := strings.TrimSpace(tx.MarketingSource); src != "" && src != models.DefaultMarketingSource {
		if a.source == "" || tx.Timestamp.Before(a.sourceTS) || (tx.Timestamp.Equal(a.sourceTS) && src < a.source) {
			a.source, a.sourceTS = src, tx.Timestamp
		}
	}
	if !tx.JoinDate.IsZero() && (a.joinDate.IsZero() || tx.JoinDate.Before(a.joinDate)) {
		a.joinDate = tx.JoinDate
	}
}

func (a *customerAcc) profile(now time.Time) (models.CustomerProfile, error) {
	monetary, err := money.Sum(a.amounts)
	if err != nil {
		return models.CustomerProfile{}, &DataFormatError{Row: -1, Field: "net_amount", Reason: err.Error()}
	}
	source := a.source
	if source == "" {
		source = models.DefaultMarketingSource
	}
	p := models.CustomerProfile{
		CustomerID:       a.id,
		CustomerName:     a.name,
		JoinDate:         a.joinDate,
		LastPurchaseDate: a.last,
		MarketingSource:  source,
		Monetary:         monetary,
		Recency:          daysBetween(a.last, now),
		Frequency:        len(a.orders),
	}
	if p.Frequency > 1 {
		avg := meanInterval(a.purchases)
		p.AvgDaysBetweenPurchases = &avg
	}
	return p, nil
}

// meanInterval : moyenne des écarts en jours entiers entre dates d'achat distinctes consécutives.
// Plusieurs commandes au même instant donnent un écart moyen de 0.
func meanInterval(purchases map[instant]time.Time) float64 {
	dates := make([]time.Time, 0, len(purchases))
	for _, ts := range purchases {
		dates = append(dates, ts)
	}
	if len(dates) < 2 {
		return 0
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	total := 0
	for i := 1; i < len(dates); i++ {
		total += daysBetween(dates[i-1], dates[i])
	}
	return float64(total) / float64(len(dates)-1)
}

// daysBetween compte les jours entiers écoulés de from à to (to >= from).
// Calculé en secondes Unix : time.Duration plafonne vers 292 ans.
func daysBetween(from, to time.Time) int {
	sec := to.Unix() - from.Unix()
	if to.Nanosecond() < from.Nanosecond() {
		sec--
	}
	return int(sec / secondsPerDay)
}
