package segmentation

import (
	"fmt"
	"sort"
	"time"

	"cust-segmentation/pkg/models"
)

// DefaultChurnDays : seuil d'inactivité appliqué à tous les segments par défaut.
const DefaultChurnDays = 90

// ChurnPolicy associe chaque segment monétaire (m_quant 1..5) à un seuil d'inactivité en jours.
type ChurnPolicy map[int]int

// DefaultChurnPolicy retourne 90 jours pour chaque segment.
func DefaultChurnPolicy() ChurnPolicy {
	p := ChurnPolicy{}
	for seg := 1; seg <= 5; seg++ {
		p[seg] = DefaultChurnDays
	}
	return p
}

// Validate exige un seuil strictement positif pour chacun des cinq segments.
func (p ChurnPolicy) Validate() error {
	for seg := 1; seg <= 5; seg++ {
		days, ok := p[seg]
		if !ok {
			return fmt.Errorf("seuil de churn manquant pour le segment %d", seg)
		}
		if days <= 0 {
			return fmt.Errorf("seuil de churn invalide pour le segment %d: %d", seg, days)
		}
	}
	for seg := range p {
		if seg < 1 || seg > 5 {
			return fmt.Errorf("segment inconnu dans la politique de churn: %d", seg)
		}
	}
	return nil
}

// Threshold retourne le seuil du segment, ou le défaut si le segment est absent.
func (p ChurnPolicy) Threshold(mQuant int) int {
	if days, ok := p[mQuant]; ok {
		return days
	}
	return DefaultChurnDays
}

// LabelChurn marque chaque client perdu si (now - dernier achat) >= seuil de son segment.
// Un dernier achat dans le mois en cours est évalué contre now comme les autres, ce qui
// sous-estime le churn des cohortes très récentes.
func LabelChurn(customers []models.ScoredCustomer, policy ChurnPolicy, now time.Time) []models.ChurnRecord {
	out := make([]models.ChurnRecord, 0, len(customers))
	for _, c := range customers {
		threshold := policy.Threshold(c.MQuant)
		elapsed := daysBetween(c.LastPurchaseDate, now)
		out = append(out, models.ChurnRecord{
			CustomerID:         c.CustomerID,
			CustomerName:       c.CustomerName,
			MQuant:             c.MQuant,
			LastPurchaseDate:   c.LastPurchaseDate,
			ChurnThresholdDays: threshold,
			DaysSinceLast:      elapsed,
			IsChurned:          elapsed >= threshold,
			Year:               c.LastPurchaseDate.Year(),
			Month:              c.LastPurchaseDate.Month(),
		})
	}
	return out
}

type churnBucket struct {
	year   int
	month  time.Month
	mQuant int
}

// RollupChurn compte les clients perdus par (année, mois du dernier achat, m_quant).
// Résultat trié par année, mois puis segment.
func RollupChurn(records []models.ChurnRecord) []models.ChurnCount {
	buckets := map[churnBucket]*models.ChurnCount{}
	for _, r := range records {
		k := churnBucket{year: r.Year, month: r.Month, mQuant: r.MQuant}
		c, ok := buckets[k]
		if !ok {
			c = &models.ChurnCount{Year: r.Year, Month: r.Month, MQuant: r.MQuant}
			buckets[k] = c
		}
		c.Customers++
		if r.IsChurned {
			c.Churned++
		}
	}

	out := make([]models.ChurnCount, 0, len(buckets))
	for _, c := range buckets {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.MQuant < b.MQuant
	})
	return out
}
