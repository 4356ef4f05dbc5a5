package segmentation

import (
	"sort"
	"time"

	"cust-segmentation/pkg/models"
)

// Options : paramètres du calcul. Now est obligatoire et figé pour tout le run.
type Options struct {
	Now       time.Time
	CutPoints []float64
	Policy    ChurnPolicy
}

// Output regroupe les trois tables dérivées d'un run.
type Output struct {
	Duplicates  int // lignes identiques retirées avant agrégation
	Boundaries  Boundaries
	Customers   []models.ScoredCustomer // Monetary décroissant, puis CustomerID
	Churn       []models.ChurnRecord    // même ordre que Customers
	ChurnCounts []models.ChurnCount
}

// Segment enchaîne agrégation, scoring et churn. Fonction pure de (txs, opts).
func Segment(txs []models.Transaction, opts Options) (Output, error) {
	policy := opts.Policy
	if policy == nil {
		policy = DefaultChurnPolicy()
	}
	if err := policy.Validate(); err != nil {
		return Output{}, err
	}

	if err := Validate(txs, opts.Now); err != nil {
		return Output{}, err
	}
	unique, duplicates := Deduplicate(txs)
	profiles, err := aggregateUnique(unique, opts.Now)
	if err != nil {
		return Output{}, err
	}
	bounds, err := ComputeBoundaries(profiles, opts.CutPoints)
	if err != nil {
		return Output{}, err
	}

	scored := Score(profiles, bounds)
	SortByMonetary(scored)
	churn := LabelChurn(scored, policy, opts.Now)

	return Output{
		Duplicates:  duplicates,
		Boundaries:  bounds,
		Customers:   scored,
		Churn:       churn,
		ChurnCounts: RollupChurn(churn),
	}, nil
}

// SortByMonetary trie par valeur vie client décroissante, à égalité par identifiant.
func SortByMonetary(customers []models.ScoredCustomer) {
	sort.SliceStable(customers, func(i, j int) bool {
		if customers[i].Monetary != customers[j].Monetary {
			return customers[i].Monetary > customers[j].Monetary
		}
		return customers[i].CustomerID < customers[j].CustomerID
	})
}
