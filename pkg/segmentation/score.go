package segmentation

import (
	"fmt"

	"cust-segmentation/pkg/models"
)

// MissingIntervalScore est attribué aux clients à une seule commande (écart moyen non défini) :
// l'engagement le plus faible.
const MissingIntervalScore = 5

// LowerIsBetter : 1 pour les 20% les plus bas, 5 pour les 20% les plus hauts (récence, écart moyen).
// Une valeur égale à une borne tombe dans la tranche inférieure.
func LowerIsBetter(x float64, bounds []float64) int {
	for i, b := range bounds {
		if x <= b {
			return i + 1
		}
	}
	return len(bounds) + 1
}

// HigherIsBetter : score inversé (fréquence, montant), 1 désigne toujours les meilleurs clients.
func HigherIsBetter(x float64, bounds []float64) int {
	return len(bounds) + 2 - LowerIsBetter(x, bounds)
}

// RFMCode concatène les scores dans l'ordre r, f, m, af.
func RFMCode(r, f, m, af int) string {
	return fmt.Sprintf("%d%d%d%d", r, f, m, af)
}

// ScoreProfile attribue les quatre scores d'un client à partir de bornes déjà calculées.
func ScoreProfile(p models.CustomerProfile, b Boundaries) models.SegmentScore {
	s := models.SegmentScore{
		RQuant:  LowerIsBetter(float64(p.Recency), b.Recency),
		FQuant:  HigherIsBetter(float64(p.Frequency), b.Frequency),
		MQuant:  HigherIsBetter(p.Monetary, b.Monetary),
		AFQuant: MissingIntervalScore,
	}
	if p.AvgDaysBetweenPurchases != nil && b.AvgDays != nil {
		s.AFQuant = LowerIsBetter(*p.AvgDaysBetweenPurchases, b.AvgDays)
	}
	s.RFMCode = RFMCode(s.RQuant, s.FQuant, s.MQuant, s.AFQuant)
	return s
}

// Score note chaque profil avec les mêmes bornes globales. L'ordre d'entrée est conservé.
func Score(profiles []models.CustomerProfile, b Boundaries) []models.ScoredCustomer {
	out := make([]models.ScoredCustomer, len(profiles))
	for i, p := range profiles {
		out[i] = models.ScoredCustomer{CustomerProfile: p, SegmentScore: ScoreProfile(p, b)}
	}
	return out
}
