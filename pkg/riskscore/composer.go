package riskscore

import (
	"fmt"
	"math"

	"echelon/pkg/features"
)

// Risk categories.
const (
	CategoryLow    = "Low"
	CategoryMedium = "Medium"
	CategoryHigh   = "High"
)

// WeightConfig maps feature z-scores to their share of the composite score.
type WeightConfig map[string]float64

// DefaultWeights returns the production weight table: 30% privilege
// intelligence, 55% behavioral and temporal, 15% stability and drift.
func DefaultWeights() WeightConfig {
	return WeightConfig{
		features.PrivilegeUsageGap:           0.15,
		features.PrivilegeUsageRatio:         0.10,
		features.ResourceAccessConcentration: 0.05,
		features.ExportRatio:                 0.15,
		features.AvgDailyAccess:              0.12,
		features.UniqueResources:             0.10,
		features.NightAccessPct:              0.08,
		features.AvgSessionDuration:          0.06,
		features.WeekendActivityRatio:        0.04,
		features.AccessTimeVariance:          0.05,
		features.WeeklyAccessChange:          0.05,
		features.AccessSpikeScore:            0.05,
	}
}

// UserRiskProfile is the scored output for one user: features, z-scores, raw
// and rescaled composite scores, and the categorical label.
type UserRiskProfile struct {
	UserID              string                 `json:"user_id"`
	Role                string                 `json:"role"`
	EventCount          int                    `json:"event_count"`
	Features            *features.UserFeatures `json:"features"`
	ZScores             ZScores                `json:"zscores"`
	RawRiskScore        float64                `json:"raw_risk_score"`
	GovernanceRiskScore float64                `json:"governance_risk_score"`
	RiskCategory        string                 `json:"risk_category"`
}

// Composer combines z-scores into the weighted governance risk score.
type Composer struct {
	weights WeightConfig
}

// NewComposer validates the weight table and builds a composer. Weights must
// cover exactly the 12 canonical features and sum to 1.0; a bad table is a
// configuration error caught here, once, never per-row.
func NewComposer(weights WeightConfig) (*Composer, error) {
	if len(weights) != len(features.Names) {
		return nil, fmt.Errorf("weight table must cover all %d features, got %d", len(features.Names), len(weights))
	}
	sum := 0.0
	for _, name := range features.Names {
		w, ok := weights[name]
		if !ok {
			return nil, fmt.Errorf("weight table missing feature %s", name)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return nil, fmt.Errorf("weights must sum to 1.0, got %v", sum)
	}
	return &Composer{weights: weights}, nil
}

// Compose computes raw weighted scores, rescales them to [0,100] relative to
// the current population, and labels each user.
//
// The min-max rescale makes every score relative to the dataset being scored:
// rerunning on a different population changes what any given score means.
// That is a property of the design, not a defect.
func (c *Composer) Compose(userFeatures map[string]*features.UserFeatures, zscores map[string]ZScores) (map[string]*UserRiskProfile, error) {
	if len(userFeatures) == 0 {
		return nil, fmt.Errorf("no users to score")
	}

	profiles := make(map[string]*UserRiskProfile, len(userFeatures))
	minRaw := math.Inf(1)
	maxRaw := math.Inf(-1)

	for userID, f := range userFeatures {
		z, ok := zscores[userID]
		if !ok {
			return nil, fmt.Errorf("no z-scores for user %s", userID)
		}
		// Sum in canonical feature order. Map iteration order is random and
		// float addition is order-sensitive; reruns must be bit-identical.
		raw := 0.0
		for _, name := range features.Names {
			raw += z[name] * c.weights[name]
		}
		profiles[userID] = &UserRiskProfile{
			UserID:       userID,
			Role:         f.Role,
			EventCount:   f.EventCount,
			Features:     f,
			ZScores:      z,
			RawRiskScore: raw,
		}
		minRaw = math.Min(minRaw, raw)
		maxRaw = math.Max(maxRaw, raw)
	}

	span := maxRaw - minRaw
	for _, p := range profiles {
		if span == 0 {
			// All raw scores identical: min-max is undefined, every user
			// scores 0 rather than NaN.
			p.GovernanceRiskScore = 0
		} else {
			p.GovernanceRiskScore = clamp((p.RawRiskScore-minRaw)/span*100, 0, 100)
		}
		p.RiskCategory = Categorize(p.GovernanceRiskScore)
	}

	return profiles, nil
}

// Categorize maps a governance risk score to its label: Low up to 30, Medium
// up to 60, High above.
func Categorize(score float64) string {
	switch {
	case score <= 30:
		return CategoryLow
	case score <= 60:
		return CategoryMedium
	default:
		return CategoryHigh
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
