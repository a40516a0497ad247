// Package riskscore converts per-user feature vectors into role-normalized
// z-scores and composes them into a single 0-100 governance risk score.
package riskscore

import (
	"fmt"
	"math"
	"sort"

	"echelon/pkg/features"
)

// RoleStats holds the peer statistics one feature was normalized against.
//
// Mean and Std are computed over event rows, not distinct users: a user
// contributes proportionally to their event count, so high-volume users
// dominate their role's statistics. Do not switch to user-equal weighting
// without re-baselining every downstream score.
type RoleStats struct {
	Role    string  `json:"role"`
	Feature string  `json:"feature"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Events  int     `json:"events"`
}

// ZScores maps feature name to the user's role-relative z-score.
type ZScores map[string]float64

// Normalizer computes role-peer z-scores for all 12 features.
type Normalizer struct{}

// NewNormalizer creates a role-peer normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize returns per-user z-scores for every feature, plus the role
// statistics used. A role with zero (or undefined) spread in a feature yields
// z=0 for all its users in that feature, never NaN or Inf.
func (n *Normalizer) Normalize(userFeatures map[string]*features.UserFeatures) (map[string]ZScores, []RoleStats, error) {
	if len(userFeatures) == 0 {
		return nil, nil, fmt.Errorf("no user features to normalize")
	}

	byRole := make(map[string][]*features.UserFeatures)
	for _, f := range userFeatures {
		byRole[f.Role] = append(byRole[f.Role], f)
	}

	// Fixed ordering of roles and members: float sums must come out
	// bit-identical across reruns, and map order is random.
	roles := make([]string, 0, len(byRole))
	for role, members := range byRole {
		roles = append(roles, role)
		sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	}
	sort.Strings(roles)

	zscores := make(map[string]ZScores, len(userFeatures))
	for userID := range userFeatures {
		zscores[userID] = make(ZScores, len(features.Names))
	}

	var stats []RoleStats
	for _, role := range roles {
		members := byRole[role]
		for _, name := range features.Names {
			rs, err := roleFeatureStats(role, name, members)
			if err != nil {
				return nil, nil, err
			}
			stats = append(stats, rs)

			for _, f := range members {
				v, err := f.Value(name)
				if err != nil {
					return nil, nil, err
				}
				zscores[f.UserID][name] = zscore(v, rs)
			}
		}
	}

	return zscores, stats, nil
}

// roleFeatureStats computes the event-weighted mean and sample standard
// deviation of one feature across a role's users.
func roleFeatureStats(role, feature string, members []*features.UserFeatures) (RoleStats, error) {
	rs := RoleStats{Role: role, Feature: feature}

	totalEvents := 0
	weightedSum := 0.0
	for _, f := range members {
		v, err := f.Value(feature)
		if err != nil {
			return rs, err
		}
		totalEvents += f.EventCount
		weightedSum += v * float64(f.EventCount)
	}
	rs.Events = totalEvents
	if totalEvents == 0 {
		return rs, nil
	}
	rs.Mean = weightedSum / float64(totalEvents)

	if totalEvents < 2 {
		return rs, nil
	}
	sumSq := 0.0
	for _, f := range members {
		v, _ := f.Value(feature)
		diff := v - rs.Mean
		sumSq += diff * diff * float64(f.EventCount)
	}
	rs.Std = math.Sqrt(sumSq / float64(totalEvents-1))
	return rs, nil
}

func zscore(value float64, rs RoleStats) float64 {
	if rs.Std == 0 {
		return 0
	}
	return (value - rs.Mean) / rs.Std
}
