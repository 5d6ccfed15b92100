package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"waflow/internal/constants"
	"waflow/internal/models"
)

const duplicateCompareLimit = 50

// NormalizeText lowercases and collapses all whitespace runs so that
// trivially reformatted copies hash identically.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// ContentHash returns the hex SHA-256 digest of the normalized text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// DuplicateAssessment is the result of one duplicate check.
type DuplicateAssessment struct {
	ContentHash   string  `json:"contentHash"`
	RecentCount   int     `json:"recentCount"`
	Blocked       bool    `json:"blocked"`
	NearDuplicate bool    `json:"nearDuplicate"`
	Similarity    float64 `json:"similarity,omitempty"`
}

// DuplicateGate blocks exact-content repeats past a per-account cap and
// flags near-duplicates by edit-distance similarity. The similarity flag
// is advisory only and never blocks on its own.
type DuplicateGate struct {
	messageStore MessageStore
	cfg          models.DuplicateGateConfig
}

func NewDuplicateGate(messageStore MessageStore, cfg models.DuplicateGateConfig) *DuplicateGate {
	if cfg.MaxRepeats <= 0 {
		cfg.MaxRepeats = constants.DefaultDuplicateMaxRepeats
	}
	if cfg.LookbackHours <= 0 {
		cfg.LookbackHours = constants.DefaultDuplicateLookbackHrs
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = constants.DefaultSimilarityThreshold
	}
	return &DuplicateGate{
		messageStore: messageStore,
		cfg:          cfg,
	}
}

// MaxRepeats reports the exact-content cap the gate enforces.
func (g *DuplicateGate) MaxRepeats() int {
	return g.cfg.MaxRepeats
}

// Check runs the exact-hash cap and the near-duplicate advisory against
// the account's recent sends.
func (g *DuplicateGate) Check(ctx context.Context, accountID int64, body string, now time.Time) (*DuplicateAssessment, error) {
	hash := ContentHash(body)
	since := now.Add(-time.Duration(g.cfg.LookbackHours) * time.Hour)

	count, err := g.messageStore.CountRecentByHash(ctx, accountID, hash, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent duplicates: %w", err)
	}

	assessment := &DuplicateAssessment{
		ContentHash: hash,
		RecentCount: count,
		Blocked:     count >= g.cfg.MaxRepeats,
	}
	if assessment.Blocked {
		return assessment, nil
	}

	bodies, err := g.messageStore.RecentDistinctBodies(ctx, accountID, since, duplicateCompareLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent bodies: %w", err)
	}

	normalized := NormalizeText(body)
	for _, other := range bodies {
		otherNorm := NormalizeText(other)
		if otherNorm == normalized {
			continue
		}
		sim := similarityRatio(normalized, otherNorm)
		if sim > assessment.Similarity {
			assessment.Similarity = sim
		}
	}
	assessment.NearDuplicate = assessment.Similarity >= g.cfg.SimilarityThreshold

	return assessment, nil
}

// similarityRatio is 1 minus the normalized Levenshtein distance.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes edit distance with a two-row matrix.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
