// Package detection finds recurring issues in a window of helpdesk tickets.
//
// Clustering is a greedy single pass: tickets are visited in input order and
// each joins the first existing cluster of its category whose seed title is
// similar enough, or seeds a new cluster. The result is not globally optimal
// but it is deterministic for a given ticket order.
package detection

import (
	"github.com/almadesk/recurring-alerts/internal/models"
)

// Config holds the detector thresholds
type Config struct {
	MinOccurrences           int
	TitleSimilarityThreshold float64
	MaxKeywords              int
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinOccurrences:           3,
		TitleSimilarityThreshold: 0.7,
		MaxKeywords:              10,
	}
}

// Detector groups tickets into patterns
type Detector struct {
	config    Config
	vocab     Vocabulary
	stopWords WordSet
}

// NewDetector creates a detector. Non-positive MinOccurrences or MaxKeywords fall
// back to the defaults.
func NewDetector(cfg Config, vocab Vocabulary) *Detector {
	defaults := DefaultConfig()
	if cfg.MinOccurrences <= 0 {
		cfg.MinOccurrences = defaults.MinOccurrences
	}
	if cfg.MaxKeywords <= 0 {
		cfg.MaxKeywords = defaults.MaxKeywords
	}
	return &Detector{
		config:    cfg,
		vocab:     vocab,
		stopWords: NewWordSet(vocab.StopWords),
	}
}

// Detect clusters tickets and returns every cluster with at least MinOccurrences
// members. Patterns come out in category first-appearance order, then cluster
// discovery order.
func (d *Detector) Detect(tickets []models.Ticket) []models.Pattern {
	groups, order := groupByCategory(tickets)

	var patterns []models.Pattern
	for _, category := range order {
		group := groups[category]
		if len(group) < d.config.MinOccurrences {
			continue
		}

		for _, cluster := range d.clusterByTitle(group) {
			if len(cluster) < d.config.MinOccurrences {
				continue
			}
			patterns = append(patterns, d.buildPattern(category, cluster))
		}
	}
	return patterns
}

func groupByCategory(tickets []models.Ticket) (map[models.TicketCategory][]models.Ticket, []models.TicketCategory) {
	groups := make(map[models.TicketCategory][]models.Ticket)
	var order []models.TicketCategory
	for _, t := range tickets {
		if _, ok := groups[t.Category]; !ok {
			order = append(order, t.Category)
		}
		groups[t.Category] = append(groups[t.Category], t)
	}
	return groups, order
}

// clusterByTitle compares each ticket against the seed (first member) of every
// cluster found so far and joins the first one over the threshold.
func (d *Detector) clusterByTitle(tickets []models.Ticket) [][]models.Ticket {
	var clusters [][]models.Ticket
	for _, t := range tickets {
		joined := false
		for i := range clusters {
			if Similarity(t.Title, clusters[i][0].Title) >= d.config.TitleSimilarityThreshold {
				clusters[i] = append(clusters[i], t)
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, []models.Ticket{t})
		}
	}
	return clusters
}

func (d *Detector) buildPattern(category models.TicketCategory, members []models.Ticket) models.Pattern {
	users := make(map[int64]struct{}, len(members))
	first := members[0].CreatedAt
	last := members[0].CreatedAt

	seen := make(map[string]struct{})
	keywords := make([]string, 0, d.config.MaxKeywords)

	for _, t := range members {
		users[t.CreatedByID] = struct{}{}
		if t.CreatedAt.Before(first) {
			first = t.CreatedAt
		}
		if t.CreatedAt.After(last) {
			last = t.CreatedAt
		}
		for _, k := range ExtractKeywords(t.Title+" "+t.Description, d.stopWords) {
			if len(keywords) >= d.config.MaxKeywords {
				break
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keywords = append(keywords, k)
		}
	}

	occurrences := len(members)
	affected := len(users)

	return models.Pattern{
		Category:            category,
		RepresentativeTitle: members[0].Title,
		Members:             append([]models.Ticket(nil), members...),
		OccurrenceCount:     occurrences,
		AffectedUsers:       affected,
		FirstOccurrence:     first,
		LastOccurrence:      last,
		Keywords:            keywords,
		Severity:            ClassifySeverity(occurrences, affected),
		SuggestedAction:     SuggestAction(category, keywords, occurrences, d.vocab),
	}
}
