package detection

import (
	"fmt"
	"testing"
	"time"

	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTicket(id int64, category models.TicketCategory, title string, creator int64, hoursAgo int) models.Ticket {
	return models.Ticket{
		ID:          id,
		Title:       title,
		Category:    category,
		Priority:    models.PriorityMedium,
		Status:      models.TicketOpen,
		CreatedByID: creator,
		CreatedAt:   baseTime.Add(-time.Duration(hoursAgo) * time.Hour),
	}
}

func vpnTickets() []models.Ticket {
	return []models.Ticket{
		newTicket(5, models.CategoryNetwork, "VPN nie działa", 1, 1),
		newTicket(4, models.CategoryNetwork, "VPN nie działa", 2, 2),
		newTicket(3, models.CategoryNetwork, "Brak dostępu do VPN", 1, 3),
		newTicket(2, models.CategoryNetwork, "VPN nie działa", 2, 4),
		newTicket(1, models.CategoryNetwork, "Brak dostępu do VPN", 1, 5),
	}
}

func TestDetector_MergesSimilarTitles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TitleSimilarityThreshold = 0.1
	detector := NewDetector(cfg, DefaultVocabulary())

	patterns := detector.Detect(vpnTickets())
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, models.CategoryNetwork, p.Category)
	assert.Equal(t, "VPN nie działa", p.RepresentativeTitle)
	assert.Equal(t, 5, p.OccurrenceCount)
	assert.Equal(t, 2, p.AffectedUsers)
	assert.Equal(t, models.SeverityMedium, p.Severity)
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, p.TicketIDs())
	assert.True(t, p.FirstOccurrence.Equal(baseTime.Add(-5*time.Hour)))
	assert.True(t, p.LastOccurrence.Equal(baseTime.Add(-1*time.Hour)))
	assert.Equal(t, []string{"działa", "brak", "dostępu"}, p.Keywords)

	vocab := DefaultVocabulary()
	assert.Equal(t, vocab.Actions.KnowledgeBase+"; "+vocab.Actions.NetworkDiagnosis, p.SuggestedAction)
}

func TestDetector_DefaultThresholdSplitsTitles(t *testing.T) {
	detector := NewDetector(DefaultConfig(), DefaultVocabulary())

	patterns := detector.Detect(vpnTickets())
	require.Len(t, patterns, 1)
	assert.Equal(t, "VPN nie działa", patterns[0].RepresentativeTitle)
	assert.Equal(t, []int64{5, 4, 2}, patterns[0].TicketIDs())
	assert.Equal(t, models.SeverityMedium, patterns[0].Severity) // two distinct users
}

func TestDetector_ShortTitlesNeverCluster(t *testing.T) {
	detector := NewDetector(DefaultConfig(), DefaultVocabulary())

	var tickets []models.Ticket
	for i := 1; i <= 4; i++ {
		tickets = append(tickets, newTicket(int64(i), models.CategoryHardware, "A", int64(i), i))
	}

	assert.Empty(t, detector.Detect(tickets))
}

func TestDetector_SmallCategoryIgnored(t *testing.T) {
	detector := NewDetector(DefaultConfig(), DefaultVocabulary())

	tickets := []models.Ticket{
		newTicket(1, models.CategoryHardware, "Projector lamp broken", 1, 1),
		newTicket(2, models.CategoryHardware, "Projector lamp broken", 2, 2),
		newTicket(3, models.CategorySoftware, "Projector lamp broken", 3, 3),
	}

	assert.Empty(t, detector.Detect(tickets))
}

func TestDetector_EmptyInput(t *testing.T) {
	detector := NewDetector(DefaultConfig(), DefaultVocabulary())
	assert.Empty(t, detector.Detect(nil))
}

func TestDetector_FirstMatchingClusterWins(t *testing.T) {
	cfg := Config{MinOccurrences: 1, TitleSimilarityThreshold: 0.5}
	detector := NewDetector(cfg, DefaultVocabulary())

	tickets := []models.Ticket{
		newTicket(1, models.CategoryHardware, "printer offline", 1, 1),
		newTicket(2, models.CategoryHardware, "scanner broken", 2, 2),
		newTicket(3, models.CategoryHardware, "printer offline scanner broken", 3, 3),
	}

	patterns := detector.Detect(tickets)
	require.Len(t, patterns, 2)
	assert.Equal(t, []int64{1, 3}, patterns[0].TicketIDs())
	assert.Equal(t, []int64{2}, patterns[1].TicketIDs())
}

func TestDetector_CategoryOrderFollowsInput(t *testing.T) {
	detector := NewDetector(DefaultConfig(), DefaultVocabulary())

	var tickets []models.Ticket
	for i := 0; i < 3; i++ {
		tickets = append(tickets,
			newTicket(int64(10+i), models.CategorySoftware, "Outlook keeps crashing", int64(i), i),
			newTicket(int64(20+i), models.CategoryNetwork, "WiFi drops in library", int64(i), i),
		)
	}

	patterns := detector.Detect(tickets)
	require.Len(t, patterns, 2)
	assert.Equal(t, models.CategorySoftware, patterns[0].Category)
	assert.Equal(t, models.CategoryNetwork, patterns[1].Category)
}

func TestDetector_KeywordsCapped(t *testing.T) {
	detector := NewDetector(DefaultConfig(), DefaultVocabulary())

	var tickets []models.Ticket
	for i := 0; i < 6; i++ {
		tk := newTicket(int64(i+1), models.CategorySoftware, "Moodle upload fails", int64(i), i)
		tk.Description = fmt.Sprintf("course%d quiz%d upload%d", i, i, i)
		tickets = append(tickets, tk)
	}

	patterns := detector.Detect(tickets)
	require.Len(t, patterns, 1)
	assert.Len(t, patterns[0].Keywords, 10)
	assert.Equal(t, []string{"moodle", "upload", "fails"}, patterns[0].Keywords[:3])
}

func TestDetector_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TitleSimilarityThreshold = 0.3
	detector := NewDetector(cfg, DefaultVocabulary())

	tickets := append(vpnTickets(),
		newTicket(11, models.CategoryHardware, "Printer offline", 3, 1),
		newTicket(12, models.CategoryHardware, "printer offline again", 4, 2),
		newTicket(13, models.CategoryHardware, "Printer offline", 5, 3),
	)

	assert.Equal(t, detector.Detect(tickets), detector.Detect(tickets))
}
