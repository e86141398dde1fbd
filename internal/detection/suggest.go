package detection

import (
	"strings"

	"github.com/almadesk/recurring-alerts/internal/models"
)

// SuggestAction builds a recommendation for a recurring issue. Every rule that
// applies contributes a fragment; fragments are joined with "; ". When no rule
// applies the root-cause fallback is returned.
func SuggestAction(category models.TicketCategory, keywords []string, occurrences int, vocab Vocabulary) string {
	var fragments []string

	if occurrences >= 5 {
		fragments = append(fragments, vocab.Actions.KnowledgeBase)
	}
	if category == models.CategoryHardware && occurrences >= 3 {
		fragments = append(fragments, vocab.Actions.HardwareInspection)
	}
	if category == models.CategorySoftware && occurrences >= 4 {
		fragments = append(fragments, vocab.Actions.SoftwareUpdate)
	}
	if category == models.CategoryNetwork && occurrences >= 3 {
		fragments = append(fragments, vocab.Actions.NetworkDiagnosis)
	}
	if mentionsCredentials(keywords, NewWordSet(vocab.CredentialKeywords)) {
		fragments = append(fragments, vocab.Actions.UserTraining)
	}

	if len(fragments) == 0 {
		return vocab.Actions.RootCause
	}
	return strings.Join(fragments, "; ")
}

func mentionsCredentials(keywords []string, credentials WordSet) bool {
	for _, k := range keywords {
		if credentials.Contains(k) {
			return true
		}
	}
	return false
}
