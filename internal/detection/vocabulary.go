package detection

import (
	"fmt"
	"os"
	"strings"

	"github.com/almadesk/recurring-alerts/internal/models"
	"gopkg.in/yaml.v3"
)

// Vocabulary holds the locale-specific data tables used by keyword extraction,
// action suggestion and alert rendering.
type Vocabulary struct {
	StopWords          []string                         `yaml:"stop_words"`
	CredentialKeywords []string                         `yaml:"credential_keywords"`
	CategoryLabels     map[models.TicketCategory]string `yaml:"category_labels"`
	Actions            ActionPhrases                    `yaml:"actions"`
}

// ActionPhrases are the recommendation fragments joined by SuggestAction
type ActionPhrases struct {
	KnowledgeBase      string `yaml:"knowledge_base"`
	HardwareInspection string `yaml:"hardware_inspection"`
	SoftwareUpdate     string `yaml:"software_update"`
	NetworkDiagnosis   string `yaml:"network_diagnosis"`
	UserTraining       string `yaml:"user_training"`
	RootCause          string `yaml:"root_cause"`
}

// DefaultVocabulary returns the built-in tables. Stop words cover both Polish and
// English because AlmaDesk tickets are written in either.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		StopWords: []string{
			"jest", "nie", "czy", "dla", "się", "jak", "tak", "oraz", "przez", "mnie", "mam", "może",
			"that", "this", "with", "from", "have", "when", "there", "what", "been", "does",
		},
		CredentialKeywords: []string{"login", "hasło", "password", "dostęp"},
		CategoryLabels: map[models.TicketCategory]string{
			models.CategoryHardware: "Hardware",
			models.CategorySoftware: "Software",
			models.CategoryNetwork:  "Network",
			models.CategoryAccount:  "Account",
			models.CategoryEmail:    "Email",
			models.CategoryOther:    "Other",
		},
		Actions: ActionPhrases{
			KnowledgeBase:      "Create an FAQ article or procedure describing the fix",
			HardwareInspection: "Inspect or replace the affected hardware",
			SoftwareUpdate:     "Roll out a software update or reorganize licenses",
			NetworkDiagnosis:   "Diagnose the network infrastructure",
			UserTraining:       "Run user training or a mass password reset",
			RootCause:          "Perform a root-cause analysis of the recurring problem",
		},
	}
}

// LoadVocabulary reads a YAML vocabulary file. Fields missing from the file keep
// their default values. An empty path returns the defaults.
func LoadVocabulary(path string) (Vocabulary, error) {
	vocab := DefaultVocabulary()
	if path == "" {
		return vocab, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return vocab, fmt.Errorf("read vocabulary file: %w", err)
	}

	var file Vocabulary
	if err := yaml.Unmarshal(data, &file); err != nil {
		return vocab, fmt.Errorf("parse vocabulary file: %w", err)
	}

	vocab.merge(file)
	return vocab, nil
}

func (v *Vocabulary) merge(other Vocabulary) {
	if len(other.StopWords) > 0 {
		v.StopWords = other.StopWords
	}
	if len(other.CredentialKeywords) > 0 {
		v.CredentialKeywords = other.CredentialKeywords
	}
	for category, label := range other.CategoryLabels {
		v.CategoryLabels[category] = label
	}

	phrases := []struct {
		dst *string
		src string
	}{
		{&v.Actions.KnowledgeBase, other.Actions.KnowledgeBase},
		{&v.Actions.HardwareInspection, other.Actions.HardwareInspection},
		{&v.Actions.SoftwareUpdate, other.Actions.SoftwareUpdate},
		{&v.Actions.NetworkDiagnosis, other.Actions.NetworkDiagnosis},
		{&v.Actions.UserTraining, other.Actions.UserTraining},
		{&v.Actions.RootCause, other.Actions.RootCause},
	}
	for _, p := range phrases {
		if p.src != "" {
			*p.dst = p.src
		}
	}
}

// CategoryLabel returns the display label of a category, falling back to the raw value.
func (v Vocabulary) CategoryLabel(category models.TicketCategory) string {
	if label, ok := v.CategoryLabels[category]; ok && label != "" {
		return label
	}
	return string(category)
}

// WordSet is a case-folded lookup set
type WordSet map[string]struct{}

// NewWordSet builds a case-folded set from words.
func NewWordSet(words []string) WordSet {
	set := make(WordSet, len(words))
	for _, w := range words {
		set[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return set
}

// Contains reports whether word is in the set, ignoring case.
func (s WordSet) Contains(word string) bool {
	_, ok := s[strings.ToLower(word)]
	return ok
}
