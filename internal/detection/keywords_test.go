package detection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractKeywords(t *testing.T) {
	stopWords := NewWordSet(DefaultVocabulary().StopWords)

	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "Drops stop words, short words and duplicates",
			text:     "Drukarka nie drukuje, drukarka jest offline",
			expected: []string{"drukarka", "drukuje", "offline"},
		},
		{
			name:     "English stop words",
			text:     "This is from that user with data",
			expected: []string{"user", "data"},
		},
		{
			name:     "Keeps Polish letters inside words",
			text:     "Nie mogę zmienić hasło",
			expected: []string{"mogę", "zmienić", "hasło"},
		},
		{
			name:     "Lower-cases tokens",
			text:     "PASSWORD reset for LOGIN",
			expected: []string{"password", "reset", "login"},
		},
		{
			name:     "Empty text",
			text:     "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractKeywords(tt.text, stopWords))
		})
	}
}

func TestExtractKeywords_CustomStopWords(t *testing.T) {
	keywords := ExtractKeywords("printer toner empty", NewWordSet([]string{"Printer"}))
	assert.Equal(t, []string{"toner", "empty"}, keywords)
}

func TestLoadVocabulary(t *testing.T) {
	t.Run("Empty path returns defaults", func(t *testing.T) {
		vocab, err := LoadVocabulary("")
		require.NoError(t, err)
		assert.Equal(t, DefaultVocabulary(), vocab)
	})

	t.Run("File overrides only the fields it sets", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vocabulary.yaml")
		content := `
stop_words: ["oraz", "także"]
category_labels:
  NETWORK: Sieć
actions:
  root_cause: Przeprowadź analizę przyczyn źródłowych
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		vocab, err := LoadVocabulary(path)
		require.NoError(t, err)

		defaults := DefaultVocabulary()
		assert.Equal(t, []string{"oraz", "także"}, vocab.StopWords)
		assert.Equal(t, defaults.CredentialKeywords, vocab.CredentialKeywords)
		assert.Equal(t, "Sieć", vocab.CategoryLabel(models.CategoryNetwork))
		assert.Equal(t, "Hardware", vocab.CategoryLabel(models.CategoryHardware))
		assert.Equal(t, "Przeprowadź analizę przyczyn źródłowych", vocab.Actions.RootCause)
		assert.Equal(t, defaults.Actions.KnowledgeBase, vocab.Actions.KnowledgeBase)
	})

	t.Run("Shipped Polish vocabulary", func(t *testing.T) {
		vocab, err := LoadVocabulary(filepath.Join("..", "..", "configs", "vocabulary.pl.yaml"))
		require.NoError(t, err)

		assert.Equal(t, "Sprzęt", vocab.CategoryLabel(models.CategoryHardware))
		assert.Equal(t, "Zdiagnozuj infrastrukturę sieciową", vocab.Actions.NetworkDiagnosis)
		assert.Equal(t, DefaultVocabulary().StopWords, vocab.StopWords)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
