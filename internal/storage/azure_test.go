package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobProperties(t *testing.T) {
	t.Run("Run report", func(t *testing.T) {
		headers, metadata := blobProperties("runs/2026/03/10/6f1c2a.json")
		require.NotNil(t, headers.BlobContentType)
		assert.Equal(t, "application/json; charset=utf-8", *headers.BlobContentType)

		require.Len(t, metadata, 3)
		assert.Equal(t, "run_report", *metadata["kind"])
		assert.Equal(t, "6f1c2a", *metadata["run_id"])
		assert.Equal(t, "2026-03-10", *metadata["run_date"])
	})

	t.Run("Report outside the dated layout", func(t *testing.T) {
		_, metadata := blobProperties("runs/manual.json")
		assert.Equal(t, "manual", *metadata["run_id"])
		assert.NotContains(t, metadata, "run_date")
	})

	t.Run("Other blobs", func(t *testing.T) {
		headers, metadata := blobProperties("exports/alerts.csv")
		assert.Nil(t, headers.BlobContentType)
		assert.Nil(t, metadata)
	})
}
