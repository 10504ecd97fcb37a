package ontology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempMapping(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ontology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMapping(t *testing.T) {
	path := writeTempMapping(t, `
biomarkers:
  EGFR_EXON19_DEL:
    concept: DRIVER_EGFR_SENSITIZING
ecog_ps:
  0:
    concept: ECOG_0
  1:
    concept: ECOG_1
current_stage:
  IV:
    concept: Stage_IV
`)

	mapping, err := LoadMapping(path)
	require.NoError(t, err)

	concept, ok := mapping.Concept("biomarkers", "EGFR_EXON19_DEL")
	require.True(t, ok)
	require.Equal(t, "DRIVER_EGFR_SENSITIZING", concept)

	// Integer YAML keys behave like their string form.
	concept, ok = mapping.Concept("ecog_ps", "1")
	require.True(t, ok)
	require.Equal(t, "ECOG_1", concept)

	_, ok = mapping.Concept("biomarkers", "UNKNOWN_TOKEN")
	require.False(t, ok)

	require.True(t, mapping.HasField("current_stage"))
	require.False(t, mapping.HasField("lab_values"))
}

func TestLoadMappingErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadMapping(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("root not a mapping", func(t *testing.T) {
		path := writeTempMapping(t, "- just\n- a\n- list\n")
		_, err := LoadMapping(path)
		require.Error(t, err)
	})

	t.Run("entry without concept", func(t *testing.T) {
		path := writeTempMapping(t, "biomarkers:\n  TOKEN:\n    note: no concept here\n")
		_, err := LoadMapping(path)
		require.Error(t, err)
	})
}
