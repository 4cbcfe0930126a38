package adapter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAdapter(t *testing.T, root, name string, training string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte(`{"r":8}`), 0o644))
	if training != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, TrainingFile), []byte(training), 0o644))
	}
	return dir
}

func TestScan(t *testing.T) {
	root := t.TempDir()

	old := writeAdapter(t, root, "support-v1", `{"base_model_name":"llama3","train_loss":0.42}`)
	recent := writeAdapter(t, root, "sales-v2", "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-an-adapter"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644))

	now := time.Now()
	require.NoError(t, os.Chtimes(old, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(recent, now, now))

	got, err := Scan(root)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "sales-v2", got[0].Name)
	assert.Equal(t, "lora_sales-v2", got[0].ID())
	assert.Nil(t, got[0].TrainLoss)

	assert.Equal(t, "support-v1", got[1].Name)
	assert.Equal(t, "llama3", got[1].BaseModel)
	require.NotNil(t, got[1].TrainLoss)
	assert.InDelta(t, 0.42, *got[1].TrainLoss, 1e-9)
	assert.Positive(t, got[1].SizeBytes)
}

func TestScanMissingRoot(t *testing.T) {
	got, err := Scan(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDescribeWithoutConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "half-trained")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	_, err := Describe(dir)
	assert.ErrorIs(t, err, ErrAdapterNotFound)
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{in: "sales-v2", want: "sales-v2", valid: true},
		{in: "lora_sales-v2", want: "sales-v2", valid: true},
		{in: "  lora_x ", want: "x", valid: true},
		{in: "../etc", want: "../etc", valid: false},
		{in: "lora_", want: "", valid: false},
		{in: "..", want: "..", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeID(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.valid, ValidName(got))
		})
	}
}
