package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStreamWriter(t *testing.T) {
	writer, tempDir := setupTestEnv(t)

	stream, err := writer.CreateStreamWriter("stream.csv", []string{"Source", "Target", "Count"})
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	content, err := os.ReadFile(filepath.Join(tempDir, "exports", "stream.csv"))
	require.NoError(t, err)

	// BOM and header row are written up front
	assert.True(t, bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF}))
	assert.Contains(t, string(content), "Source,Target,Count")
}

func TestStreamWriter_WriteAndClose(t *testing.T) {
	writer, tempDir := setupTestEnv(t)

	stream, err := writer.CreateStreamWriter("transitions.csv", []string{"Source", "Target"})
	require.NoError(t, err)

	require.NoError(t, stream.WriteRecord([]string{"Left", "Left"}))
	require.NoError(t, stream.WriteRecord([]string{"Left", "Right"}))
	require.NoError(t, stream.Close())

	content, err := os.ReadFile(filepath.Join(tempDir, "exports", "transitions.csv"))
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Source", "Target"}, rows[0])
	assert.Equal(t, []string{"Left", "Left"}, rows[1])
	assert.Equal(t, []string{"Left", "Right"}, rows[2])
}

func TestStreamWriter_CreatesDirectories(t *testing.T) {
	writer, tempDir := setupTestEnv(t)

	stream, err := writer.CreateStreamWriter(filepath.Join("nested", "deep", "out.csv"), []string{"Col"})
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	_, err = os.Stat(filepath.Join(tempDir, "exports", "nested", "deep", "out.csv"))
	assert.NoError(t, err)
}

func TestStreamWriter_LargeBatch(t *testing.T) {
	writer, tempDir := setupTestEnv(t)

	stream, err := writer.CreateStreamWriter("large.csv", []string{"Row", "Value"})
	require.NoError(t, err)

	const rowCount = 1000
	for i := 0; i < rowCount; i++ {
		require.NoError(t, stream.WriteRecord([]string{fmt.Sprintf("%d", i), "x"}))
	}
	require.NoError(t, stream.Close())

	content, err := os.ReadFile(filepath.Join(tempDir, "exports", "large.csv"))
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	require.NoError(t, err)
	// header + every streamed record survives the final flush
	assert.Len(t, rows, rowCount+1)
	assert.Equal(t, []string{"999", "x"}, rows[rowCount])
}
