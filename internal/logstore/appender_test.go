package logstore

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAppenderWritesDayPartitionedFile(t *testing.T) {
	dir := t.TempDir()
	appender := NewAppender(dir, DownloadPrefix, zap.NewNop())

	appender.Append(&DownloadEntry{
		File: "dariaos-14-20240115-stable-sunfish-V1.1.0.2401-user-signed.zip",
	})
	appender.Append(&DownloadEntry{
		File:    "dariaos-14-20240115-stable-sunfish-V1.0.0.2311+V1.1.0.2401-user-signed.zip",
		Partial: true,
	})
	appender.Close()

	files := appender.Files()
	require.Len(t, files, 1)

	day := time.Now().UTC().Format(time.DateOnly)
	require.Contains(t, files[0], DownloadPrefix+"-"+day+".jsonl")

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	var entry DownloadEntry
	require.NoError(t, sonic.Unmarshal([]byte(lines[0]), &entry))
	require.NotEmpty(t, entry.Timestamp)
	require.False(t, entry.Partial)

	require.NoError(t, sonic.Unmarshal([]byte(lines[1]), &entry))
	require.True(t, entry.Partial)
}

func TestAppenderFilesMissingDir(t *testing.T) {
	appender := NewAppender(t.TempDir(), APIAccessPrefix, zap.NewNop())
	defer appender.Close()
	require.Empty(t, appender.Files())
}
