package handler

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dariaos/ota-backend/internal/config"
	"github.com/dariaos/ota-backend/internal/logic"
	"github.com/dariaos/ota-backend/internal/logstore"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseByteRange(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		size    int64
		start   int64
		end     int64
		wantErr bool
	}{
		{name: "full explicit", header: "bytes=0-99", size: 100, start: 0, end: 99},
		{name: "open ended", header: "bytes=10-", size: 100, start: 10, end: 99},
		{name: "inner range", header: "bytes=10-19", size: 100, start: 10, end: 19},
		{name: "end clamped", header: "bytes=90-200", size: 100, start: 90, end: 99},
		{name: "suffix", header: "bytes=-10", size: 100, start: 90, end: 99},
		{name: "suffix larger than file", header: "bytes=-500", size: 100, start: 0, end: 99},
		{name: "start beyond size", header: "bytes=100-", size: 100, wantErr: true},
		{name: "inverted", header: "bytes=50-10", size: 100, wantErr: true},
		{name: "multi range", header: "bytes=0-1,5-6", size: 100, wantErr: true},
		{name: "not bytes", header: "lines=0-1", size: 100, wantErr: true},
		{name: "garbage", header: "bytes=abc", size: 100, wantErr: true},
		{name: "zero suffix", header: "bytes=-0", size: 100, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end, err := parseByteRange(tc.header, tc.size)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.start, start)
			require.Equal(t, tc.end, end)
		})
	}
}

func newDownloadApp(t *testing.T) (*fiber.App, *config.Config) {
	t.Helper()
	conf := &config.Config{}
	conf.Paths.Uploads = t.TempDir()
	require.NoError(t, os.MkdirAll(logic.FullPackageDir(conf), 0o755))
	require.NoError(t, os.MkdirAll(logic.DeltaPackageDir(conf), 0o755))

	logs := logstore.NewSet(t.TempDir(), zap.NewNop())
	t.Cleanup(logs.Close)

	app := fiber.New(fiber.Config{ErrorHandler: Error})
	NewDownloadHandler(conf, zap.NewNop(), logs).Register(app)
	return app, conf
}

func TestDownloadWholeFile(t *testing.T) {
	app, conf := newDownloadApp(t)
	content := "0123456789abcdef"
	require.NoError(t, os.WriteFile(
		filepath.Join(logic.FullPackageDir(conf), "pkg.zip"), []byte(content), 0o644))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/download/pkg.zip", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "bytes", resp.Header.Get(fiber.HeaderAcceptRanges))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, content, string(body))
}

func TestDownloadResolvesDeltaDir(t *testing.T) {
	app, conf := newDownloadApp(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(logic.DeltaPackageDir(conf), "delta.zip"), []byte("delta"), 0o644))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/download/delta.zip", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestDownloadRange(t *testing.T) {
	app, conf := newDownloadApp(t)
	content := "0123456789abcdef"
	require.NoError(t, os.WriteFile(
		filepath.Join(logic.FullPackageDir(conf), "pkg.zip"), []byte(content), 0o644))

	req := httptest.NewRequest(fiber.MethodGet, "/download/pkg.zip", nil)
	req.Header.Set(fiber.HeaderRange, "bytes=4-7")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusPartialContent, resp.StatusCode)
	require.Equal(t, "bytes 4-7/16", resp.Header.Get(fiber.HeaderContentRange))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "4567", string(body))
}

func TestDownloadUnsatisfiableRange(t *testing.T) {
	app, conf := newDownloadApp(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(logic.FullPackageDir(conf), "pkg.zip"), []byte("0123456789"), 0o644))

	req := httptest.NewRequest(fiber.MethodGet, "/download/pkg.zip", nil)
	req.Header.Set(fiber.HeaderRange, "bytes=100-")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusRequestedRangeNotSatisfiable, resp.StatusCode)
	require.Equal(t, "bytes */10", resp.Header.Get(fiber.HeaderContentRange))
}

func TestDownloadUnknownFile(t *testing.T) {
	app, _ := newDownloadApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/download/missing.zip", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDownloadRejectsTraversal(t *testing.T) {
	app, conf := newDownloadApp(t)
	secret := filepath.Join(conf.Paths.Uploads, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("top"), 0o644))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/download?file=..%2Fsecret.txt", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
