package handler

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dariaos/ota-backend/internal/config"
	"github.com/dariaos/ota-backend/internal/logic"
	"github.com/dariaos/ota-backend/internal/logstore"
	"github.com/dariaos/ota-backend/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type DownloadHandler struct {
	conf   *config.Config
	logger *zap.Logger
	logs   *logstore.Set
}

func NewDownloadHandler(conf *config.Config, logger *zap.Logger, logs *logstore.Set) *DownloadHandler {
	return &DownloadHandler{
		conf:   conf,
		logger: logger,
		logs:   logs,
	}
}

func (h *DownloadHandler) Register(r fiber.Router) {
	r.Get("/download/:file", h.Download)
	r.Get("/download", h.Download)
}

func (h *DownloadHandler) Download(c *fiber.Ctx) error {
	name := c.Params("file")
	if name == "" {
		name = c.Query("file")
	}
	if decoded, err := url.QueryUnescape(name); err == nil {
		name = decoded
	}
	// requests address packages by bare filename only
	name = filepath.Base(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return fiber.ErrNotFound
	}

	path, ok := h.resolve(name)
	if !ok {
		return fiber.ErrNotFound
	}

	file, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return errors.Wrapf(err, "stat %s", path)
	}
	size := info.Size()

	c.Set(fiber.HeaderAcceptRanges, "bytes")
	c.Set(fiber.HeaderLastModified, info.ModTime().UTC().Format(http.TimeFormat))
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))

	var (
		start   int64
		end     = size - 1
		partial bool
	)
	if rangeHeader := c.Get(fiber.HeaderRange); rangeHeader != "" {
		start, end, err = parseByteRange(rangeHeader, size)
		if err != nil {
			_ = file.Close()
			c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes */%d", size))
			return c.SendStatus(fiber.StatusRequestedRangeNotSatisfiable)
		}
		partial = start > 0
		c.Status(fiber.StatusPartialContent)
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	}
	length := end - start + 1

	if c.Method() == fiber.MethodHead {
		_ = file.Close()
		c.Set(fiber.HeaderContentLength, strconv.FormatInt(length, 10))
		return nil
	}

	metrics.Downloads.WithLabelValues(strconv.FormatBool(partial)).Inc()
	h.logs.Download.Append(&logstore.DownloadEntry{
		File:          name,
		RequestedPath: c.OriginalURL(),
		Partial:       partial,
		IP:            c.IP(),
		XForwardedFor: c.Get(fiber.HeaderXForwardedFor),
		UserAgent:     c.Get(fiber.HeaderUserAgent),
	})

	c.Response().SetBodyStream(&fileSection{
		Reader: io.NewSectionReader(file, start, length),
		file:   file,
	}, int(length))
	return nil
}

func (h *DownloadHandler) resolve(name string) (string, bool) {
	for _, dir := range []string{logic.FullPackageDir(h.conf), logic.DeltaPackageDir(h.conf)} {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

// parseByteRange understands single-range forms: bytes=a-b, bytes=a- and
// the suffix form bytes=-n. Anything else, and empty or out-of-bounds
// ranges, are unsatisfiable.
func parseByteRange(header string, size int64) (int64, int64, error) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, errors.New("unsupported range header")
	}
	first, last, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, errors.New("malformed range header")
	}

	if first == "" {
		// suffix form: the final n bytes
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, errors.New("malformed suffix range")
		}
		start := size - n
		if start < 0 {
			start = 0
		}
		return start, size - 1, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, errors.New("range start out of bounds")
	}
	end := size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil || end < start {
			return 0, 0, errors.New("malformed range end")
		}
		if end >= size {
			end = size - 1
		}
	}
	return start, end, nil
}

type fileSection struct {
	io.Reader
	file *os.File
}

func (s *fileSection) Close() error {
	return s.file.Close()
}
