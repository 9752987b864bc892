package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/dariaos/ota-backend/internal/config"
	"github.com/dariaos/ota-backend/internal/handler/response"
	"github.com/dariaos/ota-backend/internal/logic"
	"github.com/dariaos/ota-backend/internal/middleware"
	"github.com/dariaos/ota-backend/internal/model"
	"github.com/dariaos/ota-backend/internal/pkg/errs"
	"github.com/dariaos/ota-backend/internal/pkg/fileops"
	"github.com/dariaos/ota-backend/internal/pkg/props"

	"github.com/gofiber/fiber/v2"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

const (
	maxPropSize      = 1 << 20
	maxChangelogSize = 2 << 20
)

type UploadHandler struct {
	conf        *config.Config
	logger      *zap.Logger
	ingestLogic *logic.IngestLogic
}

func NewUploadHandler(conf *config.Config, logger *zap.Logger, ingestLogic *logic.IngestLogic) *UploadHandler {
	return &UploadHandler{
		conf:        conf,
		logger:      logger,
		ingestLogic: ingestLogic,
	}
}

func (h *UploadHandler) Register(r fiber.Router) {
	r.Post("/api/firmware/upload", middleware.RequireRole(middleware.RoleMaintainer), h.Upload)
	r.Post("/api/tools/parse-prop", middleware.RequireRole(middleware.RoleMaintainer), h.ParseProp)
}

func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	propContent, err := h.readSmallFile(c, "prop", maxPropSize)
	if err != nil {
		return err
	}
	changelog, err := h.readSmallFile(c, "changelog", maxChangelogSize)
	if err != nil {
		return err
	}

	fullHeader, err := c.FormFile("full")
	if err != nil {
		return errs.ErrInvalidParams.WithMessage("full package file is required")
	}
	if !isZipName(fullHeader.Filename) {
		return errs.ErrInvalidParams.WithMessage("full package must be a .zip file")
	}

	var staged []string
	defer func() {
		for _, path := range staged {
			if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
				h.logger.Warn("Failed to remove staged upload",
					zap.String("path", path),
					zap.Error(rerr),
				)
			}
		}
	}()

	full, err := h.stagePackage(fullHeader)
	if err != nil {
		return err
	}
	staged = append(staged, full.TempPath)

	param := &model.IngestParam{
		PropContent:   propContent,
		ChangelogHTML: changelog,
		Full:          *full,
		FullURL:       c.FormValue("fullUrl"),
		DeltaURL:      c.FormValue("deltaUrl"),
		PublishFull:   boolField(c, "publishFull"),
		PublishDelta:  boolField(c, "publishDelta"),
		MandatoryFull: boolField(c, "mandatoryFull"),
		CreatedBy:     middleware.PrincipalFrom(c).Username,
		Meta:          requestMeta(c),
	}

	if deltaHeader, derr := c.FormFile("delta"); derr == nil {
		if !isZipName(deltaHeader.Filename) {
			return errs.ErrInvalidParams.WithMessage("delta package must be a .zip file")
		}
		delta, serr := h.stagePackage(deltaHeader)
		if serr != nil {
			return serr
		}
		staged = append(staged, delta.TempPath)
		param.Delta = delta
	}

	result, err := h.ingestLogic.Ingest(c.UserContext(), param)
	// the pipeline owns the staged files from here, including cleanup
	staged = nil
	if err != nil {
		return err
	}

	resp := response.Success(result)
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *UploadHandler) ParseProp(c *fiber.Ctx) error {
	content := string(c.Body())
	if header, err := c.FormFile("prop"); err == nil {
		content, err = readAll(header, maxPropSize)
		if err != nil {
			return err
		}
	}
	if strings.TrimSpace(content) == "" {
		return errs.ErrInvalidParams.WithMessage("empty prop content")
	}

	properties := props.Parse(content)
	if err := props.RequireKeys(properties, props.RequiredBuildKeys); err != nil {
		return errs.ErrInvalidParams.WithMessage(err.Error()).WithDetails(fiber.Map{
			"properties": properties,
		})
	}
	resp := response.Success(properties)
	return c.Status(fiber.StatusOK).JSON(resp)
}

// stagePackage streams the uploaded package into the tmp upload dir under
// a unique name and rejects transfers whose written size disagrees with
// the multipart header (truncated upload).
func (h *UploadHandler) stagePackage(header *multipart.FileHeader) (*model.UploadedFile, error) {
	src, err := header.Open()
	if err != nil {
		return nil, errs.NewUnexpected("failed to open uploaded file", err)
	}
	defer src.Close()

	tempPath := filepath.Join(logic.TempUploadDir(h.conf),
		fmt.Sprintf("%s-%s", ksuid.New().String(), filepath.Base(header.Filename)))
	info, err := fileops.SaveStream(src, tempPath)
	if err != nil {
		return nil, errs.NewUnexpected("failed to stage uploaded file", err)
	}
	if header.Size > 0 && info.Size != header.Size {
		_ = os.Remove(tempPath)
		return nil, errs.ErrInvalidParams.WithMessage(
			fmt.Sprintf("truncated upload: got %d bytes, expected %d", info.Size, header.Size))
	}

	return &model.UploadedFile{
		Filename: filepath.Base(header.Filename),
		TempPath: tempPath,
		Size:     info.Size,
		MD5:      info.MD5,
		SHA256:   info.SHA256,
	}, nil
}

func (h *UploadHandler) readSmallFile(c *fiber.Ctx, field string, limit int64) (string, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return "", errs.ErrInvalidParams.WithMessage(fmt.Sprintf("%s file is required", field))
	}
	return readAll(header, limit)
}

func readAll(header *multipart.FileHeader, limit int64) (string, error) {
	if header.Size > limit {
		return "", errs.ErrInvalidParams.WithMessage(
			fmt.Sprintf("%s exceeds the %d byte limit", header.Filename, limit))
	}
	src, err := header.Open()
	if err != nil {
		return "", errs.NewUnexpected("failed to open uploaded file", err)
	}
	defer src.Close()

	raw, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return "", errs.NewUnexpected("failed to read uploaded file", err)
	}
	if int64(len(raw)) > limit {
		return "", errs.ErrInvalidParams.WithMessage(
			fmt.Sprintf("%s exceeds the %d byte limit", header.Filename, limit))
	}
	return string(raw), nil
}

func boolField(c *fiber.Ctx, field string) bool {
	switch strings.ToLower(c.FormValue(field)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func isZipName(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".zip")
}
