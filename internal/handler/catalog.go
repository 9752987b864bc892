package handler

import (
	"github.com/dariaos/ota-backend/internal/config"
	"github.com/dariaos/ota-backend/internal/handler/response"
	"github.com/dariaos/ota-backend/internal/logic"
	"github.com/dariaos/ota-backend/internal/middleware"
	"github.com/dariaos/ota-backend/internal/model"
	"github.com/dariaos/ota-backend/internal/pkg/errs"
	"github.com/dariaos/ota-backend/internal/pkg/urlkit"
	"github.com/dariaos/ota-backend/internal/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CatalogHandler struct {
	conf        *config.Config
	logger      *zap.Logger
	buildsLogic *logic.BuildsLogic
}

func NewCatalogHandler(conf *config.Config, logger *zap.Logger, buildsLogic *logic.BuildsLogic) *CatalogHandler {
	return &CatalogHandler{
		conf:        conf,
		logger:      logger,
		buildsLogic: buildsLogic,
	}
}

func (h *CatalogHandler) Register(r fiber.Router) {
	r.Get("/api/catalog/codenames", middleware.RequireRole(middleware.RoleViewer), h.ListCodenames)
	r.Get("/api/catalog/:codename/:channel", middleware.RequireRole(middleware.RoleViewer), h.ListBuilds)
	r.Patch("/api/catalog/:codename/:channel/:buildId", middleware.RequireRole(middleware.RoleMaintainer), h.Patch)
	r.Delete("/api/catalog/:codename/:channel/:buildId", middleware.RequireRole(middleware.RoleAdmin), h.Delete)
}

func (h *CatalogHandler) ListCodenames(c *fiber.Ctx) error {
	resp := response.Success(h.buildsLogic.ListCodenames(c.UserContext()))
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *CatalogHandler) ListBuilds(c *fiber.Ctx) error {
	var (
		codename = c.Params("codename")
		channel  = c.Params("channel")
	)
	if !validator.IsSlug(codename) || !validator.IsSlug(channel) {
		return errs.ErrInvalidParams
	}

	builds := h.buildsLogic.ListBuilds(c.UserContext(), codename, channel)
	for i := range builds {
		builds[i].Payload.URL = h.resolveURL(builds[i].Payload)
	}
	resp := response.Success(builds)
	return c.Status(fiber.StatusOK).JSON(resp)
}

type patchBuildRequest struct {
	Publish     *bool   `json:"publish"`
	Mandatory   *bool   `json:"mandatory"`
	URL         *string `json:"url" validate:"omitempty,url"`
	ChangesHTML *string `json:"changesHtml"`
}

func (h *CatalogHandler) Patch(c *fiber.Ctx) error {
	var req patchBuildRequest
	if err := validator.ValidateBody(c, &req); err != nil {
		return err
	}

	detail, err := h.buildsLogic.Patch(c.UserContext(), &model.PatchBuildParam{
		Codename:    c.Params("codename"),
		Channel:     c.Params("channel"),
		BuildID:     c.Params("buildId"),
		Publish:     req.Publish,
		Mandatory:   req.Mandatory,
		URL:         req.URL,
		ChangesHTML: req.ChangesHTML,
		Username:    middleware.PrincipalFrom(c).Username,
		Meta:        requestMeta(c),
	})
	if err != nil {
		return err
	}
	resp := response.Success(detail)
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *CatalogHandler) Delete(c *fiber.Ctx) error {
	removed, err := h.buildsLogic.Delete(c.UserContext(), &model.DeleteBuildParam{
		Codename: c.Params("codename"),
		Channel:  c.Params("channel"),
		BuildID:  c.Params("buildId"),
		Username: middleware.PrincipalFrom(c).Username,
		Meta:     requestMeta(c),
	})
	if err != nil {
		return err
	}
	resp := response.Success(fiber.Map{"removed": removed})
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *CatalogHandler) resolveURL(payload model.Payload) string {
	if payload.URL != "" {
		return urlkit.Normalize(h.conf.Extra.BaseURL, payload.URL)
	}
	return urlkit.DownloadURL(h.conf.Extra.BaseURL, payload.Filename)
}
