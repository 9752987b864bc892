package handler

import (
	"github.com/dariaos/ota-backend/internal/config"
	"github.com/dariaos/ota-backend/internal/logic"
	"github.com/dariaos/ota-backend/internal/model"
	"github.com/dariaos/ota-backend/internal/pkg/errs"
	"github.com/dariaos/ota-backend/internal/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type UpdateHandler struct {
	conf        *config.Config
	logger      *zap.Logger
	updateLogic *logic.UpdateLogic
}

func NewUpdateHandler(conf *config.Config, logger *zap.Logger, updateLogic *logic.UpdateLogic) *UpdateHandler {
	return &UpdateHandler{
		conf:        conf,
		logger:      logger,
		updateLogic: updateLogic,
	}
}

func (h *UpdateHandler) Register(r fiber.Router) {
	r.Get("/ota/api/v1/:codename/:channel/:incremental/:serial", h.Check)
	r.Get("/api/v1/:codename/:channel/:incremental/:serial", h.Check)
}

func (h *UpdateHandler) Check(c *fiber.Ctx) error {
	param := &model.UpdateCheckParam{
		Codename:           c.Params("codename"),
		Channel:            c.Params("channel"),
		CurrentIncremental: c.Params("incremental"),
		Serial:             c.Params("serial"),
		Meta:               requestMeta(c),
	}
	if !validator.IsSlug(param.Codename) || !validator.IsSlug(param.Channel) || !validator.IsSlug(param.CurrentIncremental) {
		return errs.ErrInvalidParams
	}

	resp, err := h.updateLogic.Check(c.UserContext(), param)
	if err != nil {
		return err
	}
	// devices speak the bare v1 envelope, not the admin response wrapper
	return c.JSON(resp)
}
