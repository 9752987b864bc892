package handler

import (
	"strconv"
	"time"

	"github.com/dariaos/ota-backend/internal/analytics"
	"github.com/dariaos/ota-backend/internal/config"
	"github.com/dariaos/ota-backend/internal/handler/response"
	"github.com/dariaos/ota-backend/internal/logstore"
	"github.com/dariaos/ota-backend/internal/middleware"
	"github.com/dariaos/ota-backend/internal/pkg/errs"
	"github.com/dariaos/ota-backend/internal/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ReportsHandler struct {
	conf      *config.Config
	logger    *zap.Logger
	adoption  *analytics.AdoptionReport
	downloads *analytics.DownloadStats
	logs      *logstore.Set
}

func NewReportsHandler(
	conf *config.Config,
	logger *zap.Logger,
	adoption *analytics.AdoptionReport,
	downloads *analytics.DownloadStats,
	logs *logstore.Set,
) *ReportsHandler {
	return &ReportsHandler{
		conf:      conf,
		logger:    logger,
		adoption:  adoption,
		downloads: downloads,
		logs:      logs,
	}
}

func (h *ReportsHandler) Register(r fiber.Router) {
	// the downloads route must precede the codename wildcard
	r.Get("/api/reports/downloads", middleware.RequireRole(middleware.RoleViewer), h.Downloads)
	r.Get("/api/reports/:codename", middleware.RequireRole(middleware.RoleViewer), h.Codename)
}

func (h *ReportsHandler) Downloads(c *fiber.Ctx) error {
	days := h.clampDays(c.Query("days"))
	totals, daily, err := h.downloads.Stats(c.UserContext(), days)
	if err != nil {
		return errs.NewUnexpected("failed to build download stats", err)
	}
	resp := response.Success(fiber.Map{
		"totals": totals,
		"daily":  daily,
	})
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *ReportsHandler) Codename(c *fiber.Ctx) error {
	codename := c.Params("codename")
	if !validator.IsSlug(codename) {
		return errs.ErrInvalidParams
	}
	days := h.clampDays(c.Query("days"))

	report, err := h.adoption.Codename(c.UserContext(), codename)
	if err != nil {
		return errs.NewUnexpected("failed to build adoption report", err)
	}

	h.logs.Admin.Append(&logstore.AdminAuditEntry{
		Action:        "view-report",
		Username:      middleware.PrincipalFrom(c).Username,
		Codename:      codename,
		Days:          days,
		IP:            c.IP(),
		XForwardedFor: c.Get(fiber.HeaderXForwardedFor),
		UserAgent:     c.Get(fiber.HeaderUserAgent),
	})

	resp := response.Success(fiber.Map{
		"summary": report.Summary,
		"graph":   analytics.BuildGraph(report.Daily, days, time.Now()),
	})
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *ReportsHandler) clampDays(raw string) int {
	days := h.conf.Reports.DefaultDays
	if raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			days = parsed
		}
	}
	if days < 1 {
		days = 1
	}
	if max := h.conf.Reports.MaxDays; max > 0 && days > max {
		days = max
	}
	return days
}
