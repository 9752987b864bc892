package handler

import (
	"github.com/dariaos/ota-backend/internal/model"

	"github.com/gofiber/fiber/v2"
)

func requestMeta(c *fiber.Ctx) model.RequestMeta {
	return model.RequestMeta{
		IP:            c.IP(),
		XForwardedFor: c.Get(fiber.HeaderXForwardedFor),
		UserAgent:     c.Get(fiber.HeaderUserAgent),
	}
}
