package provider

import (
	"github.com/dariaos/ota-backend/internal/logic"

	"github.com/google/wire"
)

var LogicSet = wire.NewSet(
	logic.NewUpdateLogic,
	logic.NewIngestLogic,
	logic.NewBuildsLogic,
)
