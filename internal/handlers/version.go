package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/groupcal/backend/pkg/utils"
)

// Set at link time:
//
//	go build -ldflags "-X github.com/groupcal/backend/internal/handlers.Version=1.2.3 -X github.com/groupcal/backend/internal/handlers.Commit=abc123"
var (
	Version = "dev"
	Commit  = ""
)

const apiVersion = "v1"

// ServerInfo describes what this deployment can do, so clients can hide
// features that are switched off.
type ServerInfo struct {
	Version          string `json:"version"`
	Commit           string `json:"commit,omitempty"`
	APIVersion       string `json:"apiVersion"`
	Timezone         string `json:"timezone"`
	CalendarProvider string `json:"calendarProvider"`
	GoogleSignIn     bool   `json:"googleSignIn"`
	EmailDelivery    bool   `json:"emailDelivery"`
}

type VersionHandler struct {
	info ServerInfo
}

// NewVersionHandler fills in the build fields and keeps the rest of info.
func NewVersionHandler(info ServerInfo) *VersionHandler {
	info.Version = Version
	info.Commit = Commit
	info.APIVersion = apiVersion
	return &VersionHandler{info: info}
}

func (h *VersionHandler) Get(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, h.info)
}
