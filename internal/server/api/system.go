package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polittech/stratagem/internal/activity"
	"github.com/polittech/stratagem/internal/build"
	"github.com/polittech/stratagem/internal/llm/catalog"
	"github.com/polittech/stratagem/internal/proxy"
	"github.com/polittech/stratagem/internal/store"
)

// recentEvents caps the activity tail returned by the status endpoint.
const recentEvents = 20

type SystemHandlersParams struct {
	fx.In

	Catalog  *catalog.Catalog
	Proxies  *proxy.Pool
	Activity *activity.Log
	Store    *store.Store
}

func NewSystemHandlers(params SystemHandlersParams) *SystemHandlers {
	return &SystemHandlers{
		catalog:  params.Catalog,
		proxies:  params.Proxies,
		activity: params.Activity,
		store:    params.Store,
	}
}

type SystemHandlers struct {
	catalog  *catalog.Catalog
	proxies  *proxy.Pool
	activity *activity.Log
	store    *store.Store
}

// Health reports liveness.
func (h *SystemHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports readiness. The bot cannot serve dialogues without its store.
func (h *SystemHandlers) Ready(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		JSONError(c, http.StatusServiceUnavailable, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

type StatusResponse struct {
	Build     build.Info        `json:"build"`
	Model     string            `json:"model"`
	Providers []string          `json:"providers"`
	Proxy     proxy.Status      `json:"proxy"`
	Counters  map[string]uint64 `json:"counters"`
	Recent    []activity.Event  `json:"recent"`
}

// Status returns the operational snapshot: build info, active generation
// settings, proxy pool state and the recent activity tail.
func (h *SystemHandlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Build:     build.GetBuildInfo(),
		Model:     h.catalog.CurrentModel(),
		Providers: h.catalog.CurrentProviders(),
		Proxy:     h.proxies.Status(),
		Counters:  h.activity.Counters(),
		Recent:    h.activity.Recent(recentEvents),
	})
}
