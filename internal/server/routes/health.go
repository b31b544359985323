package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ineyio/sentimentgate"
)

// HealthRoutes serves the liveness probe.
type HealthRoutes struct {
	svc *sentimentgate.Service
}

func NewHealthRoutes(svc *sentimentgate.Service) *HealthRoutes {
	return &HealthRoutes{svc: svc}
}

func (h *HealthRoutes) RegisterRoutes(s *echo.Echo) {
	s.GET("/healthz", h.handleHealth)
}

type healthResponse struct {
	Status string `json:"status"`
	Engine string `json:"engine"`
	// Circuit state of the engine; an open circuit does not fail liveness.
	EngineState string `json:"engineState"`
}

func (h *HealthRoutes) handleHealth(c echo.Context) error {
	name, state := h.svc.EngineHealth()
	return c.JSON(http.StatusOK, healthResponse{
		Status:      "ok",
		Engine:      name,
		EngineState: state.String(),
	})
}
