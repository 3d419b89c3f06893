package http

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	gate     *access.Gate
	logger   Logger
}

func newHandlers(services Services, gate *access.Gate, logger Logger) *Handlers {
	return &Handlers{services: services, gate: gate, logger: logger}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// MeResponse describes the acting principal
type MeResponse struct {
	UserID       int64               `json:"user_id"`
	DepartmentID int64               `json:"department_id"`
	Role         string              `json:"role,omitempty"`
	Capabilities []entity.Capability `json:"capabilities"`
	Actions      []access.Action     `json:"actions"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// Me handles GET /api/v1/me
func (h *Handlers) Me(c *gin.Context) {
	p := principalFrom(c)

	resp := MeResponse{
		UserID:       p.UserID,
		DepartmentID: p.DepartmentID,
		Role:         p.RoleName(),
		Capabilities: []entity.Capability{},
		Actions: lo.Filter(h.gate.Actions(), func(a access.Action, _ int) bool {
			return h.gate.Authorize(p, a)
		}),
	}
	sort.Slice(resp.Actions, func(i, j int) bool { return resp.Actions[i] < resp.Actions[j] })
	if p.HasRole() {
		resp.Capabilities = p.Role.Capabilities.List()
	}
	ok(c, http.StatusOK, resp)
}

// Departments handles GET /api/v1/lookups/departments
func (h *Handlers) Departments(c *gin.Context) {
	depts, err := h.services.Lookups.Departments(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.fail(c, "list departments", err)
		return
	}
	ok(c, http.StatusOK, depts)
}

// Roles handles GET /api/v1/lookups/roles
func (h *Handlers) Roles(c *gin.Context) {
	roles, err := h.services.Lookups.Roles(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.fail(c, "list roles", err)
		return
	}
	ok(c, http.StatusOK, roles)
}

// DashboardOverview handles GET /api/v1/dashboard/overview
func (h *Handlers) DashboardOverview(c *gin.Context) {
	overview, err := h.services.Dashboard.Overview(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.fail(c, "dashboard overview", err)
		return
	}
	ok(c, http.StatusOK, overview)
}
