package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/payment-requests/internal/application/service"
)

// ListBudgets handles GET /api/v1/budgets
func (h *Handlers) ListBudgets(c *gin.Context) {
	budgets, err := h.services.Budgets.List(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.fail(c, "list budgets", err)
		return
	}
	ok(c, http.StatusOK, budgets)
}

// GetBudget handles GET /api/v1/budgets/:id
func (h *Handlers) GetBudget(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "get budget", err)
		return
	}
	budget, err := h.services.Budgets.Get(c.Request.Context(), principalFrom(c), id)
	if err != nil {
		h.fail(c, "get budget", err)
		return
	}
	ok(c, http.StatusOK, budget)
}

// CreateBudget handles POST /api/v1/budgets
func (h *Handlers) CreateBudget(c *gin.Context) {
	var input service.BudgetInput
	if err := bindJSON(c, &input); err != nil {
		h.fail(c, "create budget", err)
		return
	}
	budget, err := h.services.Budgets.Create(c.Request.Context(), principalFrom(c), input)
	if err != nil {
		h.fail(c, "create budget", err)
		return
	}
	ok(c, http.StatusCreated, budget)
}

// UpdateBudget handles PUT /api/v1/budgets/:id
func (h *Handlers) UpdateBudget(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "update budget", err)
		return
	}
	var input service.BudgetInput
	if err := bindJSON(c, &input); err != nil {
		h.fail(c, "update budget", err)
		return
	}
	budget, err := h.services.Budgets.Update(c.Request.Context(), principalFrom(c), id, input)
	if err != nil {
		h.fail(c, "update budget", err)
		return
	}
	ok(c, http.StatusOK, budget)
}

// DeleteBudget handles DELETE /api/v1/budgets/:id
func (h *Handlers) DeleteBudget(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "delete budget", err)
		return
	}
	if err := h.services.Budgets.Delete(c.Request.Context(), principalFrom(c), id); err != nil {
		h.fail(c, "delete budget", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ApproveBudget handles POST /api/v1/budgets/:id/approve
func (h *Handlers) ApproveBudget(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "approve budget", err)
		return
	}
	budget, err := h.services.Budgets.Approve(c.Request.Context(), principalFrom(c), id)
	if err != nil {
		h.fail(c, "approve budget", err)
		return
	}
	ok(c, http.StatusOK, budget)
}

// BudgetAvailable handles GET /api/v1/budgets/:id/available
func (h *Handlers) BudgetAvailable(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "budget availability", err)
		return
	}
	availability, err := h.services.Budgets.Available(c.Request.Context(), principalFrom(c), id)
	if err != nil {
		h.fail(c, "budget availability", err)
		return
	}
	ok(c, http.StatusOK, availability)
}

// ListProjects handles GET /api/v1/projects
func (h *Handlers) ListProjects(c *gin.Context) {
	projects, err := h.services.Projects.List(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.fail(c, "list projects", err)
		return
	}
	ok(c, http.StatusOK, projects)
}

// GetProject handles GET /api/v1/projects/:id
func (h *Handlers) GetProject(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "get project", err)
		return
	}
	project, err := h.services.Projects.Get(c.Request.Context(), principalFrom(c), id)
	if err != nil {
		h.fail(c, "get project", err)
		return
	}
	ok(c, http.StatusOK, project)
}

// CreateProject handles POST /api/v1/projects
func (h *Handlers) CreateProject(c *gin.Context) {
	var input service.ProjectInput
	if err := bindJSON(c, &input); err != nil {
		h.fail(c, "create project", err)
		return
	}
	project, err := h.services.Projects.Create(c.Request.Context(), principalFrom(c), input)
	if err != nil {
		h.fail(c, "create project", err)
		return
	}
	ok(c, http.StatusCreated, project)
}

// UpdateProject handles PUT /api/v1/projects/:id
func (h *Handlers) UpdateProject(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "update project", err)
		return
	}
	var input service.ProjectInput
	if err := bindJSON(c, &input); err != nil {
		h.fail(c, "update project", err)
		return
	}
	project, err := h.services.Projects.Update(c.Request.Context(), principalFrom(c), id, input)
	if err != nil {
		h.fail(c, "update project", err)
		return
	}
	ok(c, http.StatusOK, project)
}

// DeleteProject handles DELETE /api/v1/projects/:id
func (h *Handlers) DeleteProject(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "delete project", err)
		return
	}
	if err := h.services.Projects.Delete(c.Request.Context(), principalFrom(c), id); err != nil {
		h.fail(c, "delete project", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListUsers handles GET /api/v1/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.services.Users.List(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.fail(c, "list users", err)
		return
	}
	ok(c, http.StatusOK, users)
}

// GetUser handles GET /api/v1/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "get user", err)
		return
	}
	user, err := h.services.Users.Get(c.Request.Context(), principalFrom(c), id)
	if err != nil {
		h.fail(c, "get user", err)
		return
	}
	ok(c, http.StatusOK, user)
}

// CreateUser handles POST /api/v1/users
func (h *Handlers) CreateUser(c *gin.Context) {
	var input service.UserInput
	if err := bindJSON(c, &input); err != nil {
		h.fail(c, "create user", err)
		return
	}
	user, err := h.services.Users.Create(c.Request.Context(), principalFrom(c), input)
	if err != nil {
		h.fail(c, "create user", err)
		return
	}
	ok(c, http.StatusCreated, user)
}

// UpdateUser handles PUT /api/v1/users/:id
func (h *Handlers) UpdateUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "update user", err)
		return
	}
	var input service.UserInput
	if err := bindJSON(c, &input); err != nil {
		h.fail(c, "update user", err)
		return
	}
	user, err := h.services.Users.Update(c.Request.Context(), principalFrom(c), id, input)
	if err != nil {
		h.fail(c, "update user", err)
		return
	}
	ok(c, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/v1/users/:id
func (h *Handlers) DeleteUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "delete user", err)
		return
	}
	if err := h.services.Users.Delete(c.Request.Context(), principalFrom(c), id); err != nil {
		h.fail(c, "delete user", err)
		return
	}
	c.Status(http.StatusNoContent)
}
