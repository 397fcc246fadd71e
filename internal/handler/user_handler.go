package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-lms-api/internal/models"
	"github.com/noah-isme/ace-lms-api/internal/service"
	"github.com/noah-isme/ace-lms-api/pkg/response"
)

// UserHandler serves user administration. Every mutation is attributed to the caller.
type UserHandler struct {
	service *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Description List users with filtering, ordering and pagination. The summary in meta covers every user.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param role query string false "all, admin, instructor or learner"
// @Param status query string false "all, active or inactive"
// @Param search query string false "Matches name and email"
// @Param sort_by query string false "name, email, points or level"
// @Param sort_order query string false "asc or desc"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	res, err := h.service.List(c.Request.Context(), listQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, res)
}

// Roles godoc
// @Summary Users per role
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /users/roles [get]
func (h *UserHandler) Roles(c *gin.Context) {
	counts, err := h.service.RoleCounts(c.Request.Context())
	reply(c, http.StatusOK, counts, err)
}

// Get godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"))
	reply(c, http.StatusOK, user, err)
}

// Create godoc
// @Summary Create user
// @Description New users start active at level 1 with no points
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateUserRequest true "Create user payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	req, actor, ok := bindAs[models.CreateUserRequest](c, "invalid user payload")
	if !ok {
		return
	}
	user, err := h.service.Create(c.Request.Context(), req, actor.UserID, requestMeta(c))
	reply(c, http.StatusCreated, user, err)
}

// ChangeRole godoc
// @Summary Change user role
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body models.ChangeRoleRequest true "New role"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/role [patch]
func (h *UserHandler) ChangeRole(c *gin.Context) {
	req, actor, ok := bindAs[models.ChangeRoleRequest](c, "invalid role payload")
	if !ok {
		return
	}
	user, err := h.service.ChangeRole(c.Request.Context(), c.Param("id"), req, actor.UserID, requestMeta(c))
	reply(c, http.StatusOK, user, err)
}

// ChangeStatus godoc
// @Summary Activate or deactivate user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body models.ChangeStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/status [patch]
func (h *UserHandler) ChangeStatus(c *gin.Context) {
	req, actor, ok := bindAs[models.ChangeStatusRequest](c, "invalid status payload")
	if !ok {
		return
	}
	user, err := h.service.ChangeStatus(c.Request.Context(), c.Param("id"), req, actor.UserID, requestMeta(c))
	reply(c, http.StatusOK, user, err)
}

// Delete godoc
// @Summary Delete user
// @Description Removes the account and its sessions. This is the only record deletion the API offers.
// @Tags Users
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	actor, ok := mustClaims(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor.UserID, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
