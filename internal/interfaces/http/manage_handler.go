package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	managerdomain "github.com/promptgate/gateway/internal/domain/manager"
	managerinfra "github.com/promptgate/gateway/internal/infrastructure/manager"
)

// ManagerAPI is the subset of manager.Manager the HTTP layer depends on,
// kept abstract so tests can substitute a fake.
type ManagerAPI interface {
	List(kind managerdomain.EntryKind) []string
	Inspect(kind managerdomain.EntryKind, id string) (*managerdomain.Entry, bool)
	Create(kind managerdomain.EntryKind, id, category, body string) error
	Update(kind managerdomain.EntryKind, id, body string) error
	Delete(kind managerdomain.EntryKind, id string) error
	History(kind managerdomain.EntryKind, id string) ([]managerdomain.Version, error)
	Rollback(kind managerdomain.EntryKind, id string, version int, confirm bool) error
	Compare(kind managerdomain.EntryKind, id string, from, to int) (managerdomain.Version, managerdomain.Version, error)
	Reload() error
}

var _ ManagerAPI = (*managerinfra.InMemoryManager)(nil)

// ManageHandler exposes the C8 Prompt/Gate Manager under
// `/tools/manage/{kind}[/...]` (spec §4.8).
type ManageHandler struct {
	mgr    ManagerAPI
	logger *zap.Logger
}

// NewManageHandler creates a ManageHandler.
func NewManageHandler(mgr ManagerAPI, logger *zap.Logger) *ManageHandler {
	return &ManageHandler{mgr: mgr, logger: logger}
}

func entryKind(c *gin.Context) (managerdomain.EntryKind, bool) {
	switch c.Param("kind") {
	case "prompts":
		return managerdomain.EntryKindPrompt, true
	case "gates":
		return managerdomain.EntryKindGate, true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be \"prompts\" or \"gates\""})
		return "", false
	}
}

// List handles GET /tools/manage/:kind.
func (h *ManageHandler) List(c *gin.Context) {
	kind, ok := entryKind(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": h.mgr.List(kind)})
}

// Inspect handles GET /tools/manage/:kind/:id.
func (h *ManageHandler) Inspect(c *gin.Context) {
	kind, ok := entryKind(c)
	if !ok {
		return
	}
	entry, found := h.mgr.Inspect(kind, c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

type createBody struct {
	ID       string `json:"id" binding:"required"`
	Category string `json:"category"`
	Body     string `json:"body" binding:"required"`
}

// Create handles POST /tools/manage/:kind.
func (h *ManageHandler) Create(c *gin.Context) {
	kind, ok := entryKind(c)
	if !ok {
		return
	}
	var body createBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.mgr.Create(kind, body.ID, body.Category, body.Body); err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": body.ID})
}

type updateBody struct {
	Body string `json:"body" binding:"required"`
}

// Update handles PUT /tools/manage/:kind/:id.
func (h *ManageHandler) Update(c *gin.Context) {
	kind, ok := entryKind(c)
	if !ok {
		return
	}
	var body updateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.mgr.Update(kind, c.Param("id"), body.Body); err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /tools/manage/:kind/:id.
func (h *ManageHandler) Delete(c *gin.Context) {
	kind, ok := entryKind(c)
	if !ok {
		return
	}
	if err := h.mgr.Delete(kind, c.Param("id")); err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// History handles GET /tools/manage/:kind/:id/history.
func (h *ManageHandler) History(c *gin.Context) {
	kind, ok := entryKind(c)
	if !ok {
		return
	}
	versions, err := h.mgr.History(kind, c.Param("id"))
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// Rollback handles POST /tools/manage/:kind/:id/rollback/:version. The
// confirm=true acknowledgement is read from a query parameter since
// rollback has no request body of its own (spec §4.8
// `rollback(version, confirm=true)`).
func (h *ManageHandler) Rollback(c *gin.Context) {
	kind, ok := entryKind(c)
	if !ok {
		return
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version must be an integer"})
		return
	}
	confirm := c.Query("confirm") == "true"
	if err := h.mgr.Rollback(kind, c.Param("id"), version, confirm); err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Compare handles GET /tools/manage/:kind/:id/compare?from=1&to=3.
func (h *ManageHandler) Compare(c *gin.Context) {
	kind, ok := entryKind(c)
	if !ok {
		return
	}
	from, err := strconv.Atoi(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be an integer"})
		return
	}
	to, err := strconv.Atoi(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be an integer"})
		return
	}
	fromV, toV, err := h.mgr.Compare(kind, c.Param("id"), from, to)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": fromV, "to": toV})
}

// Reload handles POST /tools/manage/reload.
func (h *ManageHandler) Reload(c *gin.Context) {
	if err := h.mgr.Reload(); err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
