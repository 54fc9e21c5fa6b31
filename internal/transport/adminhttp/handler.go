package adminhttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/usched-go/usched/internal/adminstore"
	"github.com/usched-go/usched/internal/domain"
	"github.com/usched-go/usched/internal/stat"
)

// Handler implements the route bodies NewRouter wires up.
type Handler struct {
	store     *adminstore.Store
	users     *adminstore.UserStore
	collector *stat.Collector
	logger    *slog.Logger
}

func NewHandler(store *adminstore.Store, users *adminstore.UserStore, collector *stat.Collector, logger *slog.Logger) *Handler {
	return &Handler{store: store, users: users, collector: collector, logger: logger.With("component", "adminhttp")}
}

func (h *Handler) Healthz(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h *Handler) ShowProperty(c *gin.Context) {
	cat := domain.AdminCategory(c.Param("category"))
	prop := c.Param("property")

	value, err := h.store.Show(cat, prop)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": cat, "property": prop, "value": value})
}

type stagePropertyRequest struct {
	Value string `json:"value" binding:"required"`
}

func (h *Handler) StageProperty(c *gin.Context) {
	cat := domain.AdminCategory(c.Param("category"))
	prop := c.Param("property")

	var req stagePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.Stage(cat, prop, req.Value); err != nil {
		writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Commit(c *gin.Context) {
	cat := domain.AdminCategory(c.Param("category"))
	if err := h.store.Commit(cat); err != nil {
		writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Rollback(c *gin.Context) {
	cat := domain.AdminCategory(c.Param("category"))
	if err := h.store.Rollback(cat); err != nil {
		writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type addUserRequest struct {
	UID      uint32 `json:"uid" binding:"required"`
	GID      uint32 `json:"gid" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *Handler) AddUser(c *gin.Context) {
	var req addUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Username arrives as a query parameter rather than a path segment on
	// this route since there is no existing record to key the path on yet.
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username query parameter is required"})
		return
	}

	if err := h.users.Add(username, req.UID, req.GID, req.Password); err != nil {
		if errors.Is(err, domain.ErrDuplicateEntry) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("add user", "username", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handler) ShowUser(c *gin.Context) {
	username := c.Param("username")
	rec, err := h.users.Show(username)
	if err != nil {
		if errors.Is(err, domain.ErrUserRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("show user", "username", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": username, "uid": rec.UID, "gid": rec.GID})
}

type changeUserRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

func (h *Handler) ChangeUser(c *gin.Context) {
	username := c.Param("username")
	var req changeUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.users.Change(username, req.Password); err != nil {
		if errors.Is(err, domain.ErrUserRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("change user password", "username", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	username := c.Param("username")
	if err := h.users.Delete(username); err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("delete user", "username", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": h.collector.Snapshot()})
}

func (h *Handler) GetStat(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a uint64"})
		return
	}
	entry, ok := h.collector.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no stat record for this id"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownCategory), errors.Is(err, domain.ErrUnknownProperty):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNoStagedChange):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPIDFileActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
