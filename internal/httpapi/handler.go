package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	es "github.com/terraskye/streamstore"
	"github.com/terraskye/streamstore/internal/inventory"
)

// Handler serves the inventory commands and queries over HTTP.
type Handler struct {
	commands *es.CommandBus
	queries  *es.QueryBus

	// retryMaxElapsed bounds the retries of commands sent without a version.
	// Zero disables retrying.
	retryMaxElapsed time.Duration
}

func NewHandler(commands *es.CommandBus, queries *es.QueryBus, retryMaxElapsed time.Duration) *Handler {
	return &Handler{
		commands:        commands,
		queries:         queries,
		retryMaxElapsed: retryMaxElapsed,
	}
}

type createItemRequest struct {
	Name string `json:"name"`
}

type renameItemRequest struct {
	NewName string `json:"new_name"`
	Version uint64 `json:"version"`
}

type countRequest struct {
	Count   int    `json:"count"`
	Version uint64 `json:"version"`
}

type versionRequest struct {
	Version uint64 `json:"version"`
}

type createdResponse struct {
	ID string `json:"id"`
}

func (h *Handler) ListItems(c *gin.Context) {
	items, err := es.Ask[inventory.GetInventoryItems, []inventory.InventoryItemListDto](
		c.Request.Context(), h.queries, inventory.GetInventoryItems{})
	if err != nil {
		respondFailure(c, err)
		return
	}
	RespondOK(c, gin.H{"items": items})
}

func (h *Handler) GetItem(c *gin.Context) {
	details, err := es.Ask[inventory.GetInventoryItemDetails, inventory.InventoryItemDetailsDto](
		c.Request.Context(), h.queries, inventory.GetInventoryItemDetails{ID: c.Param("id")})
	if err != nil {
		respondFailure(c, err)
		return
	}
	RespondOK(c, details)
}

func (h *Handler) CreateItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	id := uuid.NewString()
	// creation is not retried
	if err := h.commands.Send(c.Request.Context(), inventory.CreateInventoryItem{ID: id, Name: req.Name}); err != nil {
		respondFailure(c, err)
		return
	}
	c.Header("Location", "/api/items/"+id)
	c.JSON(http.StatusCreated, createdResponse{ID: id})
}

func (h *Handler) RenameItem(c *gin.Context) {
	var req renameItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.dispatch(c, inventory.RenameInventoryItem{
		ID:              c.Param("id"),
		NewName:         req.NewName,
		OriginalVersion: req.Version,
	})
}

func (h *Handler) CheckIn(c *gin.Context) {
	var req countRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.dispatch(c, inventory.CheckInItemsToInventory{
		ID:              c.Param("id"),
		Count:           req.Count,
		OriginalVersion: req.Version,
	})
}

func (h *Handler) Remove(c *gin.Context) {
	var req countRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.dispatch(c, inventory.RemoveItemsFromInventory{
		ID:              c.Param("id"),
		Count:           req.Count,
		OriginalVersion: req.Version,
	})
}

func (h *Handler) Deactivate(c *gin.Context) {
	var req versionRequest
	// the body is optional: without it the item is deactivated at any version
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.dispatch(c, inventory.DeactivateInventoryItem{
		ID:              c.Param("id"),
		OriginalVersion: req.Version,
	})
}

func (h *Handler) dispatch(c *gin.Context, cmd es.Command) {
	if err := h.send(c.Request.Context(), cmd); err != nil {
		respondFailure(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// send dispatches cmd. Commands without an expected version are retried on
// concurrency conflicts until retryMaxElapsed; commands with one fail on the
// first conflict.
func (h *Handler) send(ctx context.Context, cmd es.Command) error {
	if v, ok := cmd.(es.ExpectedVersioner); ok {
		if _, supplied := v.ExpectedVersion(); supplied {
			return h.commands.Send(ctx, cmd)
		}
	}
	if h.retryMaxElapsed <= 0 {
		return h.commands.Send(ctx, cmd)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = h.retryMaxElapsed

	return backoff.Retry(func() error {
		err := h.commands.Send(ctx, cmd)
		if err != nil && !errors.Is(err, es.ErrConcurrencyConflict) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}

func (h *Handler) Health(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok"})
}
