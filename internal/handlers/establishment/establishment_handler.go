// internal/handlers/establishment/establishment_handler.go
package establishment

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"waitlist-service/internal/domain/establishment"
	"waitlist-service/internal/domain/queue"
	xerrors "waitlist-service/internal/pkg/errors"
	"waitlist-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Lister pages through registered establishments.
type Lister interface {
	ListEstablishments(ctx context.Context, limit, offset int) ([]establishment.Establishment, error)
}

// SnapshotReader reads an establishment's live queue.
type SnapshotReader interface {
	Snapshot(ctx context.Context, establishmentID string) ([]queue.Entry, error)
}

type EstablishmentHandler struct {
	establishments Lister
	queues         SnapshotReader
	logger         *zap.Logger
}

func NewEstablishmentHandler(establishments Lister, queues SnapshotReader, logger *zap.Logger) *EstablishmentHandler {
	return &EstablishmentHandler{
		establishments: establishments,
		queues:         queues,
		logger:         logger,
	}
}

// List returns establishments newest first (super admin only)
func (h *EstablishmentHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.establishments.ListEstablishments(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list establishments failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "failed to list establishments", nil)
		return
	}
	if items == nil {
		items = []establishment.Establishment{}
	}

	response.Success(c, http.StatusOK, "establishments retrieved", items)
}

// Queue returns the current snapshot for clients that poll instead of
// holding a socket.
func (h *EstablishmentHandler) Queue(c *gin.Context) {
	id, err := queue.NormalizeEstablishmentID(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid establishment id", err)
		return
	}

	entries, err := h.queues.Snapshot(c.Request.Context(), id)
	if errors.Is(err, xerrors.ErrInvalidInput) {
		response.ValidationError(c, "invalid establishment id", err)
		return
	}
	if err != nil {
		h.logger.Error("snapshot failed",
			zap.String("establishment_id", id),
			zap.Error(err),
		)
		response.Unavailable(c, "queue temporarily unavailable")
		return
	}

	response.Success(c, http.StatusOK, "queue retrieved", queue.SnapshotResponse{
		EstablishmentID: id,
		Entries:         entries,
		Stats:           queue.Summarize(entries),
	})
}
