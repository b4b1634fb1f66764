package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Bormex-edergustavo/bormex-nuevo/internal/domain"
	"github.com/Bormex-edergustavo/bormex-nuevo/internal/messaging"
)

// Facade is the repository surface the HTTP layer depends on.
type Facade interface {
	CreateSouvenir(ctx context.Context, input SouvenirInput) (string, error)
	CreateService(ctx context.Context, input ServiceInput) (string, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	ListActive(ctx context.Context, kind domain.OrderKind) ([]domain.Order, error)
	ListArchived(ctx context.Context) ([]domain.Order, error)
	Update(ctx context.Context, id string, patch Patch) (*domain.Order, error)
	Archive(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	EmptyArchive(ctx context.Context) (int, error)
	AttachImage(ctx context.Context, orderID, filename string, content io.Reader, meta ImageMeta) (*domain.Image, error)
	DetachImage(ctx context.Context, orderID, imagePath string) error
	SetPackagingReady(ctx context.Context, id string, ready bool) error
	SetDisplaysReady(ctx context.Context, id string, ready bool) error
	UpdateDesignProgress(ctx context.Context, orderID string, index int, patch DesignPatch) (*domain.Order, error)
}

type Handler struct {
	repo     Facade
	hub      *Hub
	producer *messaging.Producer
	logger   *slog.Logger
}

func NewHandler(repo Facade, hub *Hub, producer *messaging.Producer, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		hub:      hub,
		producer: producer,
		logger:   logger,
	}
}

// orderView is an order annotated with the derived delivery status, which is
// recomputed on every read because it depends on the current date.
type orderView struct {
	domain.Order
	DeliveryStatus domain.DeliveryStatus `json:"delivery_status"`
}

func viewOf(o domain.Order, now time.Time) orderView {
	return orderView{Order: o, DeliveryStatus: domain.ClassifyDelivery(o.DeliveryDate, now)}
}

func viewsOf(rows []domain.Order, now time.Time) []orderView {
	views := make([]orderView, len(rows))
	for i, o := range rows {
		views[i] = viewOf(o, now)
	}
	return views
}

func (h *Handler) HandleCreateSouvenir(w http.ResponseWriter, r *http.Request) {
	var input SouvenirInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.repo.CreateSouvenir(r.Context(), input)
	if err != nil {
		h.writeRepoError(w, err, "failed to create souvenir order")
		return
	}

	h.publish(r.Context(), domain.OrderEventCreated, id, domain.OrderKindSouvenir, input.ClientName)
	h.logger.Info("souvenir order created", "order_id", id, "client", input.ClientName)
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) HandleCreateService(w http.ResponseWriter, r *http.Request) {
	var input ServiceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.repo.CreateService(r.Context(), input)
	if err != nil {
		h.writeRepoError(w, err, "failed to create service order")
		return
	}

	h.publish(r.Context(), domain.OrderEventCreated, id, domain.OrderKindService, input.ClientName)
	h.logger.Info("service order created", "order_id", id, "client", input.ClientName)
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(r.URL.Query().Get("kind"))
	if !ok {
		h.writeError(w, http.StatusBadRequest, "kind must be souvenir or service")
		return
	}

	rows, err := h.repo.ListActive(r.Context(), kind)
	if err != nil {
		h.writeRepoError(w, err, "failed to list orders")
		return
	}

	h.writeJSON(w, http.StatusOK, viewsOf(rows, time.Now()))
}

func (h *Handler) HandleListArchived(w http.ResponseWriter, r *http.Request) {
	rows, err := h.repo.ListArchived(r.Context())
	if err != nil {
		h.writeRepoError(w, err, "failed to list archived orders")
		return
	}

	h.writeJSON(w, http.StatusOK, viewsOf(rows, time.Now()))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	order, err := h.repo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeRepoError(w, err, "failed to get order")
		return
	}

	h.writeJSON(w, http.StatusOK, viewOf(*order, time.Now()))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.repo.Update(r.Context(), id, patch)
	if err != nil {
		h.writeRepoError(w, err, "failed to update order")
		return
	}

	h.publish(r.Context(), domain.OrderEventUpdated, id, order.Kind, order.ClientName)
	h.writeJSON(w, http.StatusOK, viewOf(*order, time.Now()))
}

func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.repo.Archive(r.Context(), id); err != nil {
		h.writeRepoError(w, err, "failed to archive order")
		return
	}

	h.publish(r.Context(), domain.OrderEventArchived, id, "", "")
	h.logger.Info("order archived", "order_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.repo.Restore(r.Context(), id); err != nil {
		h.writeRepoError(w, err, "failed to restore order")
		return
	}

	h.publish(r.Context(), domain.OrderEventRestored, id, "", "")
	h.logger.Info("order restored", "order_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.writeRepoError(w, err, "failed to delete order")
		return
	}

	h.publish(r.Context(), domain.OrderEventDeleted, id, "", "")
	h.logger.Info("order deleted", "order_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) HandleEmptyArchive(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.repo.EmptyArchive(r.Context())
	if err != nil {
		h.writeRepoError(w, err, "failed to empty archive")
		return
	}

	h.logger.Info("archive emptied", "deleted", deleted)
	h.writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

const maxImageUpload = 32 << 20

func (h *Handler) HandleAttachImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := r.ParseMultipartForm(maxImageUpload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer func() { _ = file.Close() }()

	meta := ImageMeta{ProductKind: domain.ProductKind(r.FormValue("product_kind"))}
	if raw := r.FormValue("design_index"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "design_index must be an integer")
			return
		}
		meta.DesignIndex = idx
	}

	img, err := h.repo.AttachImage(r.Context(), id, header.Filename, file, meta)
	if err != nil {
		h.writeRepoError(w, err, "failed to attach image")
		return
	}

	h.publish(r.Context(), domain.OrderEventUpdated, id, "", "")
	h.logger.Info("image attached", "order_id", id, "path", img.Path)
	h.writeJSON(w, http.StatusCreated, img)
}

func (h *Handler) HandleDetachImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	path := r.URL.Query().Get("path")
	if path == "" {
		h.writeError(w, http.StatusBadRequest, "missing path")
		return
	}

	if err := h.repo.DetachImage(r.Context(), id, path); err != nil {
		h.writeRepoError(w, err, "failed to detach image")
		return
	}

	h.publish(r.Context(), domain.OrderEventUpdated, id, "", "")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "detached"})
}

type flagsRequest struct {
	PackagingReady *bool `json:"packaging_ready,omitempty"`
	DisplaysReady  *bool `json:"displays_ready,omitempty"`
}

func (h *Handler) HandleSetFlags(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req flagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PackagingReady == nil && req.DisplaysReady == nil {
		h.writeError(w, http.StatusBadRequest, "no flags to set")
		return
	}

	if req.PackagingReady != nil {
		if err := h.repo.SetPackagingReady(r.Context(), id, *req.PackagingReady); err != nil {
			h.writeRepoError(w, err, "failed to set packaging flag")
			return
		}
	}
	if req.DisplaysReady != nil {
		if err := h.repo.SetDisplaysReady(r.Context(), id, *req.DisplaysReady); err != nil {
			h.writeRepoError(w, err, "failed to set displays flag")
			return
		}
	}

	h.publish(r.Context(), domain.OrderEventUpdated, id, "", "")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) HandleUpdateDesign(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "design index must be an integer")
		return
	}

	var patch DesignPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.repo.UpdateDesignProgress(r.Context(), id, index, patch)
	if err != nil {
		h.writeRepoError(w, err, "failed to update design progress")
		return
	}

	h.publish(r.Context(), domain.OrderEventUpdated, id, order.Kind, order.ClientName)
	h.writeJSON(w, http.StatusOK, viewOf(*order, time.Now()))
}

func (h *Handler) HandleWatchActive(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(r.URL.Query().Get("kind"))
	if !ok {
		h.writeError(w, http.StatusBadRequest, "kind must be souvenir or service")
		return
	}
	h.streamSnapshots(w, r, func(fn func([]domain.Order)) (*Subscription, error) {
		return h.hub.SubscribeActive(r.Context(), kind, fn)
	})
}

func (h *Handler) HandleWatchArchived(w http.ResponseWriter, r *http.Request) {
	h.streamSnapshots(w, r, func(fn func([]domain.Order)) (*Subscription, error) {
		return h.hub.SubscribeArchived(r.Context(), fn)
	})
}

// streamSnapshots bridges a hub subscription onto a Server-Sent Events
// response. The hub callback must not block, so it hands off through a
// one-slot channel that always keeps the latest snapshot.
func (h *Handler) streamSnapshots(w http.ResponseWriter, r *http.Request, subscribe func(func([]domain.Order)) (*Subscription, error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	snapshots := make(chan []domain.Order, 1)
	sub, err := subscribe(func(rows []domain.Order) {
		select {
		case snapshots <- rows:
		default:
			// Drop the stale snapshot; deliveries are serialized by the hub
			// so this send cannot block.
			select {
			case <-snapshots:
			default:
			}
			snapshots <- rows
		}
	})
	if err != nil {
		h.writeRepoError(w, err, "failed to subscribe")
		return
	}
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case rows := <-snapshots:
			data, err := json.Marshal(viewsOf(rows, time.Now()))
			if err != nil {
				h.logger.Error("failed to encode snapshot", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) publish(ctx context.Context, typ domain.OrderEventType, orderID string, kind domain.OrderKind, clientName string) {
	if h.producer == nil {
		return
	}
	event := domain.OrderEvent{
		Type:       typ,
		OrderID:    orderID,
		Kind:       kind,
		ClientName: clientName,
		Timestamp:  time.Now().UTC(),
	}
	if err := h.producer.Publish(ctx, orderID, event); err != nil {
		h.logger.Error("failed to publish order event", "error", err, "order_id", orderID, "type", typ)
	}
}

func parseKind(raw string) (domain.OrderKind, bool) {
	switch domain.OrderKind(raw) {
	case domain.OrderKindSouvenir:
		return domain.OrderKindSouvenir, true
	case domain.OrderKindService:
		return domain.OrderKindService, true
	default:
		return "", false
	}
}

func (h *Handler) writeRepoError(w http.ResponseWriter, err error, logMsg string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		h.writeError(w, http.StatusNotFound, "order not found")
	default:
		h.logger.Error(logMsg, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
