package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/papapizza/internal/catalog"
	"github.com/roach88/papapizza/internal/order"
	"github.com/roach88/papapizza/internal/orderservice"
)

// maxBodyBytes bounds request bodies; the only body is {"qty": n}.
const maxBodyBytes = 1 << 10

// OrderAPI is the behaviour served over HTTP. *orderservice.Service
// implements it.
type OrderAPI interface {
	FetchMenu(ctx context.Context) (*catalog.Catalog, error)
	FetchOrder(ctx context.Context) (order.Order, error)
	UpsertItem(ctx context.Context, itemID string, qty int) (order.Order, error)
	RemoveItem(ctx context.Context, itemID string) (order.Order, error)
	ClearOrder(ctx context.Context) (order.Order, error)
	Commit(ctx context.Context) (order.Confirmation, error)
	Summary(ctx context.Context) (order.Summary, error)
	Orders(ctx context.Context) ([]order.PlacedOrder, error)
	DailySummary(ctx context.Context) ([]order.DailySummary, error)
	Health(ctx context.Context) error
}

var _ OrderAPI = (*orderservice.Service)(nil)

type handler struct {
	api OrderAPI
}

// NewRouter builds the chi router for api.
func NewRouter(api OrderAPI) chi.Router {
	h := &handler{api: api}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/menu", h.menu)

		r.Route("/current-order", func(r chi.Router) {
			r.Get("/", h.currentOrder)
			r.Delete("/", h.clearOrder)
			r.Post("/commit", h.commit)
			r.Put("/items/{id}", h.upsertItem)
			r.Delete("/items/{id}", h.removeItem)
		})

		r.Route("/summary", func(r chi.Router) {
			r.Get("/", h.summary)
			r.Get("/orders-list", h.ordersList)
			r.Get("/daily", h.daily)
			r.Get("/total-price-including-gst", h.summaryField("total_price_including_gst", func(s order.Summary) string {
				return s.RevenueIncGST.StringFixed(2)
			}))
			r.Get("/total-gst", h.summaryField("total_gst", func(s order.Summary) string {
				return s.GST.StringFixed(2)
			}))
			r.Get("/total-revenue-excluding-gst", h.summaryField("total_revenue_excluding_gst", func(s order.Summary) string {
				return s.RevenueExGST.StringFixed(2)
			}))
		})

		r.Get("/health", h.health)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (h *handler) menu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.api.FetchMenu(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, menu)
}

func (h *handler) currentOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.api.FetchOrder(r.Context())
	h.respondOrder(w, r, o, err)
}

func (h *handler) clearOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.api.ClearOrder(r.Context())
	h.respondOrder(w, r, o, err)
}

func (h *handler) upsertItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var body struct {
		Qty *int `json:"qty"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Qty == nil {
		writeError(w, http.StatusBadRequest, "qty is required")
		return
	}
	o, err := h.api.UpsertItem(r.Context(), id, *body.Qty)
	h.respondOrder(w, r, o, err)
}

func (h *handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	o, err := h.api.RemoveItem(r.Context(), id)
	h.respondOrder(w, r, o, err)
}

func (h *handler) commit(w http.ResponseWriter, r *http.Request) {
	conf, err := h.api.Commit(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conf)
}

func (h *handler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.api.Summary(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handler) summaryField(name string, value func(order.Summary) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.api.Summary(r.Context())
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{name: value(s)})
	}
}

func (h *handler) ordersList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.api.Orders(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *handler) daily(w http.ResponseWriter, r *http.Request) {
	days, err := h.api.DailySummary(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.api.Health(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "unhealthy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) respondOrder(w http.ResponseWriter, r *http.Request, o order.Order, err error) {
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// itemID reads the {id} path segment. chi matches on the escaped path, so
// the segment is unescaped here.
func itemID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || id == "" {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return "", false
	}
	return order.NormalizeID(id), true
}

// decodeBody decodes exactly one JSON value with no unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}
