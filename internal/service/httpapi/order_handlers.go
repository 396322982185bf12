package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/service/ordering"
)

type ordersResponse struct {
	Orders []ordering.OrderPayload `json:"orders"`
}

type timelineEntry struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

type timelineResponse struct {
	OrderID string          `json:"order_id"`
	Events  []timelineEntry `json:"events"`
}

type cancelBody struct {
	Reason string `json:"reason"`
}

func (a *API) createFromPlan(w http.ResponseWriter, r *http.Request, userID int64) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}

	var req ordering.PlanAcceptance
	if !unmarshalBody(w, data, &req) {
		return
	}

	a.withIdempotency(w, r, userID, data, func() (int, []byte) {
		orders, err := a.translator.Translate(r.Context(), userID, req)
		if err != nil {
			return a.errorResponse(r, err)
		}
		return marshalResponse(http.StatusCreated, ordersResponse{Orders: toPayloads(orders)})
	})
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request, userID int64) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeMessage(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	orders, err := a.orders.List(r.Context(), userID, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ordersResponse{Orders: toPayloads(orders)})
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request, userID int64) {
	order, err := a.orders.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ordering.NewOrderPayload(order))
}

func (a *API) orderTimeline(w http.ResponseWriter, r *http.Request, userID int64) {
	orderID := r.PathValue("id")
	events, err := a.orders.Timeline(r.Context(), userID, orderID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	resp := timelineResponse{OrderID: orderID, Events: make([]timelineEntry, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, timelineEntry{Type: ev.Type, Reason: ev.Reason, Occurred: ev.Occurred})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) cancelOrder(w http.ResponseWriter, r *http.Request, userID int64) {
	var body cancelBody
	if !decodeBody(w, r, &body) {
		return
	}

	order, err := a.orders.Cancel(r.Context(), userID, r.PathValue("id"), body.Reason)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ordering.NewOrderPayload(order))
}

func toPayloads(orders []domain.Order) []ordering.OrderPayload {
	out := make([]ordering.OrderPayload, 0, len(orders))
	for _, o := range orders {
		out = append(out, ordering.NewOrderPayload(o))
	}
	return out
}
