package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/service/basket"
)

const maxBodyBytes = 1 << 20

type optimizeItem struct {
	ProductID int64    `json:"product_id"`
	Quantity  *int     `json:"quantity"`
	WeightKg  *float64 `json:"weight_kg"`
}

type optimizeBody struct {
	Items      []optimizeItem `json:"items"`
	AddressID  *int64         `json:"address_id"`
	AllowSwaps *bool          `json:"allow_swaps"`
}

// toRequest применяет значения по умолчанию: quantity = 1, allow_swaps = true.
func (b optimizeBody) toRequest() basket.OptimizeRequest {
	req := basket.OptimizeRequest{
		Items:      make([]domain.RequestedItem, 0, len(b.Items)),
		AddressID:  b.AddressID,
		AllowSwaps: true,
	}
	if b.AllowSwaps != nil {
		req.AllowSwaps = *b.AllowSwaps
	}
	for _, it := range b.Items {
		qty := 1
		if it.Quantity != nil {
			qty = *it.Quantity
		}
		req.Items = append(req.Items, domain.RequestedItem{
			ProductID: it.ProductID,
			Quantity:  qty,
			WeightKg:  it.WeightKg,
		})
	}
	return req
}

func (a *API) optimize(w http.ResponseWriter, r *http.Request, userID int64) {
	var body optimizeBody
	if !decodeBody(w, r, &body) {
		return
	}

	resp, err := a.basket.Optimize(r.Context(), userID, body.toRequest())
	if err != nil {
		// для оптимизатора ошибка адреса означает плохой запрос, а не отсутствующий ресурс
		if errors.Is(err, domain.ErrAddressNotFound) {
			writeMessage(w, http.StatusBadRequest, "Address not found")
			return
		}
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type nearbyBody struct {
	Address  string   `json:"address"`
	RadiusKm *float64 `json:"radius_km"`
	WeightKg *float64 `json:"weight_kg"`
}

func (a *API) nearbyMarts(w http.ResponseWriter, r *http.Request) {
	var body nearbyBody
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := a.basket.NearbyMarts(r.Context(), basket.NearbyQuery{
		Address:  body.Address,
		RadiusKm: body.RadiusKm,
		WeightKg: body.WeightKg,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type shoppingListBody struct {
	Text string `json:"text"`
}

type shoppingListResponse struct {
	Items []string `json:"items"`
}

func (a *API) parseShoppingList(w http.ResponseWriter, r *http.Request) {
	var body shoppingListBody
	if !decodeBody(w, r, &body) {
		return
	}

	items, err := basket.ParseShoppingList(body.Text)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shoppingListResponse{Items: items})
}

// decodeBody читает JSON-тело; пустое тело равносильно {}.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	data, ok := readBody(w, r)
	if !ok {
		return false
	}
	return unmarshalBody(w, data, dst)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeMessage(w, http.StatusBadRequest, msgInvalidJSON)
		return nil, false
	}
	return data, true
}

func unmarshalBody(w http.ResponseWriter, data []byte, dst any) bool {
	if len(data) == 0 {
		return true
	}
	if err := json.Unmarshal(data, dst); err != nil {
		writeMessage(w, http.StatusBadRequest, msgInvalidJSON)
		return false
	}
	return true
}
