package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

const (
	msgInternal    = "Internal error"
	msgInvalidJSON = "invalid JSON body"
)

type errorBody struct {
	Error string `json:"error"`
}

// apiError описывает ответ об ошибке: код и текст для клиента.
type apiError struct {
	status  int
	message string
}

var clientErrors = []struct {
	err error
	apiError
}{
	{domain.ErrItemsRequired, apiError{http.StatusBadRequest, "items are required"}},
	{domain.ErrNoValidProducts, apiError{http.StatusBadRequest, "No valid products found for given items"}},
	{domain.ErrNoPurchasableItems, apiError{http.StatusBadRequest, "No purchasable items (all out-of-stock or unapproved)"}},
	{domain.ErrNoApprovedMarts, apiError{http.StatusBadRequest, "No approved marts available for these items"}},
	{domain.ErrAddressNotFound, apiError{http.StatusNotFound, "Address not found"}},
	{domain.ErrNoAddressOnFile, apiError{http.StatusBadRequest, "No address on file"}},
	{domain.ErrAddressNotGeocodable, apiError{http.StatusBadRequest, "Address could not be geocoded. Please include City, State, and a 6-digit PIN code."}},
	{domain.ErrAddressRequired, apiError{http.StatusBadRequest, "address is required"}},
	{domain.ErrCouldNotGeocode, apiError{http.StatusBadRequest, "Could not geocode address"}},
	{domain.ErrPlanRequired, apiError{http.StatusBadRequest, "plan with marts is required"}},
	{domain.ErrAddressAndContactRequired, apiError{http.StatusBadRequest, "address_id and contact_number are required"}},
	{domain.ErrNoOrdersCreated, apiError{http.StatusBadRequest, "No orders were created from plan"}},
	{domain.ErrShoppingListEmpty, apiError{http.StatusBadRequest, "text required"}},
	{domain.ErrOrderNotFound, apiError{http.StatusNotFound, "Order not found"}},
	{domain.ErrInvalidStatusTransition, apiError{http.StatusConflict, "Order cannot be cancelled in its current status"}},
	{domain.ErrOrderVersionConflict, apiError{http.StatusConflict, "Order was modified concurrently, retry the request"}},
}

// classify сопоставляет ошибку сервиса с ответом. Неизвестные ошибки дают 500.
func classify(err error) (apiError, bool) {
	for _, ce := range clientErrors {
		if errors.Is(err, ce.err) {
			return ce.apiError, true
		}
	}
	return apiError{http.StatusInternalServerError, msgInternal}, false
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp, known := classify(err)
	if !known {
		a.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeMessage(w, resp.status, resp.message)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error":"` + msgInternal + `"}`)
	}
	writeRaw(w, status, data)
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
