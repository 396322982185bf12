package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

const (
	// IdempotencyKeyHeader — необязательный заголовок для безопасного повтора создания заказов.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader выставляется в ответе, восстановленном из сохранённого.
	ReplayedHeader = "Idempotent-Replayed"

	idempotencyTTL = 24 * time.Hour
	// storeTimeout ограничивает сохранение ответа, которое не зависит от отмены запроса клиентом.
	storeTimeout = 5 * time.Second
)

// Исходы обработки Idempotency-Key для метрик.
const (
	idemNew      = "new"
	idemReplayed = "replayed"
	idemMismatch = "mismatch"
	idemInFlight = "in_flight"
)

// responder выполняет запрос и возвращает код и тело ответа.
type responder func() (status int, body []byte)

// withIdempotency выполняет run не более одного раза на ключ в пределах TTL.
// Повтор с тем же телом получает сохранённый ответ, с другим телом или во время обработки получает 409.
func (a *API) withIdempotency(w http.ResponseWriter, r *http.Request, userID int64, payload []byte, run responder) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if a.idem == nil || key == "" {
		status, body := run()
		writeRaw(w, status, body)
		return
	}

	// Ключ привязан к пользователю: одинаковые ключи разных пользователей не пересекаются.
	scoped := strconv.FormatInt(userID, 10) + ":" + key
	record, err := a.idem.CreateProcessing(r.Context(), scoped, requestHash(r, payload), time.Now().UTC().Add(idempotencyTTL))
	if err != nil {
		a.replay(w, r, err, record)
		return
	}
	a.metrics.RecordIdempotency(idemNew)

	// при панике в run ключ не должен остаться в processing до истечения TTL
	finished := false
	defer func() {
		if !finished {
			status, body := marshalResponse(http.StatusInternalServerError, errorBody{Error: msgInternal})
			a.storeResult(r, scoped, status, body)
		}
	}()

	status, body := run()
	finished = true
	a.storeResult(r, scoped, status, body)
	writeRaw(w, status, body)
}

func (a *API) replay(w http.ResponseWriter, r *http.Request, createErr error, record domain.IdempotencyRecord) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		a.metrics.RecordIdempotency(idemMismatch)
		writeMessage(w, http.StatusConflict, "Idempotency-Key is already used with a different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		if !record.Status.Terminal() {
			a.metrics.RecordIdempotency(idemInFlight)
			writeMessage(w, http.StatusConflict, "request with the same Idempotency-Key is already processing")
			return
		}
		if record.HTTPStatus == 0 || len(record.ResponseBody) == 0 {
			a.logger.WithField("idempotency_key", record.Key).Warn("stored idempotent response is empty")
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}
		a.metrics.RecordIdempotency(idemReplayed)
		w.Header().Set(ReplayedHeader, "true")
		writeRaw(w, record.HTTPStatus, record.ResponseBody)
	default:
		a.logger.WithError(createErr).Warn("failed to create idempotency record")
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}

// storeResult сохраняет ответ: 2xx как done, остальное как failed.
// Заказы к этому моменту уже созданы, поэтому отключение клиента не отменяет сохранение.
func (a *API) storeResult(r *http.Request, key string, status int, body []byte) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), storeTimeout)
	defer cancel()

	var err error
	if status >= 200 && status < 300 {
		err = a.idem.MarkDone(ctx, key, body, status)
	} else {
		err = a.idem.MarkFailed(ctx, key, body, status)
	}
	if err != nil {
		a.logger.WithError(err).WithFields(log.Fields{
			"idempotency_key": key,
			"status":          status,
		}).Warn("failed to store idempotent response")
	}
}

// errorResponse работает как writeError, но возвращает ответ для сохранения.
func (a *API) errorResponse(r *http.Request, err error) (int, []byte) {
	resp, known := classify(err)
	if !known {
		a.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	return marshalResponse(resp.status, errorBody{Error: resp.message})
}

func marshalResponse(status int, payload any) (int, []byte) {
	data, err := json.Marshal(payload)
	if err != nil {
		return http.StatusInternalServerError, []byte(`{"error":"` + msgInternal + `"}`)
	}
	return status, data
}

func requestHash(r *http.Request, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method + " " + r.URL.Path + "\n"))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
