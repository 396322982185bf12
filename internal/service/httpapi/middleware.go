package httpapi

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// UserIDHeader — заголовок с идентификатором пользователя, который выставляет шлюз.
const UserIDHeader = "X-User-ID"

type userHandler func(w http.ResponseWriter, r *http.Request, userID int64)

// requireUser читает X-User-ID; без валидного положительного id запрос получает 401.
func (a *API) requireUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
		userID, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || userID <= 0 {
			writeMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r, userID)
	}
}

// statusRecorder запоминает код ответа для логов и метрик.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// instrument пишет access-лог и метрики с шаблоном маршрута в качестве метки.
func (a *API) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		a.metrics.RequestStarted()
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		elapsed := time.Since(start)
		a.metrics.RequestFinished(r.Method, route, rec.status, elapsed)

		entry := a.logger.WithFields(log.Fields{
			"method":      r.Method,
			"route":       route,
			"status":      rec.status,
			"duration_ms": elapsed.Milliseconds(),
		})
		if userID := r.Header.Get(UserIDHeader); userID != "" {
			entry = entry.WithField("user_id", userID)
		}
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("http request failed")
			return
		}
		entry.Debug("http request")
	})
}

// recoverPanics превращает панику обработчика в 500.
func (a *API) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				a.logger.WithFields(log.Fields{
					"panic": p,
					"path":  r.URL.Path,
					"stack": string(debug.Stack()),
				}).Error("http handler panicked")
				writeMessage(w, http.StatusInternalServerError, msgInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
