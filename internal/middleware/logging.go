package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Log — логгер middleware, по умолчанию ничего не пишет.
var Log = zap.NewNop().Sugar()

// SetLogger задаёт логгер для middleware.
func SetLogger(l *zap.SugaredLogger) {
	if l != nil {
		Log = l
	}
}

type responseData struct {
	status int
	size   int
}

type loggingResponseWriter struct {
	http.ResponseWriter
	data *responseData
}

func (w *loggingResponseWriter) Write(b []byte) (int, error) {
	size, err := w.ResponseWriter.Write(b)
	w.data.size += size
	return size, err
}

func (w *loggingResponseWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.data.status = statusCode
}

// WithLogging пишет метод, путь, статус, размер ответа и длительность запроса.
// Уровень зависит от статуса: 5xx — error, 4xx — warn, остальное — info.
// Тело запроса и query не логируются: в них могут быть имена файлов и описания улик.
func WithLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		data := &responseData{status: http.StatusOK}
		lw := &loggingResponseWriter{ResponseWriter: w, data: data}

		h.ServeHTTP(lw, r)

		fields := []any{
			"method", r.Method,
			"uri", r.URL.Path,
			"status", data.status,
			"size", data.size,
			"duration", time.Since(start),
		}
		switch {
		case data.status >= http.StatusInternalServerError:
			Log.Errorw("request", fields...)
		case data.status >= http.StatusBadRequest:
			Log.Warnw("request", fields...)
		default:
			Log.Infow("request", fields...)
		}
	})
}
