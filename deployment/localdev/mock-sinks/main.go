// mock-sinks is a local stand-in for the alert and batch webhook
// receivers. Point the engine's sink URLs at it and watch deliveries
// arrive on stdout.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/sinks/errors", receive("error-batch", func(payload map[string]any) string {
		if errs, ok := payload["errors"].([]any); ok {
			return "records=" + strconv.Itoa(len(errs))
		}
		return "records=0"
	}))
	mux.HandleFunc("/sinks/critical", receive("critical-alert", func(payload map[string]any) string {
		return "type=" + str(payload["type"])
	}))
	mux.HandleFunc("/sinks/security", receive("security-alert", func(payload map[string]any) string {
		return "threat=" + str(payload["type"]) + " severity=" + str(payload["severity"])
	}))
	mux.HandleFunc("/sinks/incidents", receive("incident-alert", func(payload map[string]any) string {
		return "incident=" + str(payload["id"]) + " severity=" + str(payload["severity"])
	}))

	logger := log.New(log.Writer(), "mock-sinks ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":9090",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :9090")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func receive(kind string, summarize func(map[string]any) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		log.Printf("received %s %s", kind, summarize(payload))
		w.WriteHeader(http.StatusAccepted)
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
