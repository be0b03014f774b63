package controllers

import (
	"errors"
	"freedomwall/internal/docstore"
	"freedomwall/internal/providers"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB
	writeWait          = 10 * time.Second
)

// StoreController exposes a docstore.Backend over HTTP and websockets.
type StoreController struct {
	logger   providers.Logger
	store    docstore.Backend
	cache    providers.CacheProviderInterface
	metrics  providers.MetricsProviderInterface
	upgrader websocket.Upgrader
}

func NewStoreController(logger providers.Logger, store docstore.Backend, cache providers.CacheProviderInterface, metrics providers.MetricsProviderInterface) *StoreController {
	return &StoreController{
		logger:  logger,
		store:   store,
		cache:   cache,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    1024,
			WriteBufferSize:   4096,
			EnableCompression: true,
			CheckOrigin:       func(*http.Request) bool { return true },
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, docstore.ErrInvalidCollection),
		errors.Is(err, docstore.ErrInvalidField),
		errors.Is(err, docstore.ErrInvalidDirection),
		errors.Is(err, docstore.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, docstore.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (sc *StoreController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		sc.logger.Errorf(providers.GetLogTypeByRequestType(r.Method), "%s %s: %s", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, docstore.ErrorResponse{Error: err.Error()})
}

func (sc *StoreController) serveFromCacheOrCompute(w http.ResponseWriter, r *http.Request, cacheKey string, compute func() (any, error)) {
	if data, ok := sc.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		sc.writeError(w, r, err)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sc.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func (sc *StoreController) Append(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload docstore.AppendRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if payload.Data == nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	id, err := sc.store.Append(r.Context(), collection, payload.Data)
	sc.metrics.IncAppendsTotal(collection, err == nil)
	if err != nil {
		sc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, docstore.AppendResponse{ID: id})
}

// Query answers equality queries. The equals parameter is a JSON scalar, so
// "true" and "\"true\"" are different queries.
func (sc *StoreController) Query(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	q := r.URL.Query()
	field := q.Get("field")
	raw := q.Get("equals")

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		writeJSON(w, http.StatusBadRequest, docstore.ErrorResponse{Error: docstore.ErrInvalidValue.Error()})
		return
	}

	cacheKey := providers.QueryCacheKey(collection, sc.store.Revision(collection), field, raw)
	sc.serveFromCacheOrCompute(w, r, cacheKey, func() (any, error) {
		records, err := sc.store.QueryWhere(r.Context(), collection, field, value)
		if err != nil {
			return nil, err
		}
		if records == nil {
			records = []docstore.Record{}
		}
		return docstore.QueryResponse{Records: records}, nil
	})
}

// Subscribe upgrades to a websocket and streams ordered snapshots until the
// client goes away or the store reports an error.
func (sc *StoreController) Subscribe(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	q := r.URL.Query()
	orderBy := q.Get("orderBy")
	if orderBy == "" {
		orderBy = docstore.FieldCreatedAt
	}
	direction, err := docstore.ParseDirection(q.Get("direction"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, docstore.ErrorResponse{Error: err.Error()})
		return
	}
	if err := docstore.ValidateCollection(collection); err != nil {
		writeJSON(w, http.StatusBadRequest, docstore.ErrorResponse{Error: err.Error()})
		return
	}
	if orderBy != docstore.FieldCreatedAt {
		if err := docstore.ValidateField(orderBy); err != nil {
			writeJSON(w, http.StatusBadRequest, docstore.ErrorResponse{Error: err.Error()})
			return
		}
	}

	conn, err := sc.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sc.logger.Warnf(providers.TypeGet, "Websocket upgrade failed: %s", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(frame docstore.Frame) error {
		msg, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, msg)
	}

	failed := make(chan struct{})
	var failOnce sync.Once
	unsubscribe := sc.store.SubscribeOrdered(collection, orderBy, direction,
		func(records []docstore.Record) {
			if err := send(docstore.Frame{Type: docstore.FrameSnapshot, Records: records}); err != nil {
				sc.logger.Debugf(providers.TypeGet, "Live feed write failed: %s", err)
			}
		},
		func(err error) {
			sc.logger.Warnf(providers.TypeGet, "Live feed of %s ended: %s", collection, err)
			_ = send(docstore.Frame{Type: docstore.FrameError, Error: err.Error()})
			failOnce.Do(func() { close(failed) })
		})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-closed:
	case <-failed:
		writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		writeMu.Unlock()
	case <-r.Context().Done():
	}
}
