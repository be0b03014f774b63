package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const maxResponseSize = 8 << 20

// RemoteStore talks to a store hosted by the freedomwall daemon: HTTP for
// appends and queries, a websocket per live subscription.
type RemoteStore struct {
	base   *url.URL
	client *http.Client
	dialer *websocket.Dialer
}

func NewRemoteStore(baseURL string, client *http.Client) (*RemoteStore, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteStore{
		base:   u,
		client: client,
		dialer: &websocket.Dialer{
			HandshakeTimeout:  10 * time.Second,
			EnableCompression: true,
		},
	}, nil
}

func (r *RemoteStore) endpoint(scheme string, collection, action string, query url.Values) string {
	u := *r.base
	if scheme != "" {
		u.Scheme = scheme
	}
	u.Path = r.base.Path + "/collections/" + url.PathEscape(collection) + "/" + action
	u.RawQuery = query.Encode()
	return u.String()
}

func (r *RemoteStore) Append(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := ValidateCollection(collection); err != nil {
		return "", err
	}
	body, err := json.Marshal(AppendRequest{Data: data})
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint("", collection, "records", nil), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp AppendResponse
	if err := r.do(req, http.StatusCreated, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (r *RemoteStore) QueryWhere(ctx context.Context, collection, field string, value any) ([]Record, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := ValidateField(field); err != nil {
		return nil, err
	}
	want, err := normalizeValue(value)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(want)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	q := url.Values{}
	q.Set("field", field)
	q.Set("equals", string(encoded))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint("", collection, "records", q), nil)
	if err != nil {
		return nil, err
	}

	var resp QueryResponse
	if err := r.do(req, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func (r *RemoteStore) do(req *http.Request, wantStatus int, out any) error {
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		var apiErr ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %d: %s", req.Method, req.URL.Path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (r *RemoteStore) SubscribeOrdered(collection, orderBy string, direction Direction, onChange func([]Record), onError func(error)) Unsubscribe {
	ctx, cancel := context.WithCancel(context.Background())
	rs := &remoteSubscription{cancel: cancel}

	go func() {
		err := rs.run(ctx, r, collection, orderBy, direction, onChange)
		if err != nil && ctx.Err() == nil && onError != nil {
			onError(err)
		}
	}()
	return rs.stop
}

type remoteSubscription struct {
	cancel context.CancelFunc

	mu   sync.Mutex
	conn *websocket.Conn
	once sync.Once
}

func (rs *remoteSubscription) stop() {
	rs.once.Do(func() {
		rs.cancel()
		rs.mu.Lock()
		defer rs.mu.Unlock()
		if rs.conn != nil {
			_ = rs.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = rs.conn.Close()
		}
	})
}

func (rs *remoteSubscription) run(ctx context.Context, r *RemoteStore, collection, orderBy string, direction Direction, onChange func([]Record)) error {
	if err := validateSubscription(collection, orderBy, direction); err != nil {
		return err
	}
	q := url.Values{}
	q.Set("orderBy", orderBy)
	q.Set("direction", string(direction))
	scheme := "ws"
	if r.base.Scheme == "https" {
		scheme = "wss"
	}

	conn, _, err := r.dialer.DialContext(ctx, r.endpoint(scheme, collection, "subscribe", q), nil)
	if err != nil {
		return fmt.Errorf("dial live feed: %w", err)
	}
	rs.mu.Lock()
	if ctx.Err() != nil {
		rs.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	rs.conn = conn
	rs.mu.Unlock()
	defer conn.Close()
	conn.SetReadLimit(maxResponseSize)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("live feed: %w", err)
		}
		var frame Frame
		if err := json.Unmarshal(msg, &frame); err != nil {
			return fmt.Errorf("decode live feed frame: %w", err)
		}
		switch frame.Type {
		case FrameSnapshot:
			if ctx.Err() != nil {
				return nil
			}
			if onChange != nil {
				onChange(frame.Records)
			}
		case FrameError:
			return errors.New(frame.Error)
		}
	}
}
