package fluidity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/crimson-sun/fluidity/internal/client"
	"github.com/crimson-sun/fluidity/internal/httpclient"
	"github.com/crimson-sun/fluidity/internal/logging"
	"github.com/crimson-sun/fluidity/internal/model"
)

// ErrProtocol reports a stream that did not start with a history frame.
var ErrProtocol = errors.New("fluidity: unexpected frame")

// Watcher follows one server's packet stream.
type Watcher struct {
	url   string
	o     options
	store *client.Store
}

// NewWatcher prepares a Watcher for the server at baseURL.
func NewWatcher(baseURL string, opts ...Option) *Watcher {
	o := options{dialer: websocket.DefaultDialer}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrDefault(o.logger)

	f := client.NewFilter()
	for _, s := range o.sites {
		f.Set(client.DimSite, s, true)
	}
	for _, c := range o.collectors {
		f.Set(client.DimCollector, c, true)
	}
	store := client.NewStore(
		client.WithFilter(f),
		client.WithRenderer(o.renderer),
		client.WithLogger(o.logger),
	)
	return &Watcher{url: baseURL, o: o, store: store}
}

// Filter returns the watcher's filter engine, for toggling filters while
// the stream runs.
func (w *Watcher) Filter() *client.Filter { return w.store.Filter() }

// Run connects, places the history batch, then places live packets until
// ctx is cancelled or the connection ends. A Watcher runs once.
func (w *Watcher) Run(ctx context.Context) error {
	wsURL, err := streamURL(w.url)
	if err != nil {
		return err
	}
	header := http.Header{}
	if w.o.key != "" {
		header.Set("Authorization", "Bearer "+w.o.key)
	}

	conn, _, err := w.o.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("fluidity: dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var first model.Frame
	if err := conn.ReadJSON(&first); err != nil {
		return w.readErr(ctx, err)
	}
	if first.Type != model.FrameHistory {
		return fmt.Errorf("%w: %q before history", ErrProtocol, first.Type)
	}
	if err := w.store.Initialize(first.Packets); err != nil {
		return err
	}
	w.o.logger.Info("watching", "url", wsURL, "history", len(first.Packets))

	for {
		var f model.Frame
		if err := conn.ReadJSON(&f); err != nil {
			return w.readErr(ctx, err)
		}
		if f.Type != model.FramePacket || f.Packet == nil {
			w.o.logger.Debug("ignored frame", "type", f.Type)
			continue
		}
		if _, err := w.store.OnLivePacket(*f.Packet); err != nil {
			return err
		}
	}
}

func (w *Watcher) readErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return fmt.Errorf("fluidity: read: %w", err)
}

// Watch follows the server at baseURL until ctx is cancelled.
func Watch(ctx context.Context, baseURL string, opts ...Option) error {
	return NewWatcher(baseURL, opts...).Run(ctx)
}

// History fetches the server's history, oldest first.
func History(ctx context.Context, baseURL, key string) ([]Packet, error) {
	var packets []Packet
	if err := httpclient.New(baseURL, key).GetJSON(ctx, "/FIFO", nil, &packets); err != nil {
		return nil, fmt.Errorf("fluidity: history: %w", err)
	}
	return packets, nil
}

// streamURL maps an http(s) base URL to the websocket endpoint.
func streamURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("fluidity: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("fluidity: unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	} else if !strings.HasSuffix(u.Path, "/ws") {
		u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	}
	return u.String(), nil
}
