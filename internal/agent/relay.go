package agent

import (
	"context"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"safenest-backend/internal/models"
)

const (
	relaySweepInterval = 60 * time.Second
	relayStaleAfter    = 5 * time.Minute
)

// LedgerSink delivers one flush payload to the activity ledger.
type LedgerSink interface {
	LogTime(ctx context.Context, req models.LogTimeRequest) (*models.LogTimeResponse, error)
}

type bufferedFlush struct {
	payload    models.LogTimeRequest
	bufferedAt time.Time
}

// TabRelay holds the latest flush per browser tab and guarantees delivery on
// tab close or navigation away, even when the page's own unload handler
// never ran. Only the newest payload per tab is kept; an older unflushed
// delta is superseded, an accepted lossy simplification.
type TabRelay struct {
	mu   sync.Mutex
	tabs map[int]bufferedFlush

	sink     LedgerSink
	fallback LedgerSink
	now      func() time.Time

	sweepInterval time.Duration
	staleAfter    time.Duration
	stopChan      chan struct{}
}

// NewTabRelay builds a relay delivering through sink, with an optional
// direct-send fallback tried once when sink delivery fails. Either may be
// nil-free; further failures drop the payload (telemetry, not a ledger of
// record).
func NewTabRelay(sink, fallback LedgerSink) *TabRelay {
	return &TabRelay{
		tabs:          make(map[int]bufferedFlush),
		sink:          sink,
		fallback:      fallback,
		now:           time.Now,
		sweepInterval: relaySweepInterval,
		staleAfter:    relayStaleAfter,
		stopChan:      make(chan struct{}),
	}
}

// Buffer records the latest flush for a tab, replacing any previous one.
func (r *TabRelay) Buffer(tabID int, payload models.LogTimeRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tabs[tabID] = bufferedFlush{payload: payload, bufferedAt: r.now()}
}

// OnTabClosed delivers and discards the tab's buffered payload, if any.
func (r *TabRelay) OnTabClosed(ctx context.Context, tabID int) {
	if payload, ok := r.take(tabID); ok {
		r.deliver(ctx, payload)
	}
}

// OnNavigated treats leaving the search-results page as an implicit session
// end: if the new URL is not a recognized results page, the buffered payload
// is delivered and discarded.
func (r *TabRelay) OnNavigated(ctx context.Context, tabID int, newURL string) {
	if IsSearchResultsPage(newURL) {
		return
	}
	if payload, ok := r.take(tabID); ok {
		r.deliver(ctx, payload)
	}
}

// Start runs the periodic sweep delivering payloads from tabs that silently
// stopped reporting, bounding buffer memory.
func (r *TabRelay) Start() {
	go func() {
		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stopChan:
				return
			case <-ticker.C:
				r.sweep(context.Background())
			}
		}
	}()
}

func (r *TabRelay) Stop() {
	select {
	case <-r.stopChan:
		return
	default:
		close(r.stopChan)
	}
}

func (r *TabRelay) sweep(ctx context.Context) {
	cutoff := r.now().Add(-r.staleAfter)

	r.mu.Lock()
	stale := []models.LogTimeRequest{}
	for tabID, entry := range r.tabs {
		if entry.bufferedAt.Before(cutoff) {
			stale = append(stale, entry.payload)
			delete(r.tabs, tabID)
		}
	}
	r.mu.Unlock()

	for _, payload := range stale {
		r.deliver(ctx, payload)
	}
}

func (r *TabRelay) take(tabID int) (models.LogTimeRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.tabs[tabID]
	if ok {
		delete(r.tabs, tabID)
	}
	return entry.payload, ok
}

func (r *TabRelay) deliver(ctx context.Context, payload models.LogTimeRequest) {
	if r.sink != nil {
		if _, err := r.sink.LogTime(ctx, payload); err == nil {
			return
		} else {
			log.Printf("relay: delivery failed, trying direct send: %v", err)
		}
	}

	if r.fallback != nil {
		if _, err := r.fallback.LogTime(ctx, payload); err != nil {
			log.Printf("relay: direct send failed, dropping payload for %q: %v", payload.Query, err)
		}
	}
}

// Engines whose result pages keep a session alive during same-engine
// navigation (pagination, tab switches within the engine). Hosts are matched
// exactly after stripping a leading "www.", never by prefix, so a lookalike
// host cannot keep a session alive.
var searchHosts = map[string]bool{
	"bing.com":         true,
	"search.yahoo.com": true,
	"duckduckgo.com":   true,
	"yandex.com":       true,
	"yandex.ru":        true,
	"search.brave.com": true,
	"ecosia.org":       true,
}

func isSearchHost(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if searchHosts[host] {
		return true
	}
	return isGoogleHost(host)
}

// isGoogleHost matches google.com and its country domains (google.de,
// google.co.uk) without accepting hosts that merely begin with "google."
// (google.evil.example). Public-suffix labels are short; anything longer or
// deeper is not Google.
func isGoogleHost(host string) bool {
	suffix, ok := strings.CutPrefix(host, "google.")
	if !ok {
		return false
	}
	labels := strings.Split(suffix, ".")
	if len(labels) > 2 {
		return false
	}
	for _, label := range labels {
		if label == "" || len(label) > 3 {
			return false
		}
	}
	return true
}

// IsSearchResultsPage reports whether a URL looks like a search-engine
// results page.
func IsSearchResultsPage(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	if !isSearchHost(u.Host) {
		return false
	}

	q := u.Query()
	return u.Path == "/search" || q.Get("q") != "" || q.Get("p") != "" || q.Get("text") != ""
}
