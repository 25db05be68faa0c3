package client

import (
	"encoding/json"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vorma-dev/vorma/pkg/protocol"
)

// =============================================================================
// Scroll State
// =============================================================================

// ScrollState is either a coordinate pair or a reference to an element id.
type ScrollState struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Hash string  `json:"hash,omitempty"`
}

// IsHash reports whether the state refers to an element rather than
// coordinates.
func (s ScrollState) IsHash() bool {
	return s.Hash != ""
}

// pageRefreshScrollState survives a full page refresh via session storage.
type pageRefreshScrollState struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Unix int64   `json:"unix"`
	Href string  `json:"href"`
}

const (
	// scrollMapCapacity bounds the per-history-entry map; the oldest entry
	// is evicted when full.
	scrollMapCapacity = 50

	// pageRefreshMaxAge is how long a page-refresh position stays
	// restorable.
	pageRefreshMaxAge = 5 * time.Second
)

// ScrollStateStore persists per-history-entry scroll positions and the
// short-lived page-refresh position. It owns its session storage keys
// exclusively.
type ScrollStateStore struct {
	dom     DOM
	storage Storage
	entries *lru.Cache[string, ScrollState]
	now     func() time.Time
}

// NewScrollStateStore creates a store backed by the given session storage,
// loading any previously persisted map.
func NewScrollStateStore(dom DOM, storage Storage) *ScrollStateStore {
	cache, _ := lru.New[string, ScrollState](scrollMapCapacity)
	s := &ScrollStateStore{
		dom:     dom,
		storage: storage,
		entries: cache,
		now:     time.Now,
	}
	s.load()
	return s
}

// Save records the scroll state for a history entry key.
func (s *ScrollStateStore) Save(key string, state ScrollState) {
	s.entries.Add(key, state)
	s.persist()
}

// SaveCurrent captures the live viewport position for a history entry key.
func (s *ScrollStateStore) SaveCurrent(key string) {
	x, y := s.dom.ScrollPosition()
	s.Save(key, ScrollState{X: x, Y: y})
}

// Get returns the saved state for a history entry key. Reads go through
// Peek so restores never perturb recency; with reads recency-neutral,
// insertion order is eviction order and the oldest entry goes first.
func (s *ScrollStateStore) Get(key string) (ScrollState, bool) {
	return s.entries.Peek(key)
}

// Len returns the number of saved entries.
func (s *ScrollStateStore) Len() int {
	return s.entries.Len()
}

// SavePageRefreshState writes the short-lived refresh position. The host
// calls this from its beforeunload hook.
func (s *ScrollStateStore) SavePageRefreshState() {
	x, y := s.dom.ScrollPosition()
	record := pageRefreshScrollState{
		X:    x,
		Y:    y,
		Unix: s.now().Unix(),
		Href: s.dom.Href(),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return
	}
	s.storage.Set(protocol.StoragePageRefreshScrollState, string(raw))
}

// RestoreOnInit restores the page-refresh position when it targets the
// current URL and is under five seconds old, on the next animation frame,
// deleting the record afterwards. Stale or mismatched records are left in
// place until they age out or are overwritten.
func (s *ScrollStateStore) RestoreOnInit() {
	raw, ok := s.storage.Get(protocol.StoragePageRefreshScrollState)
	if !ok {
		return
	}
	var record pageRefreshScrollState
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		s.storage.Remove(protocol.StoragePageRefreshScrollState)
		return
	}
	if record.Href != s.dom.Href() {
		return
	}
	age := s.now().Unix() - record.Unix
	if age < 0 || age >= int64(pageRefreshMaxAge/time.Second) {
		return
	}
	s.dom.RequestAnimationFrame(func() {
		s.dom.ScrollTo(record.X, record.Y)
	})
	s.storage.Remove(protocol.StoragePageRefreshScrollState)
}

// Apply performs a scroll-state hint. A coordinate state scrolls to its
// position; a hash state scrolls its element into view; nil falls back to
// the fragment of the current location when one is present.
func (s *ScrollStateStore) Apply(state *ScrollState) {
	if state == nil {
		if hash := currentHash(s.dom.Href()); hash != "" {
			s.dom.ScrollToID(hash)
		}
		return
	}
	if state.IsHash() {
		s.dom.ScrollToID(strings.TrimPrefix(state.Hash, "#"))
		return
	}
	s.dom.ScrollTo(state.X, state.Y)
}

func (s *ScrollStateStore) load() {
	raw, ok := s.storage.Get(protocol.StorageScrollStateMap)
	if !ok {
		return
	}
	var pairs []scrollMapPair
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		s.storage.Remove(protocol.StorageScrollStateMap)
		return
	}
	for _, p := range pairs {
		s.entries.Add(p.Key, p.State)
	}
}

func (s *ScrollStateStore) persist() {
	keys := s.entries.Keys() // oldest to newest
	pairs := make([]scrollMapPair, 0, len(keys))
	for _, k := range keys {
		if state, ok := s.entries.Peek(k); ok {
			pairs = append(pairs, scrollMapPair{Key: k, State: state})
		}
	}
	raw, err := json.Marshal(pairs)
	if err != nil {
		return
	}
	s.storage.Set(protocol.StorageScrollStateMap, string(raw))
}

// scrollMapPair is the persisted [key, state] tuple. It marshals as a
// two-element array to keep the storage format compact and ordered.
type scrollMapPair struct {
	Key   string
	State ScrollState
}

func (p scrollMapPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Key, p.State})
}

func (p *scrollMapPair) UnmarshalJSON(data []byte) error {
	var parts [2]json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if err := json.Unmarshal(parts[0], &p.Key); err != nil {
		return err
	}
	return json.Unmarshal(parts[1], &p.State)
}

// currentHash extracts the fragment of an href, without the "#".
func currentHash(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 && i+1 < len(href) {
		return href[i+1:]
	}
	return ""
}
