package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vbonduro/plantid/internal/gateway"
)

// Manager maps browser session IDs to controllers. The table is bounded;
// the least recently used session is evicted when full, and sessions idle
// longer than ttl expire. Evicted controllers are reset.
type Manager struct {
	gw       gateway.Gateway
	recorder Recorder
	logger   *slog.Logger
	cache    *expirable.LRU[string, *Controller]

	// inflight counts background work of every controller ever created,
	// including evicted ones that are still finishing.
	inflight sync.WaitGroup
}

func NewManager(gw gateway.Gateway, recorder Recorder, size int, ttl time.Duration, logger *slog.Logger) *Manager {
	m := &Manager{
		gw:       gw,
		recorder: recorder,
		logger:   logger,
	}
	m.cache = expirable.NewLRU[string, *Controller](size, m.evicted, ttl)
	return m
}

func (m *Manager) evicted(id string, c *Controller) {
	m.logger.Debug("session evicted", "session_id", id)
	c.Reset()
}

// Get returns the controller for id and refreshes its idle timer.
func (m *Manager) Get(id string) (*Controller, bool) {
	c, ok := m.cache.Get(id)
	if !ok {
		return nil, false
	}
	m.cache.Add(id, c)
	return c, true
}

func (m *Manager) Create() *Controller {
	id := uuid.NewString()
	c := NewController(id, m.gw, m.recorder, m.logger)
	c.tracker = &m.inflight
	m.cache.Add(id, c)
	m.logger.Debug("session created", "session_id", id)
	return c
}

func (m *Manager) Len() int {
	return m.cache.Len()
}

// Wait blocks until the background work of every session, live or
// evicted, has finished.
func (m *Manager) Wait() {
	m.inflight.Wait()
}
