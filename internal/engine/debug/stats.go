// Package debug serves live cache diagnostics over HTTP.
package debug

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/radiant/internal/engine/surfacecache"
	"github.com/Faultbox/radiant/internal/logger"
)

// StatsMessage is one frame's cache snapshot as served to clients.
type StatsMessage struct {
	Frame uint32 `json:"frame"`

	PrimitiveGroups int32 `json:"primitiveGroups"`
	MeshCards       int32 `json:"meshCards"`
	Cards           int32 `json:"cards"`
	Heightfields    int32 `json:"heightfields"`

	PageTableEntries int32 `json:"pageTableEntries"`
	MappedPages      int32 `json:"mappedPages"`
	LockedPages      int32 `json:"lockedPages"`
	FreePages        int32 `json:"freePages"`

	BinPages          int32 `json:"binPages"`
	BinSubAllocations int32 `json:"binSubAllocations"`
	BinWastedTexels   int64 `json:"binWastedTexels"`

	Captures       int32 `json:"captures"`
	LockedCaptures int32 `json:"lockedCaptures"`
	HiResCaptures  int32 `json:"hiResCaptures"`
	Refreshes      int32 `json:"refreshes"`
	Evictions      int32 `json:"evictions"`
}

func makeMessage(stats surfacecache.SceneStats, update *surfacecache.CaptureUpdate) StatsMessage {
	msg := StatsMessage{
		Frame:             stats.FrameIndex,
		PrimitiveGroups:   stats.NumPrimitiveGroups,
		MeshCards:         stats.NumMeshCards,
		Cards:             stats.NumCards,
		Heightfields:      stats.NumHeightfields,
		PageTableEntries:  stats.NumPageTableEntries,
		MappedPages:       stats.NumMappedPages,
		LockedPages:       stats.NumLockedPages,
		FreePages:         stats.Allocator.NumFreePages,
		BinPages:          stats.Allocator.BinNumPages,
		BinSubAllocations: stats.Allocator.BinNumSubAllocations,
		BinWastedTexels:   stats.Allocator.BinWastedTexels,
	}
	if update != nil {
		msg.Captures = int32(len(update.Pages))
		msg.LockedCaptures = update.NumLockedCaptures
		msg.HiResCaptures = update.NumHiResCaptures
		msg.Refreshes = update.NumRefreshes
		msg.Evictions = update.NumEvictions
	}
	return msg
}

// StatsServer pushes per-frame cache stats to websocket clients and
// serves the latest snapshot as plain JSON on /stats.
type StatsServer struct {
	upgrader websocket.Upgrader
	srv      *http.Server

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
	latest  StatsMessage
}

// NewStatsServer binds the server to addr without starting it.
func NewStatsServer(addr string) *StatsServer {
	s := &StatsServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/stats", s.handleStats)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start listens in the background. Errors after startup are logged.
func (s *StatsServer) Start() {
	logger.Info("stats server listening", zap.String("addr", s.srv.Addr))
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("stats server failed", zap.Error(err))
		}
	}()
}

// Publish broadcasts one frame's snapshot to every connected client.
func (s *StatsServer) Publish(stats surfacecache.SceneStats, update *surfacecache.CaptureUpdate) {
	msg := makeMessage(stats, update)

	s.mu.Lock()
	s.latest = msg
	s.mu.Unlock()

	s.mu.RLock()
	var failed []*websocket.Conn
	for conn, connMu := range s.clients {
		connMu.Lock()
		err := conn.WriteJSON(msg)
		connMu.Unlock()
		if err != nil {
			conn.Close()
			failed = append(failed, conn)
		}
	}
	s.mu.RUnlock()

	if len(failed) > 0 {
		s.mu.Lock()
		for _, conn := range failed {
			delete(s.clients, conn)
		}
		s.mu.Unlock()
	}
}

// Close stops the listener and drops all clients.
func (s *StatsServer) Close() error {
	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]*sync.Mutex)
	s.mu.Unlock()
	return s.srv.Close()
}

func (s *StatsServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connMu := &sync.Mutex{}
	s.mu.Lock()
	latest := s.latest
	s.clients[conn] = connMu
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	connMu.Lock()
	err = conn.WriteJSON(latest)
	connMu.Unlock()
	if err != nil {
		return
	}

	// Clients only listen; drain until the connection drops.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *StatsServer) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(latest); err != nil {
		logger.Warn("stats encode failed", zap.Error(err))
	}
}
