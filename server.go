package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"git.fiblab.net/sim/epidemic/simulation"
	"github.com/gorilla/mux"
)

// StatusServer serves the simulation state to renderers and lets an operator
// suspend the simulation loop between two steps.
type StatusServer struct {
	kernel *simulation.Kernel

	// 模拟运行true或暂停false
	ok bool
	// 条件变量
	cond *sync.Cond
}

func NewStatusServer(kernel *simulation.Kernel) *StatusServer {
	return &StatusServer{
		kernel: kernel,
		ok:     true, cond: sync.NewCond(&sync.Mutex{})}
}

func (s *StatusServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/positions", s.getPositions).Methods(http.MethodGet)
	r.HandleFunc("/history", s.getHistory).Methods(http.MethodGet)
	r.HandleFunc("/summary", s.getSummary).Methods(http.MethodGet)
	r.HandleFunc("/suspend", s.postSuspend).Methods(http.MethodPost)
	r.HandleFunc("/resume", s.postResume).Methods(http.MethodPost)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("write response: %v", err)
	}
}

func (s *StatusServer) getPositions(w http.ResponseWriter, r *http.Request) {
	snap := s.kernel.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"now":       snap.Now,
		"positions": snap.Positions,
	})
}

// getHistory supports ?from=<index> to fetch only the newer summaries.
func (s *StatusServer) getHistory(w http.ResponseWriter, r *http.Request) {
	history := s.kernel.Snapshot().History
	if v := r.URL.Query().Get("from"); v != "" {
		from, err := strconv.Atoi(v)
		if err != nil || from < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from: " + v})
			return
		}
		if from > len(history) {
			from = len(history)
		}
		history = history[from:]
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *StatusServer) getSummary(w http.ResponseWriter, r *http.Request) {
	snap := s.kernel.Snapshot()
	latest, _ := snap.Latest()
	writeJSON(w, http.StatusOK, map[string]any{
		"runId":     snap.RunID,
		"now":       snap.Now,
		"latest":    latest,
		"stats":     snap.Stats,
		"suspended": s.Suspended(),
	})
}

func (s *StatusServer) postSuspend(w http.ResponseWriter, r *http.Request) {
	s.Suspend()
	writeJSON(w, http.StatusOK, map[string]bool{"suspended": true})
}

func (s *StatusServer) postResume(w http.ResponseWriter, r *http.Request) {
	s.Resume()
	writeJSON(w, http.StatusOK, map[string]bool{"suspended": false})
}

// Wait blocks while the simulation is suspended.
func (s *StatusServer) Wait(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.cond.L.Lock()
		defer s.cond.L.Unlock()
		s.cond.Broadcast()
	})
	defer stop()
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	for !s.ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		// 暂停中
		s.cond.Wait()
	}
	return nil
}

// 暂停模拟
func (s *StatusServer) Suspend() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = false
}

// 恢复模拟
func (s *StatusServer) Resume() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = true
	s.cond.Broadcast()
}

func (s *StatusServer) Suspended() bool {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	return !s.ok
}
