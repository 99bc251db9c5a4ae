package main

import (
	"errors"
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
)

// debugHandler serves the runtime profiles under /debug/pprof/. Named
// profiles such as heap, goroutine or block go through the index.
func debugHandler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	r.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	return r
}

// startHTTPDebugger 访问/debug/pprof/进入pprof实时分析页面
func startHTTPDebugger(addr string) *http.Server {
	server := &http.Server{Addr: addr, Handler: debugHandler()}
	go func() {
		log.Infof("pprof listening at %v", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("pprof server stopped: %v", err)
		}
	}()
	return server
}
