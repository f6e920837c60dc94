package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gopsproc "github.com/shirou/gopsutil/v4/process"

	"llmstack/internal/metrics"
	"llmstack/internal/orchestrator"
)

// StatusSource is the read-only view of a run the API exposes.
type StatusSource interface {
	Phase() orchestrator.Phase
	Snapshot() []orchestrator.ServiceStatus
}

// Router provides the launcher's read-only HTTP surface.
// Endpoints:
//
//	GET /healthz  liveness of the launcher itself
//	GET /status   run phase plus per-service state, pid, rss
//	GET /metrics  Prometheus metrics
type Router struct {
	src StatusSource
}

func NewRouter(src StatusSource) *Router { return &Router{src: src} }

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/healthz", r.handleHealthz)
	g.GET("/status", r.handleStatus)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, src StatusSource) *http.Server {
	r := NewRouter(src)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

type serviceView struct {
	orchestrator.ServiceStatus
	RSSBytes uint64 `json:"rss_bytes,omitempty"`
}

type statusResp struct {
	Phase    string        `json:"phase"`
	Services []serviceView `json:"services"`
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) handleStatus(c *gin.Context) {
	snap := r.src.Snapshot()
	views := make([]serviceView, 0, len(snap))
	for _, s := range snap {
		views = append(views, serviceView{ServiceStatus: s, RSSBytes: rssOf(s.PID)})
	}
	c.JSON(http.StatusOK, statusResp{Phase: r.src.Phase().String(), Services: views})
}

// rssOf reports resident memory of a running service; 0 when unavailable.
func rssOf(pid int) uint64 {
	if pid <= 0 {
		return 0
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	mi, err := p.MemoryInfo()
	if err != nil || mi == nil {
		return 0
	}
	return mi.RSS
}
