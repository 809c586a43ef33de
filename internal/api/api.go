// Package api is the HTTP shell: exactly three routes (spec.md §6), trimmed
// from the teacher's broader server.go/handlers.go surface (no auth, no
// CORS, no health/stats/favicon machinery — none of that is named by the
// specification).
package api

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feedgen/feedgen/internal/errs"
	"github.com/feedgen/feedgen/internal/feedsurface"
)

// Scheduler is the subset of *schedule.Scheduler the HTTP layer needs.
type Scheduler interface {
	Trigger(name string) (known, enabled bool)
}

// Server wraps the gin engine.
type Server struct {
	engine *gin.Engine
}

// New builds the HTTP server with its three routes wired against surface
// and scheduler. logger follows the teacher's slog.Error-then-status
// convention on every handler failure path: no JSON error bodies.
func New(surface *feedsurface.Surface, scheduler Scheduler, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	h := &handler{surface: surface, scheduler: scheduler, logger: logger}
	r.GET("/", h.index)
	r.GET("/feeds/:name", h.getFeed)
	r.POST("/feeds/:name/update", h.triggerUpdate)

	return &Server{engine: r}
}

// Run blocks serving on addr until ctx is cancelled, matching the shape
// oklog/run.Group expects of an actor's execute func.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

type handler struct {
	surface   *feedsurface.Surface
	scheduler Scheduler
	logger    *slog.Logger
}

func (h *handler) index(c *gin.Context) {
	metas, err := h.surface.Index(c.Request.Context())
	if err != nil {
		h.logger.Error("could not list feeds for index", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, struct{ Feeds []feedsurface.Meta }{metas}); err != nil {
		h.logger.Error("could not render index page", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (h *handler) getFeed(c *gin.Context) {
	name := c.Param("name")

	meta, entries, err := h.surface.Get(c.Request.Context(), name)
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		h.logger.Error("could not load feed", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	feedURL := fmt.Sprintf("%s://%s/feeds/%s", schemeOf(c.Request), c.Request.Host, name)
	rss, err := feedsurface.RenderRSS(feedURL, meta, entries)
	if err != nil {
		h.logger.Error("could not render feed", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

func (h *handler) triggerUpdate(c *gin.Context) {
	name := c.Param("name")

	known, enabled := h.scheduler.Trigger(name)
	switch {
	case !known:
		c.Status(http.StatusNotFound)
	case !enabled:
		c.Status(http.StatusConflict)
	default:
		c.Status(http.StatusAccepted)
	}
}

func schemeOf(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>feedgen</title></head>
<body>
<h1>feedgen</h1>
<ul>
{{range .Feeds}}
  <li><a href="/feeds/{{.Name}}">{{.Name}}</a>{{if not .Enabled}} (disabled){{end}}{{if .LastUpdated}} &mdash; last updated {{.LastUpdated.Format "2006-01-02 15:04:05 MST"}}{{end}}</li>
{{else}}
  <li>no feeds configured</li>
{{end}}
</ul>
</body>
</html>
`))
