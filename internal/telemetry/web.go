package telemetry

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lokutor-ai/voiceassistant/internal/obslog"
)

const (
	defaultSessionsLimit = 50
	maxSessionsLimit     = 200
)

// WebServer is the read-only telemetry dashboard (C10). It opens its own
// read-only *sql.DB handle onto the same file the Store writes, per
// spec.md §5's "HTTP service uses its own read-only handle" policy — no
// connection is shared with Store.
type WebServer struct {
	db     *sql.DB
	engine *gin.Engine
	srv    *http.Server
	logger obslog.Logger
}

// NewWebServer opens a read-only connection to the SQLite file at path and
// builds the routes from spec.md §4.10.
func NewWebServer(path, addr string, logger obslog.Logger) (*WebServer, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	ws := &WebServer{db: db, engine: engine, logger: obslog.Default(logger)}
	ws.routes()
	ws.srv = &http.Server{Addr: addr, Handler: engine}
	return ws, nil
}

func (ws *WebServer) routes() {
	ws.engine.GET("/", ws.handleDashboard)
	ws.engine.GET("/api/stats", ws.handleStats)
	ws.engine.GET("/api/sessions", ws.handleListSessions)
	ws.engine.GET("/api/sessions/:id", ws.handleSessionDetail)
	ws.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}

func (ws *WebServer) handleDashboard(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(dashboardHTML))
}

func (ws *WebServer) handleStats(c *gin.Context) {
	stats, err := QueryStats(ws.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (ws *WebServer) handleListSessions(c *gin.Context) {
	limit := parseIntDefault(c.Query("limit"), defaultSessionsLimit)
	if limit > maxSessionsLimit {
		limit = maxSessionsLimit
	}
	if limit < 0 {
		limit = defaultSessionsLimit
	}
	offset := parseIntDefault(c.Query("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	summaries, err := QuerySessions(ws.db, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": summaries, "limit": limit, "offset": offset})
}

func (ws *WebServer) handleSessionDetail(c *gin.Context) {
	id := c.Param("id")
	sess, err := QuerySessionDetail(ws.db, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// Serve starts the HTTP listener in the background (C10's dedicated
// telemetry thread, per spec.md §5). It returns immediately; errors from
// ListenAndServe after Shutdown has been called are swallowed.
func (ws *WebServer) Serve() {
	go func() {
		if err := ws.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error("telemetry web server exited", "error", err)
		}
	}()
}

// Shutdown gracefully stops the HTTP listener and closes the read-only
// database handle.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	if err := ws.srv.Shutdown(ctx); err != nil {
		return err
	}
	return ws.db.Close()
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head><title>Voice Assistant Telemetry</title></head>
<body>
<h1>Voice Assistant Telemetry</h1>
<p>See <a href="/api/stats">/api/stats</a> and <a href="/api/sessions">/api/sessions</a>.</p>
</body>
</html>`
