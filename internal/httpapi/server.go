package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"logvault/internal/core"
	"logvault/internal/domain"
	"logvault/internal/ingest"
	"logvault/internal/storage"

	"github.com/gin-gonic/gin"
)

type Config struct {
	ListenAddr string

	// AuthToken, when set, requires every request to carry it as a bearer
	// token. Token issuance lives elsewhere; the API only checks it.
	AuthToken string

	// Now supplies the reference instant for interval resolution. Defaults
	// to time.Now; tests inject a fixed clock.
	Now func() time.Time
}

type Server struct {
	cfg    Config
	engine *gin.Engine
	store  storage.Store
	gate   *ingest.Gate
}

func New(cfg Config, store storage.Store, gate *ingest.Gate) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{cfg: cfg, engine: engine, store: store, gate: gate}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.engine.Group("/", s.authenticate())

	r.GET("/logs", s.listLogs)
	r.POST("/logs", s.createLog)
	r.POST("/logs/batch", s.createLogBatch)
	r.POST("/logs/recount", s.recountLogs)

	// gin's router does not allow literal siblings next to :id, so the
	// aggregate endpoints dispatch through the same parameter route.
	r.GET("/logs/:id", s.getLogOrAggregate)
	r.PUT("/logs/:id", s.updateLog)
	r.PATCH("/logs/:id", s.patchLog)
	r.DELETE("/logs/:id", s.deleteLog)
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AuthToken == "" {
			c.Next()
			return
		}
		if c.GetHeader("Authorization") != "Bearer "+s.cfg.AuthToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}
		c.Next()
	}
}

// Handler exposes the engine for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Start runs the server. Blocks until the server is stopped.
func (s *Server) Start() error {
	return s.engine.Run(s.cfg.ListenAddr)
}

// recordPayload is the JSON shape of a log record on the wire.
type recordPayload struct {
	ID            int64  `json:"id,omitempty"`
	GroupName     string `json:"groupName"`
	StreamName    string `json:"streamName"`
	Owner         int64  `json:"owner"`
	Timestamp     string `json:"timestamp"`
	Message       string `json:"message"`
	IngestionTime int64  `json:"ingestionTime"`
}

func toPayload(r domain.LogRecord) recordPayload {
	return recordPayload{
		ID:            r.ID,
		GroupName:     r.GroupName,
		StreamName:    r.StreamName,
		Owner:         r.Owner,
		Timestamp:     r.Timestamp.Format(time.RFC3339Nano),
		Message:       r.Message,
		IngestionTime: r.IngestionTime,
	}
}

func toPayloads(records []domain.LogRecord) []recordPayload {
	out := make([]recordPayload, 0, len(records))
	for _, r := range records {
		out = append(out, toPayload(r))
	}
	return out
}

func (p recordPayload) toRecord() (domain.LogRecord, error) {
	r := domain.LogRecord{
		ID:            p.ID,
		GroupName:     p.GroupName,
		StreamName:    p.StreamName,
		Owner:         p.Owner,
		Message:       p.Message,
		IngestionTime: p.IngestionTime,
	}
	if p.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
		if err != nil {
			return domain.LogRecord{}, &ingest.ValidationError{Fields: map[string]string{"timestamp": "must be an ISO-8601 instant"}}
		}
		r.Timestamp = ts
	}
	return r, nil
}

func (s *Server) listLogs(c *gin.Context) {
	f := core.Filter{}
	if period := c.Query("period"); period != "" {
		iv, err := core.ResolvePeriod(period, s.cfg.Now())
		if err != nil {
			writeError(c, err)
			return
		}
		f.Start, f.End, f.HasRange = iv.Start, iv.End, true
	}
	records, err := s.store.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPayloads(records))
}

func (s *Server) createLog(c *gin.Context) {
	var in recordPayload
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body: " + err.Error()})
		return
	}
	r, err := in.toRecord()
	if err != nil {
		writeError(c, err)
		return
	}
	stored, err := s.gate.Ingest(c.Request.Context(), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPayload(stored))
}

func (s *Server) createLogBatch(c *gin.Context) {
	var in []recordPayload
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body: " + err.Error()})
		return
	}
	records := make([]domain.LogRecord, len(in))
	errs := make([]error, len(in))
	for i, p := range in {
		records[i], errs[i] = p.toRecord()
	}

	type itemResult struct {
		Record *recordPayload `json:"record,omitempty"`
		Error  string         `json:"error,omitempty"`
	}
	out := make([]itemResult, len(in))
	accepted := 0
	for i := range in {
		if errs[i] != nil {
			out[i] = itemResult{Error: errs[i].Error()}
			continue
		}
		stored, err := s.gate.Ingest(c.Request.Context(), records[i])
		if err != nil {
			out[i] = itemResult{Error: err.Error()}
			continue
		}
		p := toPayload(stored)
		out[i] = itemResult{Record: &p}
		accepted++
	}
	c.JSON(http.StatusOK, gin.H{"accepted": accepted, "rejected": len(in) - accepted, "results": out})
}

func (s *Server) recountLogs(c *gin.Context) {
	n, err := s.gate.RecomputeCounts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recounted": n})
}

// getLogOrAggregate serves both GET /logs/{id} and the aggregate endpoints
// that share the path segment.
func (s *Server) getLogOrAggregate(c *gin.Context) {
	switch c.Param("id") {
	case "counts":
		s.severityCounts(c)
	case "filter":
		s.filterLogs(c)
	case "grouped":
		s.groupedLogs(c)
	case "interval-counts":
		s.intervalCounts(c)
	case "last-seven-days":
		s.lastSevenDays(c)
	case "total-count":
		s.totalCount(c)
	case "recent":
		s.recentLogs(c)
	default:
		s.getLog(c)
	}
}

func (s *Server) getLog(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": storage.ErrNotFound.Error()})
		return
	}
	r, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPayload(r))
}

func (s *Server) updateLog(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": storage.ErrNotFound.Error()})
		return
	}
	var in recordPayload
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body: " + err.Error()})
		return
	}
	r, err := in.toRecord()
	if err != nil {
		writeError(c, err)
		return
	}
	r.ID = id
	stored, err := s.gate.Reingest(c.Request.Context(), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPayload(stored))
}

// patchPayload distinguishes absent fields from zero values.
type patchPayload struct {
	GroupName     *string `json:"groupName"`
	StreamName    *string `json:"streamName"`
	Owner         *int64  `json:"owner"`
	Timestamp     *string `json:"timestamp"`
	Message       *string `json:"message"`
	IngestionTime *int64  `json:"ingestionTime"`
}

func (s *Server) patchLog(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": storage.ErrNotFound.Error()})
		return
	}
	existing, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	var in patchPayload
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body: " + err.Error()})
		return
	}
	if in.GroupName != nil {
		existing.GroupName = *in.GroupName
	}
	if in.StreamName != nil {
		existing.StreamName = *in.StreamName
	}
	if in.Owner != nil {
		existing.Owner = *in.Owner
	}
	if in.Timestamp != nil {
		ts, err := time.Parse(time.RFC3339Nano, *in.Timestamp)
		if err != nil {
			writeError(c, &ingest.ValidationError{Fields: map[string]string{"timestamp": "must be an ISO-8601 instant"}})
			return
		}
		existing.Timestamp = ts
	}
	if in.Message != nil {
		existing.Message = *in.Message
	}
	if in.IngestionTime != nil {
		existing.IngestionTime = *in.IngestionTime
	}
	stored, err := s.gate.Reingest(c.Request.Context(), existing)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPayload(stored))
}

func (s *Server) deleteLog(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": storage.ErrNotFound.Error()})
		return
	}
	if err := s.store.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// severityCounts recomputes the global counts by scanning message bodies
// rather than reading the persisted per-record cache.
func (s *Server) severityCounts(c *gin.Context) {
	records, err := s.store.List(c.Request.Context(), core.Filter{})
	if err != nil {
		writeError(c, err)
		return
	}
	var total domain.SeverityCounts
	for _, r := range records {
		counts := core.CountMarkers(r.Message)
		total.Info += counts.Info
		total.Error += counts.Error
		total.Warn += counts.Warn
	}
	c.JSON(http.StatusOK, gin.H{"INFO": total.Info, "ERROR": total.Error, "WARN": total.Warn})
}

func (s *Server) filterLogs(c *gin.Context) {
	f, err := core.Compose(
		c.Query("groupName"),
		c.Query("streamName"),
		c.Query("period"),
		c.Query("severity"),
		s.cfg.Now(),
	)
	if err != nil {
		writeError(c, err)
		return
	}
	records, err := s.store.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPayloads(records))
}

func (s *Server) groupedLogs(c *gin.Context) {
	groups, err := s.store.Groups(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	type streamEntry struct {
		StreamName string `json:"streamName"`
	}
	type groupEntry struct {
		GroupName string        `json:"groupName"`
		Streams   []streamEntry `json:"streams"`
	}
	out := make([]groupEntry, 0, len(groups))
	for _, g := range groups {
		entry := groupEntry{GroupName: g.GroupName, Streams: []streamEntry{}}
		for _, stream := range g.Streams {
			entry.Streams = append(entry.Streams, streamEntry{StreamName: stream})
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) intervalCounts(c *gin.Context) {
	intervalType := c.DefaultQuery("intervalType", core.PeriodLastWeek)
	iv, err := core.ResolveHistogram(intervalType, s.cfg.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	buckets, err := core.AggregateBuckets(c.Request.Context(), iv, s.store)
	if err != nil {
		writeError(c, err)
		return
	}
	type bucketEntry struct {
		Interval string `json:"interval"`
		Count    int64  `json:"count"`
	}
	out := make([]bucketEntry, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, bucketEntry{Interval: b.Boundary.Format(time.RFC3339), Count: b.Count})
	}
	c.JSON(http.StatusOK, out)
}

// lastSevenDays reports one bucket per calendar day for the seven days before
// today, oldest first, each day spanning local midnight through
// 23:59:59.999999.
func (s *Server) lastSevenDays(c *gin.Context) {
	now := s.cfg.Now()
	type dayEntry struct {
		Timestamp string `json:"timestamp"`
		Count     int64  `json:"count"`
	}
	out := make([]dayEntry, 0, 7)
	for i := 7; i >= 1; i-- {
		day := now.AddDate(0, 0, -i)
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		end := start.Add(24*time.Hour - time.Microsecond)
		n, err := s.store.CountRange(c.Request.Context(), start, end)
		if err != nil {
			writeError(c, err)
			return
		}
		out = append(out, dayEntry{Timestamp: start.Format("2006-01-02T15:04:05.000Z07:00"), Count: n})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) totalCount(c *gin.Context) {
	n, err := s.store.Total(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalLogsCount": n})
}

func (s *Server) recentLogs(c *gin.Context) {
	n := 5
	if raw := c.Query("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "n must be a positive integer"})
			return
		}
		n = parsed
	}
	records, err := s.store.Recent(c.Request.Context(), n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPayloads(records))
}

// writeError maps the error taxonomy onto status codes: validation problems,
// duplicates and unrecognized tokens are client errors, missing ids are 404,
// anything else is a storage-layer failure surfaced as 500.
func writeError(c *gin.Context, err error) {
	var verr *ingest.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
	case errors.Is(err, storage.ErrDuplicateIngestion),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrInvalidIntervalType),
		errors.Is(err, core.ErrInvalidSeverity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
