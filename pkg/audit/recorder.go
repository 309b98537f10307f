// Package audit records a tamper-evident trail of every mutating request:
// who acted, what entity changed and a field-level before/after diff.
// Audit persistence is fully decoupled from the business transaction — a
// failed audit write is logged and retried in the background, never
// surfaced to the caller.
package audit

import (
	"bytes"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"gorm.io/gorm"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/errs"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Recorder struct {
	db           *gorm.DB
	enabled      bool
	snapshotters map[string]Snapshotter
	retries      *retryQueue
}

func NewRecorder(db *gorm.DB, enabled bool) *Recorder {
	return &Recorder{
		db:      db,
		enabled: enabled,
		snapshotters: map[string]Snapshotter{
			"books":    snapshotBook,
			"users":    snapshotUser,
			"loans":    snapshotLoan,
			"settings": snapshotPolicy,
		},
		retries: newRetryQueue(),
	}
}

// bodyCapture keeps a copy of the response body so the middleware can
// resolve the id of a freshly created entity.
type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(p []byte) (int, error) {
	w.buf.Write(p)
	return w.ResponseWriter.Write(p)
}

func mutating(method string) bool {
	switch method {
	case "POST", "PATCH", "PUT", "DELETE":
		return true
	}
	return false
}

// Middleware snapshots the targeted entity before and after the handler
// runs, diffs the snapshots and persists one audit row per mutating
// request.
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.enabled || !mutating(c.Request.Method) {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request.URL.Path
		entity, entityID := entityFromPath(path)

		var before Snapshot
		if snap, id, ok := r.snapshot(entity, entityID, path); ok {
			before = snap
			if entityID == nil {
				entityID = id
			}
		}

		writer := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		status := c.Writer.Status()
		resolvedID := entityID
		if resolvedID == nil && c.Request.Method == "POST" && status < 400 {
			resolvedID = idFromResponse(writer.buf.Bytes())
		}

		var after Snapshot
		if c.Request.Method != "DELETE" {
			if snap, _, ok := r.snapshot(entity, resolvedID, path); ok {
				after = snap
			}
		}

		a := actor.From(c)
		record := models.AuditLog{
			ActorUserID: a.UserID,
			Method:      c.Request.Method,
			Path:        path,
			StatusCode:  status,
			DurationMS:  float64(time.Since(start).Microseconds()) / 1000.0,
		}
		if a.Role != "" {
			role := a.Role
			record.ActorRole = &role
		}
		if entity != "" {
			name := entity
			record.Entity = &name
		}
		record.EntityID = resolvedID
		if diff := Diff(before, after); diff != nil {
			if payload, err := json.Marshal(diff); err == nil {
				encoded := string(payload)
				record.ChangeDiff = &encoded
			}
		}

		r.Persist(record)
	}
}

// Persist writes one audit row on a session independent of any business
// transaction. A failure is logged and handed to the retry queue.
func (r *Recorder) Persist(record models.AuditLog) {
	session := r.db.Session(&gorm.Session{NewDB: true})
	if err := session.Create(&record).Error; err != nil {
		log.Printf("Failed to persist audit log entry: %v", err)
		r.retries.enqueue(record)
	}
}

// StartRetryWorker drains failed audit writes in the background until
// stop is closed.
func (r *Recorder) StartRetryWorker(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.drainRetries()
			}
		}
	}()
}

func (r *Recorder) drainRetries() {
	for {
		pending := r.retries.dequeueDue(time.Now())
		if pending == nil {
			return
		}
		session := r.db.Session(&gorm.Session{NewDB: true})
		if err := session.Create(&pending.record).Error; err != nil {
			log.Printf("Audit retry attempt %d failed: %v", pending.attempts, err)
			r.retries.requeue(pending)
			return
		}
	}
}

func (r *Recorder) snapshot(entity string, entityID *uint, path string) (Snapshot, *uint, bool) {
	snapshotter, ok := r.snapshotters[entity]
	if !ok {
		return nil, nil, false
	}
	if entity == "settings" {
		if path != "/settings/policy" {
			return nil, nil, false
		}
		snap, found := snapshotter(r.db, 0)
		if !found {
			return nil, nil, false
		}
		one := uint(1)
		return snap, &one, true
	}
	if entityID == nil {
		return nil, nil, false
	}
	snap, found := snapshotter(r.db, *entityID)
	return snap, entityID, found
}

func entityFromPath(path string) (string, *uint) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", nil
	}
	entity := strings.ToLower(segments[0])
	if len(segments) > 1 {
		if parsed, err := strconv.ParseUint(segments[1], 10, 64); err == nil {
			id := uint(parsed)
			return entity, &id
		}
	}
	return entity, nil
}

func idFromResponse(body []byte) *uint {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	raw, ok := payload["id"]
	if !ok {
		return nil
	}
	number, ok := raw.(float64)
	if !ok || number < 0 {
		return nil
	}
	id := uint(number)
	return &id
}

// ListFilter narrows the audit log listing.
type ListFilter struct {
	Query      string
	Method     string
	Entity     string
	StatusCode *int
	Skip       int
	Limit      int
}

// List returns audit rows, newest first.
func (r *Recorder) List(f ListFilter) ([]models.AuditLog, error) {
	query := r.db.Model(&models.AuditLog{})
	if f.Method != "" {
		query = query.Where("method = ?", strings.ToUpper(f.Method))
	}
	if f.Entity != "" {
		query = query.Where("entity = ?", strings.ToLower(f.Entity))
	}
	if f.StatusCode != nil {
		query = query.Where("status_code = ?", *f.StatusCode)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + term + "%"
		query = query.Where(
			"path LIKE ? OR COALESCE(entity, '') LIKE ? OR method LIKE ? OR COALESCE(actor_role, '') LIKE ?",
			like, like, like, like)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	var rows []models.AuditLog
	err := query.Order("id DESC").Offset(f.Skip).Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, errs.Storage("failed to list audit logs", err)
	}
	return rows, nil
}
