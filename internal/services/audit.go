package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"coopfin/internal/logs"
	"coopfin/internal/models"

	"gorm.io/gorm"
)

// AuditEvent is what a request hands to the recorder after its
// response has been committed.
type AuditEvent struct {
	UserID     *uint
	BranchID   *uint
	Action     string
	Resource   string
	ResourceID string
	Details    map[string]interface{}
	IPAddress  string
	UserAgent  string
	Status     string
}

// EnrichFunc augments an event with action-specific detail. Enrichment
// is best-effort: failures are logged and never block the base entry.
type EnrichFunc func(ev *AuditEvent)

// Recorder persists audit entries out-of-band through a bounded
// channel. Enqueue never blocks; when the buffer is full the event is
// dropped and counted. Close drains whatever is buffered.
type Recorder struct {
	ch        chan AuditEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once

	mu        sync.RWMutex
	enrichers map[string]EnrichFunc
}

func NewRecorder(bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	r := &Recorder{
		ch:        make(chan AuditEvent, bufferSize),
		done:      make(chan struct{}),
		enrichers: make(map[string]EnrichFunc),
	}
	r.registerDefaultEnrichers()

	r.wg.Add(1)
	go r.run()
	return r
}

// RegisterEnricher binds an action name to a detail-enrichment handler.
// New actions register a handler here instead of extending a shared switch.
func (r *Recorder) RegisterEnricher(action string, fn EnrichFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enrichers[action] = fn
}

// Enqueue hands an event to the background worker without blocking.
func (r *Recorder) Enqueue(ev AuditEvent) {
	if r == nil || r.closed.Load() {
		return
	}
	select {
	case r.ch <- ev:
	case <-r.done:
	default:
		r.dropped.Add(1)
	}
}

// Close stops the worker after draining buffered events.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		r.wg.Wait()
	})
}

// Dropped reports how many events were discarded due to a full buffer.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case ev := <-r.ch:
			r.persist(ev)
		case <-r.done:
			for {
				select {
				case ev := <-r.ch:
					r.persist(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) persist(ev AuditEvent) {
	r.enrich(&ev)

	details := ""
	if len(ev.Details) > 0 {
		if raw, err := json.Marshal(ev.Details); err == nil {
			details = string(raw)
		} else {
			logs.Logger.WithError(err).Warn("failed to marshal audit details")
		}
	}

	entry := models.AuditLog{
		UserID:     ev.UserID,
		BranchID:   ev.BranchID,
		Action:     ev.Action,
		Resource:   ev.Resource,
		ResourceID: ev.ResourceID,
		Details:    details,
		IPAddress:  ev.IPAddress,
		UserAgent:  ev.UserAgent,
		Status:     ev.Status,
	}
	if err := models.DB.Create(&entry).Error; err != nil {
		logs.Logger.WithError(err).WithField("action", ev.Action).Error("failed to write audit log entry")
	}
}

func (r *Recorder) enrich(ev *AuditEvent) {
	r.mu.RLock()
	fn, ok := r.enrichers[ev.Action]
	r.mu.RUnlock()
	if !ok {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			logs.Logger.WithField("action", ev.Action).Warnf("audit enrichment panicked: %v", rec)
		}
	}()
	fn(ev)
}

func (r *Recorder) registerDefaultEnrichers() {
	targetUser := func(ev *AuditEvent) {
		id, err := strconv.ParseUint(ev.ResourceID, 10, 32)
		if err != nil {
			return
		}
		var user models.User
		if err := models.DB.Preload("Branch").First(&user, uint(id)).Error; err != nil {
			logs.Logger.WithError(err).WithField("user_id", id).Debug("audit enrichment lookup failed")
			return
		}
		if ev.Details == nil {
			ev.Details = map[string]interface{}{}
		}
		ev.Details["target_username"] = user.Username
		ev.Details["target_full_name"] = user.FullName
		if user.Branch != nil {
			ev.Details["target_branch"] = user.Branch.Name
		}
	}
	r.enrichers["deactivate_user"] = targetUser
	r.enrichers["reactivate_user"] = targetUser

	// Failed logins have no authenticated identity; fall back to the
	// submitted username so the attempt is still attributable.
	r.enrichers["login"] = func(ev *AuditEvent) {
		if ev.UserID != nil {
			return
		}
		username, _ := ev.Details["username"].(string)
		if username == "" {
			return
		}
		var user models.User
		if err := models.DB.Where("username = ? OR email = ?", username, username).First(&user).Error; err != nil {
			return
		}
		ev.UserID = &user.ID
		ev.BranchID = user.BranchID
	}

	r.enrichers["review_reactivation_request"] = func(ev *AuditEvent) {
		id, err := strconv.ParseUint(ev.ResourceID, 10, 32)
		if err != nil {
			return
		}
		var request models.ReactivationRequest
		if err := models.DB.First(&request, uint(id)).Error; err != nil {
			logs.Logger.WithError(err).WithField("request_id", id).Debug("audit enrichment lookup failed")
			return
		}
		if ev.Details == nil {
			ev.Details = map[string]interface{}{}
		}
		ev.Details["decision"] = request.Status
		if request.ReviewNotes != "" {
			ev.Details["review_notes"] = request.ReviewNotes
		}
	}
}

// AuditStatusFor derives the recorded outcome from the HTTP status the
// caller saw: 2xx/3xx is success, everything else failed.
func AuditStatusFor(httpStatus int) string {
	if httpStatus < 400 {
		return models.AuditStatusSuccess
	}
	return models.AuditStatusFailed
}

// auditCategories maps the user-facing filter categories onto action
// name prefixes. login/logout match exactly.
var auditCategories = map[string][]string{
	"view":   {"view", "apply"},
	"create": {"create", "generate", "download", "request", "save", "send", "add"},
	"update": {"approve", "reject", "update", "change", "deactivate", "reactivate"},
	"delete": {"delete"},
}

// AuditLogFilter narrows the audit-log read path.
type AuditLogFilter struct {
	Category string
	Action   string
	UserID   *uint
	Resource string
	From     *time.Time
	To       *time.Time
	Status   string
	Page     int
	PageSize int
}

const (
	auditDefaultPageSize = 100
	auditMaxPageSize     = 1000
)

type AuditService struct{}

func NewAuditService() *AuditService {
	return &AuditService{}
}

func (s *AuditService) buildQuery(f AuditLogFilter) *gorm.DB {
	q := models.DB.Model(&models.AuditLog{})

	switch f.Category {
	case "":
	case "login", "logout":
		q = q.Where("action = ?", f.Category)
	default:
		if prefixes, ok := auditCategories[f.Category]; ok {
			cond := models.DB.Where("action LIKE ?", prefixes[0]+"%")
			for _, p := range prefixes[1:] {
				cond = cond.Or("action LIKE ?", p+"%")
			}
			q = q.Where(cond)
		}
	}

	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Resource != "" {
		q = q.Where("resource = ?", f.Resource)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

// ListLogs returns a page of audit entries. Store failures degrade to
// an empty result set rather than failing the request; the error is
// logged internally. The admin UI stays available even when the audit
// store is not.
func (s *AuditService) ListLogs(f AuditLogFilter) ([]models.AuditLog, int64) {
	if f.PageSize <= 0 {
		f.PageSize = auditDefaultPageSize
	}
	if f.PageSize > auditMaxPageSize {
		f.PageSize = auditMaxPageSize
	}
	if f.Page <= 0 {
		f.Page = 1
	}

	q := s.buildQuery(f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		logs.Logger.WithError(err).Error("audit log count failed")
		return []models.AuditLog{}, 0
	}

	var entries []models.AuditLog
	err := q.Preload("User").
		Order("created_at DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&entries).Error
	if err != nil {
		logs.Logger.WithError(err).Error("audit log read failed")
		return []models.AuditLog{}, 0
	}
	return entries, total
}

// StreamCSV writes matching entries as CSV in batches.
func (s *AuditService) StreamCSV(w io.Writer, f AuditLogFilter) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "timestamp", "username", "action", "resource", "resource_id", "status", "ip_address", "details"}
	if err := cw.Write(header); err != nil {
		return err
	}

	// Batches walk the primary key ascending; export order follows it.
	var batch []models.AuditLog
	err := s.buildQuery(f).Preload("User").
		FindInBatches(&batch, 500, func(tx *gorm.DB, _ int) error {
			for _, entry := range batch {
				username := ""
				if entry.User != nil {
					username = entry.User.Username
				}
				row := []string{
					strconv.FormatUint(uint64(entry.ID), 10),
					entry.CreatedAt.Format(time.RFC3339),
					username,
					entry.Action,
					entry.Resource,
					entry.ResourceID,
					entry.Status,
					entry.IPAddress,
					entry.Details,
				}
				if err := cw.Write(row); err != nil {
					return err
				}
			}
			return nil
		}).Error
	if err != nil {
		return fmt.Errorf("audit export failed: %w", err)
	}

	cw.Flush()
	return cw.Error()
}
