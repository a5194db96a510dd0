package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pulse/internal/models"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

const serviceColumns = `id,name,type,url,method,headers_json,body,expected_status_json,keyword,verify_tls,
	hostname,port,dns_record_type,dns_server,expected_value,docker_host,container_name,ssl_warning_days,
	interval_seconds,timeout_seconds,retries,is_active,is_paused,next_check`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(row rowScanner) (models.Service, error) {
	var s models.Service
	var svcType, headers, expected string
	err := row.Scan(&s.ID, &s.Name, &svcType, &s.URL, &s.Method, &headers, &s.Body, &expected, &s.Keyword, &s.VerifyTLS,
		&s.Hostname, &s.Port, &s.DNSRecordType, &s.DNSServer, &s.ExpectedValue, &s.DockerHost, &s.ContainerName, &s.SSLWarningDays,
		&s.IntervalSeconds, &s.TimeoutSeconds, &s.Retries, &s.Active, &s.Paused, &s.NextCheck)
	if err != nil {
		return s, err
	}
	s.Type = models.ServiceType(svcType)
	if headers != "" {
		if err := json.Unmarshal([]byte(headers), &s.Headers); err != nil {
			return s, fmt.Errorf("service %s headers: %w", s.ID, err)
		}
	}
	if expected != "" {
		if err := json.Unmarshal([]byte(expected), &s.ExpectedStatus); err != nil {
			return s, fmt.Errorf("service %s expected status: %w", s.ID, err)
		}
	}
	return s, nil
}

func (r *Repository) queryServices(ctx context.Context, query string, args ...any) ([]models.Service, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListDueServices returns active, unpaused services whose next_check has
// passed, oldest-due first.
func (r *Repository) ListDueServices(ctx context.Context, now time.Time, limit int) ([]models.Service, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.queryServices(ctx, `SELECT `+serviceColumns+` FROM services
		WHERE is_active=1 AND is_paused=0 AND next_check <= ?
		ORDER BY next_check ASC LIMIT ?`, now.UTC(), limit)
}

func (r *Repository) ListServices(ctx context.Context) ([]models.Service, error) {
	return r.queryServices(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY name`)
}

func (r *Repository) GetService(ctx context.Context, id string) (models.Service, error) {
	return scanService(r.db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id=?`, id))
}

// UpsertService inserts the service or updates the one with the same name,
// keeping its id and next_check. It returns the stored id.
func (r *Repository) UpsertService(ctx context.Context, s models.Service) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Method == "" {
		s.Method = "GET"
	}
	if len(s.ExpectedStatus) == 0 {
		s.ExpectedStatus = []int{200, 201, 204}
	}
	if s.DNSRecordType == "" {
		s.DNSRecordType = "A"
	}
	if s.SSLWarningDays < 0 {
		s.SSLWarningDays = 30
	}
	if s.IntervalSeconds == 0 {
		s.IntervalSeconds = 60
	}
	if s.TimeoutSeconds == 0 {
		s.TimeoutSeconds = 10
	}
	if s.NextCheck.IsZero() {
		s.NextCheck = time.Now()
	}
	headers, err := json.Marshal(s.Headers)
	if err != nil {
		return "", err
	}
	if s.Headers == nil {
		headers = []byte("{}")
	}
	expected, err := json.Marshal(s.ExpectedStatus)
	if err != nil {
		return "", err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO services (`+serviceColumns+`,created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET type=excluded.type,url=excluded.url,method=excluded.method,headers_json=excluded.headers_json,
			body=excluded.body,expected_status_json=excluded.expected_status_json,keyword=excluded.keyword,verify_tls=excluded.verify_tls,
			hostname=excluded.hostname,port=excluded.port,dns_record_type=excluded.dns_record_type,dns_server=excluded.dns_server,
			expected_value=excluded.expected_value,docker_host=excluded.docker_host,container_name=excluded.container_name,
			ssl_warning_days=excluded.ssl_warning_days,interval_seconds=excluded.interval_seconds,timeout_seconds=excluded.timeout_seconds,
			retries=excluded.retries,is_active=excluded.is_active,is_paused=excluded.is_paused`,
		s.ID, s.Name, string(s.Type), s.URL, s.Method, string(headers), s.Body, string(expected), s.Keyword, s.VerifyTLS,
		s.Hostname, s.Port, s.DNSRecordType, s.DNSServer, s.ExpectedValue, s.DockerHost, s.ContainerName, s.SSLWarningDays,
		s.IntervalSeconds, s.TimeoutSeconds, s.Retries, s.Active, s.Paused, s.NextCheck.UTC(), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("upsert service %q: %w", s.Name, err)
	}
	var id string
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM services WHERE name=?`, s.Name).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) UpdateNextCheck(ctx context.Context, serviceID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE services SET next_check=? WHERE id=?`, at.UTC(), serviceID)
	return err
}

func (r *Repository) InsertHeartbeat(ctx context.Context, hb models.Heartbeat) (int64, error) {
	if hb.CreatedAt.IsZero() {
		hb.CreatedAt = time.Now()
	}
	var details sql.NullString
	if len(hb.Details) > 0 {
		details = sql.NullString{String: string(hb.Details), Valid: true}
	}
	var msg sql.NullString
	if hb.Message != "" {
		msg = sql.NullString{String: hb.Message, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO heartbeats (service_id,status,response_time_ms,status_code,message,details_json,created_at)
		VALUES (?,?,?,?,?,?,?)`,
		hb.ServiceID, string(hb.Status), hb.ResponseTimeMs, hb.StatusCode, msg, details, hb.CreatedAt.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetLastStatus returns the status of the most recent heartbeat, or "" when
// the service has none.
func (r *Repository) GetLastStatus(ctx context.Context, serviceID string) (models.Status, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM heartbeats WHERE service_id=? ORDER BY id DESC LIMIT 1`, serviceID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return models.Status(status), nil
}

func (r *Repository) LatestHeartbeat(ctx context.Context, serviceID string) (*models.Heartbeat, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id,service_id,status,response_time_ms,status_code,message,details_json,created_at
		FROM heartbeats WHERE service_id=? ORDER BY id DESC LIMIT 1`, serviceID)
	hb, err := scanHeartbeat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &hb, nil
}

// ListHeartbeats returns up to limit heartbeats created at or after from, in
// chronological order.
func (r *Repository) ListHeartbeats(ctx context.Context, serviceID string, from time.Time, limit int) ([]models.Heartbeat, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id,service_id,status,response_time_ms,status_code,message,details_json,created_at
		FROM heartbeats WHERE service_id=? AND created_at >= ? ORDER BY id DESC LIMIT ?`, serviceID, from.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.Heartbeat, 0, limit)
	for rows.Next() {
		hb, err := scanHeartbeat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, hb)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanHeartbeat(row rowScanner) (models.Heartbeat, error) {
	var hb models.Heartbeat
	var status string
	var code sql.NullInt64
	var msg, details sql.NullString
	if err := row.Scan(&hb.ID, &hb.ServiceID, &status, &hb.ResponseTimeMs, &code, &msg, &details, &hb.CreatedAt); err != nil {
		return hb, err
	}
	hb.Status = models.Status(status)
	if code.Valid {
		c := int(code.Int64)
		hb.StatusCode = &c
	}
	hb.Message = msg.String
	if details.Valid && details.String != "" {
		hb.Details = json.RawMessage(details.String)
	}
	return hb, nil
}

// Uptime is the percentage of up heartbeats since the given time, or -1
// without data.
func (r *Repository) Uptime(ctx context.Context, serviceID string, since time.Time) (float64, error) {
	var total, up int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(CASE WHEN status='up' THEN 1 ELSE 0 END),0)
		FROM heartbeats WHERE service_id=? AND created_at >= ?`, serviceID, since.UTC()).Scan(&total, &up)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return -1, nil
	}
	return float64(up) * 100 / float64(total), nil
}

func (r *Repository) CountHeartbeats(ctx context.Context, serviceID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM heartbeats WHERE service_id=?`, serviceID).Scan(&n)
	return n, err
}

const incidentColumns = `id,service_id,started_at,ended_at,duration_seconds,cause,resolution,acknowledged,acknowledged_at,acknowledged_by`

func scanIncident(row rowScanner) (models.Incident, error) {
	var inc models.Incident
	var ended, ackAt sql.NullTime
	var duration sql.NullInt64
	if err := row.Scan(&inc.ID, &inc.ServiceID, &inc.StartedAt, &ended, &duration, &inc.Cause, &inc.Resolution,
		&inc.Acknowledged, &ackAt, &inc.AcknowledgedBy); err != nil {
		return inc, err
	}
	if ended.Valid {
		t := ended.Time
		inc.EndedAt = &t
	}
	if duration.Valid {
		d := duration.Int64
		inc.DurationSeconds = &d
	}
	if ackAt.Valid {
		t := ackAt.Time
		inc.AcknowledgedAt = &t
	}
	return inc, nil
}

func (r *Repository) InsertIncident(ctx context.Context, serviceID string, startedAt time.Time, cause string) (models.Incident, error) {
	inc := models.Incident{ID: uuid.NewString(), ServiceID: serviceID, StartedAt: startedAt.UTC(), Cause: cause}
	_, err := r.db.ExecContext(ctx, `INSERT INTO incidents (id,service_id,started_at,cause) VALUES (?,?,?,?)`,
		inc.ID, inc.ServiceID, inc.StartedAt, inc.Cause)
	if err != nil {
		return models.Incident{}, err
	}
	return inc, nil
}

// FindOpenIncident returns the most recent incident without an end time, or
// nil when the service has none.
func (r *Repository) FindOpenIncident(ctx context.Context, serviceID string) (*models.Incident, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents
		WHERE service_id=? AND ended_at IS NULL ORDER BY started_at DESC LIMIT 1`, serviceID)
	inc, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

func (r *Repository) CloseIncident(ctx context.Context, incidentID string, endedAt time.Time, durationSeconds int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE incidents SET ended_at=?, duration_seconds=? WHERE id=? AND ended_at IS NULL`,
		endedAt.UTC(), durationSeconds, incidentID)
	return err
}

func (r *Repository) AcknowledgeIncident(ctx context.Context, incidentID, by string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE incidents SET acknowledged=1, acknowledged_at=?, acknowledged_by=? WHERE id=?`,
		at.UTC(), by, incidentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *Repository) ListIncidents(ctx context.Context, openOnly bool, limit int) ([]models.Incident, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	filter := ""
	if openOnly {
		filter = " WHERE ended_at IS NULL"
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+incidentColumns+` FROM incidents`+filter+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

func (r *Repository) CountIncidents(ctx context.Context, serviceID string) (total, open int, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(CASE WHEN ended_at IS NULL THEN 1 ELSE 0 END),0)
		FROM incidents WHERE service_id=?`, serviceID).Scan(&total, &open)
	return total, open, err
}

// ListActiveMaintenanceWindows returns windows with start <= now <= end. An
// empty serviceID matches every service.
func (r *Repository) ListActiveMaintenanceWindows(ctx context.Context, serviceID string, now time.Time) ([]models.MaintenanceWindow, error) {
	query := `SELECT id,service_id,title,description,start_time,end_time FROM maintenance_windows
		WHERE start_time <= ? AND end_time >= ?`
	args := []any{now.UTC(), now.UTC()}
	if serviceID != "" {
		query += ` AND service_id = ?`
		args = append(args, serviceID)
	}
	query += ` ORDER BY start_time ASC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.MaintenanceWindow
	for rows.Next() {
		var w models.MaintenanceWindow
		if err := rows.Scan(&w.ID, &w.ServiceID, &w.Title, &w.Description, &w.StartTime, &w.EndTime); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// UpsertMaintenanceWindow matches existing windows by service and title.
func (r *Repository) UpsertMaintenanceWindow(ctx context.Context, w models.MaintenanceWindow) (string, error) {
	if err := w.Validate(); err != nil {
		return "", err
	}
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM maintenance_windows WHERE service_id=? AND title=?`, w.ServiceID, w.Title).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		_, err = r.db.ExecContext(ctx, `INSERT INTO maintenance_windows (id,service_id,title,description,start_time,end_time) VALUES (?,?,?,?,?,?)`,
			w.ID, w.ServiceID, w.Title, w.Description, w.StartTime.UTC(), w.EndTime.UTC())
		return w.ID, err
	case err != nil:
		return "", err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE maintenance_windows SET description=?, start_time=?, end_time=? WHERE id=?`,
		w.Description, w.StartTime.UTC(), w.EndTime.UTC(), id)
	return id, err
}
