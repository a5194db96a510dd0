package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pulse/internal/models"
)

// ListChannelsForService returns the active channels linked to the service.
// A channel whose stored config fails to decode is returned without config
// so the sender reports it as a failure.
func (r *Repository) ListChannelsForService(ctx context.Context, serviceID string) ([]models.AlertChannel, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT c.id,c.name,c.type,c.config_json,c.is_active
		FROM alert_channels c JOIN service_alert_channels sc ON sc.channel_id=c.id
		WHERE sc.service_id=? AND c.is_active=1
		ORDER BY c.name`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.AlertChannel
	for rows.Next() {
		var ch models.AlertChannel
		var chType, raw string
		if err := rows.Scan(&ch.ID, &ch.Name, &chType, &raw, &ch.Active); err != nil {
			return nil, err
		}
		ch.Type = models.ChannelType(chType)
		_ = ch.DecodeConfig([]byte(raw))
		out = append(out, ch)
	}
	return out, rows.Err()
}

// UpsertChannel inserts the channel or updates the one with the same name.
func (r *Repository) UpsertChannel(ctx context.Context, ch models.AlertChannel) (string, error) {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	cfg, err := ch.EncodeConfig()
	if err != nil {
		return "", fmt.Errorf("encode channel %q config: %w", ch.Name, err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO alert_channels (id,name,type,config_json,is_active) VALUES (?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET type=excluded.type,config_json=excluded.config_json,is_active=excluded.is_active`,
		ch.ID, ch.Name, string(ch.Type), string(cfg), ch.Active)
	if err != nil {
		return "", fmt.Errorf("upsert channel %q: %w", ch.Name, err)
	}
	var id string
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM alert_channels WHERE name=?`, ch.Name).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) LinkChannel(ctx context.Context, serviceID, channelID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO service_alert_channels (service_id,channel_id) VALUES (?,?)
		ON CONFLICT(service_id,channel_id) DO NOTHING`, serviceID, channelID)
	return err
}

func (r *Repository) InsertNotificationEvent(ctx context.Context, ev models.NotificationEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	var incidentID, lastErr sql.NullString
	if ev.IncidentID != "" {
		incidentID = sql.NullString{String: ev.IncidentID, Valid: true}
	}
	if ev.Error != "" {
		lastErr = sql.NullString{String: ev.Error, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO notification_events (channel_id,channel_type,service_id,incident_id,event,status,last_error,created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		ev.ChannelID, string(ev.ChannelType), ev.ServiceID, incidentID, ev.Event, ev.Status, lastErr, ev.CreatedAt.UTC())
	return err
}

func (r *Repository) ListNotificationEvents(ctx context.Context, serviceID string, limit int) ([]models.NotificationEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT channel_id,channel_type,service_id,incident_id,event,status,last_error,created_at
		FROM notification_events WHERE service_id=? ORDER BY id DESC LIMIT ?`, serviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.NotificationEvent
	for rows.Next() {
		var ev models.NotificationEvent
		var chType string
		var incidentID, lastErr sql.NullString
		if err := rows.Scan(&ev.ChannelID, &chType, &ev.ServiceID, &incidentID, &ev.Event, &ev.Status, &lastErr, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.ChannelType = models.ChannelType(chType)
		ev.IncidentID = incidentID.String
		ev.Error = lastErr.String
		out = append(out, ev)
	}
	return out, rows.Err()
}

type PruneStats struct {
	Heartbeats    int64
	Incidents     int64
	Notifications int64
}

// DeleteOlderThan prunes heartbeats, closed incidents and notification events
// created before cutoff. Open incidents are kept regardless of age.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (PruneStats, error) {
	var stats PruneStats
	queries := []struct {
		q   string
		dst *int64
	}{
		{`DELETE FROM heartbeats WHERE created_at < ?`, &stats.Heartbeats},
		{`DELETE FROM incidents WHERE ended_at IS NOT NULL AND ended_at < ?`, &stats.Incidents},
		{`DELETE FROM notification_events WHERE created_at < ?`, &stats.Notifications},
	}
	for _, q := range queries {
		res, err := r.db.ExecContext(ctx, q.q, cutoff.UTC())
		if err != nil {
			return stats, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return stats, err
		}
		*q.dst = n
	}
	_, _ = r.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	_, _ = r.db.ExecContext(ctx, `PRAGMA optimize`)
	return stats, nil
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
