package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pulse/internal/models"
	"pulse/internal/notifier"
)

type Store interface {
	ListChannelsForService(ctx context.Context, serviceID string) ([]models.AlertChannel, error)
	InsertNotificationEvent(ctx context.Context, ev models.NotificationEvent) error
}

type MaintenanceChecker interface {
	IsInMaintenance(ctx context.Context, serviceID string) bool
}

type Result struct {
	Sent                  int      `json:"sent"`
	Failed                int      `json:"failed"`
	Errors                []string `json:"errors"`
	SkippedForMaintenance bool     `json:"skippedForMaintenance"`
}

// Dispatcher fans one alert out to every active channel linked to the
// service. Channels are delivered concurrently and fail independently.
type Dispatcher struct {
	store   Store
	gate    MaintenanceChecker
	senders map[models.ChannelType]notifier.Sender
	log     *slog.Logger
	now     func() time.Time
}

func NewDispatcher(store Store, gate MaintenanceChecker, senders map[models.ChannelType]notifier.Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, gate: gate, senders: senders, log: logger.With("module", "alerts"), now: time.Now}
}

type channelOutcome struct {
	channel models.AlertChannel
	err     error
}

func (d *Dispatcher) SendAlerts(ctx context.Context, p notifier.Payload) Result {
	res := Result{Errors: []string{}}
	if d.gate != nil && d.gate.IsInMaintenance(ctx, p.Service.ID) {
		d.log.Info("service in maintenance, skipping alerts", "service", p.Service.Name, "event", p.Event())
		res.SkippedForMaintenance = true
		return res
	}
	channels, err := d.store.ListChannelsForService(ctx, p.Service.ID)
	if err != nil {
		d.log.Error("load alert channels", "service", p.Service.Name, "err", err)
		return res
	}
	if len(channels) == 0 {
		return res
	}

	outcomes := make([]channelOutcome, len(channels))
	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = channelOutcome{channel: ch, err: d.deliver(ctx, ch, p)}
		}()
	}
	wg.Wait()

	for _, o := range outcomes {
		ev := models.NotificationEvent{
			ChannelID:   o.channel.ID,
			ChannelType: o.channel.Type,
			ServiceID:   p.Service.ID,
			Event:       p.Event(),
			Status:      "sent",
			CreatedAt:   d.now().UTC(),
		}
		if p.Incident != nil {
			ev.IncidentID = p.Incident.ID
		}
		if o.err != nil {
			res.Failed++
			res.Errors = append(res.Errors, o.err.Error())
			ev.Status, ev.Error = "failed", o.err.Error()
			d.log.Warn("alert delivery failed", "service", p.Service.Name, "channel", o.channel.Name, "type", o.channel.Type, "err", o.err)
		} else {
			res.Sent++
		}
		if err := d.store.InsertNotificationEvent(ctx, ev); err != nil {
			d.log.Error("record notification event", "channel", o.channel.Name, "err", err)
		}
	}
	d.log.Info("alerts dispatched", "service", p.Service.Name, "event", p.Event(), "sent", res.Sent, "failed", res.Failed)
	return res
}

// deliver converts a sender panic into an ordinary failure.
func (d *Dispatcher) deliver(ctx context.Context, ch models.AlertChannel, p notifier.Payload) (err error) {
	sender, ok := d.senders[ch.Type]
	if !ok {
		return fmt.Errorf("Unknown channel type: %s", ch.Type)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s sender panicked: %v", ch.Type, r)
		}
	}()
	return sender.Send(ctx, ch, p)
}
