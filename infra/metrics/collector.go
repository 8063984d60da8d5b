package metrics

import (
	"context"

	coremetrics "github.com/ecollecte/wastefleet/core/metrics"
	"github.com/ecollecte/wastefleet/core/scheduler"
	"github.com/ecollecte/wastefleet/infra/logger"
	"github.com/ecollecte/wastefleet/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and forwards scheduler
// pass events to the recorder. It returns once the subscription is active
// and keeps consuming until the context is canceled or the bus closes.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, rec coremetrics.PassRecorder) {
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				pass, ok := ev.(scheduler.PassEvent)
				if !ok {
					continue
				}
				res := coremetrics.PassResult{
					Kind:     pass.Kind,
					Mode:     pass.Mode,
					Planned:  pass.Planned,
					Failures: pass.Failures,
					Duration: pass.Duration,
					Time:     pass.Time,
				}
				if err := rec.RecordPassResult(res); err != nil {
					log.Errorf("record pass result: %v", err)
				}
			}
		}
	}()
}
