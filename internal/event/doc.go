// Package event defines the hub's event model and the broadcast bus
// that carries it.
//
// Everything observable in the hub flows through here: entity state
// transitions, discovery, automation firings. The bus is a bounded ring
// with per-subscriber cursors - publishers never block, and a consumer
// that falls too far behind gets a LagError instead of stalling the
// system.
//
// The package also provides a SQLite event log used by the history
// recorder to persist the stream for the dashboard's recent-events view.
//
// # Usage
//
//	bus := event.NewBus(256)
//	sub := bus.Subscribe()
//
//	go func() {
//	    for {
//	        ev, err := sub.Recv(ctx)
//	        var lag *event.LagError
//	        switch {
//	        case errors.As(err, &lag):
//	            log.Warn("dropped events", "missed", lag.Missed)
//	            continue
//	        case err != nil:
//	            return
//	        }
//	        handle(ev)
//	    }
//	}()
//
//	bus.Publish(event.New(event.TypeStateChanged, "light.kitchen",
//	    map[string]any{"from": "off", "to": "on"}))
package event
