// Package health tracks the health of the heartbeat and resource services
// and of the middleware connection.
//
// A Status is healthy, degraded or unhealthy. Services report their own
// Status; the connection manager keeps a Monitor and rolls the individual
// statuses up with AggregateHealth:
//
//	monitor := health.NewMonitor(registry.CoreMetrics())
//	monitor.Update("heartbeat", hb.Health())
//	monitor.Update("connection", health.FromError("connection", err))
//
//	if status := monitor.AggregateHealth("connmgr"); !status.IsHealthy() {
//		logger.Warn("Degraded", "message", status.Message)
//	}
//
// FromError strips middleware URLs, addresses and credentials from error
// text so statuses can be exposed on the metrics endpoint.
package health
