// Package metric provides the Prometheus registry shared by the
// specification engine, the connection manager and the status services,
// plus an HTTP server exposing it.
//
// Core metrics are registered once per registry and use the "gmsec"
// namespace:
//
//   - gmsec_specification_validations_total{schema,result}
//   - gmsec_specification_validation_duration_seconds{schema}
//   - gmsec_messages_published_total{subject}
//   - gmsec_messages_received_total{subscription,status}
//   - gmsec_messages_publish_errors_total{reason}
//   - gmsec_service_status{service}
//   - gmsec_nats_connected, gmsec_nats_reconnects_total, gmsec_nats_circuit_breaker
//
// Components register their own collectors through MetricsRegistrar under
// a service name; a second registration of the same name is rejected.
//
//	registry := metric.NewMetricsRegistry()
//	registry.CoreMetrics().RecordMessagePublished("C2MS.FILL.FILL.MISSION.FILL.FILL.FILL.MSG.HB.COMP")
//
//	server := metric.NewServer(":9090", "/metrics", registry)
//	go server.Start()
//	defer server.Stop(context.Background())
package metric
