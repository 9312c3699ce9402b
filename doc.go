// Package gmsec is the root of a Go implementation of the GMSEC message
// specification engine (MIST) and the status services built on top of it.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│          cmd/mist                   │  list, template, schema,
//	│  (command line front end)           │  validate, subscribe, heartbeat
//	└─────────────────────────────────────┘
//	           ↓ uses
//	┌─────────────────────────────────────┐
//	│          connmgr                    │  standard fields, validation on
//	│  (ConnectionManager)                │  send/receive, hosted services
//	└─────────────────────────────────────┘
//	     ↓ validates with        ↓ publishes through
//	┌──────────────────┐   ┌──────────────────────────┐
//	│      mist        │   │       middleware         │
//	│ templates, rules │   │ loopback | nats | mqtt   │
//	└──────────────────┘   └──────────────────────────┘
//
// A Specification loads the XML templates of one specification version
// (embedded in package templates, or read from gmsec-schema-path) up to a
// schema level, and validates messages against them. Services in package
// service publish heartbeat (MSG.HB) and resource (MSG.RSRC) messages on a
// schedule through the connection manager.
//
// # Framework Packages
//
// Specification:
//   - message: fields, messages and the JSON/XML wire codecs
//   - mist: field and message templates, dependencies, validation
//   - templates: embedded 2014.00 and 2019.00 definitions
//
// Messaging:
//   - connmgr: connection manager and hosted services
//   - middleware: Connection interface and its drivers
//   - natsclient: NATS connection with circuit breaker and JetStream
//   - service: heartbeat and resource publishers
//
// Infrastructure:
//   - config: key=value configuration with JSON, YAML and TOML files
//   - errors: classified errors and GMSEC error codes
//   - metric: Prometheus registry and core metrics
//   - health: health status values
//
// Utilities:
//   - pkg/buffer: fixed size ring for resource samples
//   - pkg/cache: LRU cache for compiled value patterns
//   - pkg/retry: backoff for connection attempts
//   - pkg/timestamp: GMSEC time format
//   - pkg/tlsutil: client TLS from configuration
//   - pkg/worker: bounded pool for subscription dispatch
//
// # Usage Patterns
//
//	cfg := config.NewFromArgs([]string{"mw-id=nats", "mw-server=nats://localhost:4222"})
//	cm, err := connmgr.New(cfg)
//	if err != nil {
//	    return err
//	}
//	if err := cm.Initialize(ctx); err != nil {
//	    return err
//	}
//	defer cm.Cleanup(context.Background())
//
//	cm.SetStandardFields(
//	    message.NewStringField("MISSION-ID", "MISSION"),
//	    message.NewStringField("COMPONENT", "COMP"),
//	)
//	err = cm.StartHeartbeatService(message.NewI16Field("PUB-RATE", 30))
package gmsec
