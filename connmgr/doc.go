// Package connmgr provides the ConnectionManager, the application-facing
// entry point for publishing and subscribing to GMSEC messages.
//
// A ConnectionManager owns one middleware connection and shares a
// Specification. Outgoing messages get the configured standard fields,
// a PUBLISH-TIME, a UNIQUE-ID and MW-INFO, and are validated before they
// are sent when gmsec-msg-content-validate-send (or -all) is set.
// Incoming messages are decoded and, with -recv (or -all), validated;
// invalid ones are logged and dropped.
//
//	cm, err := connmgr.New(cfg)
//	if err != nil {
//		return err
//	}
//	if err := cm.Initialize(ctx); err != nil {
//		return err
//	}
//	defer cm.Cleanup(context.Background())
//
//	cm.SetStandardFields(message.NewStringField("MISSION-ID", "SAT1"),
//		message.NewStringField("COMPONENT", "GROUND"))
//	if err := cm.StartHeartbeatService(); err != nil {
//		return err
//	}
//
// The heartbeat and resource services each get their own
// ConnectionManager built from the same configuration and connection
// factory, so their traffic never contends with the application's.
package connmgr
