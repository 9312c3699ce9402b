// Package service runs the periodic status publishers hosted by the
// connection manager: the heartbeat service and the resource service.
//
// Both services share one lifecycle, driven by a state machine:
//
//	CREATED -> SETTING_UP -> RUNNING -> TEARING_DOWN -> STOPPED
//
// Start creates and initializes the service's own Publisher, opens the
// start latch and enters the publish loop. If setup fails the service goes
// straight to teardown and the start latch stays closed, so AwaitStart
// times out. Teardown always runs once and cleans up the Publisher.
//
// The publish loop polls every DefaultPollInterval (see WithPollInterval).
// The first message is published immediately; later ones follow the
// publish rate. Publish failures are logged and retried at the next
// interval.
//
// Usage:
//
//	hb, err := service.NewHeartbeatService(spec, factory, []*message.Field{
//		message.NewStringField("MISSION-ID", "MISSION"),
//		message.NewStringField("COMPONENT", "GROUND-1"),
//		message.NewI16Field("PUB-RATE", 30),
//	})
//	if err != nil {
//		return err
//	}
//	hb.Go(ctx)
//	if !hb.AwaitStart(5 * time.Second) {
//		return errors.New("heartbeat did not start")
//	}
//	_ = hb.SetField(message.NewI16Field("COMPONENT-STATUS", 2))
//	...
//	hb.Stop(5 * time.Second)
//
// Stop on a service that is not running logs a warning and returns false
// at once.
package service
