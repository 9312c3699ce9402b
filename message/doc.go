// Package message is the message object boundary consumed by the
// specification engine and published by the connection manager.
//
// A Message is a subject, a kind (PUBLISH, REQUEST, REPLY) and an
// insertion-ordered set of typed fields. Field names are case-insensitive
// and stored upper case, matching the schema definitions.
//
//	msg := message.New("C2MS.FILL.FILL.MISSION.FILL.FILL.FILL.MSG.HB.COMP", message.KindPublish)
//	msg.AddField(message.NewI16Field("PUB-RATE", 30))
//	rate, err := msg.I64Value("PUB-RATE")
//
// Typed accessors convert between compatible representations and return
// errors.ErrFieldConversion when a value cannot be represented.
//
// The JSON form produced by ToJSON is the payload handed to the middleware;
// ToXML renders the GMSEC XML form used by template previews and the CLI.
package message
