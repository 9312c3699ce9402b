package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa/GMSEC-API-sub012/connmgr"
	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
	"github.com/nasa/GMSEC-API-sub012/mist"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestList_Table(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Specification 201900, schema level 0")
	assert.Contains(t, out, "MSG.HB")
	assert.Contains(t, out, "REQ.DIR")
}

func TestList_JSONLegacy(t *testing.T) {
	out, err := execute(t, "list", "--json", "--set", "gmsec-specification-version=201400")
	require.NoError(t, err)

	var entries []schemaEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	assert.Contains(t, ids, "MSG.C2CX.HB")
}

func TestList_Level(t *testing.T) {
	out, err := execute(t, "list", "--json", "--level", "1")
	require.NoError(t, err)

	var entries []schemaEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, schemaEntry{ID: "MSG.HB", Level: 1, Description: "GMSEC Heartbeat Message"}, entries[0])

	out, err = execute(t, "list", "--level", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "schema level 0 (C2MS)")
	assert.Contains(t, out, "Directive Response Message")
	assert.NotContains(t, out, "GMSEC Heartbeat Message")

	_, err = execute(t, "list", "--level", "9")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestList_BadConfig(t *testing.T) {
	_, err := execute(t, "list", "--set", "gmsec-schema-level=12")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestTemplate(t *testing.T) {
	out, err := execute(t, "template", "HB", "--subject", "C2MS.TEST.HB")
	require.NoError(t, err)
	assert.Contains(t, out, `SUBJECT="C2MS.TEST.HB"`)
	assert.Contains(t, out, "MESSAGE-SUBTYPE")

	out, err = execute(t, "template", "MSG.HB", "--fields")
	require.NoError(t, err)
	assert.Contains(t, out, "MSG.HB (PUBLISH, level 0)")
	assert.Contains(t, out, "H MISSION-ID")
	assert.Contains(t, out, "PUB-RATE")

	_, err = execute(t, "template", "MSG.NOPE")
	assert.ErrorIs(t, err, errors.ErrSchemaNotFound)
}

func writeMessage(t *testing.T, dir, name string, msg *message.Message) string {
	t.Helper()
	data, err := msg.ToJSON()
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestValidate(t *testing.T) {
	spec, err := mist.New(nil)
	require.NoError(t, err)

	msg, err := spec.NewMessage("HB",
		message.NewStringField("MISSION-ID", "MISSION"),
		message.NewStringField("COMPONENT", "COMP"),
		message.NewStringField("PUBLISH-TIME", "2024-100-12:00:00.000"))
	require.NoError(t, err)

	dir := t.TempDir()
	bad := writeMessage(t, dir, "bad.json", msg)

	msg.AddField(message.NewI16Field("PUB-RATE", 30))
	good := writeMessage(t, dir, "good.json", msg)

	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "good.json: valid MSG.HB")

	out, err = execute(t, "validate", good, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMessageValidation)
	assert.Contains(t, out, "bad.json: invalid")
	assert.Contains(t, out, "PUB-RATE")

	out, err = execute(t, "validate", filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, out, "unreadable")
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gmsec-specification-version: 201400\n"), 0o600))

	out, err := execute(t, "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Specification 201400")

	out, err = execute(t, "list", "--config", path, "--set", "gmsec-specification-version=201900")
	require.NoError(t, err)
	assert.Contains(t, out, "Specification 201900", "--set overrides the file")
}

func TestHeartbeat_RunsForDuration(t *testing.T) {
	out, err := execute(t, "heartbeat", "--duration", "300ms", "--rate", "1", "--resource-rate", "1s")
	require.NoError(t, err)
	assert.Contains(t, out, "Publishing heartbeats every 1s over loopback")
}

func TestValidate_ReportsInArgumentOrder(t *testing.T) {
	spec, err := mist.New(nil)
	require.NoError(t, err)
	msg, err := spec.NewMessage("HB",
		message.NewStringField("MISSION-ID", "MISSION"),
		message.NewStringField("COMPONENT", "COMP"),
		message.NewStringField("PUBLISH-TIME", "2024-100-12:00:00.000"),
		message.NewI16Field("PUB-RATE", 30))
	require.NoError(t, err)

	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.json", "b.json", "c.json", "d.json"} {
		paths = append(paths, writeMessage(t, dir, name, msg))
	}

	out, err := execute(t, append([]string{"validate"}, paths...)...)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	for i, path := range paths {
		assert.True(t, strings.HasPrefix(lines[i], path+": valid"), lines[i])
	}
}

func TestSchema_Stdout(t *testing.T) {
	out, err := execute(t, "schema", "HB")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "MSG.HB", doc["title"])

	_, err = execute(t, "schema")
	assert.True(t, errors.IsInvalid(err))

	_, err = execute(t, "schema", "MSG.NOPE")
	assert.ErrorIs(t, err, errors.ErrSchemaNotFound)
}

func TestSchema_ExportDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "schemas")

	out, err := execute(t, "schema", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote ")

	data, err := os.ReadFile(filepath.Join(dir, "MSG.HB.201900.json"))
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 5)
}

func TestSubscribe_PrintsMessages(t *testing.T) {
	publisher, err := connmgr.New(nil)
	require.NoError(t, err)
	require.NoError(t, publisher.Initialize(context.Background()))
	t.Cleanup(func() { _ = publisher.Cleanup(context.Background()) })
	hb, err := publisher.Specification().NewMessage("HB",
		message.NewStringField("MISSION-ID", "MISSION"),
		message.NewStringField("COMPONENT", "PUB"),
		message.NewI16Field("PUB-RATE", 1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = publisher.Publish(ctx, hb)
			}
		}
	}()

	out, err := execute(t, "subscribe", "C2MS.>", "--count", "2", "--duration", "5s", "--validate")
	cancel()
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, `"PUB-RATE"`))
	assert.Equal(t, 2, strings.Count(out, "# valid"))
}

func TestSubscribe_StopsAfterDuration(t *testing.T) {
	start := time.Now()
	_, err := execute(t, "subscribe", "NOBODY.PUBLISHES.HERE", "--duration", "100ms")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
