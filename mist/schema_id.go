package mist

import "strings"

// LegacyCutoverVersion is the first specification version using the
// C2MS schema IDs; earlier versions use the GMSEC C2CX forms.
const LegacyCutoverVersion = 201600

type schemaIDAlias struct {
	legacy string
	modern string
}

// schemaIDAliases maps short names and both canonical spellings to the
// legacy and modern schema IDs.
var schemaIDAliases = map[string]schemaIDAlias{
	"HB":            {"MSG.C2CX.HB", "MSG.HB"},
	"MSG.HB":        {"MSG.C2CX.HB", "MSG.HB"},
	"MSG.C2CX.HB":   {"MSG.C2CX.HB", "MSG.HB"},
	"RSRC":          {"MSG.C2CX.RSRC", "MSG.RSRC"},
	"MSG.RSRC":      {"MSG.C2CX.RSRC", "MSG.RSRC"},
	"MSG.C2CX.RSRC": {"MSG.C2CX.RSRC", "MSG.RSRC"},
	"DEV":           {"MSG.C2CX.DEV", "MSG.DEV"},
	"MSG.DEV":       {"MSG.C2CX.DEV", "MSG.DEV"},
	"MSG.C2CX.DEV":  {"MSG.C2CX.DEV", "MSG.DEV"},
	"CFG":           {"MSG.C2CX.CFG", "MSG.CFG"},
	"MSG.CFG":       {"MSG.C2CX.CFG", "MSG.CFG"},
	"MSG.C2CX.CFG":  {"MSG.C2CX.CFG", "MSG.CFG"},
	"LOG":           {"MSG.LOG", "MSG.LOG"},
	"MVAL":          {"MSG.MVAL", "MSG.MVAL"},
	"PROD":          {"MSG.PROD", "MSG.PROD"},
	"TLMFRAME":      {"MSG.TLMFRAME", "MSG.TLMFRAME"},
	"DIR":           {"REQ.DIR", "REQ.DIR"},
	"REQ.DIR":       {"REQ.DIR", "REQ.DIR"},
	"RESP.DIR":      {"RESP.DIR", "RESP.DIR"},
	"CMD":           {"REQ.CMD", "REQ.CMD"},
}

// ResolveSchemaID translates an alias to the canonical schema ID for
// version. IDs not in the alias table are returned unchanged (upper cased)
// so user-defined schemas resolve to themselves.
func ResolveSchemaID(version int, id string) string {
	key := strings.ToUpper(strings.TrimSpace(id))
	alias, ok := schemaIDAliases[key]
	if !ok {
		return key
	}
	if version < LegacyCutoverVersion {
		return alias.legacy
	}
	return alias.modern
}
