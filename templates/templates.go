// Package templates embeds the message definitions shipped with the
// module, one directory per specification version.
package templates

import "embed"

// FS holds the 2014.00 (GMSEC legacy) and 2019.00 (C2MS) definitions
//
//go:embed 2014.00 2019.00
var FS embed.FS
