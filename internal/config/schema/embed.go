package schema

import _ "embed"

//go:embed cygfetch-config.schema.json
var ConfigSchema []byte
