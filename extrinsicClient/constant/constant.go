package constant

import "os"

// <NodeDir>/                    (e.g., /home/alice/.subskribinto)
// └── config/
//	└── subskribinto_config.json

const (
	NodeDir = ".subskribinto"

	ConfigSubdir   = "config"
	ConfigFileName = "subskribinto_config.json"

	// EnvPrefix prefixes every environment variable the CLI reads.
	EnvPrefix = "SUBSKRIBINTO"
)

var DefaultNodeHome = os.ExpandEnv("$HOME/") + NodeDir
