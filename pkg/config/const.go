package config

import "time"

const (
	DefaultConfigFile  = "irdecode.yaml"
	DefaultTolerance   = 25
	DefaultMarkExcess  = 50
	DefaultRawTick     = 1
	DefaultReplayDelay = 100 * time.Millisecond
	DefaultVizPort     = 8080
	DefaultStorePath   = "irdecode.db"
	DefaultLogLevel    = "info"
)
