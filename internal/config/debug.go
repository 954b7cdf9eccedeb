package config

import "os"

func IsDebug() bool {
	return os.Getenv("OPSBOT_DEBUG") == "1"
}
