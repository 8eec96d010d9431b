package config

import "os"

func IsDebug() bool {
	return os.Getenv("TB_DEBUG") == "1"
}
