package contracts

import (
	"time"
)

type Config interface {
	Env(envName string, defaultValue ...any) any
	Add(name string, configuration any)
	Get(path string, defaultValue ...any) any
	GetString(path string, defaultValue ...any) string
	GetInt(path string, defaultValue ...any) int
	GetBool(path string, defaultValue ...any) bool
	GetDuration(path string, defaultValue ...any) time.Duration
}
