package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gookit/color"
	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Koanf struct {
	k *koanf.Koanf
}

// New reads envPath (when it exists) and then the process environment.
// callback runs after every change to envPath when watchEnv is set.
func New(envPath string, watchEnv bool, callback func()) (*Koanf, error) {
	app := &Koanf{k: koanf.New(".")}
	if envPath != "" {
		f := file.Provider(envPath)
		if _, err := os.Stat(envPath); err == nil {
			if err := app.k.Load(f, dotenv.Parser()); err != nil {
				return nil, fmt.Errorf("loading %s: %w", envPath, err)
			}
			if watchEnv {
				err := f.Watch(func(event interface{}, err error) {
					if err != nil {
						color.Red.Println("watch error: " + err.Error())
						return
					}
					if err := app.k.Load(f, dotenv.Parser()); err != nil {
						color.Red.Println("reloading " + envPath + ": " + err.Error())
						return
					}
					if callback != nil {
						callback()
					}
				})
				if err != nil {
					return nil, fmt.Errorf("watching %s: %w", envPath, err)
				}
			}
		} else {
			color.Yellow.Println("No .env file found at " + envPath)
		}
	}
	if err := app.k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}
	return app, nil
}

// Env retrieves a config value from the environment with an optional default.
func (app *Koanf) Env(envName string, defaultValue ...any) any {
	return app.Get(envName, defaultValue...)
}

// Add adds a configuration to the application.
func (app *Koanf) Add(name string, configuration any) {
	if err := app.k.Set(name, configuration); err != nil {
		panic(err)
	}
}

// Get retrieves a config value from the application.
func (app *Koanf) Get(path string, defaultValue ...any) any {
	value := app.k.Get(path)
	if value == nil {
		if len(defaultValue) > 0 {
			return defaultValue[0]
		}
		return nil
	}
	return value
}

// GetString retrieves a string type config value from the application.
func (app *Koanf) GetString(path string, defaultValue ...any) string {
	switch v := app.Get(path, defaultValue...).(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// GetInt retrieves an int type config value from the application.
func (app *Koanf) GetInt(path string, defaultValue ...any) int {
	switch v := app.Get(path, defaultValue...).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	if len(defaultValue) > 0 {
		if d, ok := defaultValue[0].(int); ok {
			return d
		}
	}
	return 0
}

func (app *Koanf) GetDuration(path string, defaultValue ...any) time.Duration {
	if duration, ok := toDuration(app.Get(path, defaultValue...)); ok {
		return duration
	}
	if len(defaultValue) > 0 {
		if duration, ok := toDuration(defaultValue[0]); ok {
			return duration
		}
	}
	return 0
}

func toDuration(value any) (time.Duration, bool) {
	switch v := value.(type) {
	case time.Duration:
		return v, true
	case string:
		if duration, err := time.ParseDuration(v); err == nil {
			return duration, true
		}
	}
	return 0, false
}

// GetBool retrieves a bool type config value from the application.
func (app *Koanf) GetBool(path string, defaultValue ...any) bool {
	switch v := app.Get(path, defaultValue...).(type) {
	case bool:
		return v
	case string:
		if boolVal, err := strconv.ParseBool(v); err == nil {
			return boolVal
		}
	}
	if len(defaultValue) > 0 {
		if d, ok := defaultValue[0].(bool); ok {
			return d
		}
	}
	return false
}
