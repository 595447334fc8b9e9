package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Option is a single named configuration value with a default
type Option struct {
	Name    string
	Default interface{}
}

func (o *Option) GetString() string {
	return viper.GetString(o.Name)
}

func (o *Option) GetInt() int {
	return viper.GetInt(o.Name)
}

func (o *Option) GetBool() bool {
	return viper.GetBool(o.Name)
}

var (
	PQHost     = register("pq.host", "localhost")
	PQUsername = register("pq.username", "postgres")
	PQPassword = register("pq.password", "")
	PQDB       = register("pq.db", "engage")

	RedisAddr = register("redis.addr", "localhost:6379")

	StatsdAddr = register("statsd.addr", "")

	// skips running CREATE TABLE IF NOT EXISTS statements on startup
	NoSchemaInit = register("no.schema.init", false)
)

var registered []*Option

func register(name string, def interface{}) *Option {
	opt := &Option{Name: name, Default: def}
	registered = append(registered, opt)
	return opt
}

// Load reads configuration from the environment (ENGAGE_PQ_HOST and so on)
// and from an optional engage.yaml in the working directory
func Load() error {
	viper.SetEnvPrefix("engage")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for _, opt := range registered {
		viper.SetDefault(opt.Name, opt.Default)
	}

	viper.SetConfigName("engage")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	return nil
}
