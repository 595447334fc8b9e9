package common

import (
	"database/sql"

	"emperror.dev/errors"
	"github.com/DataDog/datadog-go/statsd"
	"github.com/jonas747/engage/common/config"
	"github.com/mediocregopher/radix/v3"
	"github.com/sirupsen/logrus"

	// we only access postgres through database/sql
	_ "github.com/lib/pq"
)

const (
	VERSION = "ENGAGE (built from source)"
)

var (
	PQ        *sql.DB
	RedisPool *radix.Pool

	// Statsd is nil unless a statsd address is configured
	Statsd *statsd.Client

	logger = logrus.WithField("p", "common")
)

// Init connects the shared postgres and redis handles and has to be called
// before any plugin is registered
func Init() error {
	err := config.Load()
	if err != nil {
		return errors.WithMessage(err, "config")
	}

	err = connectRedis(config.RedisAddr.GetString())
	if err != nil {
		return err
	}

	err = connectDB(config.PQHost.GetString(), config.PQUsername.GetString(),
		config.PQPassword.GetString(), config.PQDB.GetString())
	if err != nil {
		return err
	}

	if addr := config.StatsdAddr.GetString(); addr != "" {
		Statsd, err = statsd.New(addr)
		if err != nil {
			return errors.WithMessage(err, "statsd")
		}
	}

	return nil
}

func connectRedis(addr string) error {
	var err error
	RedisPool, err = radix.NewPool("tcp", addr, 25)
	if err != nil {
		logger.WithError(err).Fatal("Failed initializing redis pool")
	}

	return err
}

func connectDB(host, user, pass, dbName string) error {
	if host == "" {
		host = "localhost"
	}

	db, err := sql.Open("postgres", "host="+host+" user="+user+" dbname="+dbName+" sslmode=disable password='"+pass+"'")
	PQ = db
	if err == nil {
		PQ.SetMaxOpenConns(5)
	}

	return errors.WithMessage(err, "sql.Open")
}

// StatsdIncr is a helper that does nothing when statsd is not set up
func StatsdIncr(name string, tags []string, rate float64) {
	if Statsd == nil {
		return
	}

	err := Statsd.Incr(name, tags, rate)
	if err != nil {
		logger.WithError(err).Error("failed incrementing statsd counter ", name)
	}
}
