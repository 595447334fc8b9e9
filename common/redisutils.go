package common

import (
	"encoding/json"
	"time"

	"emperror.dev/errors"
	"github.com/mediocregopher/radix/v3"
)

// GetRedisJson executes a get redis command and unmarshals the value into out
func GetRedisJson(key string, out interface{}) error {
	var resp []byte
	err := RedisPool.Do(radix.Cmd(&resp, "GET", key))
	if err != nil {
		return err
	}

	if len(resp) == 0 {
		return nil
	}

	err = json.Unmarshal(resp, out)
	return err
}

// SetRedisJson marshals the value and runs a set redis command for key
func SetRedisJson(key string, value interface{}) error {
	serialized, err := json.Marshal(value)
	if err != nil {
		return err
	}

	err = RedisPool.Do(radix.Cmd(nil, "SET", key, string(serialized)))
	return err
}

// TryLockRedisKey attempts to lock the key, and if successful sets it to
// expire after maxDur seconds so that nothing stays locked forever
func TryLockRedisKey(key string, maxDur int) (bool, error) {
	var resp string
	err := RedisPool.Do(radix.FlatCmd(&resp, "SET", key, true, "NX", "EX", maxDur))
	if err != nil {
		return false, err
	}

	return resp == "OK", nil
}

var ErrMaxLockAttemptsExceeded = errors.NewPlain("max lock attempts exceeded")

// BlockingLockRedisKey blocks until it suceeded to lock the key
func BlockingLockRedisKey(key string, maxTryDuration time.Duration, maxLockDur int) error {
	started := time.Now()
	sleepDur := time.Millisecond * 100
	maxSleep := time.Second
	for {
		if maxTryDuration != 0 && time.Since(started) > maxTryDuration {
			return ErrMaxLockAttemptsExceeded
		}

		locked, err := TryLockRedisKey(key, maxLockDur)
		if err != nil {
			return errors.WithStackIf(err)
		}

		if locked {
			return nil
		}

		time.Sleep(sleepDur)
		sleepDur *= 2
		if sleepDur > maxSleep {
			sleepDur = maxSleep
		}
	}
}

func UnlockRedisKey(key string) {
	RedisPool.Do(radix.Cmd(nil, "DEL", key))
}
