package ordinator

import (
	"io/fs"
	"math/rand/v2"
	"os"
	"time"
)

// createDirectoryIfNotExist permits to check if a directory exist
// and create it if not. An error will be return if there is any
func createDirectoryIfNotExist(d string, perm fs.FileMode) error {
	if _, err := os.Stat(d); os.IsNotExist(err) {
		if err := os.MkdirAll(d, perm); err != nil {
			return err
		}
		return nil
	}
	return nil
}

// backoff is used to calculate exponential backoff
// time to wait before processing again
func backoff(wait time.Duration, failures, maxFailures uint64) time.Duration {
	power := min(failures, maxFailures)
	for power > 0 {
		wait *= 2
		power--
	}
	return wait
}

// randomTimeout returns a random duration in [duration, 2*duration)
func randomTimeout(duration time.Duration) time.Duration {
	if duration <= 0 {
		return 0
	}
	return duration + rand.N(duration)
}
