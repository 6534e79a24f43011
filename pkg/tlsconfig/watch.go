package tlsconfig

import (
	"context"
	"os"
	"time"

	"penumbra-x/tlserve/pkg/log"
)

const defaultWatchInterval = 5 * time.Second

// Watch polls the given PEM files and reloads the cell whenever either
// file's modification time changes. It blocks until ctx is cancelled,
// so run it on its own goroutine.
//
// A failed reload keeps the last-known-good snapshot and is reported
// through onErr (or the default error log when onErr is nil); it is
// never swallowed.
func (c *Config) Watch(ctx context.Context, certFile, keyFile string, interval time.Duration, onErr func(error)) {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	if onErr == nil {
		onErr = func(err error) {
			log.ErrorMsg("reloading TLS configuration: %s\n", err)
		}
	}

	lastCert, lastKey, err := modTimes(certFile, keyFile)
	if err != nil {
		onErr(err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		certTime, keyTime, err := modTimes(certFile, keyFile)
		if err != nil {
			onErr(err)
			continue
		}
		if certTime.Equal(lastCert) && keyTime.Equal(lastKey) {
			continue
		}

		if err := c.ReloadFromPEMFile(certFile, keyFile); err != nil {
			onErr(err)
			continue
		}
		lastCert, lastKey = certTime, keyTime
	}
}

func modTimes(certFile, keyFile string) (time.Time, time.Time, error) {
	certInfo, err := os.Stat(certFile)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	keyInfo, err := os.Stat(keyFile)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return certInfo.ModTime(), keyInfo.ModTime(), nil
}
