package taskutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/cenkalti/backoff/v4"
)

// Attempts returns how many polls fit in timeout, at least one.
func Attempts(timeout, interval time.Duration) int {
	if interval <= 0 {
		return 1
	}
	return max(1, int(timeout/interval))
}

// WaitForPort polls the host until port is (or, with listening false, is no
// longer) in LISTEN state, giving up after Attempts(timeout, interval) polls.
func WaitForPort(ctx context.Context, conn server.Connection, port int, listening bool, timeout, interval time.Duration) error {
	attempts := Attempts(timeout, interval)
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(attempts-1)), ctx)

	want := "listening"
	if !listening {
		want = "closed"
	}

	err := backoff.Retry(func() error {
		ports, _, err := ListeningPorts(ctx, conn)
		if err != nil {
			if server.IsTransportLoss(err) || errors.Is(err, ErrNoPortTool) {
				return backoff.Permanent(err)
			}
			return err
		}
		if _, ok := ports[port]; ok != listening {
			return fmt.Errorf("port %d not %s", port, want)
		}
		return nil
	}, b)
	if err != nil {
		return fmt.Errorf("wait for port %d %s after %d attempts: %w", port, want, attempts, err)
	}
	return nil
}
