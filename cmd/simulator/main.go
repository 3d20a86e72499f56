// Command simulator feeds the device health API with test reports.
//
// Usage:
//
//	simulator seed [-url http://localhost:8000]
//	simulator run  [-url ...] [-device sensor01] [-interval 10s] [-count 0]
//
// seed posts five fixture devices covering every alert condition. run posts
// a random report for one device every interval until interrupted, or
// count reports when count is positive.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/devicehealth/internal/infrastructure/config"
	"github.com/nerrad567/devicehealth/internal/infrastructure/logging"
)

var version = "dev"

const (
	defaultURL      = "http://localhost:8000"
	defaultDevice   = "sensor01"
	defaultInterval = 10 * time.Second
	requestTimeout  = 5 * time.Second
)

var errUsage = errors.New("usage: simulator <seed|run> [flags]")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := logging.New(config.LoggingConfig{Level: "info", Format: "text", Output: "stdout"}, version)

	if err := run(ctx, os.Args[1:], log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, log *logging.Logger) error {
	if len(args) == 0 {
		return errUsage
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	url := fs.String("url", defaultURL, "device health API base URL")
	deviceID := fs.String("device", defaultDevice, "device id to simulate (run)")
	interval := fs.Duration("interval", defaultInterval, "time between reports (run)")
	count := fs.Int("count", 0, "number of reports to send, 0 for unlimited (run)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	rep := newReporter(*url, requestTimeout)

	switch args[0] {
	case "seed":
		return seed(ctx, rep, log)
	case "run":
		rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
		return simulate(ctx, rep, rng, *deviceID, *interval, *count, log)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

// seed posts every fixture device and stops at the first failure.
func seed(ctx context.Context, rep *reporter, log *logging.Logger) error {
	for _, report := range fixtures() {
		reply, err := rep.Send(ctx, report)
		if err != nil {
			return err
		}
		logReply(log, reply)
	}
	return nil
}

// simulate posts random reports until ctx ends or count reports were sent.
// Failed posts are logged and retried on the next tick.
func simulate(ctx context.Context, rep *reporter, rng *rand.Rand, deviceID string, interval time.Duration, count int, log *logging.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for sent := 0; count <= 0 || sent < count; sent++ {
		reply, err := rep.Send(ctx, randomReport(rng, deviceID))
		if err != nil {
			log.Warn("report failed", "error", err)
		} else {
			logReply(log, reply)
		}

		if count > 0 && sent+1 >= count {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func logReply(log *logging.Logger, reply ingestReply) {
	attrs := []any{
		"device_id", reply.Data.DeviceID,
		"status", reply.Data.Status,
		"battery", reply.Data.Battery,
	}
	if reply.Alert != nil {
		attrs = append(attrs, "alert", reply.Alert.Issue)
	}
	log.Info(reply.Msg, attrs...)
}
