package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/shaunagostinho/nmeatap/internal/gps"
	"github.com/shaunagostinho/nmeatap/internal/server"
)

func main() {
	configPath := flag.String("config", "/etc/nmeatap/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Read simulated GPS sentences instead of a serial port")
	listenAddr := flag.String("listen", "", "Serve fixes over HTTP/WebSocket (e.g. :8080)")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] nmeatap starting")

	cfg := server.LoadConfig(*configPath)

	if *demo {
		cfg.GPS.Type = "demo"
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("[main] %v", err)
	}
}

// run reads the configured GPS until ctx is cancelled or the device stops,
// printing every position fix to out.
func run(ctx context.Context, cfg *server.Config, out io.Writer) error {
	var opts []gps.Option
	switch cfg.GPS.Type {
	case "nmea", "":
	case "demo":
		opts = append(opts, gps.WithOpener(gps.OpenDemo))
	default:
		return fmt.Errorf("unknown gps type %q", cfg.GPS.Type)
	}

	dev := gps.NewDevice(ctx, cfg.GPS, opts...)
	dev.Subscribe(gps.OnPosition(gps.ConsoleWriter(out)))

	if cfg.Server.ListenAddr != "" {
		srv := server.New(cfg)
		dev.Subscribe(gps.OnPosition(srv.PublishFix))
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("[main] server exited: %v", err)
			}
		}()
	}

	if err := connectWithRetry(ctx, "GPS", dev, 10); err != nil {
		dev.Close()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	select {
	case <-ctx.Done():
	case <-dev.Done():
		log.Printf("[main] %s stopped reading", dev.Name())
	}
	if err := dev.Close(); err != nil {
		log.Printf("[main] %v", err)
	}
	logStats(dev.Stats())
	return nil
}

func logStats(st gps.Stats) {
	log.Printf("[main] read %s lines: %s sentences, %s undecodable, %s handler failures, %s read errors",
		humanize.Comma(int64(st.Lines)),
		humanize.Comma(int64(st.Sentences)),
		humanize.Comma(int64(st.DecodeFailures)),
		humanize.Comma(int64(st.HandlerFailures)),
		humanize.Comma(int64(st.ReadErrors)))
}

type opener interface {
	Open() error
}

// connectWithRetry attempts to open with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, retries up to maxAttempts
// then continues at max interval indefinitely. It returns ctx.Err() if
// cancelled before connecting, or the error if the device can never open.
func connectWithRetry(ctx context.Context, name string, c opener, maxAttempts int) error {
	return connectWithBackoff(ctx, name, c, maxAttempts, 1*time.Second, 60*time.Second)
}

func connectWithBackoff(ctx context.Context, name string, c opener, maxAttempts int, delay, maxDelay time.Duration) error {
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.Open()
		if err == nil {
			log.Printf("[%s] connected successfully (attempt %d)", name, attempt+1)
			return nil
		}
		var connErr *gps.ConnectionError
		if !errors.As(err, &connErr) {
			return err
		}

		attempt++
		if attempt <= maxAttempts {
			log.Printf("[%s] connect attempt %d/%d failed: %v (retry in %v)",
				name, attempt, maxAttempts, err, delay)
		} else {
			log.Printf("[%s] connect attempt %d failed: %v (retry in %v)",
				name, attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
