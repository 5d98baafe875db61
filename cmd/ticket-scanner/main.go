package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"ms-ticket-lifecycle/internal/checkin"
	"ms-ticket-lifecycle/internal/config"
	"ms-ticket-lifecycle/internal/database"
	"ms-ticket-lifecycle/internal/logger"
	"ms-ticket-lifecycle/internal/models"
	"ms-ticket-lifecycle/internal/scanner"
	"ms-ticket-lifecycle/internal/tickets/qr"
)

type options struct {
	imageURL  string
	file      string
	cameraURL string
	interval  time.Duration
	commit    bool
	operator  string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	flagSet := pflag.NewFlagSet("ticket-scanner", pflag.ContinueOnError)
	flagSet.StringVar(&opts.imageURL, "url", "", "decode a QR image by URL")
	flagSet.StringVar(&opts.file, "file", "", "decode a QR image file")
	flagSet.StringVar(&opts.cameraURL, "camera-url", "", "poll an IP camera snapshot endpoint until a code is read")
	flagSet.DurationVar(&opts.interval, "interval", 0, "camera sampling interval (default SCAN_INTERVAL)")
	flagSet.BoolVar(&opts.commit, "checkin", false, "check the ticket in when it validates")
	flagSet.StringVar(&opts.operator, "operator", os.Getenv("USER"), "operator recorded on check-in")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintf(os.Stderr, "Usage: ticket-scanner (--url URL | --file PATH | --camera-url URL) [--checkin]\n\n")
		flagSet.PrintDefaults()
		return nil
	}

	set := 0
	for _, v := range []string{opts.imageURL, opts.file, opts.cameraURL} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return errors.New("exactly one of --url, --file or --camera-url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	log := logger.NewLogger(logger.Options{Out: os.Stderr, Level: logger.ParseLevel(cfg.Log.Level)})
	defer log.Close()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer bunDB.Close()

	cache := checkin.Cache(checkin.NewMemoryCache())
	if client, err := database.ConnectRedis(ctx, cfg.Redis, log); err == nil {
		defer client.Close()
		cache = checkin.NewRedisCache(client, cfg.Redis.CacheTTL)
	}
	validator := checkin.NewValidator(checkin.NewLedger(bunDB), cache, nil, log)
	decoder := qr.NewDecodeClient(cfg.QR.DecodeURL, cfg.QR.HTTPTimeout)

	var (
		identity *models.TicketIdentity
		result   checkin.Result
		source   models.CheckInSource
	)

	switch {
	case opts.cameraURL != "":
		source = models.CheckInSourceCamera
		interval := opts.interval
		if interval <= 0 {
			interval = cfg.Scanner.Interval
		}
		session := scanner.Start(ctx, "cli", scanner.Config{
			Source:    scanner.NewSnapshotCamera(opts.cameraURL, cfg.Scanner.CameraSnapshotTimeout, cfg.Scanner.CameraMaxFailures),
			Decoder:   decoder,
			Validator: validator,
			Interval:  interval,
			Logger:    log,
		})
		<-session.Done()

		res := session.Result()
		if res.Status != scanner.StatusDecoded {
			return fmt.Errorf("scan ended: %s %s", res.Status, res.Error)
		}
		if res.Validation == nil {
			return fmt.Errorf("decoded %q but it is not a ticket: %s", res.Text, res.Error)
		}
		identity, result = res.Identity, *res.Validation

	default:
		oneShot := &scanner.OneShot{Decoder: decoder, Validator: validator}
		var res *scanner.OneShotResult
		if opts.imageURL != "" {
			source = models.CheckInSourceURL
			res, err = oneShot.FromURL(ctx, opts.imageURL)
		} else {
			source = models.CheckInSourceFile
			var data []byte
			data, err = os.ReadFile(opts.file)
			if err != nil {
				return err
			}
			res, err = oneShot.FromImage(ctx, data, filepath.Base(opts.file))
		}
		if err != nil {
			return err
		}
		identity, result = res.Identity, res.Validation
	}

	report := map[string]interface{}{"identity": identity, "result": result}
	if opts.commit && result.OK {
		entry, err := validator.CheckIn(ctx, checkin.Request{
			TicketID:  identity.TicketID,
			EventID:   identity.EventID,
			EventName: identity.EventName,
			ScannedBy: opts.operator,
			Source:    source,
		})
		if err != nil {
			return err
		}
		report["checkin"] = entry
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("ticket %s: %s", result.TicketID, result.Reason)
	}
	return nil
}
