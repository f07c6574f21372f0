package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"visits/internal/config"
	"visits/internal/detection"
	"visits/internal/domain"
	"visits/internal/localstore"
	"visits/internal/location"
	"visits/internal/syncer"
	"visits/internal/visitapi"
)

// sampleLine is one NDJSON location sample read from stdin.
type sampleLine struct {
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	Accuracy float64   `json:"accuracy,omitempty"`
	Time     time.Time `json:"time,omitempty"`
}

// healthProbe reports online status by probing the API health endpoint.
type healthProbe struct {
	client *visitapi.Client
}

func (p *healthProbe) Online(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.client.Health(probeCtx) == nil
}

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	userID := cfg.Tracker.UserID
	if userID == "" {
		log.Fatal("TRACKER_USER_ID is required")
	}

	store, err := localstore.Open(cfg.LocalStore.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to open local store")
	}
	defer store.Close()

	client := visitapi.NewClient(cfg.Tracker.APIBaseURL)
	catalog := detection.NewCatalog(client, 0, 0)
	provider := location.NewSimulatedProvider()
	provider.SetPermission(location.PermissionGranted)

	engine := detection.NewEngine(detection.Config{
		DwellThreshold:        cfg.Detection.DwellThreshold,
		DepartureConfirmation: cfg.Detection.DepartureConfirmation,
		DefaultVenueRadiusKm:  cfg.Detection.DefaultVenueRadiusKm,
	}, userID, store, catalog, provider, log)

	worker := syncer.NewWorker(store, client, &healthProbe{client: client}, syncer.Config{
		Interval:      cfg.Sync.Interval,
		BatchSize:     cfg.Sync.BatchSize,
		MaxRejections: cfg.Sync.MaxRejections,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start detection engine")
	}
	defer func() {
		if err := engine.Stop(); err != nil {
			log.WithError(err).Warn("failed to stop detection engine")
		}
	}()

	go worker.Run(ctx)

	// Location samples arrive as NDJSON on stdin, one fix per line.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var s sampleLine
			if err := json.Unmarshal(line, &s); err != nil {
				log.WithError(err).Warn("skipping malformed sample line")
				continue
			}
			if s.Time.IsZero() {
				s.Time = time.Now()
			}

			provider.Emit(location.Position{
				Coords:    domain.Coordinates{Latitude: s.Lat, Longitude: s.Lng},
				AccuracyM: s.Accuracy,
				Time:      s.Time,
			})
		}
		if err := scanner.Err(); err != nil {
			log.WithError(err).Error("sample stream error")
		}
	}()

	log.WithFields(logrus.Fields{
		"user_id": userID,
		"api_url": cfg.Tracker.APIBaseURL,
		"store":   cfg.LocalStore.Path,
	}).Info("tracker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down tracker")

	// Push any remaining visits before exit.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := worker.ForceSync(flushCtx); err != nil && err != syncer.ErrSyncInFlight {
		log.WithError(err).Warn("final sync failed")
	}
}
