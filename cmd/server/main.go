package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"

	"retailpos/backend/internal/cache"
	"retailpos/backend/internal/config"
	"retailpos/backend/internal/httpapi"
	"retailpos/backend/internal/loyalty"
	"retailpos/backend/internal/sales"
	"retailpos/backend/internal/service"
	"retailpos/backend/internal/stock"
	"retailpos/backend/internal/store"
	"retailpos/backend/internal/store/memory"
	pgstore "retailpos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	catalogCache := cache.CatalogCache(cache.NoopCatalogCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCatalogCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			catalogCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	ledger := stock.NewLedger(repo)
	syncer := stock.NewSynchronizer(repo)
	points := loyalty.NewLedger(repo)
	orchestrator := sales.NewOrchestrator(repo, ledger, syncer, points)
	svc := service.New(repo, catalogCache, ledger, points)
	svc.SetCatalogTTL(time.Duration(cfg.CatalogTTLSeconds) * time.Second)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN, repo)
	api := httpapi.New(svc, orchestrator, syncer, points, auth, cfg.AllowedOrigin, cfg.LoyaltyExpiryDays)

	scheduler := startJobs(syncer, points, cfg.LoyaltyExpiryDays)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	scheduler.Stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

// startJobs schedules the nightly maintenance sweeps: repair drifted stock
// counters, repair drifted loyalty balances, then expire stale points. They
// run in the quiet hours so repairs never race the checkout rush.
func startJobs(syncer *stock.Synchronizer, points *loyalty.Ledger, expiryDays int) *gocron.Scheduler {
	scheduler := gocron.NewScheduler(time.UTC)

	_, err := scheduler.Every(1).Day().At("03:00").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		report, err := syncer.ReconcileAll(ctx)
		if err != nil {
			log.Printf("[jobs] stock reconcile failed: %v", err)
			return
		}
		log.Printf("[jobs] stock reconcile: checked=%d repaired=%d failures=%d", report.Checked, report.Repaired, len(report.Failures))
	})
	if err != nil {
		log.Printf("[jobs] failed to schedule stock reconcile: %v", err)
	}

	_, err = scheduler.Every(1).Day().At("03:20").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		report, err := points.ReconcileAll(ctx)
		if err != nil {
			log.Printf("[jobs] loyalty reconcile failed: %v", err)
			return
		}
		log.Printf("[jobs] loyalty reconcile: checked=%d repaired=%d failures=%d", report.Checked, report.Repaired, len(report.Failures))
	})
	if err != nil {
		log.Printf("[jobs] failed to schedule loyalty reconcile: %v", err)
	}

	_, err = scheduler.Every(1).Day().At("03:40").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		report, err := points.ExpireOlderThan(ctx, expiryDays)
		if err != nil {
			log.Printf("[jobs] loyalty expiry failed: %v", err)
			return
		}
		log.Printf("[jobs] loyalty expiry: customers=%d points=%d", report.CustomersAffected, report.PointsExpired)
	})
	if err != nil {
		log.Printf("[jobs] failed to schedule loyalty expiry: %v", err)
	}

	scheduler.StartAsync()
	return scheduler
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"222222": true, "333333": true, "444444": true, "555555": true,
		"666666": true, "777777": true, "888888": true, "999999": true,
		"121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
