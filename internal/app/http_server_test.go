package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/bakery/internal/health"
	"github.com/vladislavdragonenkov/bakery/internal/metrics"
	"github.com/vladislavdragonenkov/bakery/internal/version"
)

func TestStartMetricsServer_Probes(t *testing.T) {
	testCases := []struct {
		name        string
		storageErr  error
		wantHealthz int
		wantReadyz  int
		healthBody  string
	}{
		{name: "healthy", wantHealthz: http.StatusOK, wantReadyz: http.StatusOK, healthBody: `"status":"healthy"`},
		{name: "storage down", storageErr: errors.New("connection refused"), wantHealthz: http.StatusServiceUnavailable, wantReadyz: http.StatusServiceUnavailable, healthBody: "connection refused"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			registry := prometheus.NewRegistry()
			metrics.NewShopMetrics(registry).RecordCartMutation("add")

			healthHandler := healthcheck.NewHandler(version.GetVersion())
			healthHandler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func(context.Context) error {
				return tc.storageErr
			}))

			addr := fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
			if srv := startMetricsServer(ctx, addr, log.WithField("test", tc.name), registry, healthHandler); srv == nil {
				t.Fatal("startMetricsServer should not return nil")
			}
			base := "http://" + addr
			waitForServer(t, base+"/livez")

			if body := getBody(t, base+"/livez", http.StatusOK); body != "ok" {
				t.Errorf("liveness must not depend on checks, got %q", body)
			}
			if body := getBody(t, base+"/healthz", tc.wantHealthz); !strings.Contains(body, tc.healthBody) {
				t.Errorf("unexpected /healthz body: %s", body)
			}
			getBody(t, base+"/readyz", tc.wantReadyz)
			if body := getBody(t, base+"/metrics", http.StatusOK); !strings.Contains(body, "bakery_cart_mutations_total") {
				t.Errorf("/metrics should expose shop metrics, got %q", body)
			}
		})
	}
}

func TestStartMetricsServer_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	addr := fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	startMetricsServer(ctx, addr, log.WithField("test", "http-shutdown"), prometheus.NewRegistry(), healthcheck.NewHandler(version.GetVersion()))

	url := "http://" + addr + "/livez"
	waitForServer(t, url)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err != nil {
			break
		}
		resp.Body.Close()
		if time.Now().After(deadline) {
			t.Fatal("server should be stopped after context cancellation")
		}
		time.Sleep(20 * time.Millisecond)
	}

	// nil-сервер игнорируется.
	shutdownHTTP(nil, log.WithField("test", "http-nil"))
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTPAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.MetricsAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, cfg) }()

	base := "http://" + cfg.HTTPAddr
	waitForServer(t, base+"/api/categories")

	if body := getBody(t, base+"/api/products?lang=bn", http.StatusOK); !strings.Contains(body, "sourdough-loaf") {
		t.Fatalf("builtin catalog must be served, got %s", body)
	}

	if body := getBody(t, "http://"+cfg.MetricsAddr+"/metrics", http.StatusOK); !strings.Contains(body, "bakery_build_info") {
		t.Fatal("/metrics must expose build info")
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_FileCartStoreIsSwept(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTPAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.MetricsAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.CartStore = CartStoreFile
	cfg.CartDir = filepath.Join(t.TempDir(), "carts")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, cfg) }()

	metricsURL := "http://" + cfg.MetricsAddr + "/metrics"
	waitForServer(t, metricsURL)

	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(getBody(t, metricsURL, http.StatusOK), `bakery_cart_sweep_runs_total{result="ok"}`) {
		if time.Now().After(deadline) {
			t.Fatal("cart sweeper must run on startup")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "invalid-driver"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestRun_InvalidTimezone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "timezone") {
		t.Fatalf("expected timezone error, got %v", err)
	}
}

// findFreePort находит свободный порт для тестов
func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server at %s did not start", url)
}

func getBody(t *testing.T, url string, wantStatus int) string {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: expected status %d, got %d", url, wantStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", url, err)
	}
	return string(body)
}
