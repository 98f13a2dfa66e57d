// Package version хранит сведения о сборке, которые проставляются через -ldflags:
//
//	-X github.com/vladislavdragonenkov/bakery/internal/version.version=v1.2.0
package version

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build описывает собранный бинарь витрины.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// Current возвращает сведения о текущей сборке.
func Current() Build {
	return Build{Version: version, Commit: commit, Date: date}
}

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

func (b Build) String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", b.Version, b.Commit, b.Date)
}

// RegisterBuildInfo публикует gauge bakery_build_info со значением 1 и сведениями о сборке в labels.
func RegisterBuildInfo(reg prometheus.Registerer, b Build) {
	promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
		Name: "bakery_build_info",
		Help: "Build information of the bakery storefront binary.",
	}, []string{"version", "commit", "date"}).WithLabelValues(b.Version, b.Commit, b.Date).Set(1)
}
