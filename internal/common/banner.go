package common

import (
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner writes the serve-mode startup banner.
func PrintBanner(w io.Writer, config *Config, logger *Logger) {
	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	hr := lineColor + strings.Repeat("═", 60) + banner.ColorReset

	art := []string{
		` ____  ___ ____ _____ ____ _____`,
		`|  _ \|_ _/ ___| ____/ ___|_   _|`,
		`| | | || | |  _|  _| \___ \ | |`,
		`| |_| || | |_| | |___ ___) || |`,
		`|____/|___\____|_____|____/ |_|`,
	}

	fmt.Fprintf(w, "\n%s\n\n", hr)
	for _, line := range art {
		fmt.Fprintf(w, "%s%s%s\n", textColor, line, banner.ColorReset)
	}
	fmt.Fprintf(w, "\n%s  Daily Portfolio Digest%s\n\n%s\n\n", textColor, banner.ColorReset, hr)

	cacheDesc := config.Cache.Backend
	if config.Cache.Backend == "redis" {
		cacheDesc = "redis " + config.Cache.RedisAddr
	}

	kvLines := [][2]string{
		{"Version", GetFullVersion()},
		{"Environment", config.Environment},
		{"Service URL", "http://" + config.Server.Address()},
		{"Provider", config.Provider.Name},
		{"Schedule", config.Schedule.Cron},
		{"Reporting", config.FX.ReportingCurrency},
		{"Cache", cacheDesc},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(w, "%s  %-14s %s%s\n", textColor, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(w, "\n%s\n\n", hr)

	logger.Info().
		Str("version", Version).
		Str("environment", config.Environment).
		Str("address", config.Server.Address()).
		Str("provider", config.Provider.Name).
		Str("schedule", config.Schedule.Cron).
		Msg("Digest server started")
}

// PrintShutdownBanner writes the shutdown banner.
func PrintShutdownBanner(w io.Writer, logger *Logger) {
	hr := banner.ColorCyan + strings.Repeat("═", 32) + banner.ColorReset
	fmt.Fprintf(w, "\n%s\n%s  DIGEST SHUTTING DOWN%s\n%s\n\n", hr, banner.ColorBold+banner.ColorWhite, banner.ColorReset, hr)
	logger.Info().Msg("Digest server shutting down")
}
