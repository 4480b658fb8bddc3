// Command weatherctl looks up current weather from the command line using the
// same configuration and vendor stack as the dashboard server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-dashboard/internal/app"
	"github.com/i474232898/weather-dashboard/internal/config"
	"github.com/i474232898/weather-dashboard/internal/weather/providers"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "weatherctl",
		Short:        "query current weather through the dashboard stack",
		Version:      Version,
		SilenceUsage: true,
	}
	root.AddCommand(newCurrentCmd())
	return root
}

type currentOutput struct {
	Location           string  `json:"location"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	TemperatureCelsius float64 `json:"temperatureCelsius"`
	HumidityPercent    int     `json:"humidityPercent"`
	WindSpeedKph       float64 `json:"windSpeedKph"`
	Description        string  `json:"description,omitempty"`
	IconURL            string  `json:"iconUrl,omitempty"`
}

func newCurrentCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "current <location>",
		Short: "print current conditions for a location name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// stdout carries the result
			logger := cfg.NewLogger(cmd.ErrOrStderr())

			service, err := app.NewWeatherService(cfg, logger, nil)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			location := strings.Join(args, " ")
			res, err := service.GetWeather(ctx, location)
			if err != nil {
				if kind, ok := providers.KindOf(err); ok {
					return fmt.Errorf("lookup %q failed (%s): %w", location, kind, err)
				}
				return fmt.Errorf("lookup %q failed: %w", location, err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(currentOutput{
				Location:           location,
				Latitude:           res.Coordinates.Latitude,
				Longitude:          res.Coordinates.Longitude,
				TemperatureCelsius: res.Observation.TemperatureCelsius,
				HumidityPercent:    res.Observation.HumidityPercent,
				WindSpeedKph:       res.Observation.WindSpeedKph,
				Description:        res.Observation.Description,
				IconURL:            res.Observation.IconURL,
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall deadline for the lookup, retries included")
	return cmd
}
