package gtfs

import (
	"strings"
	"time"
)

// FeedFormat is the encoding of the trip updates feed.
type FeedFormat string

const (
	FormatAuto     FeedFormat = "auto"
	FormatJSON     FeedFormat = "json"
	FormatProtobuf FeedFormat = "protobuf"
)

const (
	DefaultStaticSource   = "./gtfs"
	DefaultTripUpdatesURL = "https://passio3.com/harvard/passioTransit/gtfs/realtime/tripUpdates.json"
)

type Config struct {
	// StaticSource is a directory of .txt files, a .zip file, or an http(s) URL to a zip.
	StaticSource            string        `yaml:"static_source" validate:"required"`
	TripUpdatesURL          string        `yaml:"trip_updates_url" validate:"required,url"`
	TripUpdatesFormat       FeedFormat    `yaml:"trip_updates_format" validate:"oneof=auto json protobuf"`
	RealTimeAuthHeaderKey   string        `yaml:"auth_header_key"`
	RealTimeAuthHeaderValue string        `yaml:"auth_header_value"`
	Timezone                string        `yaml:"timezone"`
	RealTimeTimeout         time.Duration `yaml:"realtime_timeout" validate:"gt=0"`
	StaticRefreshInterval   time.Duration `yaml:"static_refresh_interval" validate:"gte=0"`
	StaticDownloadRetries   uint64        `yaml:"static_download_retries"`
}

func DefaultConfig() Config {
	return Config{
		StaticSource:          DefaultStaticSource,
		TripUpdatesURL:        DefaultTripUpdatesURL,
		TripUpdatesFormat:     FormatAuto,
		RealTimeTimeout:       10 * time.Second,
		StaticRefreshInterval: 24 * time.Hour,
		StaticDownloadRetries: 3,
	}
}

func (config Config) staticIsRemote() bool {
	return strings.HasPrefix(config.StaticSource, "http://") || strings.HasPrefix(config.StaticSource, "https://")
}

func (config Config) realTimeHeaders() map[string]string {
	headers := map[string]string{}
	if config.RealTimeAuthHeaderKey != "" && config.RealTimeAuthHeaderValue != "" {
		headers[config.RealTimeAuthHeaderKey] = config.RealTimeAuthHeaderValue
	}
	return headers
}

// location resolves the configured zone, then the feed's agency zone, then local time.
func (config Config) location(agencyTimezone string) (*time.Location, error) {
	name := config.Timezone
	if name == "" {
		name = agencyTimezone
	}
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
