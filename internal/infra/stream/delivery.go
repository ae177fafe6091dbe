package stream

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Delivery builds the playable URL for a track once a stream token has
// been issued. Variants differ in transport (whole-file FLAC vs
// segmented HLS) but all embed the token as a query credential.
type Delivery interface {
	// StreamURL returns the authorized stream URL for the track.
	StreamURL(baseURL, trackID, token string) string
}

// NewDeliveryFromConfig creates a delivery variant from configuration.
func NewDeliveryFromConfig(variant string, settings map[string]any) (Delivery, error) {
	switch variant {
	case "", "flac":
		return &FlacDelivery{}, nil
	case "hls":
		return NewHLSDelivery(settings)
	default:
		return nil, errors.Newf("unsupported stream delivery variant: %s", variant)
	}
}

// FlacDelivery streams the whole file: GET /stream/flac/{id}?token=...
type FlacDelivery struct{}

// StreamURL implements Delivery.
func (d *FlacDelivery) StreamURL(baseURL, trackID, token string) string {
	return fmt.Sprintf("%s/stream/flac/%s?token=%s",
		baseURL, url.PathEscape(trackID), url.QueryEscape(token))
}

// HLSDeliveryConfig holds the segmented variant settings.
type HLSDeliveryConfig struct {
	Lossless   bool `yaml:"lossless" mapstructure:"lossless"`
	SegmentSec int  `yaml:"segment_sec" mapstructure:"segment_sec" default:"1" validate:"gte=1,lte=30"`
}

// HLSDelivery streams a segmented playlist:
// GET /playlist/{id}?lossless=...&hlsTime=...&token=...
type HLSDelivery struct {
	config HLSDeliveryConfig
}

// NewHLSDelivery creates the segmented delivery variant.
func NewHLSDelivery(settings map[string]any) (*HLSDelivery, error) {
	var config HLSDeliveryConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &HLSDelivery{config: config}, nil
}

// StreamURL implements Delivery.
func (d *HLSDelivery) StreamURL(baseURL, trackID, token string) string {
	q := url.Values{}
	q.Set("lossless", strconv.FormatBool(d.config.Lossless))
	q.Set("hlsTime", strconv.Itoa(d.config.SegmentSec))
	q.Set("token", token)
	return fmt.Sprintf("%s/playlist/%s?%s", baseURL, url.PathEscape(trackID), q.Encode())
}
