// Package config loads and persists the station configuration as a JSON
// file. A missing file is created with defaults on first run; durations are
// stored as float seconds, matching the deployed station config files.
package config

import (
	"time"

	"github.com/ayusman/binsight/internal/detector"
)

// Detector variant names for DetectionConfig.Variant.
const (
	VariantGate  = "gate"
	VariantZoned = "zoned"
)

// Config is the full station configuration.
type Config struct {
	Camera    CameraConfig    `json:"camera"`
	Detection DetectionConfig `json:"detection"`
	Capture   CaptureConfig   `json:"capture"`
	API       APIConfig       `json:"api"`
	Data      DataConfig      `json:"data"`
	Server    ServerConfig    `json:"server"`
}

// CameraConfig selects and tunes the capture device.
type CameraConfig struct {
	DeviceID int `json:"device_id"`
	FPS      int `json:"fps"`
}

// DetectionConfig tunes the motion detector. Duration fields are float
// seconds in the JSON file.
type DetectionConfig struct {
	Variant string `json:"variant"`

	Model          string  `json:"model"`
	History        int     `json:"history"`
	VarThreshold   float64 `json:"var_threshold"`
	Dist2Threshold float64 `json:"dist2_threshold"`
	DetectShadows  bool    `json:"detect_shadows"`

	MinContourArea    float64 `json:"min_contour_area"`
	BlurKernelSize    int     `json:"blur_kernel_size"`
	MorphKernelSize   int     `json:"kernel_size"`
	DetectionCooldown float64 `json:"detection_cooldown"`

	UseROI         bool    `json:"use_roi"`
	ROITopRatio    float64 `json:"roi_top_ratio"`
	ROIBottomRatio float64 `json:"roi_bottom_ratio"`
	ROILeftRatio   float64 `json:"roi_left_ratio"`
	ROIRightRatio  float64 `json:"roi_right_ratio"`

	MinPresenceArea           float64 `json:"min_presence_area"`
	MinPresenceDuration       float64 `json:"min_presence_duration"`
	CenterMovementThreshold   float64 `json:"center_movement_threshold"`
	StabilityThreshold        float64 `json:"stability_threshold"`
	MinStabilityDuration      float64 `json:"min_stability_duration"`
	MaxStabilityDuration      float64 `json:"max_stability_duration"`
	BackgroundChangeThreshold float64 `json:"background_change_threshold"`

	Debug bool `json:"debug"`
}

// CaptureConfig tunes the orchestration loop and image retention.
type CaptureConfig struct {
	PollInterval   float64 `json:"poll_interval"`
	CaptureDelay   float64 `json:"capture_delay"`
	MaxSavedImages int     `json:"max_saved_images"`
	ImageDir       string  `json:"image_dir"`
}

// APIConfig configures the recognition endpoint. The key is normally left
// empty in the file and supplied via the environment.
type APIConfig struct {
	URL        string  `json:"api_url"`
	Key        string  `json:"api_key"`
	Model      string  `json:"model_name"`
	MaxRetries int     `json:"max_retries"`
	Timeout    float64 `json:"timeout"`
}

// DataConfig configures detection history persistence.
type DataConfig struct {
	DatabasePath   string `json:"database_path"`
	MaxDataAgeDays int    `json:"max_data_age_days"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// Default returns the configuration written on first run.
func Default() Config {
	d := detector.DefaultConfig()
	return Config{
		Camera: CameraConfig{
			DeviceID: 0,
			FPS:      15,
		},
		Detection: DetectionConfig{
			Variant:                   VariantZoned,
			Model:                     d.Model,
			History:                   d.History,
			VarThreshold:              d.VarThreshold,
			Dist2Threshold:            d.Dist2Threshold,
			DetectShadows:             d.DetectShadows,
			MinContourArea:            d.MinContourArea,
			BlurKernelSize:            d.BlurKernelSize,
			MorphKernelSize:           d.MorphKernelSize,
			DetectionCooldown:         d.DetectionCooldown.Seconds(),
			UseROI:                    d.ROIEnabled,
			ROITopRatio:               d.ROITopRatio,
			ROIBottomRatio:            d.ROIBottomRatio,
			ROILeftRatio:              d.ROILeftRatio,
			ROIRightRatio:             d.ROIRightRatio,
			MinPresenceArea:           d.MinPresenceArea,
			MinPresenceDuration:       d.MinPresenceDuration.Seconds(),
			CenterMovementThreshold:   d.CenterMovementThreshold,
			StabilityThreshold:        d.StabilityThreshold,
			MinStabilityDuration:      d.MinStabilityDuration.Seconds(),
			MaxStabilityDuration:      d.MaxStabilityDuration.Seconds(),
			BackgroundChangeThreshold: d.BackgroundChangeThreshold,
		},
		Capture: CaptureConfig{
			PollInterval:   0.05,
			CaptureDelay:   0,
			MaxSavedImages: 10,
			ImageDir:       "data/captured_images",
		},
		API: APIConfig{
			URL:        "https://api.openai.com/v1/chat/completions",
			Model:      "gpt-4-vision-preview",
			MaxRetries: 3,
			Timeout:    30,
		},
		Data: DataConfig{
			DatabasePath:   "data/binsight.db",
			MaxDataAgeDays: 30,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// DetectorConfig converts the JSON tuning into the detector's native form.
func (d DetectionConfig) DetectorConfig() detector.Config {
	return detector.Config{
		Model:                     d.Model,
		History:                   d.History,
		VarThreshold:              d.VarThreshold,
		Dist2Threshold:            d.Dist2Threshold,
		DetectShadows:             d.DetectShadows,
		MinContourArea:            d.MinContourArea,
		BlurKernelSize:            d.BlurKernelSize,
		MorphKernelSize:           d.MorphKernelSize,
		DetectionCooldown:         seconds(d.DetectionCooldown),
		ROIEnabled:                d.UseROI,
		ROITopRatio:               d.ROITopRatio,
		ROIBottomRatio:            d.ROIBottomRatio,
		ROILeftRatio:              d.ROILeftRatio,
		ROIRightRatio:             d.ROIRightRatio,
		MinPresenceArea:           d.MinPresenceArea,
		MinPresenceDuration:       seconds(d.MinPresenceDuration),
		CenterMovementThreshold:   d.CenterMovementThreshold,
		StabilityThreshold:        d.StabilityThreshold,
		MinStabilityDuration:      seconds(d.MinStabilityDuration),
		MaxStabilityDuration:      seconds(d.MaxStabilityDuration),
		BackgroundChangeThreshold: d.BackgroundChangeThreshold,
		Debug:                     d.Debug,
	}
}

// PollIntervalDuration returns the orchestrator poll cadence.
func (c CaptureConfig) PollIntervalDuration() time.Duration {
	if c.PollInterval <= 0 {
		return 50 * time.Millisecond
	}
	return seconds(c.PollInterval)
}

// CaptureDelayDuration returns the pre-capture settle wait.
func (c CaptureConfig) CaptureDelayDuration() time.Duration {
	return seconds(c.CaptureDelay)
}

// TimeoutDuration returns the recognition call timeout.
func (a APIConfig) TimeoutDuration() time.Duration {
	return seconds(a.Timeout)
}

// MaxDataAge returns the retention window for stored detections.
func (d DataConfig) MaxDataAge() time.Duration {
	return time.Duration(d.MaxDataAgeDays) * 24 * time.Hour
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
