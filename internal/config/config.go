// Package config loads go-smile settings from the environment.
//
// Every setting has a SMILE_* variable. Load reads an optional .env file
// first; variables already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds the process settings shared by the smile commands.
type Config struct {
	Addr         string        `validate:"required,hostname_port"`
	Device       string        `validate:"required"`
	Platform     string        `validate:"omitempty,oneof=desktop mobile ios android"`
	FrameRate    float64       `validate:"gte=0,lte=240"`
	ErrorBackoff time.Duration `validate:"gte=0"`
	RestartDelay time.Duration `validate:"gte=0"`

	FaceModel     string  `validate:"required"`
	LandmarkModel string  `validate:"required"`
	ModelURL      string  `validate:"omitempty,url"`
	Threshold     float64 `validate:"gt=0,lte=1"`
	Sidecar       string  // Unix socket of an external landmark service

	LogLevel string `validate:"oneof=debug info warn warning error"`
	LogFile  string
	LogJSON  bool
}

// Default returns the settings used when no variable is set.
func Default() Config {
	return Config{
		Addr:          ":8080",
		Device:        "0",
		FrameRate:     60,
		ErrorBackoff:  2 * time.Second,
		RestartDelay:  time.Second,
		FaceModel:     "models/face_detection_yunet.onnx",
		LandmarkModel: "models/face_landmarks_68.onnx",
		Threshold:     0.5,
		LogLevel:      "info",
	}
}

// Load reads the given .env files (default ".env"), then the environment,
// and validates the result. Missing .env files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// FromEnv overlays SMILE_* variables on the defaults.
func FromEnv() (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("SMILE_ADDR", &cfg.Addr)
	str("SMILE_CAMERA", &cfg.Device)
	str("SMILE_PLATFORM", &cfg.Platform)
	float("SMILE_FPS", &cfg.FrameRate)
	duration("SMILE_ERROR_BACKOFF", &cfg.ErrorBackoff)
	duration("SMILE_RESTART_DELAY", &cfg.RestartDelay)
	str("SMILE_FACE_MODEL", &cfg.FaceModel)
	str("SMILE_LANDMARK_MODEL", &cfg.LandmarkModel)
	str("SMILE_MODEL_URL", &cfg.ModelURL)
	float("SMILE_THRESHOLD", &cfg.Threshold)
	str("SMILE_SIDECAR", &cfg.Sidecar)
	str("SMILE_LOG_LEVEL", &cfg.LogLevel)
	str("SMILE_LOG_FILE", &cfg.LogFile)
	boolean("SMILE_LOG_JSON", &cfg.LogJSON)

	return cfg, errors.Join(errs...)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s (got %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
