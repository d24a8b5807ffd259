// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/gviegas/deferred/driver"
)

// ErrConfig means that a Config is invalid.
var ErrConfig = errors.New("engine: invalid configuration")

// Overflow is a policy for shadow casters that do not fit
// in the shadow atlas.
type Overflow string

// Overflow policies.
const (
	// OverflowFail makes Render fail with
	// ErrShadowOverflow.
	OverflowFail Overflow = "fail"
	// OverflowDrop keeps the first casters in scene
	// order and ignores the rest.
	OverflowDrop Overflow = "drop"
)

// Config is used to configure a Renderer.
type Config struct {
	// Size of the window surface. The renderer
	// itself takes its size from the swapchain.
	//
	// Default is 1280x720.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// The number of frames in flight, in the
	// range [1, MaxFrame].
	//
	// Default is 2.
	FramesInFlight int `yaml:"frames_in_flight"`

	// One of "fifo", "mailbox" or "immediate".
	//
	// Default is "fifo".
	PresentMode string `yaml:"present_mode"`

	// Width and height of the shadow atlas.
	//
	// Default is 4096.
	ShadowAtlas int `yaml:"shadow_atlas"`

	// Width and height of a single shadow map in
	// the atlas. It must not exceed ShadowAtlas.
	//
	// Default is 1024.
	ShadowTile int `yaml:"shadow_tile"`

	// What to do when shadow casters do not fit in
	// the atlas.
	//
	// Default is OverflowDrop.
	ShadowOverflow Overflow `yaml:"shadow_overflow"`

	// The maximum number of lights per frame.
	//
	// Default is MaxLight.
	MaxLight int `yaml:"max_light"`

	// The maximum number of drawables per frame.
	//
	// Default is 1024.
	MaxDrawable int `yaml:"max_drawable"`

	// Log level, used by cmd/deferred.
	//
	// Default is "info".
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Width:          dflWidth,
		Height:         dflHeight,
		FramesInFlight: dflFramesInFlight,
		PresentMode:    driver.PFIFO.String(),
		ShadowAtlas:    dflShadowAtlas,
		ShadowTile:     dflShadowTile,
		ShadowOverflow: OverflowDrop,
		MaxLight:       MaxLight,
		MaxDrawable:    dflMaxDrawable,
		LogLevel:       "info",
	}
}

// Validate checks c. Every invalid field is reported.
func (c *Config) Validate() (err error) {
	bad := func(field string, v any) {
		err = multierr.Append(err, fmt.Errorf("%w: %s = %v", ErrConfig, field, v))
	}
	if c.Width < 1 || c.Height < 1 {
		bad("width/height", fmt.Sprintf("%dx%d", c.Width, c.Height))
	}
	if c.FramesInFlight < 1 || c.FramesInFlight > MaxFrame {
		bad("frames_in_flight", c.FramesInFlight)
	}
	if _, ok := c.presentMode(); !ok {
		bad("present_mode", c.PresentMode)
	}
	if c.ShadowAtlas < 1 {
		bad("shadow_atlas", c.ShadowAtlas)
	}
	if c.ShadowTile < 1 || c.ShadowTile > c.ShadowAtlas {
		bad("shadow_tile", c.ShadowTile)
	}
	if c.ShadowOverflow != OverflowFail && c.ShadowOverflow != OverflowDrop {
		bad("shadow_overflow", c.ShadowOverflow)
	}
	if c.MaxLight < 0 || c.MaxLight > MaxLight {
		bad("max_light", c.MaxLight)
	}
	if c.MaxDrawable < 1 {
		bad("max_drawable", c.MaxDrawable)
	}
	return
}

func (c *Config) presentMode() (driver.PresentMode, bool) {
	for _, m := range [...]driver.PresentMode{driver.PFIFO, driver.PMailbox, driver.PImmediate} {
		if m.String() == c.PresentMode {
			return m, true
		}
	}
	return 0, false
}

// LoadConfig decodes a YAML document over the default
// configuration and validates the result.
// Unknown fields are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	c := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadConfigFile calls LoadConfig with the contents of
// a file.
func LoadConfigFile(name string) (Config, error) {
	f, err := os.Open(name)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return LoadConfig(f)
}
