package style

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

var ErrInvalidColor = errors.New("libmap: invalid color")

type config struct {
	Fs     afero.Fs
	Logger *slog.Logger
}

type Option func(*config)

func WithFs(fs afero.Fs) Option {
	return func(c *config) { c.Fs = fs }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

func newConfig(opts []Option) config {
	config := config{
		Fs:     afero.NewOsFs(),
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// Load reads a style document. The format follows the file extension
// (json, yaml, toml).
func Load(path string, opts ...Option) (*Style, error) {
	config := newConfig(opts)
	v := viper.New()
	v.SetFs(config.Fs)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read style %s: %w", path, err)
	}
	return decode(v)
}

// Parse reads a style document of the given format from r.
func Parse(r io.Reader, format string) (*Style, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("parse style: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Style, error) {
	style := Default()
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		colorHook,
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(style, hook); err != nil {
		return nil, fmt.Errorf("decode style: %w", err)
	}
	return style, nil
}

var colorType = reflect.TypeOf(color.NRGBA{})

func colorHook(from, to reflect.Type, data any) (any, error) {
	if to != colorType || from.Kind() != reflect.String {
		return data, nil
	}
	return ParseColor(data.(string))
}

// ParseColor parses #rrggbb and #rrggbbaa. Colors without alpha are opaque.
func ParseColor(s string) (color.NRGBA, error) {
	digits, ok := strings.CutPrefix(s, "#")
	if !ok || (len(digits) != 6 && len(digits) != 8) {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	b, err := hex.DecodeString(digits)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	c := color.NRGBA{R: b[0], G: b[1], B: b[2], A: 0xff}
	if len(b) == 4 {
		c.A = b[3]
	}
	return c, nil
}

// Watch reloads the style at path whenever the file changes and sends
// each successfully loaded style with a new fingerprint. Load failures are
// logged and skipped. The channel closes when ctx is done.
func Watch(ctx context.Context, path string, opts ...Option) (<-chan *Style, error) {
	config := newConfig(opts)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	updates := make(chan *Style, 1)
	last := ""
	if current, err := Load(path, opts...); err == nil {
		last = current.Fingerprint()
	}
	go func() {
		defer close(updates)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				config.Logger.Warn("libmap: style watch failed", "path", path, "error", err)
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				style, err := Load(path, opts...)
				if err != nil {
					config.Logger.Warn("libmap: style reload failed", "path", path, "error", err)
					continue
				}
				fingerprint := style.Fingerprint()
				if fingerprint == last {
					continue
				}
				last = fingerprint
				config.Logger.Debug("libmap: style reloaded", "path", path, "fingerprint", fingerprint)
				select {
				case updates <- style:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return updates, nil
}
