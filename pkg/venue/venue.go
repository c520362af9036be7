// Package venue holds the operator settings of a kiosk installation.
package venue

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/simkiosk/pkg/model"
)

const (
	MinGraceWindow     = 120 * time.Second
	MaxGraceWindow     = 180 * time.Second
	DefaultGraceWindow = MaxGraceWindow
	DefaultIdleTimeout = 5 * time.Minute
	DefaultMaxPlayers  = 8
)

var ErrInvalidSettings = errors.New("invalid venue settings")

type (
	Settings struct {
		Name            string         `yaml:"name"`
		PaymentEnabled  bool           `yaml:"paymentEnabled"`
		DefaultProvider model.Provider `yaml:"defaultProvider"`
		Durations       []int          `yaml:"durations"`
		IdleTimeout     time.Duration  `yaml:"idleTimeout"`
		Lobby           LobbySettings  `yaml:"lobby"`
	}
	LobbySettings struct {
		GraceWindow time.Duration `yaml:"graceWindow"`
		MaxPlayers  int           `yaml:"maxPlayers"`
	}
)

func Default() Settings {
	return Settings{
		PaymentEnabled:  true,
		DefaultProvider: model.ProviderGatewayQR,
		Durations:       []int{10, 15, 20, 30},
		IdleTimeout:     DefaultIdleTimeout,
		Lobby: LobbySettings{
			GraceWindow: DefaultGraceWindow,
			MaxPlayers:  DefaultMaxPlayers,
		},
	}
}

// Load reads settings from a YAML file. Missing values take the defaults.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	return Parse(data)
}

func Parse(data []byte) (Settings, error) {
	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return s.Normalize()
}

// Normalize fills unset values and clamps the lobby grace window into its
// allowed range.
func (s Settings) Normalize() (Settings, error) {
	if s.DefaultProvider == "" {
		s.DefaultProvider = model.ProviderGatewayQR
	}
	if !s.DefaultProvider.Valid() {
		return Settings{}, fmt.Errorf("%w: unknown provider %q",
			ErrInvalidSettings, s.DefaultProvider)
	}
	s.Durations = lo.Uniq(lo.Filter(s.Durations, func(d, _ int) bool { return d > 0 }))
	if len(s.Durations) == 0 {
		return Settings{}, fmt.Errorf("%w: no session durations offered", ErrInvalidSettings)
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	switch {
	case s.Lobby.GraceWindow == 0:
		s.Lobby.GraceWindow = DefaultGraceWindow
	case s.Lobby.GraceWindow < MinGraceWindow:
		s.Lobby.GraceWindow = MinGraceWindow
	case s.Lobby.GraceWindow > MaxGraceWindow:
		s.Lobby.GraceWindow = MaxGraceWindow
	}
	if s.Lobby.MaxPlayers < 2 {
		s.Lobby.MaxPlayers = DefaultMaxPlayers
	}
	return s, nil
}

func (s Settings) OffersDuration(minutes int) bool {
	return lo.Contains(s.Durations, minutes)
}
