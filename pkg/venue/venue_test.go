package venue

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/poll"

	"github.com/mpapenbr/simkiosk/pkg/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    Settings
		wantErr bool
	}{
		{
			name: "defaults",
			yaml: "name: Arcade\n",
			want: func() Settings {
				s := Default()
				s.Name = "Arcade"
				return s
			}(),
		},
		{
			name: "full",
			yaml: `
name: Mall
paymentEnabled: false
defaultProvider: direct_transfer_ref
durations: [5, 10, 10, 0]
idleTimeout: 2m
lobby:
  graceWindow: 150s
  maxPlayers: 4
`,
			want: Settings{
				Name:            "Mall",
				PaymentEnabled:  false,
				DefaultProvider: model.ProviderDirectTransfer,
				Durations:       []int{5, 10},
				IdleTimeout:     2 * time.Minute,
				Lobby:           LobbySettings{GraceWindow: 150 * time.Second, MaxPlayers: 4},
			},
		},
		{
			name: "grace window clamped",
			yaml: "lobby:\n  graceWindow: 30s\n",
			want: func() Settings {
				s := Default()
				s.Lobby.GraceWindow = MinGraceWindow
				return s
			}(),
		},
		{name: "unknown provider", yaml: "defaultProvider: cash\n", wantErr: true},
		{name: "no durations", yaml: "durations: []\n", wantErr: true},
		{name: "broken yaml", yaml: "durations: [", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSettings)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "venue.yml")
	require.NoError(t, os.WriteFile(path, []byte("paymentEnabled: true\n"), 0o600))

	var mu sync.Mutex
	var got []Settings
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := Watch(ctx, path, func(s Settings) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, s)
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("paymentEnabled: false\n"), 0o600))
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range got {
			if !s.PaymentEnabled {
				return poll.Success()
			}
		}
		return poll.Continue("no reload with payment disabled yet")
	}, poll.WithTimeout(5*time.Second))
}
