package viscull

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    Config
		errType string
	}{
		{
			name: "empty document keeps defaults",
			yaml: "",
			want: DefaultConfig(),
		},
		{
			name: "overrides",
			yaml: "frame_skip: 4\nmax_leaf_objects: 8\nview_expiry: 0\ntrack_shape_changes: false\n",
			want: Config{
				FrameSkip:         4,
				MaxLeafObjects:    8,
				ViewExpiry:        0,
				TrackShapeChanges: false,
				OptimizeEachFrame: true,
			},
		},
		{
			name:    "zero frame skip",
			yaml:    "frame_skip: 0\n",
			errType: ErrTypeInvalidConfig,
		},
		{
			name:    "empty leaves",
			yaml:    "max_leaf_objects: 0\n",
			errType: ErrTypeInvalidConfig,
		},
		{
			name:    "malformed",
			yaml:    "frame_skip: [1, 2\n",
			errType: ErrTypeInvalidConfig,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			conf, err := LoadConfig([]byte(test.yaml))
			if test.errType != "" {
				require.Error(t, err)
				require.True(t, errors.IsType(err, test.errType), "got %v", err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, test.want, conf)
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}
