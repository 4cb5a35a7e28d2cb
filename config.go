package viscull

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// The number of frames a query result is trusted before the node is
	// queried again.
	FrameSkip uint32 `yaml:"frame_skip"`

	// The number of objects a leaf holds before it is split.
	MaxLeafObjects int `yaml:"max_leaf_objects"`

	// The number of frames after which the query entries of a view that
	// stopped testing a node are released. 0 keeps them forever.
	ViewExpiry uint32 `yaml:"view_expiry"`

	// Poll ShapeVersioned objects for shape changes at the start of a frame.
	TrackShapeChanges bool `yaml:"track_shape_changes"`

	// Rebalance the tree at the start of a frame.
	OptimizeEachFrame bool `yaml:"optimize_each_frame"`
}

func DefaultConfig() Config {
	return Config{
		FrameSkip:         10,
		MaxLeafObjects:    1,
		ViewExpiry:        600,
		TrackShapeChanges: true,
		OptimizeEachFrame: true,
	}
}

// LoadConfig decodes a YAML document over the default configuration.
func LoadConfig(data []byte) (Config, error) {
	conf := DefaultConfig()

	if err := yaml.Unmarshal(data, &conf); err != nil {
		return Config{}, errors.New("decoding config failed").
			WithType(ErrTypeInvalidConfig).
			Wrap(err)
	}

	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func (c Config) Validate() error {
	if c.FrameSkip == 0 {
		return errors.New("frame skip must be at least 1").
			WithType(ErrTypeInvalidConfig).
			WithTag("frame_skip", c.FrameSkip)
	}

	if c.MaxLeafObjects < 1 {
		return errors.New("max leaf objects must be at least 1").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_leaf_objects", c.MaxLeafObjects)
	}

	return nil
}
