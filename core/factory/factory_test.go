package factory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	Path  string
	Every time.Duration
}

type sinkConf struct {
	Path  string        `json:"path"`
	Every time.Duration `json:"every"`
	Size  int           `json:"size"`
}

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry[*sink]()
	require.NoError(t, reg.Register("file", func(conf map[string]any) (*sink, error) {
		var c sinkConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &sink{Path: c.Path, Every: c.Every}, nil
	}))
	s, err := reg.Create(ModuleConfig{Type: "file", Conf: map[string]any{"path": "out.jsonl", "every": "5s"}})
	require.NoError(t, err)
	assert.Equal(t, "out.jsonl", s.Path)
	assert.Equal(t, 5*time.Second, s.Every)
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry[int]()
	require.NoError(t, reg.Register("x", func(map[string]any) (int, error) { return 1, nil }))
	assert.Error(t, reg.Register("x", func(map[string]any) (int, error) { return 2, nil }))
	assert.Error(t, reg.Register("y", nil))
	assert.Error(t, reg.Register("", func(map[string]any) (int, error) { return 0, nil }))

	_, err := reg.Create(ModuleConfig{Type: "missing"})
	assert.True(t, errors.Is(err, ErrUnknownType))

	boom := errors.New("boom")
	require.NoError(t, reg.Register("bad", func(map[string]any) (int, error) { return 0, boom }))
	_, err = reg.Create(ModuleConfig{Type: "bad"})
	assert.True(t, errors.Is(err, boom))

	assert.Equal(t, []string{"bad", "x"}, reg.Types())
}

func TestDecodeWeakTypes(t *testing.T) {
	var c sinkConf
	require.NoError(t, Decode(map[string]any{"size": "12", "every": "250ms"}, &c))
	assert.Equal(t, 12, c.Size)
	assert.Equal(t, 250*time.Millisecond, c.Every)
}
