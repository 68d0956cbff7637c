package sci

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeInstance(key string) *Instance {
	return &Instance{
		key: key,
		log: logrus.WithField("instance", key),
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	assert.NoError(t, reg.Add(fakeInstance("pmmc")))
	assert.NoError(t, reg.Add(fakeInstance("dmsc-0")))
	assert.NoError(t, reg.Add(fakeInstance("dmsc-1")))
	assert.ErrorIs(t, reg.Add(fakeInstance("pmmc")), ErrExists)

	assert.Equal(t, []string{"dmsc-0", "dmsc-1", "pmmc"}, reg.Keys())
	assert.Equal(t, []string{"dmsc-0", "dmsc-1"}, reg.Filter("dmsc-*"))
	assert.Empty(t, reg.Filter("foo"))

	inst, err := reg.Lookup("pmmc")
	assert.NoError(t, err)
	assert.Equal(t, "pmmc", inst.Key())

	_, err = reg.Lookup("foo")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryHandles(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.GetHandle(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = reg.GetHandle(BindTo("clk", ""))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.GetHandle(BindTo("clk", "pmmc"))
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, reg.Add(fakeInstance("pmmc")))

	h1, err := reg.GetHandle(BindTo("clk", "pmmc"))
	require.NoError(t, err)
	assert.Equal(t, "pmmc", h1.Key())
	assert.Equal(t, "clk", h1.Client())

	h2, err := reg.GetHandle(BindTo("pd", "pmmc"))
	require.NoError(t, err)
	assert.Same(t, h1.Instance(), h2.Instance())
	assert.Equal(t, 2, reg.Users("pmmc"))

	_, err = reg.Remove("pmmc")
	assert.ErrorIs(t, err, ErrBusy)

	assert.NoError(t, reg.PutHandle(h1))
	assert.ErrorIs(t, reg.PutHandle(h1), ErrAlreadyReleased)
	assert.Equal(t, 1, reg.Users("pmmc"))

	assert.ErrorIs(t, reg.PutHandle(nil), ErrInvalidArgument)
	assert.ErrorIs(t, NewRegistry().PutHandle(h2), ErrInvalidArgument)

	assert.NoError(t, reg.PutHandle(h2))
	assert.Equal(t, 0, reg.Users("pmmc"))

	inst, err := reg.Remove("pmmc")
	assert.NoError(t, err)
	assert.Equal(t, "pmmc", inst.Key())

	_, err = reg.Remove("pmmc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, reg.Users("pmmc"))
}

func TestRegistryUseHandle(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(fakeInstance("pmmc")))

	err := reg.UseHandle(BindTo("clk", "pmmc"), func(h *Handle) error {
		assert.Equal(t, 1, reg.Users("pmmc"))
		return errors.New("failed")
	})
	assert.EqualError(t, err, "failed")
	assert.Equal(t, 0, reg.Users("pmmc"))

	err = reg.UseHandle(BindTo("clk", "dmsc"), func(h *Handle) error {
		assert.Fail(t, "unexpected call")
		return nil
	})
	assert.ErrorIs(t, err, ErrNotReady)
}
