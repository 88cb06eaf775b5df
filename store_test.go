package imagefusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSrcImages(t *testing.T) {
	s := NewSrcImages()
	high, _ := New(4, 4, TypeOf(KUint16, 3))
	low, _ := New(4, 4, TypeOf(KUint16, 3))
	s.Set("high", 1, high)
	s.Set("low", 1, low)

	got, err := s.Get("high", 1)
	require.NoError(t, err)
	assert.True(t, got.Shared(high))

	assert.Equal(t, 1, s.Count("low", 1))
	assert.Equal(t, 0, s.Count("low", 2))
	assert.Equal(t, 2, s.Len())
	assert.NotNil(t, s.GetAny())

	_, err = s.Get("low", 2)
	var nerr NotFoundError
	require.ErrorAs(t, err, &nerr)

	s.Remove("low", 1)
	assert.Equal(t, 0, s.Count("low", 1))

	empty := NewSrcImages()
	assert.Nil(t, empty.GetAny())
}
