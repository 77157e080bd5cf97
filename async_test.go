package sugarswap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAsyncDeliversExactlyOneResult(t *testing.T) {
	ch := async(func() (int, error) { return 42, nil })

	res := <-ch
	require.NoError(t, res.Err)
	require.Equal(t, 42, res.Value)

	_, open := <-ch
	require.False(t, open, "channel closes after the single result")
}

func TestAsyncDeliversError(t *testing.T) {
	wantErr := errors.New("rpc down")
	ch := async(func() ([]string, error) { return nil, wantErr })

	res := <-ch
	require.ErrorIs(t, res.Err, wantErr)
	require.Nil(t, res.Value)
}
