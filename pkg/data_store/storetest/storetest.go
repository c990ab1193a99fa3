// Package storetest holds the behaviour every DataStore implementation shares.
package storetest

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jirwin/quirc/pkg/data_store"
)

type seen struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

// Run checks a store against the DataStore contract.
func Run(t *testing.T, store data_store.DataStore) {
	t.Run("plugin store", func(t *testing.T) {
		require.NoError(t, store.InitPluginBucket("karma"))
		require.NoError(t, store.InitPluginBucket("karma"))
		s := store.GetStore("karma")

		require.NoError(t, s.Get("quirc", func(v []byte) error {
			require.Nil(t, v)
			return nil
		}))

		incr := func(v []byte) ([]byte, error) {
			if v == nil {
				return []byte("1"), nil
			}
			i, err := strconv.Atoi(string(v))
			if err != nil {
				return nil, err
			}
			return []byte(strconv.Itoa(i + 1)), nil
		}
		require.NoError(t, s.GetAndUpdate("quirc", incr))
		require.NoError(t, s.GetAndUpdate("quirc", incr))
		require.NoError(t, s.Update("go", []byte("5")))

		require.NoError(t, s.Get("quirc", func(v []byte) error {
			require.Equal(t, "2", string(v))
			return nil
		}))

		require.NoError(t, s.GetAndUpdate("quirc", func(v []byte) ([]byte, error) { return nil, nil }))
		require.NoError(t, s.Get("quirc", func(v []byte) error {
			require.Equal(t, "2", string(v))
			return nil
		}))

		boom := errors.New("boom")
		require.ErrorIs(t, s.GetAndUpdate("quirc", func(v []byte) ([]byte, error) { return nil, boom }), boom)

		keys := map[string]string{}
		require.NoError(t, s.ForEach(func(key string, value []byte) error {
			keys[key] = string(value)
			return nil
		}))
		require.Equal(t, map[string]string{"quirc": "2", "go": "5"}, keys)

		require.NoError(t, s.Delete("go"))
		require.NoError(t, s.Get("go", func(v []byte) error {
			require.Nil(t, v)
			return nil
		}))
	})

	t.Run("nick values", func(t *testing.T) {
		require.NoError(t, store.SetNickValue("Foo[m]", "seen", seen{Channel: "#quirc", Message: "hi"}))

		var got seen
		ok, err := store.GetNickValue("foo{m}", "seen", &got)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, seen{Channel: "#quirc", Message: "hi"}, got)

		ok, err = store.GetNickValue("bar", "seen", &got)
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, store.DeleteNickValue("FOO[M]", "seen"))
		ok, err = store.GetNickValue("Foo[m]", "seen", &got)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("channel values", func(t *testing.T) {
		require.NoError(t, store.SetChannelValue("#Quirc", "topic", "hello"))
		require.NoError(t, store.SetChannelValue("#quirc", "topic", "updated"))

		var topic string
		ok, err := store.GetChannelValue("#QUIRC", "topic", &topic)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "updated", topic)

		require.NoError(t, store.DeleteChannelValue("#quirc", "topic"))
		ok, err = store.GetChannelValue("#quirc", "topic", &topic)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("plugin values", func(t *testing.T) {
		require.NoError(t, store.SetPluginValue("remind", "pending", []int{1, 2, 3}))

		var pending []int
		ok, err := store.GetPluginValue("remind", "pending", &pending)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []int{1, 2, 3}, pending)

		var wrong map[string]string
		_, err = store.GetPluginValue("remind", "pending", &wrong)
		require.Error(t, err)

		require.NoError(t, store.DeletePluginValue("remind", "pending"))
		ok, err = store.GetPluginValue("remind", "pending", &pending)
		require.NoError(t, err)
		require.False(t, ok)
	})
}
