//go:build !tinygo && !baremetal

package taplink

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCard(t *testing.T) {
	id, err := ParseDeviceID("0A0B0C0D0E0F101112131415")
	require.NoError(t, err)

	card, err := NewCard(id, ModeBattery)
	require.NoError(t, err)
	require.Equal(t, RoleUnknown, card.Role())
	require.Nil(t, card.Link())

	require.NoError(t, card.Begin())
	require.NotNil(t, card.Link())
	require.Equal(t, id, card.Store().SelfID())
	require.Zero(t, card.Store().TapCount())
	require.Equal(t, ModeBattery, card.Mode())
}

func TestLinkConstructors(t *testing.T) {
	id := DeviceID{1, 2, 3}
	require.Equal(t, RoleUnknown, NewEvalLink(id).Role())
	require.NotNil(t, NewBatteryLink(id))
}

func TestParseDeviceIDErrors(t *testing.T) {
	_, err := ParseDeviceID("nope")
	require.ErrorIs(t, err, ErrInvalidID)
}
