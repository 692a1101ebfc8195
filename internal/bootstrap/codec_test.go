package bootstrap

import (
	"testing"

	"github.com/frameport/frameport/internal/shared/id"
	"github.com/frameport/frameport/internal/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeName(t *testing.T) {
	p := Payload{
		ID:      id.NewBootstrapID().String(),
		Context: window.KindPopup,
		Domain:  "https://host.example.com",
		UID:     "uid-1",
		Tag:     "checkout-button",
		Parent:  ParentLocator{Ref: RefOpener},
		Props: PropsRef{
			Type:  PropsRaw,
			Value: map[string]any{"amount": int64(100), "currency": "USD"},
		},
		Exports: map[string]string{"init": "call:init", "close": "call:close"},
	}

	name, err := EncodeName(p)
	require.NoError(t, err)
	assert.Contains(t, name, "__frameport__checkout-button__")

	decoded, err := DecodeName(name)
	require.NoError(t, err)
	assert.Equal(t, p.ID, decoded.ID)
	assert.Equal(t, window.KindPopup, decoded.Context)
	assert.Equal(t, RefOpener, decoded.Parent.Ref)
	assert.Equal(t, PropsRaw, decoded.Props.Type)
	assert.Equal(t, "USD", decoded.Props.Value["currency"])
	assert.Equal(t, "call:init", decoded.Exports["init"])
}

func TestDecodeNameRejectsForeignNames(t *testing.T) {
	_, err := DecodeName("some-other-window")
	assert.ErrorIs(t, err, ErrNotBootstrapName)

	_, err = DecodeName("__frameport__nodelimiter")
	assert.ErrorIs(t, err, ErrNotBootstrapName)

	_, err = DecodeName("__frameport__tag__!!!not-base64!!!")
	assert.Error(t, err)
}

func TestParentLocatorVariants(t *testing.T) {
	for _, tc := range []ParentLocator{
		{Ref: RefTop},
		{Ref: RefParent, Distance: 2},
		{Ref: RefGlobal, UID: "uid-9"},
	} {
		name, err := EncodeName(Payload{ID: "b1", Tag: "t", Parent: tc})
		require.NoError(t, err)
		decoded, err := DecodeName(name)
		require.NoError(t, err)
		assert.Equal(t, tc, decoded.Parent)
	}
}

func TestStoresPutGetDelete(t *testing.T) {
	props := NewPropsStore()
	wins := NewWindowStore()
	bid := id.NewBootstrapID()

	props.Put(bid, map[string]any{"k": "v"})
	wins.Put(bid, window.NewProxy(window.KindIFrame))

	got, ok := props.Get(bid)
	require.True(t, ok)
	assert.Equal(t, "v", got["k"])
	_, ok = wins.Get(bid)
	assert.True(t, ok)

	props.Delete(bid)
	wins.Delete(bid)
	_, ok = props.Get(bid)
	assert.False(t, ok)
	_, ok = wins.Get(bid)
	assert.False(t, ok)
	assert.Zero(t, props.Len())
	assert.Zero(t, wins.Len())
}
