package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributesScanPreservesPrecision(t *testing.T) {
	var a Attributes
	require.NoError(t, a.Scan([]byte(`{"price": 123.456789012345678901, "qty": 7, "note": "x"}`)))

	// float64 would have truncated this.
	want, _ := decimal.NewFromString("123.456789012345678901")
	assert.True(t, want.Equal(a.GetDecimal("price")))
	assert.Equal(t, int64(7), a.GetInt("qty"))
	assert.Equal(t, "x", a.GetString("note"))
}

func TestAttributesScanNil(t *testing.T) {
	var a Attributes
	require.NoError(t, a.Scan(nil))
	assert.Nil(t, a)

	require.NoError(t, a.Scan([]byte{}))
	assert.Nil(t, a)
}

func TestAttributesScanUnsupportedType(t *testing.T) {
	var a Attributes
	assert.Error(t, a.Scan(42))
}

func TestAttributesValue(t *testing.T) {
	var a Attributes
	v, err := a.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	a = Attributes{"k": "v"}
	v, err = a.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(v.([]byte)))
}

func TestAttributesMissingKeys(t *testing.T) {
	var a Attributes
	assert.Equal(t, "", a.GetString("missing"))
	assert.Equal(t, int64(0), a.GetInt("missing"))
	assert.True(t, decimal.Zero.Equal(a.GetDecimal("missing")))
}

func TestBaseRecord(t *testing.T) {
	b := NewBaseRecord()
	assert.NotEqual(t, [16]byte{}, [16]byte(b.ID))
	assert.Equal(t, 1, b.Version)

	b.Touch()
	assert.Equal(t, 2, b.Version)

	b.SetAttribute("color", "red")
	assert.Equal(t, "red", b.Attributes.GetString("color"))
}
