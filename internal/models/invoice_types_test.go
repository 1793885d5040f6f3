package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexStringUnmarshal(t *testing.T) {
	var payload struct {
		Code    FlexString `json:"default_code"`
		Barcode FlexString `json:"barcode"`
	}

	// The backend returns boolean false for empty text fields
	err := json.Unmarshal([]byte(`{"default_code": "SKU-A", "barcode": false}`), &payload)
	require.NoError(t, err)
	assert.Equal(t, "SKU-A", payload.Code.String())
	assert.Equal(t, "", payload.Barcode.String())

	err = json.Unmarshal([]byte(`{"default_code": 42}`), &payload)
	assert.Error(t, err)
}

func TestFlexStringScan(t *testing.T) {
	var fs FlexString

	require.NoError(t, fs.Scan("7701234567890"))
	assert.Equal(t, "7701234567890", fs.String())

	require.NoError(t, fs.Scan([]byte("bytes")))
	assert.Equal(t, "bytes", fs.String())

	require.NoError(t, fs.Scan(nil))
	assert.Equal(t, "", fs.String())

	assert.Error(t, fs.Scan(3.14))
}
