package utils

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewETLLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewETLLogger(&buf, "json", "info")
	require.NoError(t, err)

	logger.Named("load").Info("facts inserted", "count", 3)
	logger.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "facts inserted", rec["msg"])
	assert.Equal(t, "load", rec["component"])
	assert.EqualValues(t, 3, rec["count"])
}

func TestNewETLLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewETLLogger(&buf, "text", "debug")
	require.NoError(t, err)

	logger.Debug("visible at debug")
	assert.Contains(t, buf.String(), "visible at debug")

	_, err = NewETLLogger(&buf, "text", "loud")
	assert.Error(t, err)

	_, err = NewETLLogger(&buf, "xml", "info")
	assert.Error(t, err)
}
