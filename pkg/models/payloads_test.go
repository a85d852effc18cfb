package models

import (
	"math"
	"testing"

	"gotest.tools/assert"
)

func TestReportReference(t *testing.T) {
	expected := ReportReference{ID: 3, Type: InputReport}
	enc := expected.Data()
	assert.DeepEqual(t, enc, []byte{0x03, 0x01})
	actual, err := GetReportReferenceFromBytes(enc)
	assert.NilError(t, err)
	assert.DeepEqual(t, *actual, expected)
	_, err = GetReportReferenceFromBytes([]byte{0x01})
	assert.ErrorContains(t, err, "2 bytes")
}

func TestReportTypeString(t *testing.T) {
	assert.Equal(t, FeatureReport.String(), "Feature")
	assert.Equal(t, ReportType(9).String(), "ReportType(9)")
}

func TestReadingEncoding(t *testing.T) {
	r := Reading{Temperature: 21.5, Humidity: 45.2}
	enc, err := r.Data()
	assert.NilError(t, err)
	assert.DeepEqual(t, enc, []byte{0xD7, 0x00, 0xC4, 0x01})
	actual, err := GetReadingFromBytes(enc)
	assert.NilError(t, err)
	assert.Equal(t, actual.String(), "21.5°C 45.2%RH")
}

func TestNegativeTemperature(t *testing.T) {
	r := Reading{Temperature: -5.3, Humidity: 80}
	enc, err := r.Data()
	assert.NilError(t, err)
	assert.DeepEqual(t, enc, []byte{0xCB, 0xFF, 0x20, 0x03})
	actual, err := GetReadingFromBytes(enc)
	assert.NilError(t, err)
	assert.Equal(t, actual.String(), "-5.3°C 80.0%RH")
}

func TestReadingOutOfRange(t *testing.T) {
	_, err := Reading{Temperature: 120, Humidity: 10}.Data()
	assert.ErrorContains(t, err, "temperature")
	_, err = Reading{Temperature: 20, Humidity: 101}.Data()
	assert.ErrorContains(t, err, "humidity")
	_, err = GetReadingFromBytes([]byte{1, 2, 3})
	assert.ErrorContains(t, err, "4 bytes")
}

func TestReadingNaN(t *testing.T) {
	nan := float32(math.NaN())
	_, err := Reading{Temperature: nan, Humidity: 50}.Data()
	assert.ErrorContains(t, err, "temperature")
	_, err = Reading{Temperature: 20, Humidity: nan}.Data()
	assert.ErrorContains(t, err, "humidity")
	_, err = Reading{Temperature: float32(math.Inf(-1)), Humidity: 50}.Data()
	assert.ErrorContains(t, err, "temperature")
}
