package models

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

const (
	// ReadingSize is the encoded size of a Reading
	ReadingSize = 4
	// ReportReferenceSize is the encoded size of a ReportReference
	ReportReferenceSize = 2

	minTemperature = -40.0
	maxTemperature = 80.0
)

// ReportType is the type field of a Report Reference descriptor
type ReportType uint8

const (
	InputReport ReportType = iota + 1
	OutputReport
	FeatureReport
)

func (t ReportType) String() string {
	switch t {
	case InputReport:
		return "Input"
	case OutputReport:
		return "Output"
	case FeatureReport:
		return "Feature"
	}
	return fmt.Sprintf("ReportType(%d)", uint8(t))
}

// ReportReference is the payload of the Report Reference descriptor (0x2908)
type ReportReference struct {
	ID   uint8
	Type ReportType
}

// Data will serialize the report reference as [id, type]
func (r ReportReference) Data() []byte {
	return []byte{r.ID, uint8(r.Type)}
}

// GetReportReferenceFromBytes decodes a Report Reference descriptor value
func GetReportReferenceFromBytes(data []byte) (*ReportReference, error) {
	if len(data) != ReportReferenceSize {
		return nil, errors.Errorf("report reference must be %d bytes, got %d", ReportReferenceSize, len(data))
	}
	return &ReportReference{ID: data[0], Type: ReportType(data[1])}, nil
}

// Reading is one DHT sample
type Reading struct {
	// Temperature in Celsius, 0.1 degree resolution
	Temperature float32
	// Relative humidity in percent, 0.1 percent resolution
	Humidity float32
}

// Data will serialize the reading as little endian int16 temperature and uint16 humidity, both in tenths
func (r Reading) Data() ([]byte, error) {
	if !(r.Temperature >= minTemperature && r.Temperature <= maxTemperature) {
		return nil, errors.Errorf("temperature %.1f out of range", r.Temperature)
	}
	if !(r.Humidity >= 0 && r.Humidity <= 100) {
		return nil, errors.Errorf("humidity %.1f out of range", r.Humidity)
	}
	b := make([]byte, ReadingSize)
	binary.LittleEndian.PutUint16(b[0:2], uint16(int16(math.Round(float64(r.Temperature)*10))))
	binary.LittleEndian.PutUint16(b[2:4], uint16(math.Round(float64(r.Humidity)*10)))
	return b, nil
}

func (r Reading) String() string {
	return fmt.Sprintf("%.1f°C %.1f%%RH", r.Temperature, r.Humidity)
}

// GetReadingFromBytes constructs a reading from a characteristic value
func GetReadingFromBytes(data []byte) (*Reading, error) {
	if len(data) != ReadingSize {
		return nil, errors.Errorf("reading must be %d bytes, got %d", ReadingSize, len(data))
	}
	t := int16(binary.LittleEndian.Uint16(data[0:2]))
	h := binary.LittleEndian.Uint16(data[2:4])
	return &Reading{Temperature: float32(t) / 10, Humidity: float32(h) / 10}, nil
}
