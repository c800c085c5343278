// Package atc holds small aviation-domain helpers shared by the practice screen.
package atc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// VHF airband limits used by the trainer, in MHz.
const (
	FrequencyMin = 118.00
	FrequencyMax = 135.90
)

// ErrFrequencyOutOfBand is returned when a frequency parses but lies outside
// the airband. Out-of-band input is rejected, never clamped.
var ErrFrequencyOutOfBand = fmt.Errorf("frequency outside %.2f-%.2f MHz", FrequencyMin, FrequencyMax)

// ErrFrequencyNotNumeric is returned when the input does not parse as a number.
var ErrFrequencyNotNumeric = errors.New("frequency is not numeric")

// ParseFrequency validates user input for the frequency edit modal.
func ParseFrequency(input string) (float64, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, ErrFrequencyNotNumeric
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrFrequencyNotNumeric
	}
	if f < FrequencyMin || f > FrequencyMax {
		return 0, ErrFrequencyOutOfBand
	}
	return f, nil
}

// FormatFrequency renders a frequency with exactly three decimal places,
// the form the analysis backend expects on the wire.
func FormatFrequency(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}
