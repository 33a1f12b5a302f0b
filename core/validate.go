package brc

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/dolthub/swiss"
)

// Expected is one reference row, in degrees.
type Expected struct {
	Min float64
	Max float64
	Avg float64
}

// LoadExpectedCSV reads a reference report in the layout WriteCSV
// produces. Malformed rows are dropped, matching the skip-and-continue
// policy of the parse path.
func LoadExpectedCSV(filename string) (*swiss.Map[string, Expected], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	expected := swiss.NewMap[string, Expected](512)
	scanner := bufio.NewScanner(f)
	header := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if header {
			header = false
			continue
		}
		if line == "" {
			continue
		}
		columns := strings.Split(line, ",")
		if len(columns) != 4 {
			continue
		}
		minVal, err1 := strconv.ParseFloat(columns[1], 64)
		maxVal, err2 := strconv.ParseFloat(columns[2], 64)
		avgVal, err3 := strconv.ParseFloat(columns[3], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		expected.Put(columns[0], Expected{Min: minVal, Max: maxVal, Avg: avgVal})
	}
	return expected, scanner.Err()
}

// ValidationResult summarizes a comparison against a reference report.
type ValidationResult struct {
	Total      int
	Matched    int
	Mismatched int
	Missing    int
	Extra      int
	Errors     []string
}

func (v *ValidationResult) OK() bool {
	return v.Missing == 0 && v.Mismatched == 0 && v.Extra == 0
}

// Validate compares aggregated stations against a reference CSV,
// allowing tolerance degrees of drift on min, max and mean.
func Validate(stations []Station, refPath string, tolerance float64) (*ValidationResult, error) {
	expected, err := LoadExpectedCSV(refPath)
	if err != nil {
		return nil, err
	}
	actual := make(map[string]Station, len(stations))
	for _, station := range stations {
		actual[station.Name] = station
	}

	result := &ValidationResult{Total: expected.Count()}
	expected.Iter(func(name string, exp Expected) bool {
		station, ok := actual[name]
		if !ok {
			result.Missing++
			result.Errors = append(result.Errors, fmt.Sprintf("missing station %q", name))
			return false
		}
		minOff := math.Abs(float64(station.Min)/10.0 - exp.Min)
		maxOff := math.Abs(float64(station.Max)/10.0 - exp.Max)
		avgOff := math.Abs(station.Mean() - exp.Avg)
		if minOff > tolerance || maxOff > tolerance || avgOff > tolerance {
			result.Mismatched++
			result.Errors = append(result.Errors, fmt.Sprintf(
				"%s: expected min/max/avg %.1f/%.1f/%.1f, got %s/%s/%.1f",
				name, exp.Min, exp.Max, exp.Avg,
				FormatTenths(station.Min), FormatTenths(station.Max), station.Mean()))
		} else {
			result.Matched++
		}
		return false
	})
	for _, station := range stations {
		if !expected.Has(station.Name) {
			result.Extra++
			result.Errors = append(result.Errors, fmt.Sprintf("unexpected station %q", station.Name))
		}
	}
	return result, nil
}
