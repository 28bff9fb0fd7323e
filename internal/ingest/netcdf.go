package ingest

// netcdf.go reads ARGO profile files (core and BGC) with the pure-Go NetCDF
// decoder. Variable names and layout follow the ARGO user manual: coordinate
// vectors indexed by N_PROF, measurement matrices indexed by
// (N_PROF, N_LEVELS), and JULD timestamps in days since 1950-01-01.

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/oceanlab/argonaut/internal/log"
)

// juldEpoch is the ARGO reference time for the JULD variable.
var juldEpoch = time.Date(1950, time.January, 1, 0, 0, 0, 0, time.UTC)

// fillThreshold marks ARGO fill values (99999.0 and friends) as missing.
const fillThreshold = 99990.0

// optionalVars maps BGC variable names to measurement field setters. Only the
// variables present in the file contribute columns.
var optionalVars = []struct {
	name string
	set  func(*Measurement, *float64)
}{
	{"DOXY", func(m *Measurement, v *float64) { m.DoxyUmolKg = v }},
	{"CHLA", func(m *Measurement, v *float64) { m.ChlaMgM3 = v }},
	{"NITRATE", func(m *Measurement, v *float64) { m.NitrateUmolKg = v }},
}

// NetCDFReader reads ARGO profile files from disk.
type NetCDFReader struct {
	logger log.Logger
}

func NewNetCDFReader(logger log.Logger) *NetCDFReader {
	if logger == nil {
		logger = log.NewNop()
	}
	return &NetCDFReader{logger: logger}
}

// ReadProfiles parses every profile in the file.
func (r *NetCDFReader) ReadProfiles(path string) ([]Profile, error) {
	group, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening netcdf file: %w", err)
	}
	defer group.Close()

	lat, err := floatVector(group, "LATITUDE")
	if err != nil {
		return nil, err
	}
	lon, err := floatVector(group, "LONGITUDE")
	if err != nil {
		return nil, err
	}
	juld, err := floatVector(group, "JULD")
	if err != nil {
		return nil, err
	}
	wmoID, err := platformNumber(group)
	if err != nil {
		return nil, err
	}

	pres, err := floatMatrix(group, "PRES")
	if err != nil {
		return nil, err
	}
	temp, err := floatMatrix(group, "TEMP")
	if err != nil {
		return nil, err
	}
	psal, err := floatMatrix(group, "PSAL")
	if err != nil {
		return nil, err
	}

	// BGC files carry a subset of the optional variables; their absence is
	// normal for core floats.
	available := make(map[string]bool)
	for _, name := range group.ListVariables() {
		available[name] = true
	}
	optional := make(map[string][][]float64)
	for _, ov := range optionalVars {
		if !available[ov.name] {
			continue
		}
		matrix, err := floatMatrix(group, ov.name)
		if err != nil {
			r.logger.Warn("skipping unreadable optional variable",
				"variable", ov.name, "error", err)
			continue
		}
		optional[ov.name] = matrix
	}

	numProfiles := len(lat)
	if len(lon) != numProfiles || len(juld) != numProfiles || len(pres) != numProfiles {
		return nil, fmt.Errorf("inconsistent profile dimensions: lat=%d lon=%d juld=%d pres=%d",
			len(lat), len(lon), len(juld), len(pres))
	}

	profiles := make([]Profile, 0, numProfiles)
	for i := 0; i < numProfiles; i++ {
		p := Profile{
			FloatWMOID: wmoID,
			Latitude:   lat[i],
			Longitude:  lon[i],
			Timestamp:  juldToTime(juld[i]),
		}
		levels := len(pres[i])
		for j := 0; j < levels; j++ {
			var m Measurement
			m.PressureDbar = cell(pres, i, j)
			m.TemperatureCelsius = cell(temp, i, j)
			m.SalinityPSU = cell(psal, i, j)
			for _, ov := range optionalVars {
				if matrix, ok := optional[ov.name]; ok {
					ov.set(&m, cell(matrix, i, j))
				}
			}
			p.Measurements = append(p.Measurements, m)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// juldToTime converts ARGO julian days to UTC time, truncated to seconds.
func juldToTime(days float64) time.Time {
	seconds := days * 24 * 60 * 60
	return juldEpoch.Add(time.Duration(seconds) * time.Second)
}

// cell returns the value at [i][j] as a nullable float, treating NaN and
// ARGO fill values as missing. Ragged or short rows also read as missing.
func cell(matrix [][]float64, i, j int) *float64 {
	if i >= len(matrix) || j >= len(matrix[i]) {
		return nil
	}
	v := matrix[i][j]
	if math.IsNaN(v) || math.Abs(v) >= fillThreshold {
		return nil
	}
	return &v
}

// platformNumber reads the float's WMO identifier. The variable is a char
// array repeated per profile; the first entry is authoritative.
func platformNumber(group api.Group) (int64, error) {
	v, err := group.GetVariable("PLATFORM_NUMBER")
	if err != nil {
		return 0, fmt.Errorf("reading PLATFORM_NUMBER: %w", err)
	}

	var raw string
	switch values := v.Values.(type) {
	case string:
		raw = values
	case []string:
		if len(values) == 0 {
			return 0, fmt.Errorf("PLATFORM_NUMBER is empty")
		}
		raw = values[0]
	default:
		return 0, fmt.Errorf("unsupported PLATFORM_NUMBER type %T", v.Values)
	}

	id, err := strconv.ParseInt(strings.TrimSpace(strings.Trim(raw, "\x00")), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing PLATFORM_NUMBER %q: %w", raw, err)
	}
	return id, nil
}

// floatVector reads a 1-dimensional numeric variable as float64.
func floatVector(group api.Group, name string) ([]float64, error) {
	v, err := group.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	switch values := v.Values.(type) {
	case []float64:
		return values, nil
	case []float32:
		out := make([]float64, len(values))
		for i, f := range values {
			out[i] = float64(f)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported %s type %T", name, v.Values)
}

// floatMatrix reads a 2-dimensional numeric variable as float64 rows.
func floatMatrix(group api.Group, name string) ([][]float64, error) {
	v, err := group.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	switch values := v.Values.(type) {
	case [][]float64:
		return values, nil
	case [][]float32:
		out := make([][]float64, len(values))
		for i, row := range values {
			out[i] = make([]float64, len(row))
			for j, f := range row {
				out[i][j] = float64(f)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported %s type %T", name, v.Values)
}
