// Package csvstore persists the rolling observation history and the daily
// risk snapshot as CSV files.
package csvstore

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/heatwatch/heat-risk-pipeline/internal/domain"
)

// Input table column names. facility_score is the legacy name some older
// history files carry instead of facility_distance.
const (
	colBarangayID       = "barangay_id"
	colDate             = "date"
	colTemperature      = "temperature"
	colFacilityDistance = "facility_distance"
	colFacilityScore    = "facility_score"

	colRiskLevel = "risk_level"
	colCluster   = "cluster"
)

// historyTypes pins the column types so numeric-looking barangay ids stay
// strings and measurements parse as floats (unparseable cells become NaN).
var historyTypes = map[string]series.Type{
	colBarangayID:       series.String,
	colDate:             series.String,
	colTemperature:      series.Float,
	colFacilityDistance: series.Float,
	colFacilityScore:    series.Float,
}

// Store reads and writes the history and output CSVs at fixed paths.
// It implements pipeline.HistoryStore.
type Store struct {
	historyPath string
	outputPath  string
}

// NewStore creates a Store over the given history and output paths.
func NewStore(historyPath, outputPath string) *Store {
	return &Store{historyPath: historyPath, outputPath: outputPath}
}

// Load reads the observation history. A missing file fails with
// domain.ErrInputNotFound; a missing required column with
// domain.ErrInvalidInput naming the column.
func (s *Store) Load() ([]domain.Observation, error) {
	return LoadObservations(s.historyPath)
}

// Append merges observations into the history CSV, creating it when absent.
func (s *Store) Append(obs []domain.Observation) error {
	return AppendObservations(s.historyPath, obs)
}

// WriteSnapshot writes the output table (barangay_id, risk_level, cluster).
func (s *Store) WriteSnapshot(snap domain.Snapshot) error {
	return WriteSnapshot(s.outputPath, snap)
}

// LoadObservations reads a history CSV into observations.
func LoadObservations(path string) ([]domain.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("history file %s: %w", path, domain.ErrInputNotFound)
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, dataframe.WithTypes(historyTypes))
	if df.Err != nil {
		return nil, fmt.Errorf("read history file %s: %v: %w", path, df.Err, domain.ErrInvalidInput)
	}
	return observationsFromFrame(df)
}

func observationsFromFrame(df dataframe.DataFrame) ([]domain.Observation, error) {
	have := make(map[string]bool, len(df.Names()))
	for _, name := range df.Names() {
		have[name] = true
	}
	for _, required := range []string{colBarangayID, colDate, colTemperature} {
		if !have[required] {
			return nil, fmt.Errorf("missing required column %q: %w", required, domain.ErrInvalidInput)
		}
	}
	facilityCol := colFacilityDistance
	if !have[facilityCol] {
		// Fall back to the legacy feature name.
		facilityCol = colFacilityScore
		if !have[facilityCol] {
			return nil, fmt.Errorf("missing required column %q (or legacy %q): %w",
				colFacilityDistance, colFacilityScore, domain.ErrInvalidInput)
		}
	}

	records := df.Records()
	idx := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		idx[name] = i
	}

	obs := make([]domain.Observation, 0, len(records)-1)
	for _, rec := range records[1:] {
		obs = append(obs, domain.Observation{
			BarangayID:       rec[idx[colBarangayID]],
			Date:             rec[idx[colDate]],
			Temperature:      parseFloatOrNaN(rec[idx[colTemperature]]),
			FacilityDistance: parseFloatOrNaN(rec[idx[facilityCol]]),
		})
	}
	return obs, nil
}

// AppendObservations merges new rows into the history CSV. The file is
// created on first use; an existing file must carry the same columns.
func AppendObservations(path string, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	merged := observationsFrame(obs)
	if _, err := os.Stat(path); err == nil {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open history file: %w", err)
		}
		existing := dataframe.ReadCSV(f, dataframe.WithTypes(historyTypes))
		f.Close()
		if existing.Err != nil {
			return fmt.Errorf("read history file %s: %v: %w", path, existing.Err, domain.ErrInvalidInput)
		}
		merged = existing.RBind(merged)
		if merged.Err != nil {
			return fmt.Errorf("merge history rows: %v: %w", merged.Err, domain.ErrInvalidInput)
		}
	}

	return writeFrame(path, merged)
}

// WriteSnapshot writes the latest-date risk table.
func WriteSnapshot(path string, snap domain.Snapshot) error {
	records := make([][]string, 0, len(snap.Assessments)+1)
	records = append(records, []string{colBarangayID, colRiskLevel, colCluster})
	for _, a := range snap.Assessments {
		records = append(records, []string{
			a.BarangayID,
			strconv.Itoa(a.RiskLevel),
			strconv.Itoa(a.Cluster),
		})
	}

	df := dataframe.LoadRecords(records, dataframe.WithTypes(map[string]series.Type{
		colBarangayID: series.String,
		colRiskLevel:  series.Int,
		colCluster:    series.Int,
	}))
	if df.Err != nil {
		return fmt.Errorf("build snapshot frame: %w", df.Err)
	}
	return writeFrame(path, df)
}

func observationsFrame(obs []domain.Observation) dataframe.DataFrame {
	records := make([][]string, 0, len(obs)+1)
	records = append(records, []string{colBarangayID, colDate, colTemperature, colFacilityDistance})
	for _, o := range obs {
		records = append(records, []string{
			o.BarangayID,
			o.Date,
			formatFloat(o.Temperature),
			formatFloat(o.FacilityDistance),
		})
	}
	return dataframe.LoadRecords(records, dataframe.WithTypes(historyTypes))
}

func writeFrame(path string, df dataframe.DataFrame) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := df.WriteCSV(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func parseFloatOrNaN(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
