package models

import (
	"errors"
	"testing"
	"time"
)

func rawRow(date, location, chargers string, fill string) RawEnergyRecord {
	r := RawEnergyRecord{
		Date:         date,
		Location:     location,
		RateClass:    "Residential",
		ChargerCount: chargers,
	}
	for i := range r.Hourly {
		r.Hourly[i] = fill
	}
	return r
}

// TestRawEnergyRecord_ToRecord tests row validation and conversion
func TestRawEnergyRecord_ToRecord(t *testing.T) {
	tests := []struct {
		name        string
		record      RawEnergyRecord
		wantErr     bool
		wantField   string
		checkValues func(*testing.T, *EnergyRecord)
	}{
		{
			name:   "valid record with all values",
			record: rawRow("20240107", " LOC-001 ", "2", "1.5"),
			checkValues: func(t *testing.T, rec *EnergyRecord) {
				if rec.LocationID != "LOC-001" {
					t.Errorf("LocationID = %v, want %v", rec.LocationID, "LOC-001")
				}

				expectedDate := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
				if !rec.Date.Equal(expectedDate) {
					t.Errorf("Date = %v, want %v", rec.Date, expectedDate)
				}

				for h, v := range rec.Hourly {
					if v != 1.5 {
						t.Errorf("Hourly[%d] = %v, want 1.5", h, v)
					}
				}

				if !rec.HasConfirmedChargers() {
					t.Error("HasConfirmedChargers() = false, want true")
				}
			},
		},
		{
			name:   "blank hourly cells read as zero",
			record: rawRow("20240107", "LOC-001", "", ""),
			checkValues: func(t *testing.T, rec *EnergyRecord) {
				for h, v := range rec.Hourly {
					if v != 0 {
						t.Errorf("Hourly[%d] = %v, want 0", h, v)
					}
				}
				if rec.HasConfirmedChargers() {
					t.Error("HasConfirmedChargers() = true, want false for blank metadata")
				}
			},
		},
		{
			name:   "N/A charger metadata is not confirmed",
			record: rawRow("20240107", "LOC-001", "n/a", "0"),
			checkValues: func(t *testing.T, rec *EnergyRecord) {
				if rec.HasConfirmedChargers() {
					t.Error("HasConfirmedChargers() = true, want false for N/A")
				}
			},
		},
		{
			name:      "invalid date format",
			record:    rawRow("2024-01-07", "LOC-001", "", "1"),
			wantErr:   true,
			wantField: "date",
		},
		{
			name:      "empty location",
			record:    rawRow("20240107", "  ", "", "1"),
			wantErr:   true,
			wantField: "location",
		},
		{
			name:      "unparsable hourly value",
			record:    rawRow("20240107", "LOC-001", "", "abc"),
			wantErr:   true,
			wantField: "R1",
		},
		{
			name:      "NaN hourly value",
			record:    rawRow("20240107", "LOC-001", "", "NaN"),
			wantErr:   true,
			wantField: "R1",
		},
		{
			name:      "Inf hourly value",
			record:    rawRow("20240107", "LOC-001", "", "Inf"),
			wantErr:   true,
			wantField: "R1",
		},
		{
			name:      "-Inf hourly value",
			record:    rawRow("20240107", "LOC-001", "", "-Inf"),
			wantErr:   true,
			wantField: "R1",
		},
		{
			name:      "Infinity hourly value",
			record:    rawRow("20240107", "LOC-001", "", "Infinity"),
			wantErr:   true,
			wantField: "R1",
		},
		{
			name:      "negative hourly value",
			record:    rawRow("20240107", "LOC-001", "", "-0.5"),
			wantErr:   true,
			wantField: "R1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := tt.record.ToRecord()

			if (err != nil) != tt.wantErr {
				t.Errorf("ToRecord() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("error %T is not a *ValidationError", err)
				}
				if verr.Field != tt.wantField {
					t.Errorf("Field = %v, want %v", verr.Field, tt.wantField)
				}
				return
			}

			if tt.checkValues != nil {
				tt.checkValues(t, rec)
			}
		})
	}
}

func TestChargerStatus_Active(t *testing.T) {
	tests := []struct {
		name   string
		status ChargerStatus
		want   bool
	}{
		{"confirmed", ChargerStatus{State: ChargerConfirmed}, true},
		{"predicted above half", ChargerStatus{State: ChargerPredictedPresent, Probability: 0.51}, true},
		{"predicted exactly half", ChargerStatus{State: ChargerPredictedPresent, Probability: 0.5}, false},
		{"predicted absent", ChargerStatus{State: ChargerPredictedAbsent, Probability: 0.2}, false},
		{"unknown", ChargerStatus{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Active(); got != tt.want {
				t.Errorf("Active() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChargerState_TextRoundTrip(t *testing.T) {
	for _, state := range []ChargerState{ChargerUnknown, ChargerConfirmed, ChargerPredictedPresent, ChargerPredictedAbsent} {
		text, err := state.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) error = %v", state, err)
		}

		var got ChargerState
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) error = %v", text, err)
		}
		if got != state {
			t.Errorf("UnmarshalText(%q) = %v, want %v", text, got, state)
		}
	}
}

func TestErrors(t *testing.T) {
	verr := &ValidationError{Field: "threshold", Value: "abc", Message: "must be a number"}
	if verr.Error() != `threshold: must be a number (got "abc")` {
		t.Errorf("Error() = %v", verr.Error())
	}
	if verr.IsTransient() {
		t.Error("ValidationError should not be transient")
	}

	nf := &NotFoundError{Resource: "location", ID: "LOC-9"}
	if nf.Error() != "location not found: LOC-9" {
		t.Errorf("Error() = %v", nf.Error())
	}
	if nf.IsTransient() {
		t.Error("NotFoundError should not be transient")
	}

	cause := errors.New("file missing")
	du := &DataUnavailableError{Source: "topology", Err: cause}
	if !errors.Is(du, cause) {
		t.Error("DataUnavailableError should unwrap to its cause")
	}
	if !du.IsTransient() {
		t.Error("DataUnavailableError should be transient")
	}
}
