package entities

import (
	"testing"
	"time"
)

func TestParseEffectiveDate(t *testing.T) {
	tests := []struct {
		name      string
		expr      string
		wantStart float64
		wantEnd   float64
		wantNil   bool
		wantErr   bool
	}{
		{name: "empty", expr: "", wantNil: true},
		{name: "single day", expr: "2020-01-01", wantStart: 2020.0101, wantEnd: 2020.0101235959},
		{name: "year", expr: "2019", wantStart: 2019.0101, wantEnd: 2019.1231235959},
		{name: "month", expr: "2021-02", wantStart: 2021.0201, wantEnd: 2021.0228235959},
		{name: "range", expr: "2019-05-05 - 2020-06-01", wantStart: 2019.0505, wantEnd: 2020.0601235959},
		{name: "range with to", expr: "2018 to 2019", wantStart: 2018.0101, wantEnd: 2019.1231235959},
		{name: "timestamp", expr: "2020-01-01T10:30:00", wantStart: 2020.010110300, wantEnd: 2020.010110300},
		{name: "reversed range", expr: "2021 - 2020", wantErr: true},
		{name: "garbage", expr: "last tuesday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEffectiveDate(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEffectiveDate(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("ParseEffectiveDate(%q) = %+v, want nil", tt.expr, got)
				}
				return
			}
			if got.Start != tt.wantStart || got.End != tt.wantEnd {
				t.Errorf("ParseEffectiveDate(%q) = %v..%v, want %v..%v", tt.expr, got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestEffectiveDate_String(t *testing.T) {
	tests := []string{"2020", "2020-01-01", "2019-05-05 - 2020-06-01"}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			d, err := ParseEffectiveDate(expr)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if got := d.String(); got != expr {
				t.Errorf("String() = %q, want %q", got, expr)
			}
		})
	}
}

func TestEffectiveDate_TokenOrdering(t *testing.T) {
	early, _ := ParseEffectiveDate("2019-05-05")
	late, _ := ParseEffectiveDate("2020-01-01")

	if early.Token() >= late.Token() {
		t.Errorf("Token() ordering broken: %s >= %s", early.Token(), late.Token())
	}
	if early.Token() != "2019.0505000000" {
		t.Errorf("Token() = %s, want 2019.0505000000", early.Token())
	}
}

func TestEffectiveDate_StartsAfter(t *testing.T) {
	clock := HistoricFromTime(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	future, _ := ParseEffectiveDate("2021-06-01")
	past, _ := ParseEffectiveDate("2020-01-01")

	if !future.StartsAfter(clock) {
		t.Error("2021-06-01 should start after 2021-01-01")
	}
	if past.StartsAfter(clock) {
		t.Error("2020-01-01 should not start after 2021-01-01")
	}
}

func TestTimeFromHistoric(t *testing.T) {
	want := time.Date(2020, 6, 1, 13, 45, 10, 0, time.UTC)
	got, err := TimeFromHistoric(HistoricFromTime(want))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("TimeFromHistoric() = %v, want %v", got, want)
	}
}
