package sheets

import (
	"testing"
	"time"

	"subtrack/internal/core"
)

func TestRows(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	subs := []core.Subscription{
		{Name: "Spotify", Amount: core.Money{Cents: 1200}, Frequency: core.Monthly, StartDate: core.NewDate(2024, 1, 15), Category: core.Music},
		{Name: "Prime", Amount: core.Money{Cents: 12000}, Frequency: core.Annually, StartDate: core.NewDate(2023, 6, 1), Category: core.Shopping},
	}

	rows := Rows(subs, now)

	if len(rows[0]) != len(Header) || rows[0][0] != "Name" {
		t.Fatalf("header = %v", rows[0])
	}

	tests := []struct {
		row  int
		want []string
	}{
		{1, []string{"Spotify", "Music", "monthly", "12.00", "12.00", "2024-01-15", "2024-03-15"}},
		{2, []string{"Prime", "Shopping", "annually", "120.00", "10.00", "2023-06-01", "2024-06-01"}},
		{4, []string{"Monthly total", "22.00"}},
		{5, []string{"Annual total", "264.00"}},
		{8, []string{"Music", "12.00", "54.55"}},
		{9, []string{"Shopping", "10.00", "45.45"}},
	}
	for _, tt := range tests {
		got := rows[tt.row]
		if len(got) != len(tt.want) {
			t.Errorf("row %d = %v, want %v", tt.row, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("row %d col %d = %q, want %q", tt.row, i, got[i], tt.want[i])
			}
		}
	}
}

func TestRowsEmpty(t *testing.T) {
	rows := Rows(nil, time.Now())
	// header, blank, two totals, blank, breakdown header
	if len(rows) != 6 {
		t.Fatalf("len(Rows(nil)) = %d, want 6", len(rows))
	}
	if rows[2][1] != "0.00" {
		t.Errorf("monthly total = %q, want 0.00", rows[2][1])
	}
}
