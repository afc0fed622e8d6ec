package weather

import "testing"

func TestPrettifyStationName(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"Coeur d'Alene, Coeur d'Alene Air Terminal", "Coeur d'Alene Air Terminal", true},
		{"ANGELHOLM (SWE-A", "Angelholm", true},
		{"BROMMA FLYGPLATS", "Bromma Flygplats", true},
		{"bromma flygplats", "Bromma Flygplats", true},
		{"Bromma flygplats", "Bromma flygplats", true},
		{"  Bromma  ", "Bromma", true},
		{"Stockholm (Arlanda)", "Stockholm (Arlanda)", true},
		{"Uppsala, Stockholm", "Uppsala, Stockholm", true},
		{"KIRUNA  AIRPORT", "Kiruna  Airport", true},
		{"MALMÖ-STURUP", "Malmö-sturup", true},
		{"", "", false},
		{"   ", "", false},
		{"(SWE", "", false},
		{"KIRUNA (swe", "Kiruna", true},
		{"foo, foo (X", "Foo", true},
		{"LULEA, LULEA, LULEA KALLAX", "Lulea Kallax", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := PrettifyStationName(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("PrettifyStationName(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPrettifyStationName_idempotent(t *testing.T) {
	inputs := []string{
		"Coeur d'Alene, Coeur d'Alene Air Terminal",
		"ANGELHOLM (SWE-A",
		"BROMMA FLYGPLATS",
		"Bromma flygplats",
		"Stockholm (Arlanda)",
		"o'hare",
		"KIRUNA (swe",
		"AB (c",
		"foo, foo (X",
		"a, a, a b",
	}

	for _, raw := range inputs {
		once, ok := PrettifyStationName(raw)
		if !ok {
			t.Fatalf("PrettifyStationName(%q) ok = false", raw)
		}
		twice, ok := PrettifyStationName(once)
		if !ok || twice != once {
			t.Errorf("PrettifyStationName(%q) = %q, %v; want %q, true", once, twice, ok, once)
		}
	}
}
