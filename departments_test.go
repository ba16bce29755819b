package ipsmap

import "testing"

func TestDepartmentRefs(t *testing.T) {
	tests := []struct {
		code  string
		name  string
		known bool
	}{
		{"75", "Paris", true},
		{"1", "Ain", true},
		{"2b", "Haute-Corse", true},
		{"13", "Bouches-du-Rhône", true},
		{"974", "La Réunion", true},
		{"20", "", false},
		{"975", "", false},
		{"D75", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := IsDepartmentCode(tt.code); got != tt.known {
			t.Errorf("IsDepartmentCode(%q) = %v, want %v", tt.code, got, tt.known)
		}
		if got := DepartmentName(tt.code); got != tt.name {
			t.Errorf("DepartmentName(%q) = %q, want %q", tt.code, got, tt.name)
		}
	}

	loadDepartmentRefs()
	if len(departmentRefs) != 101 {
		t.Errorf("got %d reference departments, want 101", len(departmentRefs))
	}
}
