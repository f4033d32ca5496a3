package errors

import (
	"testing"
)

func TestErrorCodeTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		phase    string
		category string
	}{
		{"MRG001", MRG001, "buildmap", "conflict"},
		{"MRG002", MRG002, "buildmap", "construction"},
		{"ART001", ART001, "artifacts", "filesystem"},
		{"ART005", ART005, "artifacts", "invariant"},
		{"TUL001", TUL001, "buildtool", "exit"},
		{"TUL002", TUL002, "buildtool", "signal"},
		{"IFC001", IFC001, "buildinterface", "json"},
		{"BLD001", BLD001, "builder", "precondition"},
		{"BLD002", BLD002, "builder", "restore"},
		{"MOD001", MOD001, "modpath", "resolution"},
		{"TRK001", TRK001, "moduletracker", "invariant"},
		{"TRK005", TRK005, "moduletracker", "lookup"},
		{"OVL001", OVL001, "overlay", "resolution"},
		{"STO001", STO001, "sharedstore", "load"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, exists := GetErrorInfo(tt.code)
			if !exists {
				t.Fatalf("Error code %s not found in registry", tt.code)
			}
			if info.Code != tt.code {
				t.Errorf("Code mismatch: got %s, want %s", info.Code, tt.code)
			}
			if info.Phase != tt.phase {
				t.Errorf("Phase mismatch for %s: got %s, want %s", tt.code, info.Phase, tt.phase)
			}
			if info.Category != tt.category {
				t.Errorf("Category mismatch for %s: got %s, want %s", tt.code, info.Category, tt.category)
			}
		})
	}
}

func TestErrorTypeCheckers(t *testing.T) {
	if !IsMergeConflict(MRG001) {
		t.Errorf("IsMergeConflict(%s) = false, want true", MRG001)
	}
	if IsMergeConflict(TRK001) {
		t.Errorf("IsMergeConflict(%s) = true, want false", TRK001)
	}
	if !IsInvariantViolation(TRK002) {
		t.Errorf("IsInvariantViolation(%s) = false, want true", TRK002)
	}
	if IsInvariantViolation(TRK005) {
		t.Errorf("IsInvariantViolation(%s) = true, want false (lookup miss is not an invariant violation)", TRK005)
	}
	if !IsToolError(TUL001) {
		t.Errorf("IsToolError(%s) = false, want true", TUL001)
	}
	if IsToolError(IFC001) {
		t.Errorf("IsToolError(%s) = true, want false", IFC001)
	}
}

func TestAllErrorCodesInRegistry(t *testing.T) {
	allCodes := []string{
		MRG001, MRG002, MRG003, MRG004, MRG005,
		ART001, ART002, ART003, ART004, ART005,
		TUL001, TUL002, TUL003,
		IFC001, IFC002, IFC003, IFC004,
		BLD001, BLD002, BLD003, BLD004,
		MOD001, MOD002,
		TRK001, TRK002, TRK003, TRK004, TRK005,
		OVL001,
		STO001, STO002,
	}

	for _, code := range allCodes {
		t.Run(code, func(t *testing.T) {
			if _, exists := GetErrorInfo(code); !exists {
				t.Errorf("Error code %s is defined but not in registry", code)
			}
		})
	}

	if len(ErrorRegistry) != len(allCodes) {
		t.Errorf("Registry has %d codes, expected exactly %d", len(ErrorRegistry), len(allCodes))
	}
}

func TestErrorInfoConsistency(t *testing.T) {
	validPhases := map[string]bool{
		"buildmap": true, "artifacts": true, "buildtool": true,
		"buildinterface": true, "builder": true, "modpath": true,
		"moduletracker": true, "overlay": true, "sharedstore": true,
	}

	for code, info := range ErrorRegistry {
		if info.Code != code {
			t.Errorf("Code mismatch in registry: key=%s, info.Code=%s", code, info.Code)
		}
		if len(code) < 4 || len(code) > 6 {
			t.Errorf("Invalid code format: %s", code)
		}
		if !validPhases[info.Phase] {
			t.Errorf("Invalid phase for %s: %s", code, info.Phase)
		}
		if info.Description == "" {
			t.Errorf("Empty description for %s", code)
		}
	}
}
