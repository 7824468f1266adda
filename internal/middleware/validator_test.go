package middleware

import "testing"

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "a.exe", false},
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"path_traversal", "../../etc/passwd", true},
		{"slash", "dir/a.exe", true},
		{"backslash", "dir\\a.exe", true},
		{"shell_meta", "a;rm -rf.exe", true},
		{"null_byte", "a\x00.exe", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFileName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFileName(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFileSize(t *testing.T) {
	if err := ValidateFileSize(1024); err != nil {
		t.Errorf("1024: %v", err)
	}
	if err := ValidateFileSize(0); err == nil {
		t.Error("0: expected error")
	}
	if err := ValidateFileSize(-1); err == nil {
		t.Error("-1: expected error")
	}
	if err := ValidateFileSize(257 << 20); err == nil {
		t.Error("over cap: expected error")
	}
}

func TestValidateScanID(t *testing.T) {
	if err := ValidateScanID("8f14e45f-ceea-4672-a3b4-9a1c5e1b2d3f"); err != nil {
		t.Errorf("valid uuid: %v", err)
	}
	for _, bad := range []string{"", "not-a-uuid", "8F14E45F-CEEA-4672-A3B4-9A1C5E1B2D3F'; DROP TABLE scans;--"} {
		if err := ValidateScanID(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestValidateOwnerID(t *testing.T) {
	if err := ValidateOwnerID("owner_1-a"); err != nil {
		t.Errorf("valid: %v", err)
	}
	for _, bad := range []string{"", "owner one", "a/b"} {
		if err := ValidateOwnerID(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestValidateDays(t *testing.T) {
	if got := ValidateDays(0); got != 7 {
		t.Errorf("0 -> %d, want 7", got)
	}
	if got := ValidateDays(400); got != 365 {
		t.Errorf("400 -> %d, want 365", got)
	}
	if got := ValidateDays(30); got != 30 {
		t.Errorf("30 -> %d, want 30", got)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  a\x00b\x01c  "); got != "abc" {
		t.Errorf("SanitizeString = %q, want abc", got)
	}
}
