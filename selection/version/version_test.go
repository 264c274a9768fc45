package version

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input      string
		wantNorm   string
		wantRelLen int
		wantPreLen int
		wantErr    bool
	}{
		{"1.0.0", "1.0.0", 3, 0, false},
		{"1.0.0-alpha.1", "1.0.0-alpha.1", 3, 2, false},
		{"1.0.0-x.7.z.92", "1.0.0-x.7.z.92", 3, 4, false},
		{"1.0.0+build.123", "1.0.0", 3, 0, false},
		{"1.0.0-rc1+build", "1.0.0-rc1", 3, 1, false},
		{"1", "1", 1, 0, false},
		{"1.3.1.bcr.7", "1.3.1.bcr.7", 5, 0, false},
		{"", "", 0, 0, false},
		{"1..0", "", 0, 0, true},
		{"-1.0", "", 0, 0, true},
		{"1.0_beta", "", 0, 0, true},
		{"1.0-", "", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if v.String() != tt.wantNorm {
				t.Errorf("Parse(%q).String() = %q, want %q", tt.input, v.String(), tt.wantNorm)
			}
			if len(v.Release) != tt.wantRelLen {
				t.Errorf("Parse(%q) release len = %d, want %d", tt.input, len(v.Release), tt.wantRelLen)
			}
			if len(v.Prerelease) != tt.wantPreLen {
				t.Errorf("Parse(%q) prerelease len = %d, want %d", tt.input, len(v.Prerelease), tt.wantPreLen)
			}
		})
	}
}

func TestParseErrorMessage(t *testing.T) {
	_, err := Parse("1..0")
	if err == nil {
		t.Fatal("expected error")
	}
	want := `bad version "1..0": empty release identifier`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "2.0.0", -1},
		{"1.0.0", "1.0.0", 0},
		{"1.0.1", "1.0.0", 1},
		{"1.10.0", "1.9.0", 1},

		// a prerelease is below its release
		{"1.0.0-alpha", "1.0.0", -1},
		{"1.0.0-alpha", "1.0.0-beta", -1},
		{"1.0.0-alpha.1", "1.0.0-alpha.2", -1},

		// digits-only identifiers sort first
		{"1.0.0-1", "1.0.0-alpha", -1},

		// more identifiers is higher when the prefix is equal
		{"1.0", "1.0.0", -1},
		{"1.3.1.bcr.7", "1.3.1", 1},
		{"1.3.1.bcr.7", "1.3.2", -1},

		// empty is the highest version
		{"999.999.999", "", -1},
		{"", "", 0},

		// build metadata does not participate
		{"1.0.0+a", "1.0.0+b", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := Compare(tt.b, tt.a); got != -tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
		})
	}
}

func TestCompareIdentifiers(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1", "2", -1},
		{"10", "9", 1},
		{"1", "alpha", -1},
		{"alpha", "beta", -1},
		{"01", "1", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			got := CompareIdentifiers(ParseIdentifier(tt.a), ParseIdentifier(tt.b))
			if got != tt.want {
				t.Errorf("CompareIdentifiers(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSortAndMax(t *testing.T) {
	versions := []string{"2.0.0", "1.0.0", "1.0.0-alpha", "1.1.0", ""}
	Sort(versions)

	want := []string{"1.0.0-alpha", "1.0.0", "1.1.0", "2.0.0", ""}
	for i := range want {
		if versions[i] != want[i] {
			t.Errorf("Sort()[%d] = %q, want %q", i, versions[i], want[i])
		}
	}

	if got := Max("1.0.0-alpha", "1.0.0"); got != "1.0.0" {
		t.Errorf("Max() = %q, want 1.0.0", got)
	}
	if got := Max("1.0.0", ""); got != "" {
		t.Errorf("Max() = %q, want empty", got)
	}
}

func TestCeiling(t *testing.T) {
	allowed := []string{"1.0", "2.0"}
	tests := []struct {
		v      string
		want   string
		wantOK bool
	}{
		{"0.9", "1.0", true},
		{"1.0", "1.0", true},
		{"1.5", "2.0", true},
		{"2.0", "2.0", true},
		{"2.5", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.v, func(t *testing.T) {
			got, ok := Ceiling(allowed, tt.v)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Ceiling(%q) = (%q, %v), want (%q, %v)", tt.v, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
