package label

import (
	"testing"
)

func TestValidateModuleName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "rules_go", false},
		{"valid with dots", "rules.go", false},
		{"valid with dashes", "rules-go", false},
		{"valid complex", "my-module.name_v2", false},
		{"valid single char", "a", false},
		{"empty", "", true},
		{"starts with number", "2rules", true},
		{"contains uppercase", "rulesGo", true},
		{"ends with dash", "rules-", true},
		{"contains special chars", "rules@go", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateModuleName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateModuleName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateApparentRepo(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"com_google_protobuf", false},
		{"Foo.bar-baz", false},
		{"_builtins", false},
		{"", true},
		{"_private", true},
		{"1repo", true},
		{"repo~1.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateApparentRepo(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateApparentRepo(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"go_sdk", "_ext", "Ext2"} {
		if err := ValidateIdentifier(ok); err != nil {
			t.Errorf("ValidateIdentifier(%q) unexpected error: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "2ext", "go-sdk"} {
		if err := ValidateIdentifier(bad); err == nil {
			t.Errorf("ValidateIdentifier(%q) expected error", bad)
		}
	}
}

func TestRepositoryName(t *testing.T) {
	if !Main.IsMain() {
		t.Error("Main.IsMain() = false")
	}
	if got := RepositoryName("rules_go~").String(); got != "@@rules_go~" {
		t.Errorf("String() = %q", got)
	}
	if _, err := NewRepositoryName("rules_go~1.0"); err != nil {
		t.Errorf("NewRepositoryName() unexpected error: %v", err)
	}
	if _, err := NewRepositoryName("bad name"); err == nil {
		t.Error("NewRepositoryName(\"bad name\") expected error")
	}
	if r, ok := WellKnownRepo("bazel_tools"); !ok || r != BazelTools {
		t.Errorf("WellKnownRepo(bazel_tools) = %q, %v", r, ok)
	}
	if _, ok := WellKnownRepo("rules_go"); ok {
		t.Error("rules_go is not well-known")
	}
}
