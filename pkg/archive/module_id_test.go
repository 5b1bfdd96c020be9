// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"errors"
	"testing"
)

func TestParseModuleID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input       string
		wantName    string
		wantVersion string
		wantErr     bool
	}{
		// Valid cases
		{"acme", "acme", "", false},
		{"acme:util", "acme", "util", false},
		{"acme:base:1.0", "acme:base", "1.0", false},
		{"com.example.tools:2.1.0-alpha.1", "com.example.tools", "2.1.0-alpha.1", false},
		{"a", "a", "", false},
		{"my_module-1", "my_module-1", "", false},

		// Invalid cases
		{"", "", "", true},
		{":", "", "", true},
		{":1.0", "", "", true},
		{"acme:", "", "", true},
		{"acme::1.0", "", "", true},
		{"::1.0", "", "", true},
		{"acme base", "", "", true},
		{"acme:1 0", "", "", true},
		{"acme\t:1", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			id, err := ParseModuleID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseModuleID(%q) = %v, want error", tt.input, id)
				}
				if !errors.Is(err, ErrInvalidModuleID) {
					t.Errorf("error should wrap ErrInvalidModuleID, got: %v", err)
				}
				var idErr *InvalidModuleIDError
				if !errors.As(err, &idErr) {
					t.Errorf("error should be *InvalidModuleIDError, got: %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseModuleID(%q) unexpected error: %v", tt.input, err)
			}
			if id.Name() != tt.wantName || id.Version() != tt.wantVersion {
				t.Errorf("ParseModuleID(%q) = (%q, %q), want (%q, %q)", tt.input, id.Name(), id.Version(), tt.wantName, tt.wantVersion)
			}
		})
	}
}

func TestModuleID_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"acme", "acme:util", "acme:base:1.0", "io.vault.sample:3.2.1"} {
		id, err := ParseModuleID(s)
		if err != nil {
			t.Fatalf("ParseModuleID(%q) unexpected error: %v", s, err)
		}
		if got := id.String(); got != s {
			t.Errorf("ParseModuleID(%q).String() = %q", s, got)
		}
		again, err := ParseModuleID(id.String())
		if err != nil || again != id {
			t.Errorf("ParseModuleID(%q.String()) = %v, %v; want %v", s, again, err, id)
		}
	}
}

func TestNewModuleID(t *testing.T) {
	t.Parallel()

	id, err := NewModuleID("acme", "1.0")
	if err != nil {
		t.Fatalf("NewModuleID() unexpected error: %v", err)
	}
	if !id.HasVersion() || id.String() != "acme:1.0" {
		t.Errorf("NewModuleID() = %v", id)
	}

	unversioned, err := NewModuleID("acme", "")
	if err != nil {
		t.Fatalf("NewModuleID() unexpected error: %v", err)
	}
	if unversioned.HasVersion() {
		t.Error("unversioned id should report no version")
	}

	if _, err := NewModuleID("", "1.0"); !errors.Is(err, ErrInvalidModuleID) {
		t.Errorf("empty name error = %v, want ErrInvalidModuleID", err)
	}
	if _, err := NewModuleID("acme", "1:0"); !errors.Is(err, ErrInvalidModuleID) {
		t.Errorf("separator in version error = %v, want ErrInvalidModuleID", err)
	}
}

func TestModuleID_MapKey(t *testing.T) {
	t.Parallel()

	m := map[ModuleID]int{
		MustParseModuleID("acme:1.0"): 1,
		MustParseModuleID("acme"):     2,
	}
	if m[MustParseModuleID("acme:1.0")] != 1 {
		t.Error("equal ids should address the same map entry")
	}
	if m[MustParseModuleID("acme")] != 2 {
		t.Error("unversioned id should be distinct from versioned id")
	}
	if MustParseModuleID("acme:1.0") == MustParseModuleID("acme:2.0") {
		t.Error("ids with different versions should not be equal")
	}
}

func TestModuleID_Text(t *testing.T) {
	t.Parallel()

	id := MustParseModuleID("acme:base:1.0")
	text, err := id.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}

	var decoded ModuleID
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if decoded != id {
		t.Errorf("UnmarshalText(MarshalText()) = %v, want %v", decoded, id)
	}

	if _, err := (ModuleID{}).MarshalText(); !errors.Is(err, ErrInvalidModuleID) {
		t.Errorf("zero id MarshalText() error = %v, want ErrInvalidModuleID", err)
	}
	if err := decoded.UnmarshalText([]byte("bad:")); err == nil {
		t.Error("UnmarshalText() should reject malformed text")
	}
	if decoded != id {
		t.Error("failed UnmarshalText() must not modify the receiver")
	}
}

func TestMustParseModuleID_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("MustParseModuleID should panic on malformed input")
		}
	}()
	MustParseModuleID(":")
}
