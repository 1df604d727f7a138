package domain

import (
	"errors"
	"testing"
)

func TestParseFQName(t *testing.T) {
	tests := []struct {
		in      string
		want    FQName
		wantErr bool
	}{
		{in: "pkg@1.0::IFoo", want: FQName{Package: "pkg", Major: 1, Minor: 0, Interface: "IFoo"}},
		{in: "android.hardware.camera.provider@2.4::ICameraProvider", want: FQName{Package: "android.hardware.camera.provider", Major: 2, Minor: 4, Interface: "ICameraProvider"}},
		{in: "a_b.c2@10.12::I_x", want: FQName{Package: "a_b.c2", Major: 10, Minor: 12, Interface: "I_x"}},
		{in: "", wantErr: true},
		{in: "pkg::IFoo", wantErr: true},
		{in: "pkg@1.0", wantErr: true},
		{in: "pkg@1.0::", wantErr: true},
		{in: "@1.0::IFoo", wantErr: true},
		{in: "pkg@1::IFoo", wantErr: true},
		{in: "pkg@x.0::IFoo", wantErr: true},
		{in: "pkg@1.-1::IFoo", wantErr: true},
		{in: "pkg..x@1.0::IFoo", wantErr: true},
		{in: "pkg@1.0::IFoo.Bar", wantErr: true},
		{in: "2pkg@1.0::IFoo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFQName(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseFQName(%q) = %+v, want error", tt.in, got)
				}
				if !errors.Is(err, ErrInvalidFQName) {
					t.Errorf("error = %v, want ErrInvalidFQName", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFQName(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFQName(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestFQName_Unversioned(t *testing.T) {
	n, err := ParseFQName("android.hidl.base@1.0::IBase")
	if err != nil {
		t.Fatal(err)
	}
	if got := n.Unversioned(); got != "android.hidl.base::IBase" {
		t.Errorf("Unversioned() = %q", got)
	}
	if got := n.Version(); got != "1.0" {
		t.Errorf("Version() = %q", got)
	}
}
