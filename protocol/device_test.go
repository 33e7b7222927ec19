package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseDeviceID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    DeviceID
		wantErr bool
	}{
		{
			name: "upper case",
			in:   "0102030405060708090A0B0C",
			want: DeviceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		},
		{
			name: "lower case with spaces",
			in:   "  ff112233445566778899aabb \n",
			want: DeviceID{0xFF, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB},
		},
		{name: "short", in: "0102", wantErr: true},
		{name: "long", in: "0102030405060708090A0B0C0D", wantErr: true},
		{name: "not hex", in: "0102030405060708090A0BZZ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDeviceID(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidID) {
					t.Fatalf("ParseDeviceID(%q) error = %v, want ErrInvalidID", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDeviceID(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDeviceID(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDeviceIDString(t *testing.T) {
	id := DeviceID{0xAB, 0xCD, 0xEF}
	if got, want := id.String(), "ABCDEF000000000000000000"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	back, err := ParseDeviceID(id.String())
	if err != nil || back != id {
		t.Errorf("round trip = %v, %v", back, err)
	}
}

func TestDeviceIDBit(t *testing.T) {
	id := DeviceID{0x80, 0x01}
	want := map[int]bool{0: true, 1: false, 7: false, 8: false, 15: true, 95: false}
	for i, w := range want {
		if got := id.Bit(i); got != w {
			t.Errorf("Bit(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestParity(t *testing.T) {
	id := DeviceID{0xFF, 0x01}
	if got := id.ByteSum(); got != 0x100 {
		t.Errorf("ByteSum() = %d, want 256", got)
	}
	if id.OddParity() {
		t.Error("sum 256 reported odd")
	}
	id[2] = 3
	if !id.OddParity() {
		t.Error("sum 259 reported even")
	}
}

func TestPlausible(t *testing.T) {
	var ones DeviceID
	copy(ones[:], bytes.Repeat([]byte{0xFF}, IDLen))
	tests := []struct {
		name string
		id   DeviceID
		want bool
	}{
		{"all zero", DeviceID{}, false},
		{"all ones", ones, false},
		{"one byte set", DeviceID{11: 1}, true},
		{"ones but last", DeviceID{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFE}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.Plausible(); got != tt.want {
				t.Errorf("Plausible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResponseValid(t *testing.T) {
	for r, want := range map[Response]bool{
		ResponseACK:  true,
		ResponseNAK:  true,
		ResponseNone: false,
		0x7F:         false,
	} {
		if got := r.Valid(); got != want {
			t.Errorf("Response(%#x).Valid() = %v, want %v", byte(r), got, want)
		}
	}
}

func TestTieBreakerIsDeterministic(t *testing.T) {
	a := NewTieBreakerSeed(42)
	b := NewTieBreakerSeed(42)
	var ones int
	for i := 0; i < 64; i++ {
		x, y := a.Next(), b.Next()
		if x != y {
			t.Fatalf("step %d: generators diverged", i)
		}
		if x {
			ones++
		}
	}
	if ones == 0 || ones == 64 {
		t.Errorf("tie-break bit stuck: %d ones in 64", ones)
	}
}

func TestGenerateSecretKey(t *testing.T) {
	k1, err := GenerateSecretKey()
	if err != nil {
		t.Fatal(err)
	}
	k2, err := GenerateSecretKey()
	if err != nil {
		t.Fatal(err)
	}
	if k1 == k2 {
		t.Error("two generated keys are equal")
	}
}

func TestCommandKnown(t *testing.T) {
	for c, want := range map[Command]bool{
		CommandNone:       false,
		CommandCheckReady: true,
		CommandRequestID:  true,
		CommandSendID:     true,
		0x42:              false,
		0xFF:              false,
	} {
		if got := c.Known(); got != want {
			t.Errorf("Command(%#x).Known() = %v, want %v", byte(c), got, want)
		}
	}
}
