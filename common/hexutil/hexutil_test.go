package hexutil

import "testing"

func TestEncodeDecodeBytes(t *testing.T) {
	tests := []struct {
		input []byte
		want  string
	}{
		{[]byte{}, "0x"},
		{[]byte{0}, "0x00"},
		{[]byte{0, 0, 1, 2}, "0x00000102"},
	}
	for _, test := range tests {
		if got := Encode(test.input); got != test.want {
			t.Errorf("Encode(%v) = %s, want %s", test.input, got, test.want)
		}
		dec, err := Decode(test.want)
		if err != nil {
			t.Fatalf("Decode(%s) error: %v", test.want, err)
		}
		if string(dec) != string(test.input) {
			t.Errorf("Decode(%s) = %v, want %v", test.want, dec, test.input)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		input   string
		wantErr error
	}{
		{"", ErrEmptyString},
		{"0", ErrMissingPrefix},
	}
	for _, test := range tests {
		if _, err := Decode(test.input); err != test.wantErr {
			t.Errorf("Decode(%q) error = %v, want %v", test.input, err, test.wantErr)
		}
	}
}

func TestEncodeDecodeUint64(t *testing.T) {
	tests := []struct {
		input uint64
		want  string
	}{
		{0, "0x0"},
		{1, "0x1"},
		{0xff, "0xff"},
		{0x1122334455667788, "0x1122334455667788"},
	}
	for _, test := range tests {
		if got := EncodeUint64(test.input); got != test.want {
			t.Errorf("EncodeUint64(%d) = %s, want %s", test.input, got, test.want)
		}
		dec, err := DecodeUint64(test.want)
		if err != nil {
			t.Fatalf("DecodeUint64(%s) error: %v", test.want, err)
		}
		if dec != test.input {
			t.Errorf("DecodeUint64(%s) = %d, want %d", test.want, dec, test.input)
		}
	}
}

func TestEncodeDecodeBig(t *testing.T) {
	tests := []string{"0x0", "0x2", "0x2f2", "0x1122aaff", "0xffffffffffffffffffffffffffffffffffff"}
	for _, want := range tests {
		dec, err := DecodeBig(want)
		if err != nil {
			t.Fatalf("DecodeBig(%s) error: %v", want, err)
		}
		if got := EncodeBig(dec); got != want {
			t.Errorf("EncodeBig(DecodeBig(%s)) = %s, want %s", want, got, want)
		}
	}
}

func TestDecodeBigErrors(t *testing.T) {
	tests := []struct {
		input   string
		wantErr error
	}{
		{"0x", ErrEmptyNumber},
		{"0x01", ErrLeadingZero},
	}
	for _, test := range tests {
		if _, err := DecodeBig(test.input); err != test.wantErr {
			t.Errorf("DecodeBig(%q) error = %v, want %v", test.input, err, test.wantErr)
		}
	}
}
