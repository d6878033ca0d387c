package bytesize

import "testing"

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"1024", 1024, false},
		{"0", 0, false},
		{"1Ki", KiB, false},
		{"1KiB", KiB, false},
		{"512Mi", 512 * MiB, false},
		{"1Gi", GiB, false},
		{"2Ti", 2 * TiB, false},
		{"1KB", KB, false},
		{"100MB", 100 * MB, false},
		{"1GB", GB, false},
		{"1.5Gi", ByteSize(1.5 * float64(GiB)), false},
		{"  1Gi  ", GiB, false},
		{"1 Gi", GiB, false},
		{"1gi", GiB, false},
		{"42B", 42, false},
		{"", 0, true},
		{"   ", 0, true},
		{"Gi", 0, true},
		{"1Xi", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseByteSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestByteSizeString(t *testing.T) {
	tests := []struct {
		input ByteSize
		want  string
	}{
		{512, "512B"},
		{KiB, "1.00KiB"},
		{512 * MiB, "512.00MiB"},
		{GiB, "1.00GiB"},
		{3 * TiB, "3.00TiB"},
	}

	for _, tt := range tests {
		if got := tt.input.String(); got != tt.want {
			t.Errorf("ByteSize(%d).String() = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestByteSizeUnmarshalText(t *testing.T) {
	var size ByteSize
	if err := size.UnmarshalText([]byte("256Mi")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if size != 256*MiB {
		t.Errorf("UnmarshalText(256Mi) = %d, want %d", size, 256*MiB)
	}

	if err := size.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for invalid input")
	}
}
