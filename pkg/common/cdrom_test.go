package common

import "testing"

func TestLBAToMSF(t *testing.T) {
	testCases := []struct {
		lba  uint32
		want string
	}{
		{0, "00:02:00"},
		{16, "00:02:16"},
		{75, "00:03:00"},
		{4350, "01:00:00"},
	}

	for _, tc := range testCases {
		if got := LBAToMSF(tc.lba); got != tc.want {
			t.Errorf("LBAToMSF(%d) = %q, want %q", tc.lba, got, tc.want)
		}
	}
}

func TestGetSizeInSectors(t *testing.T) {
	testCases := []struct {
		size uint32
		want uint32
	}{
		{0, 0},
		{1, 1},
		{2048, 1},
		{2049, 2},
		{0xFFFFFFFF, 2097152},
	}

	for _, tc := range testCases {
		if got := GetSizeInSectors(tc.size); got != tc.want {
			t.Errorf("GetSizeInSectors(%d) = %d, want %d", tc.size, got, tc.want)
		}
	}
}

func TestCleanFileName(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"PARAM.SFO;1", "PARAM.SFO"},
		{"EBOOT.BIN", "EBOOT.BIN"},
		{"README.;1", "README"},
		{"PSP_GAME", "PSP_GAME"},
	}

	for _, tc := range testCases {
		if got := CleanFileName(tc.in); got != tc.want {
			t.Errorf("CleanFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsSpecialDirEntry(t *testing.T) {
	if !IsSpecialDirEntry("\x00") || !IsSpecialDirEntry("\x01") {
		t.Error("IsSpecialDirEntry should accept the self and parent identifiers")
	}
	if IsSpecialDirEntry("A") {
		t.Error("IsSpecialDirEntry(\"A\") should be false")
	}
}

func TestExtractFromDirRecord(t *testing.T) {
	record := make([]byte, 34)
	record[2], record[3], record[4], record[5] = 0x16, 0x00, 0x00, 0x00
	record[10], record[11], record[12], record[13] = 0x00, 0x08, 0x00, 0x00

	if got := ExtractLBAFromDirRecord(record); got != 0x16 {
		t.Errorf("ExtractLBAFromDirRecord() = %d, want %d", got, 0x16)
	}
	if got := ExtractSizeFromDirRecord(record); got != 0x800 {
		t.Errorf("ExtractSizeFromDirRecord() = %d, want %d", got, 0x800)
	}
	if got := ExtractLBAFromDirRecord(record[:4]); got != 0 {
		t.Errorf("ExtractLBAFromDirRecord(short) = %d, want 0", got)
	}
	if got := ExtractSizeFromDirRecord(record[:12]); got != 0 {
		t.Errorf("ExtractSizeFromDirRecord(short) = %d, want 0", got)
	}
}
