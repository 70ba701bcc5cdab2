package iso9660

import (
	"bytes"
	"errors"
	"testing"

	"github.com/hansbonini/pspredump/internal/isotest"
	"github.com/hansbonini/pspredump/pkg/common"
	"github.com/hansbonini/pspredump/pkg/source"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sectors(tags ...byte) []byte {
	img := make([]byte, PVDSearchOffset+len(tags)*SectorSize)
	for i, tag := range tags {
		img[PVDSearchOffset+i*SectorSize] = tag
	}
	return img
}

func TestLocatePVD(t *testing.T) {
	tests := []struct {
		name       string
		image      []byte
		wantSector int64
		wantErr    error
	}{
		{"first sector", sectors(TypePrimary, TypeTerminator), 16, nil},
		{"after boot record", sectors(TypeBootRecord, TypeSupplementary, TypePrimary, TypeTerminator), 18, nil},
		{"terminator first", sectors(TypeTerminator, TypePrimary), 0, common.ErrPvdNotFound},
		{"no terminator", sectors(TypeBootRecord, TypeSupplementary), 0, common.ErrUnexpectedEndOfVolume},
		{"empty image", nil, 0, common.ErrUnexpectedEndOfVolume},
		{"partial sector", sectors(TypeBootRecord, TypeBootRecord)[:PVDSearchOffset+SectorSize+100], 0, common.ErrUnexpectedEndOfVolume},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(source.FromBytes(tt.image))
			vd, err := r.LocatePVD()
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
				assert.Nil(t, vd)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSector, vd.Sector)
			assert.True(t, vd.IsPrimary())
			assert.Len(t, vd.Data, SectorSize)
			assert.Equal(t, tt.image[vd.Offset():vd.Offset()+SectorSize], vd.Data)
		})
	}
}

func TestLocatePVD_Cached(t *testing.T) {
	r := NewReader(source.FromBytes(sectors(TypePrimary, TypeTerminator)))
	first, err := r.LocatePVD()
	require.NoError(t, err)
	second, err := r.LocatePVD()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestPrimary(t *testing.T) {
	b := isotest.New().VolumeID("UCUS98633").AddFile("/UMD_DATA.BIN", []byte("ULUS-10041|0001|G"))
	r := NewReader(source.FromBytes(b.Bytes()))

	pvd, err := r.Primary()
	require.NoError(t, err)
	assert.Equal(t, "PSP GAME", pvd.SystemID)
	assert.Equal(t, "UCUS98633", pvd.VolumeID)
	assert.Equal(t, uint16(SectorSize), pvd.LogicalBlockSize)
	assert.Equal(t, "2005011012000000", pvd.CreationDate)
	assert.Equal(t, uint32(isotest.RootSector), pvd.RootDirectory.LBA)
	assert.True(t, pvd.RootDirectory.IsDir)
}

func TestParsePrimary_NotPrimary(t *testing.T) {
	_, err := ParsePrimary(&VolumeDescriptor{Tag: TypeSupplementary, Sector: 17, Data: make([]byte, SectorSize)})
	assert.True(t, errors.Is(err, common.ErrPvdNotFound))
}

func TestWalk_Order(t *testing.T) {
	// Records are deliberately not in sorted order
	b := isotest.New().
		AddFile("/UMD_DATA.BIN", []byte("ULUS-10041")).
		AddFile("/PSP_GAME/PARAM.SFO", []byte("\x00PSF")).
		AddFile("/PSP_GAME/ICON0.PNG", []byte("png")).
		AddFile("/PSP_GAME/SYSDIR/EBOOT.BIN", []byte("eboot")).
		AddFile("/PSP_GAME/PIC1.PNG", []byte("pic"))
	r := NewReader(source.FromBytes(b.Bytes()))

	var paths []string
	err := r.Walk(func(p string, _ DirectoryEntry) error {
		paths = append(paths, p)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/UMD_DATA.BIN",
		"/PSP_GAME",
		"/PSP_GAME/PARAM.SFO",
		"/PSP_GAME/ICON0.PNG",
		"/PSP_GAME/SYSDIR",
		"/PSP_GAME/SYSDIR/EBOOT.BIN",
		"/PSP_GAME/PIC1.PNG",
	}, paths)
}

func TestWalk_SkipDir(t *testing.T) {
	b := isotest.New().
		AddFile("/PSP_GAME/SYSDIR/EBOOT.BIN", []byte("eboot")).
		AddFile("/PSP_GAME/PARAM.SFO", []byte("sfo"))
	r := NewReader(source.FromBytes(b.Bytes()))

	var paths []string
	err := r.Walk(func(p string, e DirectoryEntry) error {
		paths = append(paths, p)
		if e.IsDir && e.Name == "SYSDIR" {
			return SkipDir
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/PSP_GAME", "/PSP_GAME/SYSDIR", "/PSP_GAME/PARAM.SFO"}, paths)
}

func TestWalk_CallbackError(t *testing.T) {
	b := isotest.New().AddFile("/A.BIN", []byte("a")).AddFile("/B.BIN", []byte("b"))
	r := NewReader(source.FromBytes(b.Bytes()))

	stop := errors.New("stop")
	calls := 0
	err := r.Walk(func(string, DirectoryEntry) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestFindFiles_ParamSFO(t *testing.T) {
	sfo := bytes.Repeat([]byte{0xAB}, 3000)
	b := isotest.New().
		AddFile("/PSP_GAME/ICON0.PNG", []byte("png")).
		AddFile("/PSP_GAME/PARAM.SFO", sfo).
		AddFile("/PSP_GAME/SYSDIR/UPDATE/PARAM.SFO", []byte("update"))
	img := b.Bytes()
	r := NewReader(source.FromBytes(img))

	files, err := r.FindFiles(HasSuffix(".sfo"))
	require.NoError(t, err)
	require.Len(t, files, 2)

	lba, size := b.Extent("/PSP_GAME/PARAM.SFO")
	assert.Equal(t, "/PSP_GAME/PARAM.SFO", files[0].Path)
	assert.Equal(t, "PARAM.SFO", files[0].Name)
	assert.Equal(t, lba, files[0].LBA)
	assert.Equal(t, size, files[0].Size)
	assert.Equal(t, uint32(2), files[0].ExtentSize)
	assert.Equal(t, common.LBAToMSF(lba), files[0].MSF)
	assert.False(t, files[0].IsDir)
	assert.Equal(t, "/PSP_GAME/SYSDIR/UPDATE/PARAM.SFO", files[1].Path)

	data, err := r.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, sfo, data)
}

func TestEntries_ManyRecordsSpanSectors(t *testing.T) {
	b := isotest.New()
	for i := 0; i < 120; i++ {
		b.AddFile("/DATA/F"+string(rune('A'+i%26))+string(rune('A'+i/26))+".BIN", []byte{byte(i)})
	}
	r := NewReader(source.FromBytes(b.Bytes()))

	entries, err := r.Entries()
	require.NoError(t, err)
	// one directory plus every file
	assert.Len(t, entries, 121)

	last := entries[len(entries)-1]
	data, err := r.ReadFile(last)
	require.NoError(t, err)
	assert.Equal(t, []byte{119}, data)
}

func TestReadDir_CorruptNameLength(t *testing.T) {
	b := isotest.New().AddFile("/PSP_GAME/PARAM.SFO", []byte("sfo"))
	img := b.Bytes()

	off := b.RecordOffset("/PSP_GAME/PARAM.SFO")
	require.Positive(t, off)
	img[off+32] = 200 // name length far beyond the record

	r := NewReader(source.FromBytes(img))
	_, err := r.Entries()
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrCorruptDirectoryRecord))

	var de *common.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, off, de.Offset)
	assert.Equal(t, "/PSP_GAME", de.Path)
}

func TestReadDir_RecordTooShort(t *testing.T) {
	b := isotest.New().AddFile("/A.BIN", []byte("a"))
	img := b.Bytes()

	off := b.RecordOffset("/A.BIN")
	img[off] = 20

	_, err := NewReader(source.FromBytes(img)).Entries()
	assert.True(t, errors.Is(err, common.ErrCorruptDirectoryRecord))
}

func TestReadDir_DirectoryCycle(t *testing.T) {
	b := isotest.New().AddDir("/LOOP")
	img := b.Bytes()

	// point /LOOP back at the root extent
	off := b.RecordOffset("/LOOP")
	img[off+2] = isotest.RootSector

	_, err := NewReader(source.FromBytes(img)).Entries()
	assert.True(t, errors.Is(err, common.ErrCorruptDirectoryRecord))
}

func TestReadFile_TruncatedExtent(t *testing.T) {
	b := isotest.New().AddFile("/PSP_GAME/PARAM.SFO", []byte("sfo"))
	img := b.Bytes()
	r := NewReader(source.FromBytes(img))

	files, err := r.FindFiles(HasSuffix(".SFO"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	entry := files[0]
	entry.Size = uint32(len(img))
	_, err = r.ReadFile(entry)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrTruncatedExtent))
	assert.Contains(t, err.Error(), "/PSP_GAME/PARAM.SFO")

	entry.LBA = 0xFFFFFFFF
	entry.Size = 0xFFFFFFFF
	_, err = r.Open(entry)
	assert.True(t, errors.Is(err, common.ErrTruncatedExtent))
}

func TestWalk_TruncatedDirectoryExtent(t *testing.T) {
	b := isotest.New().AddFile("/PSP_GAME/PARAM.SFO", []byte("sfo"))
	img := b.Bytes()

	off := b.RecordOffset("/PSP_GAME")
	img[off+13] = 0x7F // directory length now far larger than the image

	_, err := NewReader(source.FromBytes(img)).Entries()
	assert.True(t, errors.Is(err, common.ErrTruncatedExtent))
}

func TestKdomanskiImage(t *testing.T) {
	sfo := []byte("\x00PSF\x01\x01\x00\x00parameter file body")
	img := isotest.Kdomanski(t, map[string][]byte{
		"/PSP_GAME/PARAM.SFO":        sfo,
		"/PSP_GAME/SYSDIR/EBOOT.BIN": bytes.Repeat([]byte{0xEB}, 5000),
		"/UMD_DATA.BIN":              []byte("ULUS-10041|0001|G"),
	})
	r := NewReader(source.FromBytes(img))

	files, err := r.FindFiles(HasSuffix(".SFO"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	// the writer records identifiers in lower case
	assert.Equal(t, "/psp_game/param.sfo", files[0].Path)
	assert.Equal(t, uint32(len(sfo)), files[0].Size)

	data, err := r.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, sfo, data)

	entries, err := r.Entries()
	require.NoError(t, err)
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.Contains(t, paths, "/psp_game/sysdir/eboot.bin")
	assert.Contains(t, paths, "/umd_data.bin")
}

func TestExtractAll(t *testing.T) {
	b := isotest.New().
		AddFile("/PSP_GAME/PARAM.SFO", []byte("sfo")).
		AddFile("/UMD_DATA.BIN", []byte("umd"))
	r := NewReader(source.FromBytes(b.Bytes()))

	fs := afero.NewMemMapFs()
	count, err := r.ExtractAll(fs, "/out")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := afero.ReadFile(fs, "/out/PSP_GAME/PARAM.SFO")
	require.NoError(t, err)
	assert.Equal(t, "sfo", string(got))

	got, err = afero.ReadFile(fs, "/out/UMD_DATA.BIN")
	require.NoError(t, err)
	assert.Equal(t, "umd", string(got))
}
