// Package iso9660 provides the ISO9660 structures and the read-only reader
// used to locate the Primary Volume Descriptor of a PSP disc image and walk
// its directory tree.
package iso9660

import (
	"encoding/binary"
	"strings"

	"github.com/hansbonini/pspredump/pkg/common"
)

// Sector and volume descriptor constants for 2048-byte ISO images
const (
	SectorSize          = common.SectorSize
	VolumeDescriptorLBA = 16     // first sector of the Volume Descriptor Set
	PVDSearchOffset     = 0x8000 // VolumeDescriptorLBA * SectorSize

	TypeBootRecord    = 0x00
	TypePrimary       = 0x01
	TypeSupplementary = 0x02
	TypePartition     = 0x03
	TypeTerminator    = 0xFF
)

// Field offsets inside a Primary Volume Descriptor sector
const (
	pvdSystemIDOffset         = 8
	pvdVolumeIDOffset         = 40
	pvdVolumeSpaceOffset      = 80
	pvdLogicalBlockOffset     = 128
	pvdRootRecordOffset       = 156
	pvdRootRecordLength       = 34
	pvdVolumeSetIDOffset      = 190
	pvdPublisherIDOffset      = 318
	pvdPreparerIDOffset       = 446
	pvdApplicationIDOffset    = 574
	pvdCreationDateOffset     = 813
	pvdModificationDateOffset = 830
)

// Directory record layout
const (
	dirRecordMinLength  = 33
	dirRecordFlagsOff   = 25
	dirRecordNameLenOff = 32
	dirRecordNameOff    = 33
	dirFlagDirectory    = 0x02
)

// VolumeDescriptor is one raw sector of the Volume Descriptor Set
type VolumeDescriptor struct {
	Tag    byte   // Volume descriptor type
	Sector int64  // Logical sector index
	Data   []byte // Full 2048-byte sector
}

// IsPrimary reports whether the descriptor is a Primary Volume Descriptor.
func (vd *VolumeDescriptor) IsPrimary() bool {
	return vd.Tag == TypePrimary
}

// Offset returns the absolute byte offset of the descriptor in the image.
func (vd *VolumeDescriptor) Offset() int64 {
	return vd.Sector * SectorSize
}

// PrimaryDescriptor is the decoded subset of a PVD this tool reports on
type PrimaryDescriptor struct {
	SystemID         string         `yaml:"system_id"`
	VolumeID         string         `yaml:"volume_id"`
	VolumeSetID      string         `yaml:"volume_set_id"`
	PublisherID      string         `yaml:"publisher_id"`
	DataPreparerID   string         `yaml:"data_preparer_id"`
	ApplicationID    string         `yaml:"application_id"`
	VolumeSpaceSize  uint32         `yaml:"volume_space_size"`
	LogicalBlockSize uint16         `yaml:"logical_block_size"`
	CreationDate     string         `yaml:"creation_date"`
	ModificationDate string         `yaml:"modification_date"`
	RootDirectory    DirectoryEntry `yaml:"-"`
}

// DirectoryEntry represents a file or directory found in the image
type DirectoryEntry struct {
	Name       string `yaml:"name"`        // File name without version suffix
	Path       string `yaml:"path"`        // Absolute path within the image
	IsDir      bool   `yaml:"is_dir"`      // Whether this is a directory
	LBA        uint32 `yaml:"lba"`         // Extent location (logical block)
	Size       uint32 `yaml:"size"`        // Extent length in bytes
	MSF        string `yaml:"msf"`         // Minutes:Seconds:Frames of the extent
	ExtentSize uint32 `yaml:"extent_size"` // Size in sectors
}

// Offset returns the absolute byte offset of the entry's extent.
func (e DirectoryEntry) Offset() int64 {
	return int64(e.LBA) * SectorSize
}

// ParsePrimary decodes the fields of a Primary Volume Descriptor sector.
func ParsePrimary(vd *VolumeDescriptor) (*PrimaryDescriptor, error) {
	if vd.Tag != TypePrimary {
		return nil, common.NewDecodeError(common.ErrPvdNotFound, vd.Offset(),
			"descriptor type 0x%02X is not primary", vd.Tag)
	}
	if len(vd.Data) < SectorSize {
		return nil, common.NewDecodeError(common.ErrUnexpectedEndOfVolume, vd.Offset(),
			"descriptor sector holds %d bytes", len(vd.Data))
	}
	data := vd.Data

	root, err := decodeRecord(data[pvdRootRecordOffset:pvdRootRecordOffset+pvdRootRecordLength],
		vd.Offset()+pvdRootRecordOffset)
	if err != nil {
		return nil, err
	}
	root.Name = "/"
	root.Path = "/"
	root.IsDir = true

	return &PrimaryDescriptor{
		SystemID:         trimA(data[pvdSystemIDOffset : pvdSystemIDOffset+32]),
		VolumeID:         trimA(data[pvdVolumeIDOffset : pvdVolumeIDOffset+32]),
		VolumeSetID:      trimA(data[pvdVolumeSetIDOffset : pvdVolumeSetIDOffset+128]),
		PublisherID:      trimA(data[pvdPublisherIDOffset : pvdPublisherIDOffset+128]),
		DataPreparerID:   trimA(data[pvdPreparerIDOffset : pvdPreparerIDOffset+128]),
		ApplicationID:    trimA(data[pvdApplicationIDOffset : pvdApplicationIDOffset+128]),
		VolumeSpaceSize:  binary.LittleEndian.Uint32(data[pvdVolumeSpaceOffset : pvdVolumeSpaceOffset+4]),
		LogicalBlockSize: binary.LittleEndian.Uint16(data[pvdLogicalBlockOffset : pvdLogicalBlockOffset+2]),
		CreationDate:     trimA(data[pvdCreationDateOffset : pvdCreationDateOffset+16]),
		ModificationDate: trimA(data[pvdModificationDateOffset : pvdModificationDateOffset+16]),
		RootDirectory:    root,
	}, nil
}

// trimA strips the space and NUL padding of an a-character field
func trimA(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}
