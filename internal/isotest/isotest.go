// Package isotest builds small ISO9660 images for tests.
//
// Builder lays out a volume by hand so tests control record order and can
// corrupt individual fields. Kdomanski builds an image with an independent
// ISO9660 writer to cross-check the reader against real-world layout.
package isotest

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strings"
	"testing"

	kiso "github.com/kdomanski/iso9660"
)

// SectorSize is the logical block size of generated images.
const SectorSize = 2048

// First sectors of the generated layout
const (
	PVDSector        = 16
	TerminatorSector = 17
	RootSector       = 18
)

type node struct {
	name     string
	dir      bool
	data     []byte
	children []*node
	parent   *node
	lba      uint32
	size     uint32
}

// Builder assembles a minimal single-session ISO9660 image. Directory
// records are written in the order entries were added.
type Builder struct {
	root     *node
	volumeID string
	index    map[string]*node
}

// New returns a Builder with an empty root directory.
func New() *Builder {
	root := &node{dir: true}
	root.parent = root
	return &Builder{
		root:     root,
		volumeID: "PSP_TEST",
		index:    map[string]*node{"/": root},
	}
}

// VolumeID sets the PVD volume identifier.
func (b *Builder) VolumeID(id string) *Builder {
	b.volumeID = id
	return b
}

// AddDir adds a directory, creating any missing parents.
func (b *Builder) AddDir(p string) *Builder {
	b.mkdir(p)
	return b
}

// AddFile adds a file with the given content, creating any missing parents.
func (b *Builder) AddFile(p string, data []byte) *Builder {
	dirPath, name := splitPath(p)
	parent := b.mkdir(dirPath)
	n := &node{name: name, data: data, parent: parent}
	parent.children = append(parent.children, n)
	b.index[clean(p)] = n
	return b
}

// Extent returns the LBA and byte length assigned to p by the last Bytes call.
func (b *Builder) Extent(p string) (uint32, uint32) {
	n, ok := b.index[clean(p)]
	if !ok {
		return 0, 0
	}
	return n.lba, n.size
}

// RecordOffset returns the absolute offset of the directory record for p
// inside its parent's extent, as laid out by the last Bytes call.
func (b *Builder) RecordOffset(p string) int64 {
	n, ok := b.index[clean(p)]
	if !ok || n == b.root {
		return -1
	}
	records := directoryRecords(n.parent)
	offsets := packRecords(records)
	for i, child := range n.parent.children {
		if child == n {
			return int64(n.parent.lba)*SectorSize + int64(offsets[i+2])
		}
	}
	return -1
}

// Bytes lays out and serialises the image.
func (b *Builder) Bytes() []byte {
	next := uint32(RootSector)

	// Directories first, pre-order, each sized by its packed records.
	var dirs []*node
	var collect func(n *node)
	collect = func(n *node) {
		dirs = append(dirs, n)
		for _, c := range n.children {
			if c.dir {
				collect(c)
			}
		}
	}
	collect(b.root)
	for _, d := range dirs {
		d.lba = next
		offsets := packRecords(directoryRecords(d))
		end := offsets[len(offsets)-1]
		sectors := uint32((end + SectorSize - 1) / SectorSize)
		d.size = sectors * SectorSize
		next += sectors
	}

	// Then file extents, in the same pre-order.
	for _, d := range dirs {
		for _, c := range d.children {
			if c.dir {
				continue
			}
			c.lba = next
			c.size = uint32(len(c.data))
			next += max(1, (c.size+SectorSize-1)/SectorSize)
		}
	}

	img := make([]byte, int(next)*SectorSize)
	copy(img[PVDSector*SectorSize:], b.pvd(next))
	copy(img[TerminatorSector*SectorSize:], descriptorHeader(0xFF))

	for _, d := range dirs {
		records := directoryRecords(d)
		offsets := packRecords(records)
		base := int(d.lba) * SectorSize
		for i, rec := range records {
			copy(img[base+offsets[i]:], rec)
		}
		for _, c := range d.children {
			if !c.dir {
				copy(img[int(c.lba)*SectorSize:], c.data)
			}
		}
	}
	return img
}

func (b *Builder) pvd(volumeSectors uint32) []byte {
	sector := descriptorHeader(0x01)
	copy(sector[8:40], padA("PSP GAME", 32))
	copy(sector[40:72], padA(b.volumeID, 32))
	putBoth32(sector[80:], volumeSectors)
	putBoth16(sector[120:], 1) // volume set size
	putBoth16(sector[124:], 1) // volume sequence number
	putBoth16(sector[128:], SectorSize)
	copy(sector[156:190], Record("\x00", b.root.lba, b.root.size, true))
	copy(sector[190:318], padA("", 128))
	copy(sector[318:446], padA("", 128))
	copy(sector[446:574], padA("", 128))
	copy(sector[574:702], padA("PSP GAME", 128))
	copy(sector[813:830], []byte("2005011012000000\x00"))
	copy(sector[830:847], []byte("2005011012000000\x00"))
	sector[881] = 1 // file structure version
	return sector
}

// Record encodes one directory record, padded to an even length.
func Record(name string, lba, size uint32, dir bool) []byte {
	length := 33 + len(name)
	if length%2 == 1 {
		length++
	}
	rec := make([]byte, length)
	rec[0] = byte(length)
	putBoth32(rec[2:], lba)
	putBoth32(rec[10:], size)
	copy(rec[18:25], []byte{105, 1, 10, 12, 0, 0, 0})
	if dir {
		rec[25] = 0x02
	}
	putBoth16(rec[28:], 1)
	rec[32] = byte(len(name))
	copy(rec[33:], name)
	return rec
}

func directoryRecords(d *node) [][]byte {
	records := [][]byte{
		Record("\x00", d.lba, d.size, true),
		Record("\x01", d.parent.lba, d.parent.size, true),
	}
	for _, c := range d.children {
		name := c.name
		if !c.dir {
			name += ";1"
		}
		records = append(records, Record(name, c.lba, c.size, c.dir))
	}
	return records
}

// packRecords returns the offset of each record inside the extent, with one
// trailing element holding the end offset. Records never straddle sectors.
func packRecords(records [][]byte) []int {
	offsets := make([]int, 0, len(records)+1)
	pos := 0
	for _, rec := range records {
		if pos/SectorSize != (pos+len(rec)-1)/SectorSize {
			pos = (pos/SectorSize + 1) * SectorSize
		}
		offsets = append(offsets, pos)
		pos += len(rec)
	}
	return append(offsets, pos)
}

func (b *Builder) mkdir(p string) *node {
	p = clean(p)
	if n, ok := b.index[p]; ok {
		return n
	}
	parentPath, name := splitPath(p)
	parent := b.mkdir(parentPath)
	n := &node{name: name, dir: true, parent: parent}
	parent.children = append(parent.children, n)
	b.index[p] = n
	return n
}

func descriptorHeader(tag byte) []byte {
	sector := make([]byte, SectorSize)
	sector[0] = tag
	copy(sector[1:6], "CD001")
	sector[6] = 1
	return sector
}

func clean(p string) string {
	return "/" + strings.Trim(p, "/")
}

func splitPath(p string) (string, string) {
	p = clean(p)
	idx := strings.LastIndex(p, "/")
	return clean(p[:idx]), p[idx+1:]
}

func padA(s string, n int) []byte {
	return []byte(s + strings.Repeat(" ", n-len(s)))
}

func putBoth16(b []byte, v uint16) {
	binary.LittleEndian.PutUint16(b[0:], v)
	binary.BigEndian.PutUint16(b[2:], v)
}

func putBoth32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b[0:], v)
	binary.BigEndian.PutUint32(b[4:], v)
}

// Kdomanski builds an image with github.com/kdomanski/iso9660. Paths must
// be 8.3 names. The writer lowercases every identifier, so the image holds
// "/psp_game/param.sfo" for "/PSP_GAME/PARAM.SFO".
func Kdomanski(t testing.TB, files map[string][]byte) []byte {
	t.Helper()

	w, err := kiso.NewWriter()
	if err != nil {
		t.Fatalf("failed to create ISO writer: %v", err)
	}
	defer func() {
		if err := w.Cleanup(); err != nil {
			t.Errorf("failed to clean up ISO writer: %v", err)
		}
	}()

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := w.AddFile(bytes.NewReader(files[p]), strings.TrimPrefix(p, "/")); err != nil {
			t.Fatalf("failed to add %s: %v", p, err)
		}
	}

	var buf bytes.Buffer
	if err := w.WriteTo(&buf, "PSPTEST"); err != nil {
		t.Fatalf("failed to write ISO image: %v", err)
	}
	return buf.Bytes()
}
