package redump

import (
	"io"
	"math"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"
	"github.com/hansbonini/pspredump/pkg/common"
	"gopkg.in/yaml.v3"
)

// FillMe marks report fields that have to be filled in by hand.
const FillMe = "<FILL_ME>"

const reportTemplate = `General Info:
[code]
Game Name:    {{.FillMe}}
Serial Number:{{.FillMe}}
Dumping PSP:  {{.FillMe}}
Dumping Tool: {{.FillMe}}
Filesize:     {{.SizeMB}} MB ({{.SizeBytes}} bytes)
Barcode:      {{.FillMe}}
Edition:      {{.FillMe}}
Languages:    {{.FillMe}}
Ring Codes:
- Outer Ring Mastering Code (laser branded/etched): {{.FillMe}}
- Outer Ring Mastering SID Code: {{.FillMe}}
- Outer Ring Toolstamp (engraved/stamped): {{.FillMe}}
- Inner Ring Mastering Code (laser branded/etched): {{.FillMe}}
- Inner Ring Mastering SID Code: {{.FillMe}}
- Inner Ring Toolstamp (engraved/stamped): {{.FillMe}}
- Mould SID Code: {{.FillMe}}
[/code]

HashCalc Info:
[code]
MD5:   {{.Digests.MD5}}
SHA1:  {{.Digests.SHA1}}
CRC32: {{.Digests.CRC32}}
SHA256: {{.Digests.SHA256}}
[/code]

Primary Volume Descriptor (PVD)
[code]
{{.PVDDump}}
[/code]

SFO Info:
[code]
{{.SFOInfo}}
[/code]
`

var report = template.Must(template.New("report").Parse(reportTemplate))

type reportData struct {
	*Result
	FillMe    string
	SizeMB    string
	SizeBytes string
	SFOInfo   string
	PVDDump   string
}

// RenderReport writes the submission report for res to w.
func RenderReport(w io.Writer, res *Result) error {
	data := reportData{
		Result:    res,
		FillMe:    FillMe,
		SizeMB:    humanize.Comma(SizeMB(res.Size)),
		SizeBytes: humanize.Comma(res.Size),
		SFOInfo:   SFOInfo(res.SFOFiles),
		PVDDump:   strings.Trim(res.PVDDump, "\n"),
	}
	if err := report.Execute(w, data); err != nil {
		return common.FormatError(common.ErrFailedToRenderReport, err)
	}
	return nil
}

// SizeMB converts a byte count to whole mebibytes, rounding halves to even.
func SizeMB(size int64) int64 {
	return int64(math.RoundToEven(float64(size) / (1024 * 1024)))
}

// SFOInfo renders each decoded parameter file as a "SFO file: <path>" line
// followed by its table, with a blank line between files. Files that failed
// to decode are left out.
func SFOInfo(files []SFOFile) string {
	var blocks []string
	for _, f := range files {
		if f.Err != nil || f.Table == nil {
			continue
		}
		blocks = append(blocks, "SFO file: "+f.Path+"\n"+strings.TrimSuffix(f.Table.String(), "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// WriteYAML writes res as a YAML document.
func WriteYAML(w io.Writer, res *Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return common.FormatError(common.ErrFailedToRenderReport, err)
	}
	return enc.Close()
}
