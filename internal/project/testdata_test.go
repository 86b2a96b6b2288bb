package project

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// liveSet is a trimmed Ableton Live 11 document with one device of each
// plugin format plus a native device.
const liveSet = `<?xml version="1.0" encoding="UTF-8"?>
<Ableton MajorVersion="5" MinorVersion="11.0_433" SchemaChangeCount="3" Creator="Ableton Live 11.0.2" Revision="">
	<LiveSet>
		<Tracks>
			<MidiTrack Id="12">
				<DeviceChain>
					<Devices>
						<PluginDevice Id="0">
							<PluginDesc>
								<VstPluginInfo Id="0">
									<WinPosX Value="42" />
									<Path Value="C:/VstPlugins/Serum_x64.dll" />
									<PlugName Value="Serum_x64" />
									<UniqueId Value="1483109208" />
									<FileName Value="Serum_x64.dll" />
									<Preset>
										<VstPreset Id="1">
											<Name Value="not a plugin name" />
										</VstPreset>
									</Preset>
								</VstPluginInfo>
							</PluginDesc>
						</PluginDevice>
						<Eq8 Id="1">
							<Name Value="EQ Eight" />
						</Eq8>
						<PluginDevice Id="2">
							<PluginDesc>
								<Vst3PluginInfo Id="0">
									<Uid>
										<Fields.0 Value="1920299888" />
										<Fields.1 Value="-1" />
										<Fields.2 Value="0" />
										<Fields.3 Value="16" />
									</Uid>
									<Name Value="Pro-Q 3" />
								</Vst3PluginInfo>
							</PluginDesc>
						</PluginDevice>
						<AuPluginDevice Id="3">
							<PluginDesc>
								<AuPluginInfo Id="0">
									<Name Value="AUReverb2" />
									<Manufacturer Value="Apple" />
								</AuPluginInfo>
							</PluginDesc>
						</AuPluginDevice>
					</Devices>
				</DeviceChain>
			</MidiTrack>
		</Tracks>
	</LiveSet>
</Ableton>
`

func gzipBytes(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.WriteString(zw, data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(zw, data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func xzBytes(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(zw, data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// bzip2Hello is "hello owlplug\n" compressed with bzip2 -9; the standard
// library only decodes bzip2.
var bzip2Hello = []byte{
	0x42, 0x5a, 0x68, 0x39, 0x31, 0x41, 0x59, 0x26, 0x53, 0x59, 0x29, 0x12,
	0x74, 0xa7, 0x00, 0x00, 0x02, 0x51, 0x80, 0x00, 0x10, 0x40, 0x00, 0x02,
	0xc4, 0xc2, 0x80, 0x20, 0x00, 0x31, 0x00, 0x30, 0x20, 0x19, 0x32, 0x61,
	0x0b, 0x4f, 0x37, 0x6e, 0xa1, 0x78, 0xbb, 0x92, 0x29, 0xc2, 0x84, 0x81,
	0x48, 0x93, 0xa5, 0x38,
}

func writeProject(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
