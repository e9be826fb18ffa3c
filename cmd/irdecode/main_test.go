package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/norasector/irdecode/pkg/config"
	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/ir/irtest"
	"github.com/norasector/irdecode/pkg/ir/jvc"
	"github.com/norasector/irdecode/pkg/ir/nec"
	"github.com/norasector/irdecode/pkg/store"
)

func run(c *qt.C, stdin string, args ...string) (string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func captureFile(c *qt.C) string {
	necFrame := irtest.New().Mark(nec.HdrMark).Bits(nec.NewDecoder().Blocks()[0], nec.Encode(0x04, 0x08)).Capture()
	jvcFrame := irtest.New().Pair(jvc.HdrMark, jvc.HdrSpace).Bits(jvc.NewDecoder().Blocks()[0], 0xC5A3).Capture()
	contents := "# tv remote\n" + necFrame.TimingInfo() + "\n" +
		jvcFrame.TimingInfo() + "\n" +
		"1000, 1000, 1000\n"
	path := filepath.Join(c.TempDir(), "captures.txt")
	c.Assert(os.WriteFile(path, []byte(contents), 0644), qt.IsNil)
	return path
}

func configFile(c *qt.C, contents string) string {
	path := filepath.Join(c.TempDir(), "irdecode.yaml")
	c.Assert(os.WriteFile(path, []byte(contents), 0644), qt.IsNil)
	return path
}

func TestDecodeCommand(t *testing.T) {
	c := qt.New(t)
	cfg := configFile(c, "log_level: error\n")

	out, err := run(c, "", "--config", cfg, "decode", captureFile(c))
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "Protocol  : NEC\n")
	c.Assert(out, qt.Contains, "Protocol  : JVC\n")
	c.Assert(out, qt.Contains, "Error     : unrecognized signal\n")
	c.Assert(strings.Index(out, "NEC") < strings.Index(out, "JVC"), qt.IsTrue)
}

func TestDecodeCommandJSON(t *testing.T) {
	c := qt.New(t)
	cfg := configFile(c, "log_level: error\n")

	out, err := run(c, "", "--config", cfg, "decode", "-o", "json", "--protocol", "jvc", captureFile(c))
	c.Assert(err, qt.IsNil)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	c.Assert(lines, qt.HasLen, 3)

	var rec store.Record
	c.Assert(json.Unmarshal([]byte(lines[1]), &rec), qt.IsNil)
	c.Assert(rec.Result, qt.Not(qt.IsNil))
	c.Assert(rec.Result.Protocol, qt.Equals, ir.ProtocolJVC)
	c.Assert(rec.ID, qt.Equals, uint64(2))

	c.Assert(json.Unmarshal([]byte(lines[0]), &rec), qt.IsNil)
	c.Assert(rec.Error, qt.Contains, "timing mismatch")
}

func TestDecodeCommandStdin(t *testing.T) {
	c := qt.New(t)
	cfg := configFile(c, "log_level: error\n")
	frame := irtest.New().Mark(nec.HdrMark).Bits(nec.NewDecoder().Blocks()[0], nec.Encode(0x04, 0x08)).Capture()

	out, err := run(c, frame.TimingInfo(), "--config", cfg, "decode", "--timing")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "Source    : stdin\n")
	c.Assert(out, qt.Contains, "Raw Timing[")
}

func TestDecodeCommandErrors(t *testing.T) {
	c := qt.New(t)
	cfg := configFile(c, "log_level: error\n")

	_, err := run(c, "", "--config", cfg, "decode", "--bits", "20", "-")
	c.Assert(err, qt.ErrorMatches, `--bits requires --protocol`)

	_, err = run(c, "", "--config", cfg, "decode", "-", captureFile(c), "-")
	c.Assert(err, qt.ErrorMatches, `stdin \('-'\) may only be given once`)

	_, err = run(c, "", "--config", cfg, "decode", "-o", "xml")
	c.Assert(err, qt.ErrorMatches, `unknown output format "xml"`)

	_, err = run(c, "", "--config", cfg, "decode", "--tolerance", "200")
	c.Assert(err, qt.ErrorMatches, `invalid config tolerance: .*`)

	_, err = run(c, "", "--config", filepath.Join(c.TempDir(), "missing.yaml"), "protocols")
	c.Assert(err, qt.ErrorMatches, `.*no such file or directory`)

	_, err = run(c, "", "--config", cfg, "--log-level", "loud", "protocols")
	c.Assert(err, qt.ErrorMatches, `bad log level "loud": .*`)
}

func TestProtocolsCommand(t *testing.T) {
	c := qt.New(t)
	cfg := configFile(c, "log_level: error\nprotocols:\n  - name: jvc\n    enabled: false\n")

	out, err := run(c, "", "--config", cfg, "protocols")
	c.Assert(err, qt.IsNil)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	c.Assert(lines, qt.HasLen, 6)
	c.Assert(strings.Fields(lines[1])[0], qt.Equals, "NEC")
	c.Assert(strings.Fields(lines[5])[:3], qt.DeepEquals, []string{"JVC", "16", "false"})
}

func TestInitCommand(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "irdecode.yaml")

	out, err := run(c, "", "--config", path, "--log-level", "error", "init")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "wrote "+path+"\n")

	cfg, err := config.Load(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Tolerance, qt.Equals, config.DefaultTolerance)

	_, err = run(c, "", "--config", path, "--log-level", "error", "init")
	c.Assert(err, qt.Equals, error(config.ErrConfigFileExists{Path: path}))
}
