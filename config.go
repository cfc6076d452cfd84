package main

import (
	goflag "flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/charlievieth/utils/stm32crc/pkg/filecrc"
	"github.com/charlievieth/utils/stm32crc/pkg/stm32crc"
)

// crcValue is a uint32 flag parsed and printed as hex.
type crcValue uint32

func parseCRC(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	u, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid checksum: %q", s)
	}
	return uint32(u), nil
}

func (c *crcValue) Set(s string) error {
	u, err := parseCRC(s)
	if err != nil {
		return err
	}
	*c = crcValue(u)
	return nil
}

func (c *crcValue) String() string { return stm32crc.Format(uint32(*c)) }
func (c *crcValue) Type() string   { return "hex" }

// optionalCRC is a crcValue that records whether it was set.
type optionalCRC struct {
	crc crcValue
	set bool
}

func (o *optionalCRC) Set(s string) error {
	if err := o.crc.Set(s); err != nil {
		return err
	}
	o.set = true
	return nil
}

func (o *optionalCRC) String() string {
	if !o.set {
		return ""
	}
	return o.crc.String()
}

func (o *optionalCRC) Type() string { return "hex" }

type Config struct {
	Recursive  bool
	Follow     bool
	Workers    int
	Seed       crcValue
	Expect     optionalCRC
	AllowEmpty bool
	JSON       bool
	Size       bool
	Banner     bool
	Database   string
	Compare    bool
	Verbose    bool
	LogLevel   zapcore.Level
	Include    filecrc.GlobSet
	Exclude    filecrc.GlobSet
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func DefaultConfig(stderr io.Writer) Config {
	return Config{
		Workers:  filecrc.DefaultNumWorkers(),
		Seed:     crcValue(stm32crc.Init),
		Banner:   isTerminal(stderr),
		LogLevel: zapcore.InfoLevel,
	}
}

func (c *Config) AddFlags(flags *pflag.FlagSet) {
	flags.BoolVarP(&c.Recursive, "recursive", "r", c.Recursive,
		"checksum every file below directory arguments")
	flags.BoolVarP(&c.Follow, "follow", "L", c.Follow,
		"follow symbolic links when walking directories")
	flags.IntVarP(&c.Workers, "workers", "j", c.Workers,
		"number of files to checksum in parallel")
	flags.Var(&c.Include, "include",
		"only checksum files matching GLOB, may be repeated (all must match)")
	flags.Var(&c.Exclude, "exclude",
		"skip files and directories matching GLOB, may be repeated")

	flags.Var(&c.Seed, "seed", "initial CRC value, used to resume a checksum")
	flags.Var(&c.Expect, "expect",
		"expected checksum of a single FILE, a mismatch is an error")
	flags.BoolVar(&c.AllowEmpty, "allow-empty", c.AllowEmpty,
		"report empty files instead of treating them as errors")

	flags.BoolVar(&c.JSON, "json", c.JSON, "print results as JSON lines")
	flags.BoolVarP(&c.Size, "size", "s", c.Size, "print file sizes")
	flags.BoolVar(&c.Banner, "banner", c.Banner, "print the program banner to STDERR")

	flags.StringVar(&c.Database, "db", c.Database,
		"record checksums in the sqlite database at `PATH`")
	flags.BoolVar(&c.Compare, "compare", c.Compare,
		"report if checksums changed since they were last recorded (requires --db)")

	flags.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "verbose logging (same as --log-level=debug)")
	lvlFlag := &goflag.Flag{
		Name:     "log-level",
		Usage:    "set the log level",
		Value:    &c.LogLevel,
		DefValue: c.LogLevel.String(),
	}
	flags.AddFlag(pflag.PFlagFromGoFlag(lvlFlag))
}

// Validate checks flag combinations that cannot be checked while parsing.
func (c *Config) Validate(args []string) error {
	if c.Workers <= 0 {
		return fmt.Errorf("non-positive 'workers' argument: %d", c.Workers)
	}
	if c.Compare && c.Database == "" {
		return fmt.Errorf("--compare requires --db")
	}
	if c.Expect.set && (len(args) != 1 || c.Recursive) {
		return fmt.Errorf("--expect requires exactly one FILE argument")
	}
	if c.Verbose {
		c.LogLevel = zapcore.DebugLevel
	}
	return nil
}

func (c *Config) NewHasher() *filecrc.Hasher {
	h := filecrc.NewHasher(uint32(c.Seed))
	h.AllowEmpty = c.AllowEmpty
	return h
}

// NewLogger logs to w, using the human readable development encoder when w
// is a terminal and JSON otherwise.
func (c *Config) NewLogger(w io.Writer) *zap.Logger {
	var enc zapcore.Encoder
	if isTerminal(w) {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), zap.NewAtomicLevelAt(c.LogLevel))
	return zap.New(core, zap.AddStacktrace(zap.FatalLevel))
}
