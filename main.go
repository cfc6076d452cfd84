package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charlievieth/utils/stm32crc/pkg/filecrc"
	"github.com/charlievieth/utils/stm32crc/pkg/hashdb"
	"github.com/charlievieth/utils/stm32crc/pkg/stm32crc"
)

// Status of a checksum compared to the one last recorded in the database.
const (
	StatusNew       = "new"
	StatusUnchanged = "unchanged"
	StatusChanged   = "changed"
)

// statusWidth is the width of the longest status.
const statusWidth = len(StatusUnchanged)

type Output struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	CRC    string `json:"crc"`
	Status string `json:"status,omitempty"`
}

type Printer struct {
	conf *Config
	tw   *tabwriter.Writer
	enc  *json.Encoder
}

func NewPrinter(conf *Config, w io.Writer) *Printer {
	p := &Printer{conf: conf}
	if conf.JSON {
		p.enc = json.NewEncoder(w)
	} else {
		p.tw = tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	}
	return p
}

func statusColor(status string) *color.Color {
	switch status {
	case StatusChanged:
		return color.New(color.FgYellow)
	case StatusNew:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgGreen)
	}
}

func (p *Printer) Print(out *Output) error {
	if p.enc != nil {
		return p.enc.Encode(out)
	}
	b := make([]byte, 0, 128)
	b = append(b, out.CRC...)
	b = append(b, '\t')
	if p.conf.Size {
		b = fmt.Appendf(b, "%d\t%s\t", out.Size, humanize.IBytes(uint64(out.Size)))
	}
	if out.Status != "" {
		// Padded here, not by the tabwriter, which would count the
		// color escapes as part of the cell width.
		b = append(b, statusColor(out.Status).Sprintf("%-*s", statusWidth, out.Status)...)
		b = append(b, ' ')
	}
	b = append(b, out.Name...)
	b = append(b, '\n')
	_, err := p.tw.Write(b)
	return err
}

func (p *Printer) Flush() error {
	if p.tw != nil {
		return p.tw.Flush()
	}
	return nil
}

// sendPaths resolves args to files and sends them to ch, closing ch when
// done. Arguments that cannot be used are counted in failed.
func sendPaths(ctx context.Context, conf *Config, log *zap.Logger, args []string,
	ch chan<- string, failed *atomic.Int64) {

	defer close(ch)
	done := ctx.Done()
	send := func(path string) error {
		select {
		case ch <- path:
			return nil
		case <-done:
			return ctx.Err()
		}
	}
	walker := filecrc.Walker{
		Include: &conf.Include,
		Exclude: &conf.Exclude,
		Follow:  conf.Follow,
		Log:     log.Named("walk"),
	}
	for _, arg := range args {
		name := filecrc.Resolve(arg)
		fi, err := os.Stat(name)
		if err == nil && fi.IsDir() {
			if !conf.Recursive {
				log.Error("skipping directory (use --recursive)", zap.String("path", name))
				failed.Add(1)
				continue
			}
			if err := walker.Walk(ctx, name, send); err != nil {
				log.Error("walking", zap.String("path", name), zap.Error(err))
				failed.Add(1)
			}
			continue
		}
		// Errors are reported by the pool.
		if err := send(name); err != nil {
			break
		}
	}
}

func compareRecord(ctx context.Context, db *hashdb.DB, res *filecrc.Result) (string, error) {
	rec, err := db.Latest(ctx, res.Name)
	if err != nil {
		if errors.Is(err, hashdb.ErrNotFound) {
			return StatusNew, nil
		}
		return "", err
	}
	if rec.CRC == res.CRC && rec.Size == res.Size {
		return StatusUnchanged, nil
	}
	return StatusChanged, nil
}

func checksumFiles(ctx context.Context, conf *Config, log *zap.Logger, args []string, stdout io.Writer) error {
	var db *hashdb.DB
	var run *hashdb.Run
	if conf.Database != "" {
		var err error
		if db, err = hashdb.Open(ctx, conf.Database); err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		if run, err = db.NewRun(ctx); err != nil {
			return fmt.Errorf("creating run: %w", err)
		}
		log.Debug("database run", zap.String("db", conf.Database), zap.Stringer("run_id", run.ID))
	}

	ch := make(chan string, conf.Workers*4)
	var failed atomic.Int64
	go sendPaths(ctx, conf, log, args, ch, &failed)

	pool := filecrc.Pool{
		Workers:   conf.Workers,
		Log:       log.Named("pool"),
		NewHasher: conf.NewHasher,
	}
	outcomes := pool.Run(ctx, ch)

	p := NewPrinter(conf, stdout)
	results := make([]*filecrc.Result, 0, len(outcomes))
	var mismatch error
	for _, o := range outcomes {
		if o.Err != nil {
			log.Error("unreadable file", zap.String("path", o.Path), zap.Error(o.Err))
			failed.Add(1)
			continue
		}
		res := o.Result
		out := Output{Name: res.Name, Size: res.Size, CRC: res.Hex()}
		if conf.Compare {
			status, err := compareRecord(ctx, db, res)
			if err != nil {
				return fmt.Errorf("reading database: %w", err)
			}
			out.Status = status
		}
		if want := uint32(conf.Expect.crc); conf.Expect.set && res.CRC != want {
			mismatch = fmt.Errorf("%s: checksum mismatch: got: %s want: %s",
				res.Name, res.Hex(), stm32crc.Format(want))
		}
		if err := p.Print(&out); err != nil {
			return err
		}
		results = append(results, res)
	}
	if err := p.Flush(); err != nil {
		return err
	}

	if db != nil && len(results) != 0 {
		if err := db.Insert(ctx, run, results...); err != nil {
			return fmt.Errorf("recording checksums: %w", err)
		}
	}
	if mismatch != nil {
		return mismatch
	}
	if n := failed.Load(); n != 0 {
		return fmt.Errorf("failed to checksum %d of %d files", n, n+int64(len(results)))
	}
	return nil
}

func generateShellCompletion(cmd *cobra.Command, w io.Writer, shell string) error {
	switch shell {
	case "bash":
		return cmd.Root().GenBashCompletion(w)
	case "zsh":
		return cmd.Root().GenZshCompletion(w)
	case "fish":
		return cmd.Root().GenFishCompletion(w, true)
	case "powershell":
		return cmd.Root().GenPowerShellCompletionWithDesc(w)
	default:
		return fmt.Errorf("unsupported shell: %q", shell)
	}
}

func newCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   ProgramName + " [flags] FILE...",
		Short: "Calculate the CRC-32 of files the same way as the STM32 hardware CRC unit",
		Example: `
# Checksum a firmware image (".bin" is appended if FILE does not exist):
$ stm32crc build/firmware

# Verify an image against the checksum stored in flash:
$ stm32crc --expect 0x6BB36ACF build/firmware.bin

# Checksum all images below a directory and record them:
$ stm32crc -r --include '*.bin' --db hashes.sqlite build/

# Generate shell completion:
$ stm32crc --completion [bash|zsh|fish|powershell]`[1:],
		Version: Version,
		Args:    cobra.ArbitraryArgs,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	conf := DefaultConfig(stderr)
	flags := cmd.Flags()
	flags.SortFlags = false
	conf.AddFlags(flags)

	genCompletion := flags.String("completion", "",
		"generate completion script [bash|zsh|fish|powershell]")
	cmd.RegisterFlagCompletionFunc(
		"completion",
		func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return []string{"bash", "zsh", "fish", "powershell"}, cobra.ShellCompDirectiveDefault
		},
	)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if *genCompletion != "" {
			return generateShellCompletion(cmd, stdout, *genCompletion)
		}
		if len(args) == 0 {
			return errors.New("missing FILE argument")
		}
		if err := conf.Validate(args); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		log := conf.NewLogger(stderr)
		defer log.Sync()
		if conf.Banner {
			printBanner(stderr)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		err := checksumFiles(ctx, &conf, log.Named("main"), args, stdout)
		if ctx.Err() != nil && cmd.Context().Err() == nil {
			log.Warn("interrupted by signal")
		}
		return err
	}
	return cmd
}

func realMain(args []string, stdout, stderr io.Writer) error {
	cmd := newCommand(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func main() {
	if err := realMain(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
