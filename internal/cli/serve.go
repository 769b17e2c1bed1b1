package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/hive/internal/logging"
	"github.com/mesh-intelligence/hive/pkg/bridge"
)

// maxLineBytes bounds a single call read from stdin.
const maxLineBytes = 1 << 20

// framing is the byte that ends each call on stdin and each reply on stdout.
type framing byte

const (
	frameLine framing = '\n'
	frameNUL  framing = 0
)

func (f framing) split() bufio.SplitFunc {
	if f == frameLine {
		return bufio.ScanLines
	}
	return scanNUL
}

// scanNUL is a bufio.SplitFunc for NUL-terminated frames. A trailing frame
// without a terminator is returned at EOF.
func scanNUL(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func newServeCmd() *cobra.Command {
	var null bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer calls read from stdin",
		Long: "Read one call per line from stdin and write one reply per line to\n" +
			"stdout. A dropped call yields an empty line, and so does a reply that\n" +
			"would span lines. With --null, calls and replies are NUL-terminated\n" +
			"instead, which carries text containing newlines. serve exits after a\n" +
			"verified shutdown or at end of input.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := frameLine
			if null {
				f = frameNUL
			}
			return runServe(cmd, f)
		},
	}
	cmd.Flags().BoolVarP(&null, "null", "0", false, "NUL-terminated calls and replies")
	return cmd
}

func runServe(cmd *cobra.Command, f framing) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, log, err := openBridge(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	return serve(ctx, b, cmd.InOrStdin(), cmd.OutOrStdout(), f, log)
}

// openBridge resolves the config, installs the runtime logger, and opens the
// bridge.
func openBridge(ctx context.Context) (*bridge.Bridge, zerolog.Logger, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logging.ConfigureRuntime(cfg.Log.Level)
	b, err := bridge.Open(ctx, cfg, bridge.WithLogger(log))
	if err != nil {
		return nil, log, systemError("%w", err)
	}
	return b, log, nil
}

// serve runs the host loop until shutdown or end of input. Every call gets
// exactly one frame back, so a reply holding the frame byte is dropped rather
// than split across frames.
func serve(ctx context.Context, b *bridge.Bridge, in io.Reader, out io.Writer, f framing, log zerolog.Logger) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	sc.Split(f.split())
	w := bufio.NewWriter(out)
	buf := make([]byte, b.Capacity())

	calls := 0
	for sc.Scan() {
		calls++
		o := b.Call(ctx, sc.Text(), buf)
		reply := buf[:o.Written]
		if bytes.IndexByte(reply, byte(f)) >= 0 {
			log.Error().Int("call", calls).Int("bytes", len(reply)).Msg("reply contains the frame terminator, dropped")
			reply = nil
		}
		_, _ = w.Write(reply)
		_ = w.WriteByte(byte(f))
		if err := w.Flush(); err != nil {
			return systemError("write reply: %w", err)
		}
		if o.Shutdown {
			log.Info().Int("calls", calls).Msg("shutdown verified")
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return systemError("read calls: %w", err)
	}
	log.Info().Int("calls", calls).Msg("input closed")
	return nil
}

func newCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <text>",
		Short: "Run a single call and print the reply",
		Example: `  hive call '["CHILD",307]'
  hive call '["CHILD",999,"SELECT 1",[]]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			b, _, err := openBridge(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			reply, o := b.CallString(ctx, args[0])
			if o.Err != nil {
				return fmt.Errorf("call dropped (%s): %w", bridge.KindOf(o.Err), o.Err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}
