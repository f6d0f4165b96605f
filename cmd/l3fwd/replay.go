package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanet-platform/l3fwd/common/go/xcmd"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/dataplane"
)

// ReplayCmd is the command line arguments of the replay command.
type ReplayCmd struct {
	// Input is the pcap file to replay.
	Input string
	// OutputDir receives one pcap file per egress port.
	OutputDir string
	// BatchSize is the number of frames processed at once.
	BatchSize int
}

var replayArgs = ReplayCmd{BatchSize: 32}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Forward frames from a pcap file, writing them out per egress port",
	Args:  cobra.NoArgs,
	RunE: func(rawCmd *cobra.Command, _ []string) error {
		app, err := newApp(rawCmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, cancel := context.WithCancel(rawCmd.Context())
		defer cancel()

		wg, ctx := errgroup.WithContext(ctx)
		wg.Go(func() error {
			defer cancel()

			summary, err := replay(ctx, app, replayArgs)
			if err != nil {
				return err
			}

			printSummary(rawCmd.OutOrStdout(), summary)
			return nil
		})
		wg.Go(func() error {
			err := xcmd.WaitInterrupted(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}

			app.log.Infof("caught signal: %v", err)
			return err
		})

		return wg.Wait()
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayArgs.Input, "pcap", "", "Path to the input pcap file (required)")
	replayCmd.Flags().StringVar(&replayArgs.OutputDir, "out-dir", ".", "Directory for per-port output pcap files")
	replayCmd.Flags().IntVar(&replayArgs.BatchSize, "batch", replayArgs.BatchSize, "Number of frames processed at once")
	replayCmd.MarkFlagRequired("pcap")
}

// replay pushes every frame of the input file through a dataplane worker.
func replay(ctx context.Context, app *app, args ReplayCmd) (dataplane.Summary, error) {
	if args.BatchSize <= 0 {
		return dataplane.Summary{}, fmt.Errorf("batch size must be positive, got %d", args.BatchSize)
	}

	in, err := os.Open(args.Input)
	if err != nil {
		return dataplane.Summary{}, fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	r, err := pcapgo.NewReader(in)
	if err != nil {
		return dataplane.Summary{}, fmt.Errorf("failed to read pcap header: %w", err)
	}
	if r.LinkType() != layers.LinkTypeEthernet {
		return dataplane.Summary{}, fmt.Errorf("unsupported link type %s", r.LinkType())
	}

	stats, err := dataplane.NewStats(prometheus.NewRegistry())
	if err != nil {
		return dataplane.Summary{}, err
	}
	worker := dataplane.NewWorker(app.fwd, app.ports, stats)

	out := newPortWriters(args.OutputDir, r.Snaplen())
	defer func() {
		if err := out.Close(); err != nil {
			app.log.Warnw("failed to close output files", zap.Error(err))
		}
	}()

	frames := make([][]byte, 0, args.BatchSize)
	infos := make([]gopacket.CaptureInfo, 0, args.BatchSize)
	verdicts := make([]dataplane.Verdict, 0, args.BatchSize)

	flush := func() error {
		verdicts, err = worker.Process(frames, verdicts)
		if err != nil {
			return err
		}

		for idx, verdict := range verdicts {
			if verdict.Drop {
				continue
			}
			if err := out.Write(verdict.Port, infos[idx], frames[idx]); err != nil {
				return err
			}
		}

		frames = frames[:0]
		infos = infos[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return dataplane.Summary{}, err
		}

		data, ci, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return dataplane.Summary{}, fmt.Errorf("failed to read packet: %w", err)
		}

		// Truncated frames cannot be forwarded.
		if ci.CaptureLength != ci.Length {
			app.log.Debugw("skipped truncated frame", zap.Int("captured", ci.CaptureLength), zap.Int("length", ci.Length))
			continue
		}

		frames = append(frames, data)
		infos = append(infos, ci)
		if len(frames) == args.BatchSize {
			if err := flush(); err != nil {
				return dataplane.Summary{}, err
			}
		}
	}

	if err := flush(); err != nil {
		return dataplane.Summary{}, err
	}

	summary, err := stats.Summary()
	if err != nil {
		return dataplane.Summary{}, fmt.Errorf("failed to collect counters: %w", err)
	}

	app.log.Infow("replay finished",
		zap.Uint64("rx", summary.RX),
		zap.String("input", args.Input),
	)

	return summary, nil
}

func printSummary(w io.Writer, summary dataplane.Summary) {
	fmt.Fprintf(w, "rx: %d\n", summary.RX)

	ports := slices.Sorted(maps.Keys(summary.TX))
	for _, p := range ports {
		fmt.Fprintf(w, "tx port %d: %d\n", p, summary.TX[p])
	}

	reasons := slices.Sorted(maps.Keys(summary.Dropped))
	for _, reason := range reasons {
		fmt.Fprintf(w, "dropped %s: %d\n", reason, summary.Dropped[reason])
	}
}

// portWriters lazily creates one pcap file per egress port.
type portWriters struct {
	dir     string
	snaplen uint32
	files   map[uint16]*os.File
	writers map[uint16]*pcapgo.Writer
}

func newPortWriters(dir string, snaplen uint32) *portWriters {
	return &portWriters{
		dir:     dir,
		snaplen: snaplen,
		files:   map[uint16]*os.File{},
		writers: map[uint16]*pcapgo.Writer{},
	}
}

func (m *portWriters) Write(port uint16, ci gopacket.CaptureInfo, data []byte) error {
	w, ok := m.writers[port]
	if !ok {
		path := filepath.Join(m.dir, fmt.Sprintf("port%d.pcap", port))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		m.files[port] = f

		w = pcapgo.NewWriter(f)
		if err := w.WriteFileHeader(m.snaplen, layers.LinkTypeEthernet); err != nil {
			return fmt.Errorf("failed to write pcap header to %s: %w", path, err)
		}
		m.writers[port] = w
	}

	if err := w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("failed to write packet for port %d: %w", port, err)
	}

	return nil
}

func (m *portWriters) Close() error {
	var err error
	for _, f := range m.files {
		err = multierr.Append(err, f.Close())
	}
	return err
}
