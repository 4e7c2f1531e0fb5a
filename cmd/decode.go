package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"firestige.xyz/netcodec/internal/config"
	"firestige.xyz/netcodec/internal/engine"
	"firestige.xyz/netcodec/internal/handlers"
	"firestige.xyz/netcodec/internal/log"
	"firestige.xyz/netcodec/internal/metrics"
	"firestige.xyz/netcodec/internal/source/file"
	"firestige.xyz/netcodec/pkg/handler"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <file>",
	Short: "Decode a pcap or pcapng capture file",
	Long: `Decode every frame of a pcap or pcapng file through the configured
handler pipeline and print a summary.

Examples:
  netcodec decode trace.pcap
  netcodec decode --dump --workers 1 trace.pcapng
  netcodec decode --link-type 101 raw-ip.pcap`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecode(cmd, args[0])
	},
}

var (
	decodeDump     bool
	decodeWorkers  int
	decodeLinkType int
)

func init() {
	decodeCmd.Flags().BoolVar(&decodeDump, "dump", false,
		"print the header chain of every frame")
	decodeCmd.Flags().IntVarP(&decodeWorkers, "workers", "w", 0,
		"concurrent frame workers (overrides engine.workers)")
	decodeCmd.Flags().IntVar(&decodeLinkType, "link-type", -1,
		"link type to decode with instead of the file's (overrides engine.link_type)")
}

func runDecode(cmd *cobra.Command, path string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") && decodeWorkers > 0 {
		cfg.Engine.Workers = decodeWorkers
	}
	if cmd.Flags().Changed("link-type") {
		cfg.Engine.LinkType = decodeLinkType
	}
	if err := log.Init(&cfg.Log); err != nil {
		return fmt.Errorf("failed to init log: %w", err)
	}

	out := cmd.OutOrStdout()
	pool, err := engine.NewPool(cfg.Pool)
	if err != nil {
		return err
	}
	pipeline, err := handlers.Build(cfg.Handlers)
	if err != nil {
		return err
	}
	if decodeDump {
		if err := pipeline.AddFirst(handlers.DumpName, handlers.NewDump(out)); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		if err := metrics.RegisterPool(prometheus.DefaultRegisterer, "frames", pool); err != nil {
			return err
		}
		server := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer server.Stop(context.Background())
	}

	src, err := file.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	e := engine.New(engine.Options{
		Workers:  cfg.Engine.Workers,
		LinkType: cfg.Engine.LinkType,
	}, pool, engine.NewDecoder(cfg.Decoder.Tunnel), pipeline)

	err = e.Run(ctx, src)
	printSummary(out, e.Stats(), pipeline)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printSummary(out io.Writer, s engine.Stats, pipeline *handler.Pipeline) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "frames\t%d\n", s.Frames)
	fmt.Fprintf(w, "bytes\t%d\n", s.Bytes)
	fmt.Fprintf(w, "dropped\t%d\n", s.Dropped)
	fmt.Fprintf(w, "truncated\t%d\n", s.Truncated)
	fmt.Fprintf(w, "decode errors\t%d\n", s.DecodeErrors)
	fmt.Fprintf(w, "handler errors\t%d\n", s.HandlerErrors)

	for _, name := range pipeline.Names() {
		h, _ := pipeline.Get(name)
		switch h := h.(type) {
		case *handlers.Stats:
			counts := h.Counts()
			types := make([]string, 0, len(counts))
			for t := range counts {
				types = append(types, t)
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Fprintf(w, "%s: %s\t%d\n", name, t, counts[t])
			}
		case *handlers.Checksum:
			fmt.Fprintf(w, "%s: checked\t%d\n", name, h.Checked())
			fmt.Fprintf(w, "%s: mismatched\t%d\n", name, h.Mismatched())
		case *handlers.VLAN:
			counts := h.Counts()
			ids := make([]int, 0, len(counts))
			for id := range counts {
				ids = append(ids, int(id))
			}
			sort.Ints(ids)
			for _, id := range ids {
				fmt.Fprintf(w, "%s: vlan %d\t%d\n", name, id, counts[uint16(id)])
			}
		}
	}
}
