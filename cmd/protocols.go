package cmd

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/netcodec/internal/handlers"
	"firestige.xyz/netcodec/pkg/packet"
)

var protocolsCmd = &cobra.Command{
	Use:   "protocols",
	Short: "List the built-in decoders and handlers",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()

		fmt.Fprintln(w, "LAYER\tCODE\tDECODER")
		for _, l := range []packet.Layer{
			packet.LayerLink, packet.LayerNetwork, packet.LayerTransport,
			packet.LayerApplication, packet.LayerICMPv4, packet.LayerICMPv6,
		} {
			r := packet.Default.Registry(l)
			for _, code := range r.Codes() {
				fn, _ := r.Lookup(code)
				fmt.Fprintf(w, "%s\t%s\t%s\n", l, formatCode(l, code), decoderName(fn))
			}
		}
		fmt.Fprintf(w, "\nHANDLERS\t%s\n", strings.Join(handlers.Names(), ", "))
	},
}

func formatCode(l packet.Layer, code uint32) string {
	switch l {
	case packet.LayerNetwork:
		return fmt.Sprintf("0x%04x", code)
	case packet.LayerICMPv4, packet.LayerICMPv6:
		if code&(1<<16) != 0 {
			return fmt.Sprintf("type %d", uint8(code>>8))
		}
		return fmt.Sprintf("type %d code %d", uint8(code>>8), uint8(code))
	}
	return fmt.Sprint(code)
}

// decoderName turns packet.DecodeIPv4 into IPv4.
func decoderName(fn packet.DecodeFunc) string {
	if fn == nil {
		return "?"
	}
	name := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimPrefix(name, "Decode")
}
