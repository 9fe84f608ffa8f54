// Package main is the flipdotctl command line client.
//
// flipdotctl talks to a running flipdotd over its TCP/JSON protocol: it can
// push text, clock faces and raw bitmaps, flip config switches, and query
// the server's state.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mezgrman/flipdot/client"
	"github.com/Mezgrman/flipdot/protocol"
)

// Version information - set at build time via ldflags
var version = "dev"

// Connection flags, shared by every subcommand.
var (
	flagHost    string
	flagPort    int
	flagTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "flipdotctl",
	Short:         "Control and query a flipdot display server.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var textCmd = &cobra.Command{
	Use:   "text <display> <text>",
	Short: "Show a line of text on a display.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, _ := cmd.Flags().GetInt("x")
		y, _ := cmd.Flags().GetInt("y")
		duration, _ := cmd.Flags().GetFloat64("duration")

		c := newClient()
		msg := client.SingleMessage(duration,
			client.GraphicsSubmessage("text", map[string]any{
				"text": args[1],
				"x":    x,
				"y":    y,
			}, protocol.RefreshInterval{}),
		)
		if err := c.AddData(args[0], msg); err != nil {
			return err
		}
		return c.Commit()
	},
}

var clockCmd = &cobra.Command{
	Use:   "clock <display>",
	Short: "Show a clock face that refreshes every minute.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		x, _ := cmd.Flags().GetInt("x")
		y, _ := cmd.Flags().GetInt("y")

		c := newClient()
		msg := client.SingleMessage(0,
			client.GraphicsSubmessage("time", map[string]any{
				"format": format,
				"x":      x,
				"y":      y,
			}, protocol.RefreshInterval{Minute: true}),
		)
		if err := c.AddData(args[0], msg); err != nil {
			return err
		}
		return c.Commit()
	},
}

var drawCmd = &cobra.Command{
	Use:   "draw <display> <file>",
	Short: "Show a bitmap read from an ASCII-art file ('#' = on, use '-' for stdin).",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if args[1] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[1])
		}
		if err != nil {
			return err
		}

		bitmap, err := parseBitmap(string(data))
		if err != nil {
			return err
		}

		c := newClient()
		msg := client.SingleMessage(0, client.BitmapSubmessage(bitmap))
		if err := c.AddData(args[0], msg); err != nil {
			return err
		}
		return c.Commit()
	},
}

var controlCmd = &cobra.Command{
	Use:   "control <display> <key=value>...",
	Short: "Set config switches (backlight, inverting, active).",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		changes := make(map[string]bool, len(args)-1)
		for _, pair := range args[1:] {
			key, raw, found := strings.Cut(pair, "=")
			if !found {
				return fmt.Errorf("expected key=value, got %q", pair)
			}
			value, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("parsing %q: %w", pair, err)
			}
			changes[key] = value
		}

		c := newClient()
		if err := c.AddControl(args[0], changes); err != nil {
			return err
		}
		return c.Commit()
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear <display>",
	Short: "Remove the content assigned to a display.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		c.ClearContent(args[0])
		return c.Commit()
	},
}

var configCmd = &cobra.Command{
	Use:   "config [display]...",
	Short: "Query config switches, all displays by default.",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, _ := cmd.Flags().GetStringSlice("keys")
		result, err := newClient().GetConfig(args, keys)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var hwconfigCmd = &cobra.Command{
	Use:   "hwconfig",
	Short: "Query the hardware layout of every display.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := newClient().GetHardwareConfig()
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var messageCmd = &cobra.Command{
	Use:   "message [display]...",
	Short: "Query the content assigned to displays.",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := newClient().GetMessage(args)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var bitmapCmd = &cobra.Command{
	Use:   "bitmap [display]...",
	Short: "Query the last rendered frame of displays.",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		result, err := newClient().GetBitmap(args)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(result)
		}
		for id, bitmap := range result {
			fmt.Printf("%s:\n%s", id, renderBitmap(bitmap))
		}
		return nil
	},
}

func newClient() *client.Client {
	return client.New(flagHost,
		client.WithPort(flagPort),
		client.WithTimeout(flagTimeout),
	)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// parseBitmap reads ASCII art into a frame: '#' sets a dot, any other
// character clears it. Every line must have the same width.
func parseBitmap(text string) (protocol.Bitmap, error) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, fmt.Errorf("empty bitmap")
	}

	bitmap := make(protocol.Bitmap, len(lines))
	width := len(lines[0])
	for i, line := range lines {
		if len(line) != width {
			return nil, fmt.Errorf("line %d is %d characters wide, want %d", i+1, len(line), width)
		}
		row := make([]int, width)
		for j, ch := range line {
			if ch == '#' {
				row[j] = 1
			}
		}
		bitmap[i] = row
	}
	return bitmap, nil
}

// renderBitmap draws a frame as ASCII art, one character per dot.
func renderBitmap(bitmap protocol.Bitmap) string {
	var b strings.Builder
	for _, row := range bitmap {
		for _, dot := range row {
			if dot != 0 {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "127.0.0.1", "server host")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", client.DefaultPort, "server port")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 3*time.Second, "request timeout")

	textCmd.Flags().Int("x", 0, "horizontal text position")
	textCmd.Flags().Int("y", 0, "vertical text position")
	textCmd.Flags().Float64("duration", 0, "seconds to show the text in a sequence")

	clockCmd.Flags().String("format", "%H:%M", "strftime-style time format")
	clockCmd.Flags().Int("x", 0, "horizontal position")
	clockCmd.Flags().Int("y", 0, "vertical position")

	configCmd.Flags().StringSlice("keys", nil, "config keys to query (default all)")

	bitmapCmd.Flags().Bool("json", false, "print raw bitmaps as JSON")

	rootCmd.AddCommand(
		textCmd,
		clockCmd,
		drawCmd,
		controlCmd,
		clearCmd,
		configCmd,
		hwconfigCmd,
		messageCmd,
		bitmapCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
