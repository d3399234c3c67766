package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jsphweid/harmonia/composition"
	hmidi "github.com/jsphweid/harmonia/midi"
	"github.com/jsphweid/harmonia/pitch"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <snapshot|file.mid>",
	Short: "Inspects a saved composition or an exported MIDI file",
	Long: `Prints the planned key and chord of every measure, section by section.
Given a .mid file, prints every note it sounds instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.EqualFold(filepath.Ext(args[0]), ".mid") {
			return inspectMidi(os.Stdout, args[0])
		}
		snap, err := composition.Load(args[0])
		if err != nil {
			return err
		}
		inspect(snap)
		return nil
	},
}

func inspect(snap composition.Composition) {
	fmt.Printf("id: %v\n", snap.ID)
	fmt.Printf("strategy: %v\n", snap.Strategy)
	fmt.Printf("measures: %v (%v played)\n", len(snap.Measures), snap.Played)
	for _, s := range snap.Sections {
		fmt.Printf("section %d-%d", s.Start, s.Start+s.Size-1)
		if s.Remark != "" {
			fmt.Printf(" (%s)", s.Remark)
		}
		fmt.Println()
		for i, name := range s.Chords {
			fmt.Printf("  %4d  %-6s %s\n", s.Start+i, name, strings.Join(s.Keys[i], " / "))
		}
	}
}

func inspectMidi(w io.Writer, path string) error {
	s, err := hmidi.ReadFile(path)
	if err != nil {
		return err
	}
	spans := hmidi.ReadSpans(s)
	fmt.Fprintf(w, "tracks: %d\n", len(s.Tracks))
	fmt.Fprintf(w, "notes: %d\n", len(spans))
	for _, sp := range spans {
		name := pitch.AbsolutePitch(sp.Key).Name()
		fmt.Fprintf(w, "  ch%d %-4s vel %3d  %d-%d\n", sp.Channel, name, sp.Velocity, sp.Start, sp.End)
	}
	return nil
}
