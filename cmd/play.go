package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/bep/debounce"
	"github.com/jsphweid/harmonia/composer"
	"github.com/jsphweid/harmonia/logger"
	hmidi "github.com/jsphweid/harmonia/midi"
	"github.com/jsphweid/harmonia/model"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver
)

var outPort string

func init() {
	playCmd.Flags().StringVar(&outPort, "port", "", "MIDI output port name (default: first port)")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Plays an endless composition on a MIDI output",
	Long: `Plays an endless composition on a MIDI output. Type "restart" or
"switch" and enter to change course, "quit" to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return play(cmd.Context())
	},
}

func openOut() (func(midi.Message) error, error) {
	if outPort != "" {
		out, err := midi.FindOutPort(outPort)
		if err != nil {
			return nil, fmt.Errorf("can't find output port %q: %w", outPort, err)
		}
		return midi.SendTo(out)
	}
	out, err := midi.OutPort(0)
	if err != nil {
		return nil, fmt.Errorf("can't find a MIDI output: %w", err)
	}
	return midi.SendTo(out)
}

func play(ctx context.Context) error {
	defer midi.CloseDriver()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	kind, err := configuredKind()
	if err != nil {
		return err
	}
	send, err := openOut()
	if err != nil {
		return err
	}
	player := hmidi.NewPlayer(send)
	defer player.Silence()

	c := newComposer()
	first, err := c.BeginComposing(kind)
	if err != nil {
		return err
	}

	commands := make(chan string, 1)
	go readCommands(ctx, commands, stop)

	bar := cfg.MeasureDuration()
	m := first
	for n := 1; ; n++ {
		printMeasure(n, m)
		if err := player.Play(ctx, m, bar); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			return err
		}

		var restarted bool
		m, restarted, err = nextBar(ctx, c, commands)
		if errors.Is(err, context.Canceled) {
			break
		}
		if err != nil {
			logger.Error("playback stopped", err, nil)
			break
		}
		if restarted {
			_ = player.Silence()
		}
	}

	snap, err := c.FinishComposing()
	if err != nil {
		return err
	}
	fmt.Printf("played %d measures\n", snap.Played)
	return nil
}

// nextBar returns the measure to play next. A pending command is applied
// first, so a restart or switch always plays the new first measure before
// anything else of the new composition.
func nextBar(ctx context.Context, c *composer.Composer, commands <-chan string) (*model.Measure, bool, error) {
	select {
	case line := <-commands:
		m, err := c.ReceiveInput(line)
		if err == nil {
			kind, _ := c.Kind()
			logger.Info("changed course", logger.Fields{"input": line, "strategy": kind.String()})
			return m, true, nil
		}
		logger.Warn("ignored input", logger.Fields{"input": line, "error": err.Error()})
	default:
	}
	m, err := waitForMeasure(ctx, c)
	return m, false, err
}

// readCommands forwards typed commands to the play loop. Bursts of input
// collapse into the last command.
func readCommands(ctx context.Context, commands chan<- string, quit func()) {
	debounced := debounce.New(300 * time.Millisecond)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "quit"):
			quit()
			return
		}
		debounced(func() {
			if ctx.Err() != nil {
				return
			}
			select {
			case commands <- line:
			default:
			}
		})
	}
}
