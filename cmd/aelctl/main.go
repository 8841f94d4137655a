// Command aelctl is a non-interactive, scriptable front end over the
// aelhometta runtime interface (§10.8): each invocation performs exactly one
// operation — create a world, run some ticks, print statistics, flip a
// command switch bit, adjust glitch probabilities, or resize the arena — and
// exits. It is not a REPL: there is no command language, history, or
// prompt, matching the reference codebase's own thin main.go + flag-parsed
// mode rather than a shell.
package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/aelhometta/vm/world"
	"github.com/aelhometta/vm/worldio"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "aelctl",
		Short: "Batch driver for the aelhometta automaton runtime",
	}
	root.AddCommand(
		newNewCmd(),
		newTickCmd(),
		newStatsCmd(),
		newSwitchCmd(),
		newGlitchCmd(),
		newResizeCmd(),
	)
	return root
}

func newNewCmd() *cobra.Command {
	var binlog uint8
	var out string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create an empty world and save it",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := world.NewWorldFromTime(binlog)
			if err := worldio.Save(w, out); err != nil {
				return fmt.Errorf("aelctl new: %w", err)
			}
			fmt.Printf("created %s (capacity %d)\n", out, w.Arena.MaxChains())
			return nil
		},
	}
	cmd.Flags().Uint8Var(&binlog, "chains-binlog", 16, "log2 of node/controller arena capacity")
	cmd.Flags().StringVar(&out, "out", "", "output save file path")
	cmd.MarkFlagRequired("out")
	return cmd
}

func newTickCmd() *cobra.Command {
	var in, out string
	var controller uint32
	var hasController bool
	var n int
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run N ticks against a saved world and save the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := worldio.LoadSnapshot(in)
			if err != nil {
				return fmt.Errorf("aelctl tick: load: %w", err)
			}

			target := world.Absent
			if hasController {
				target = world.Some(world.Uid(controller))
			}

			for i := 0; i < n; i++ {
				t := w.Tick(target)
				fmt.Printf("tick %d: controller=%v exec=%v content=0x%02x\n", i, t.ControllerId, t.ExecId, t.ExecContent)
			}

			if err := worldio.Save(w, out); err != nil {
				return fmt.Errorf("aelctl tick: save: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input save file path")
	cmd.Flags().StringVar(&out, "out", "", "output save file path")
	cmd.Flags().Uint32Var(&controller, "controller", 0, "pin ticks to one controller id")
	cmd.Flags().IntVar(&n, "n", 1, "number of ticks to run")
	cmd.MarkFlagRequired("in")
	cmd.MarkFlagRequired("out")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		hasController = cmd.Flags().Changed("controller")
	}
	return cmd
}

func newStatsCmd() *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print age, arena occupancy, and counters for a saved world",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := worldio.LoadSnapshot(in)
			if err != nil {
				return fmt.Errorf("aelctl stats: %w", err)
			}
			fmt.Printf("age: %d:%d\n", w.Age.Hi, w.Age.Lo)
			fmt.Printf("nodes: %d/%d\n", w.Arena.NumNodes(), w.Arena.MaxChains())
			fmt.Printf("controllers: %d/%d\n", w.Arena.NumControllers(), w.Arena.MaxChains())
			fmt.Printf("branches: main=%d:%d alt=%d:%d\n",
				w.BranchesMainCount.Hi, w.BranchesMainCount.Lo, w.BranchesAltCount.Hi, w.BranchesAltCount.Lo)
			fmt.Printf("glitches: background=%d:%d replicate=%d:%d construct=%d:%d\n",
				w.GlitchBackgroundCount.Hi, w.GlitchBackgroundCount.Lo,
				w.GlitchReplicateCount.Hi, w.GlitchReplicateCount.Lo,
				w.GlitchConstructCount.Hi, w.GlitchConstructCount.Lo)
			for code, count := range w.CommandsCount {
				fmt.Printf("command[%d]: %d:%d\n", code, count.Hi, count.Lo)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input save file path")
	cmd.MarkFlagRequired("in")
	return cmd
}

func newSwitchCmd() *cobra.Command {
	var in, out string
	var command uint8
	var on, off bool
	cmd := &cobra.Command{
		Use:   "switch",
		Short: "Enable or disable one command by its numeric code",
		RunE: func(cmd *cobra.Command, args []string) error {
			if on == off {
				return fmt.Errorf("aelctl switch: exactly one of --on/--off is required")
			}
			w, err := worldio.LoadSnapshot(in)
			if err != nil {
				return fmt.Errorf("aelctl switch: load: %w", err)
			}
			w.SetCommandSwitch(world.Command(command), on)
			if err := worldio.Save(w, out); err != nil {
				return fmt.Errorf("aelctl switch: save: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input save file path")
	cmd.Flags().StringVar(&out, "out", "", "output save file path")
	cmd.Flags().Uint8Var(&command, "command", 0, "numeric command code (1-75)")
	cmd.Flags().BoolVar(&on, "on", false, "enable the command")
	cmd.Flags().BoolVar(&off, "off", false, "disable the command")
	cmd.MarkFlagRequired("in")
	cmd.MarkFlagRequired("out")
	cmd.MarkFlagRequired("command")
	return cmd
}

func newGlitchCmd() *cobra.Command {
	var in, out string
	var background, replicate, construct float64
	cmd := &cobra.Command{
		Use:   "glitch",
		Short: "Set the three glitch probabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := worldio.LoadSnapshot(in)
			if err != nil {
				return fmt.Errorf("aelctl glitch: load: %w", err)
			}
			w.SetGlitchProbabilities(background, replicate, construct)
			if err := worldio.Save(w, out); err != nil {
				return fmt.Errorf("aelctl glitch: save: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input save file path")
	cmd.Flags().StringVar(&out, "out", "", "output save file path")
	cmd.Flags().Float64Var(&background, "background", 0, "background glitch probability [0,1]")
	cmd.Flags().Float64Var(&replicate, "replicate", 0, "replicate glitch probability [0,1]")
	cmd.Flags().Float64Var(&construct, "construct", 0, "construct glitch probability [0,1]")
	cmd.MarkFlagRequired("in")
	cmd.MarkFlagRequired("out")
	return cmd
}

func newResizeCmd() *cobra.Command {
	var in, out string
	var binlog uint8
	cmd := &cobra.Command{
		Use:   "resize",
		Short: "Change the arena's capacity (2^chains-binlog)",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := worldio.LoadSnapshot(in)
			if err != nil {
				return fmt.Errorf("aelctl resize: load: %w", err)
			}
			w.ChangeLimit(binlog)
			if err := worldio.Save(w, out); err != nil {
				return fmt.Errorf("aelctl resize: save: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input save file path")
	cmd.Flags().StringVar(&out, "out", "", "output save file path")
	cmd.Flags().Uint8Var(&binlog, "chains-binlog", 16, "new log2 arena capacity")
	cmd.MarkFlagRequired("in")
	cmd.MarkFlagRequired("out")
	return cmd
}
