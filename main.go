/*
Gridpolicy plans a path through a small grid maze by policy iteration, and shows the value
function and greedy policy evolving in the browser as it converges. Rewards can be edited
live by clicking cells. The same planner also runs headless from the command line, printing
the result and optionally writing a png of the grid and a chart of convergence.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"

	"gridpolicy/reinforcement"
	"gridpolicy/render"
	"gridpolicy/server"
	"gridpolicy/session"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const (
	envPrefix = "GRIDPOLICY"
	// Used by solve when the config bounds the run neither by iterations nor tolerance.
	defaultSolveTolerance = 1e-6
	pngCellSize           = 40
)

func main() {
	for _, envFile := range []string{".env", "../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "gridpolicy",
		Short:        "Policy iteration over a grid maze, live in the browser or headless.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "config file (yaml); defaults apply when empty")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the interactive maze",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), newSettings(cmd))
		},
	}
	serveCmd.Flags().String("host", "localhost", "the host to listen on")
	serveCmd.Flags().String("port", "8080", "the port to listen on")

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "Run policy iteration headless and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSolve(cmd, newSettings(cmd))
		},
	}
	solveCmd.Flags().Int("iterations", 0, "stop after this many iterations; overrides the config")
	solveCmd.Flags().String("png", "", "write the final grid to this png file")
	solveCmd.Flags().String("chart", "", "write a convergence chart to this html file")
	solveCmd.Flags().Bool("no-color", false, "disable coloured console output")

	rootCmd.AddCommand(serveCmd, solveCmd)
	return rootCmd
}

// newSettings layers the command's flags over GRIDPOLICY_* environment variables,
// e.g. GRIDPOLICY_PORT=9090.
func newSettings(cmd *cobra.Command) *viper.Viper {
	settings := viper.New()
	settings.SetEnvPrefix(envPrefix)
	settings.AutomaticEnv()
	if err := settings.BindPFlags(cmd.Flags()); err != nil {
		log.Printf("bind flags: %v", err)
	}
	return settings
}

func loadConfig(settings *viper.Viper) (*reinforcement.TrainingConfig, error) {
	path := settings.GetString("config")
	if path == "" {
		return reinforcement.DefaultConfig(), nil
	}
	return reinforcement.FromYaml(path)
}

// runServe runs the session and the web server until interrupted or either fails.
func runServe(ctx context.Context, settings *viper.Viper) error {
	cfg, err := loadConfig(settings)
	if err != nil {
		return err
	}
	sess, err := session.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return sess.Run(groupCtx)
	})

	addr := net.JoinHostPort(settings.GetString("host"), settings.GetString("port"))
	srv, err := server.NewServer(groupCtx, addr, sess, sess.Updates())
	if err != nil {
		cancel()
		_ = group.Wait()
		return err
	}
	group.Go(func() error {
		return srv.Serve(groupCtx)
	})

	return group.Wait()
}

// runSolve iterates until the config's stopping condition, the training deadline, or an
// interrupt, then prints the grid and writes any requested artefacts.
func runSolve(cmd *cobra.Command, settings *viper.Viper) error {
	cfg, err := loadConfig(settings)
	if err != nil {
		return err
	}
	if n := settings.GetInt("iterations"); n > 0 {
		cfg.Run.MaxIterations = n
	}
	if cfg.Run.MaxIterations == 0 && cfg.Run.Tolerance == 0 {
		cfg.Run.Tolerance = defaultSolveTolerance
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel, err := cfg.WithTrainingDeadline(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	gw := cfg.NewWorld()
	agent := reinforcement.NewAgent(gw, cfg.Gamma())
	var deltas []float64
	iterations, err := reinforcement.Solve(ctx, agent, cfg.Run, func(_ int, delta float64) {
		deltas = append(deltas, delta)
	})
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		log.Printf("stopped early after %d iterations: %v", iterations, err)
	case err != nil:
		return err
	}

	snap := reinforcement.TakeSnapshot(gw, agent)
	snap.Iterations = iterations
	if err := render.Console(cmd.OutOrStdout(), &snap, !settings.GetBool("no-color")); err != nil {
		return err
	}

	if path := settings.GetString("png"); path != "" {
		if err := writeFile(path, func(f *os.File) error {
			return render.PNG(f, &snap, pngCellSize)
		}); err != nil {
			return err
		}
	}
	if path := settings.GetString("chart"); path != "" {
		if err := writeFile(path, func(f *os.File) error {
			return render.ConvergenceChart(f, deltas)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) (err error) {
	var f *os.File
	if f, err = os.Create(path); err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	if err = write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Printf("wrote %s", path)
	return nil
}
