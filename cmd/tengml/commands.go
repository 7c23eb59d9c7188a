package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tengml/tengml/api"
	"github.com/tengml/tengml/config"
	"github.com/tengml/tengml/materials"
	"github.com/tengml/tengml/pkg/errors"
	"github.com/tengml/tengml/pkg/log"
	"github.com/tengml/tengml/predictor"
	"github.com/tengml/tengml/report"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "tengml",
		Short:         "Predict triboelectric nanogenerator performance from film composition",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "Environment file read before TENG_* variables")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(envFile)
		if err != nil {
			return nil, err
		}
		if err := cfg.SetupLogger(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newTrainCmd(load),
		newPredictCmd(load),
		newExportCmd(load),
	)
	return root
}

type configLoader func() (*config.Config, error)

// trainService loads the database configured in cfg and trains on it.
func trainService(ctx context.Context, cfg *config.Config) (*predictor.Service, *predictor.ModelSet, error) {
	svc := predictor.NewService(cfg.RegressorOptions()...)
	set, err := svc.Reload(ctx, cfg.Sources())
	if err != nil {
		return nil, nil, err
	}
	return svc, set, nil
}

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the database, train and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, _, err := trainService(ctx, cfg)
			if err != nil {
				return err
			}

			srv := api.NewServer(svc, api.Options{Sources: cfg.Sources(), PageSize: cfg.Server.PageSize}).
				HTTPServer(cfg.Server.Addr)
			logger := log.GetLoggerWithName("serve")

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", cfg.Server.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return errors.Wrap(err, "serve")
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newTrainCmd(load configLoader) *cobra.Command {
	var plotDir string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train on the database and print per-metric fit quality",
		Long: `Train one regressor per metric and print R², RMSE and MAE on the
training rows.

Example: tengml train --plot-dir ./plots`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			_, set, err := trainService(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "model set %s: %d samples (%d dropped) from %s\n",
				set.ID, set.Samples, set.Dropped, set.Source)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "METRIC\tR2\tRMSE\tMAE")
			for _, m := range predictor.Metrics {
				sc := set.Scores[m]
				fmt.Fprintf(tw, "%s\t%.4f\t%.4g\t%.4g\n", m, sc.R2, sc.RMSE, sc.MAE)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if plotDir == "" {
				return nil
			}
			return writeParityPlots(set, plotDir, out)
		},
	}

	cmd.Flags().StringVar(&plotDir, "plot-dir", "", "Directory to write <metric>_parity.png files to")
	return cmd
}

func writeParityPlots(set *predictor.ModelSet, dir string, out io.Writer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	for _, m := range predictor.Metrics {
		measured, predicted, err := set.Parity(m)
		if err != nil {
			return err
		}
		p, err := report.Parity(m.Label(), measured, predicted)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, string(m)+"_parity.png")
		if err := report.SavePNG(path, p); err != nil {
			return err
		}
		fmt.Fprintln(out, "wrote", path)
	}
	return nil
}

func newPredictCmd(load configLoader) *cobra.Command {
	c := materials.CAMXPreset()

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict Voc, Isc, power and energy for one composition",
		Long: `Train on the database, then predict for one film. Flags default to the
CA/MXene reference film.

Example: tengml predict --polymer PTFE --filler Ag --loading 2 --thickness 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			svc, _, err := trainService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			p, err := svc.Predict(c)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s / %s, %g wt%%, %g µm\n", c.Polymer, materials.Material{Filler: c.Filler}.FillerName(), c.Loading, c.Thickness)
			for _, m := range predictor.Metrics {
				fmt.Fprintf(out, "  %-22s %.4g\n", m.Label(), p.Get(m))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&c.Polymer, "polymer", c.Polymer, "Polymer matrix, e.g. CA, PTFE, PDMS")
	cmd.Flags().StringVar(&c.Filler, "filler", c.Filler, "Filler, or None for a pristine film")
	cmd.Flags().Float64Var(&c.Loading, "loading", c.Loading, "Filler loading in wt%")
	cmd.Flags().Float64Var(&c.Thickness, "thickness", c.Thickness, "Film thickness in µm")
	return cmd
}

func newExportCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file.xlsx]",
		Short: "Write the loaded materials database to an XLSX workbook",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			path := materials.DefaultXLSXPath
			if len(args) == 1 {
				path = args[0]
			}
			db, err := materials.Load(cmd.Context(), cfg.Sources())
			if err != nil {
				return err
			}
			if err := materials.SaveXLSX(path, db.Materials); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d materials from %s to %s\n", db.Len(), db.Source, path)
			return nil
		},
	}
}
