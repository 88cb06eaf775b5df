// fuse is the command-line wrapper around the fusion library: it loads the
// source rasters into a multi-resolution store, runs the selected fusor
// (optionally tile-parallel) and writes the predicted image.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/osio"
	"github.com/airbusgeo/osio/gcs"
	shellwords "github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
	"go.airbusds-geo.com/log"

	"github.com/airbusgeo/imagefusion"
	"github.com/airbusgeo/imagefusion/estarfm"
	"github.com/airbusgeo/imagefusion/fitfc"
)

var (
	verbose   bool
	useGCS    bool
	blocksize string
	startTime time.Time

	outFile  string
	copts    string
	window   int
	classes  int
	localTol bool
	smooth   bool
	threads  int
	maskFile string
	predArea []int
)

var rootCmd = &cobra.Command{
	Use:   "fuse",
	Short: "spatiotemporal image fusion cli",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		startTime = time.Now()
		if !verbose {
			os.Setenv("LOGLEVEL", "info")
			log.Structured()
		}
		godal.RegisterAll()
		if useGCS {
			ctx := cmd.Context()
			stcl, err := storage.NewClient(ctx)
			if err != nil {
				return fmt.Errorf("storage.newclient: %w", err)
			}
			gcsh, err := gcs.Handle(ctx, gcs.GCSClient(stcl))
			if err != nil {
				return fmt.Errorf("gcs.handle: %w", err)
			}
			gcsa, err := osio.NewAdapter(gcsh, osio.BlockSize(blocksize))
			if err != nil {
				return fmt.Errorf("osio.new: %w", err)
			}
			if err := godal.RegisterVSIHandler("gs://", gcsa); err != nil {
				return fmt.Errorf("register osio: %w", err)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		log.Logger(cmd.Context()).Sugar().Debugf("command %s took %.1fs",
			cmd.Name(), time.Since(startTime).Seconds())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&useGCS, "gs", false, "enable gs:// inputs")
	rootCmd.PersistentFlags().StringVar(&blocksize, "blocksize", "512k", "gs cache blocksize")
	rootCmd.AddCommand(estarfmCmd, fitfcCmd, infoCmd)

	for _, cmd := range []*cobra.Command{estarfmCmd, fitfcCmd} {
		cmd.Flags().StringVarP(&outFile, "output", "o", "out.tif", "destination file")
		cmd.Flags().StringVar(&copts, "co", "", "driver creation options, e.g. \"TILED=YES COMPRESS=LZW\"")
		cmd.Flags().IntVar(&window, "window", 0, "moving window size (odd)")
		cmd.Flags().IntVar(&threads, "threads", runtime.NumCPU(), "prediction stripes run in parallel")
		cmd.Flags().StringVar(&maskFile, "mask", "", "uint8 validity mask raster")
		cmd.Flags().IntSliceVar(&predArea, "area", nil, "prediction area x,y,width,height")
	}
	estarfmCmd.Flags().IntVar(&classes, "classes", 40, "assumed number of land cover classes")
	estarfmCmd.Flags().BoolVar(&localTol, "local-tolerance", false, "per-window similarity tolerances")
	estarfmCmd.Flags().BoolVar(&smooth, "smooth", false, "smooth regression slope gating")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var estarfmCmd = &cobra.Command{
	Use:   "estarfm high1.tif high3.tif low1.tif low2.tif low3.tif",
	Short: "predict with ESTARFM (two reference dates)",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := imagefusion.NewSrcImages()
		var ref imagefusion.GeoRef
		keys := []struct {
			tag  string
			date int
		}{
			{"high", 1}, {"high", 3}, {"low", 1}, {"low", 2}, {"low", 3},
		}
		for i, path := range args {
			im, r, err := imagefusion.ReadFile(path)
			if err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
			if i == 0 {
				ref = r
			}
			src.Set(keys[i].tag, keys[i].date, im)
		}

		opts := estarfm.NewOptions()
		opts.Date1, opts.Date3 = 1, 3
		if window > 0 {
			opts.WinSize = window
		}
		opts.NumberClasses = classes
		opts.LocalTolerance = localTol
		opts.SmoothRegression = smooth
		if err := applyArea(&opts.Options); err != nil {
			return err
		}

		out, err := runFusor(cmd, estarfm.New(), opts, &opts.Options, src, 2)
		if err != nil {
			return err
		}
		return writeOutput(out, ref)
	},
}

var fitfcCmd = &cobra.Command{
	Use:   "fitfc high1.tif low1.tif low2.tif",
	Short: "predict with Fit-FC (one reference date)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := imagefusion.NewSrcImages()
		var ref imagefusion.GeoRef
		keys := []struct {
			tag  string
			date int
		}{
			{"high", 1}, {"low", 1}, {"low", 2},
		}
		for i, path := range args {
			im, r, err := imagefusion.ReadFile(path)
			if err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
			if i == 0 {
				ref = r
			}
			src.Set(keys[i].tag, keys[i].date, im)
		}

		opts := fitfc.NewOptions()
		opts.Date1 = 1
		if window > 0 {
			opts.WinSize = window
		}
		if err := applyArea(&opts.Options); err != nil {
			return err
		}

		out, err := runFusor(cmd, fitfc.New(), opts, &opts.Options, src, 2)
		if err != nil {
			return err
		}
		return writeOutput(out, ref)
	},
}

var infoCmd = &cobra.Command{
	Use:   "info raster",
	Short: "print raster size, type and georeferencing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		im, ref, err := imagefusion.ReadFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %dx%d %s\n", args[0], im.Width(), im.Height(), im.Type())
		if ref.Valid() {
			fmt.Printf("geotransform: %v\n", ref.GeoTransform)
		}
		if ref.Projection != "" {
			fmt.Printf("projection: %s\n", ref.Projection)
		}
		return nil
	},
}

func applyArea(o *imagefusion.Options) error {
	if len(predArea) == 0 {
		return nil
	}
	if len(predArea) != 4 {
		return fmt.Errorf("--area needs x,y,width,height")
	}
	o.SetPredictionArea(imagefusion.Rect{
		X: predArea[0], Y: predArea[1], Width: predArea[2], Height: predArea[3],
	})
	return nil
}

// runFusor loads the optional mask, wraps the fusor in the stripe
// parallelizer when more than one thread is requested, and predicts.
func runFusor(cmd *cobra.Command, f imagefusion.Fusor, algOpts imagefusion.AlgOptions,
	base *imagefusion.Options, src *imagefusion.SrcImages, date int) (*imagefusion.Image, error) {

	var mask *imagefusion.ConstImage
	if maskFile != "" {
		m, _, err := imagefusion.ReadFile(maskFile)
		if err != nil {
			return nil, fmt.Errorf("load mask %s: %w", maskFile, err)
		}
		mask = m.Const()
	}

	var top imagefusion.Fusor = f
	if threads > 1 {
		par := imagefusion.NewParallel(f)
		popts := &imagefusion.ParallelOptions{Threads: threads, AlgOpts: algOpts}
		popts.SetPredictionArea(base.PredictionArea())
		top = par
		if err := par.SetOptions(popts); err != nil {
			return nil, err
		}
	} else {
		if err := top.SetOptions(algOpts); err != nil {
			return nil, err
		}
	}
	top.SetSrcImages(src)

	log.Logger(cmd.Context()).Sugar().Infof("predicting with %d thread(s)", threads)
	if err := top.Predict(date, mask, nil); err != nil {
		return nil, err
	}
	return top.Output(), nil
}

func writeOutput(out *imagefusion.Image, ref imagefusion.GeoRef) error {
	var wopts []imagefusion.WriteOption
	if copts != "" {
		parsed, err := shellwords.Parse(copts)
		if err != nil {
			return fmt.Errorf("invalid creation options: %w", err)
		}
		wopts = append(wopts, imagefusion.CreationOptions(parsed...))
	}
	if err := out.Write(outFile, ref, wopts...); err != nil {
		return fmt.Errorf("write %s: %w", outFile, err)
	}
	return nil
}
