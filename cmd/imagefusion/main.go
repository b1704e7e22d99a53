package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"imagefusion/pkg/config"
	"imagefusion/pkg/fitfc"
	"imagefusion/pkg/fusion"
	"imagefusion/pkg/imageio"
	"imagefusion/pkg/multires"
	"imagefusion/pkg/parallel"
	"imagefusion/pkg/raster"
	"imagefusion/pkg/starfm"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "fusion.yaml", "Fusion job configuration file")
	algorithm := flag.String("algorithm", "", "Override algorithm: starfm or fitfc")
	threads := flag.Int("threads", 0, "Override number of worker threads")
	output := flag.String("output", "", "Override output filename pattern (%d receives the target date)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Apply command line overrides
	if *algorithm != "" {
		cfg.Algorithm = *algorithm
	}
	if *threads > 0 {
		cfg.Threads = *threads
	}
	if *output != "" {
		cfg.Output = *output
	}

	// Validate inputs
	if len(cfg.Inputs) == 0 {
		fmt.Fprintln(os.Stderr, "No input images configured")
		flag.Usage()
		os.Exit(1)
	}
	if len(cfg.TargetDates) == 0 {
		fmt.Fprintln(os.Stderr, "No target dates configured")
		flag.Usage()
		os.Exit(1)
	}

	factory, err := fusorFactory(cfg.Algorithm)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Println("================================")
	fmt.Println("SPATIOTEMPORAL IMAGE FUSION")
	fmt.Printf("Algorithm: %s, threads: %d\n", strings.ToLower(cfg.Algorithm), cfg.Threads)
	fmt.Println("================================")

	// Load the source images into the store
	src := multires.NewStore()
	var full raster.Rect
	for _, in := range cfg.Inputs {
		img, err := imageio.Load(in.Path)
		if err != nil {
			log.Fatalf("Failed to load %s: %v", in.Path, err)
		}
		src.Set(in.Tag, in.Date, img)
		full = img.Bounds()
		fmt.Printf("Loaded %s as %s @ %d (%s)\n", in.Path, in.Tag, in.Date, img.Bounds())
	}

	fopts := cfg.FusionOptions()
	area := fopts.PredictArea
	if area.Empty() {
		area = full
	}
	fopts.PredictArea = raster.Rect{}

	driver := parallel.New(factory)
	driver.SetSrcImages(src)

	popts := parallel.Options{
		Threads:     cfg.Threads,
		Fusor:       fopts,
		PredictArea: area,
	}
	if err := driver.Configure(popts); err != nil {
		log.Fatalf("Failed to configure fusion driver: %v", err)
	}

	for _, date := range cfg.TargetDates {
		fmt.Printf("\nPredicting date %d...\n", date)
		startTime := time.Now()
		if err := driver.Predict(date, nil); err != nil {
			log.Fatalf("Prediction for date %d failed: %v", date, err)
		}
		fmt.Printf("Prediction completed in %.2f seconds\n", time.Since(startTime).Seconds())

		outPath := cfg.Output
		if strings.Contains(outPath, "%d") {
			outPath = fmt.Sprintf(cfg.Output, date)
		}
		if err := imageio.Save(outPath, driver.OutputImage()); err != nil {
			log.Fatalf("Failed to save %s: %v", outPath, err)
		}
		fmt.Printf("Output saved to: %s\n", outPath)
	}
}

// fusorFactory maps an algorithm name to a constructor for the driver.
func fusorFactory(name string) (func() fusion.DataFusor, error) {
	switch strings.ToLower(name) {
	case "starfm":
		return func() fusion.DataFusor { return starfm.New() }, nil
	case "fitfc":
		return func() fusion.DataFusor { return fitfc.New() }, nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q (want starfm or fitfc)", name)
	}
}
