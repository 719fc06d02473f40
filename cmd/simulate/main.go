package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/arrowlane/fairthrottle/simulation"
)

var scenarios = map[string]func() simulation.Config{
	"s1": simulation.ScenarioS1BFFTConvergesOnConstrainedServer,
	"s2": simulation.ScenarioS2SFTSameWorkload,
	"s3": simulation.ScenarioS3SFTHitsFloor,
	"s4": simulation.ScenarioS4SFTHitsCeiling,
	"s5": simulation.ScenarioS5BFFTStepGoodput,
	"s6": simulation.ScenarioS6BFFTDegeneratesWithOneBucket,
}

func main() {
	name := flag.String("scenario", "s1", "scenario to run: s1..s6")
	outputFile := flag.String("out", "", "output CSV path (default: <scenario>.csv)")
	flag.Parse()

	build, ok := scenarios[*name]
	if !ok {
		log.Fatalf("unknown scenario %q; choose one of s1..s6", *name)
	}

	path := *outputFile
	if path == "" {
		path = *name + ".csv"
	}

	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("failed to create output file: %v", err)
	}
	defer f.Close()

	result, err := simulation.RunSimulation(build(), f)
	if err != nil {
		log.Fatalf("simulation failed: %v", err)
	}

	fmt.Printf("scenario %s complete, wrote %s\n", *name, path)
	fmt.Printf("server: offered=%d successes=%d throttled=%d\n", result.Server.Offered, result.Server.Successes, result.Server.Throttled)
	for name, totals := range result.Clients {
		fmt.Printf("%s: offered=%d successes=%d throttled=%d\n", name, totals.Offered, totals.Successes, totals.Throttled)
	}
}
