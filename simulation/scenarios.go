package simulation

// Named, deterministic scenarios used to validate the fairness schemes'
// end-to-end behavior against a mock server, independent of the
// per-function unit tests in core. Each returns a ready-to-run Config;
// cmd/simulate selects one by name.

// ScenarioS1BFFTConvergesOnConstrainedServer: a single client offers
// 1000 TPS against a 10 TPS server for 100s through a
// BloomFilterFairThrottle. The AIMD control loop should converge close
// to the server's true capacity well before the run ends.
func ScenarioS1BFFTConvergesOnConstrainedServer() Config {
	return Config{
		ClientRequestTps: []float64{1000},
		ServerGoodput:    []TimeStep{{StartNs: 0, Value: 10}},
		Buckets:          10,
		UseBloomFilter:   true,
		RunUntilNs:       100 * 1e9,
		MetricsEveryNs:   1 * 1e9,
	}
}

// ScenarioS2SFTSameWorkload is S1's workload run through a
// StochasticFairThrottle instead, to compare the two schemes'
// convergence behavior under identical client/server conditions.
func ScenarioS2SFTSameWorkload() Config {
	return Config{
		ClientRequestTps: []float64{1000},
		ServerGoodput:    []TimeStep{{StartNs: 0, Value: 10}},
		Buckets:          10,
		UseBloomFilter:   false,
		RunUntilNs:       100 * 1e9,
		MetricsEveryNs:   1 * 1e9,
	}
}

// ScenarioS3SFTHitsFloor is S2 with an unusually low floor_tps (0.1),
// demonstrating that the floor caps how far OnFailure can push the
// target down even under sustained overload.
func ScenarioS3SFTHitsFloor() Config {
	cfg := ScenarioS2SFTSameWorkload()
	cfg.FloorTps = 0.1
	return cfg
}

// ScenarioS4SFTHitsCeiling: a single client at 500 TPS for 10s against a
// 10000 TPS server, demonstrating the AIMD ceiling and how fast additive
// increase climbs when the server is never actually constrained.
func ScenarioS4SFTHitsCeiling() Config {
	return Config{
		ClientRequestTps: []float64{500},
		ServerGoodput:    []TimeStep{{StartNs: 0, Value: 10000}},
		Buckets:          10,
		FloorTps:         0.1,
		CeilingTps:       1000,
		UseBloomFilter:   false,
		RunUntilNs:       10 * 1e9,
		MetricsEveryNs:   1 * 1e9,
	}
}

// ScenarioS5BFFTStepGoodput: 4 clients each offering 150 TPS against a
// server whose goodput steps 200 -> 30 (at 500s) -> 200 (at 1000s), 17
// buckets, run for 1800s. The aggregate admitted rate should track the
// server's goodput step within the AIMD's decay/growth timeframe, and no
// client should be starved indefinitely.
func ScenarioS5BFFTStepGoodput() Config {
	return Config{
		ClientRequestTps: []float64{150, 150, 150, 150},
		ServerGoodput: []TimeStep{
			{StartNs: 0, Value: 200},
			{StartNs: 500 * 1e9, Value: 30},
			{StartNs: 1000 * 1e9, Value: 200},
		},
		Buckets:        17,
		UseBloomFilter: true,
		RunUntilNs:     1800 * 1e9,
		MetricsEveryNs: 1 * 1e9,
	}
}

// ScenarioS6BFFTDegeneratesWithOneBucket is S5 with buckets=1 (so
// probes=1): every client shares a single bucket, which should produce
// visibly worse fairness than S5 — confirming that BFFT's fairness
// depends on having more than one bucket.
func ScenarioS6BFFTDegeneratesWithOneBucket() Config {
	cfg := ScenarioS5BFFTStepGoodput()
	cfg.Buckets = 1
	return cfg
}
