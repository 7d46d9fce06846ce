// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command apspbench times the APSP engines on generated graphs and checks
// every result against the host Floyd–Warshall reference.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/LynnColeArt/apsp"
	"github.com/LynnColeArt/apsp/gpu"
	_ "github.com/LynnColeArt/apsp/gpu/cpu"
	_ "github.com/LynnColeArt/apsp/gpu/wgpu"
)

// Result is one timed engine run.
type Result struct {
	Method     string        `json:"method"`
	Graph      string        `json:"graph"`
	N          int           `json:"n"`
	Dispatches int           `json:"dispatches"`
	Copies     int           `json:"copies"`
	Diameter   int           `json:"diameter"`
	Duration   time.Duration `json:"duration_ns"`
	Match      bool          `json:"match"`
}

func main() {
	klog.InitFlags(nil)
	var (
		backend  = flag.String("backend", "cpu", "Device backend ("+strings.Join(gpu.Backends(), ", ")+")")
		sizes    = flag.String("n", "16,64,100,256", "Comma-separated vertex counts")
		kind     = flag.String("graph", "path", "Graph kind: path, cycle, grid, random")
		density  = flag.Float64("p", 0.05, "Edge probability for random graphs")
		seed     = flag.Uint64("seed", 1, "Seed for random graphs")
		methods  = flag.String("methods", "floyd-warshall,naive,blocked", "Comma-separated engines")
		pingPong = flag.String("pingpong", "copy", "Min-plus round hand-off: copy or swap")
		repeat   = flag.Int("repeat", 3, "Runs per configuration; the fastest is reported")
		output   = flag.String("output", "", "Write results as JSON to this file")
		timeout  = flag.Duration("timeout", 10*time.Minute, "Overall deadline")
	)
	flag.Parse()
	defer klog.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ns, err := parseSizes(*sizes)
	if err != nil {
		klog.Exitf("bad -n: %v", err)
	}
	var ms []apsp.Method
	for _, s := range strings.Split(*methods, ",") {
		m, err := apsp.ParseMethod(strings.TrimSpace(s))
		if err != nil {
			klog.Exitf("bad -methods: %v", err)
		}
		ms = append(ms, m)
	}
	mode := apsp.PingPongCopy
	switch *pingPong {
	case "copy":
	case "swap":
		mode = apsp.PingPongSwap
	default:
		klog.Exitf("bad -pingpong %q", *pingPong)
	}

	dev, err := gpu.Open(ctx, *backend)
	if err != nil {
		klog.Exitf("open %s: %v", *backend, err)
	}
	defer dev.Destroy()

	info := dev.Info()
	fmt.Println("=== APSP Benchmark ===")
	fmt.Printf("Date: %s\n", time.Now().Format(time.RFC3339))
	fmt.Printf("Go Version: %s\n", runtime.Version())
	if v, sum := apsp.Version(); v != "" {
		fmt.Printf("Module Version: %s %s\n", v, sum)
	} else {
		fmt.Println("Module Version: (devel)")
	}
	fmt.Printf("Device: %s (%s), %d workers\n", info.Name, info.Backend, info.Workers)
	if len(info.Features) > 0 {
		fmt.Printf("Features: %s\n", strings.Join(info.Features, " "))
	}
	fmt.Println()
	fmt.Printf("%-16s %-8s %6s %6s %6s %6s %14s %s\n", "method", "graph", "n", "disp", "copies", "diam", "time", "match")

	var results []Result
	failed := false
	for _, n := range ns {
		g := makeGraph(*kind, n, *density, *seed)
		want := apsp.FloydWarshallHost(g)
		for _, m := range ms {
			r, err := bench(ctx, dev, g, m, want, *repeat, apsp.WithPingPong(mode))
			if err != nil {
				klog.Errorf("%v n=%d: %v", m, n, err)
				failed = true
				continue
			}
			r.Graph = *kind
			results = append(results, r)
			fmt.Printf("%-16s %-8s %6d %6d %6d %6d %14v %v\n",
				r.Method, r.Graph, r.N, r.Dispatches, r.Copies, r.Diameter, r.Duration, r.Match)
			failed = failed || !r.Match
		}
	}

	if *output != "" {
		if err := save(*output, results); err != nil {
			klog.Exitf("save results: %v", err)
		}
		fmt.Printf("\nResults saved to %s\n", *output)
	}
	if failed {
		klog.Flush()
		os.Exit(1)
	}
}

func bench(ctx context.Context, dev gpu.Device, g apsp.Graph, m apsp.Method, want *apsp.DistanceMatrix, repeat int, opts ...apsp.Option) (Result, error) {
	r, err := apsp.NewRunner(dev, m, opts...)
	if err != nil {
		return Result{}, err
	}
	defer r.Release()

	res := Result{Method: m.String(), N: g.N, Duration: time.Duration(math.MaxInt64)}
	for i := 0; i < max(repeat, 1); i++ {
		start := time.Now()
		got, stats, err := apsp.SolveWith(ctx, dev, r, g)
		if err != nil {
			return res, err
		}
		res.Duration = min(res.Duration, time.Since(start))
		res.Dispatches = stats.Dispatches
		res.Copies = stats.Copies
		res.Diameter = got.Diameter()
		res.Match = got.Equal(want)
	}
	return res, nil
}

func makeGraph(kind string, n int, p float64, seed uint64) apsp.Graph {
	switch kind {
	case "cycle":
		return apsp.CycleGraph(n)
	case "grid":
		side := int(math.Ceil(math.Sqrt(float64(n))))
		return apsp.GridGraph(side, (n+side-1)/side)
	case "random":
		return apsp.RandomGraph(n, p, seed)
	default:
		return apsp.PathGraph(n)
	}
}

func parseSizes(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		if n < 1 {
			return nil, fmt.Errorf("size %d must be positive", n)
		}
		out = append(out, n)
	}
	return out, nil
}

func save(file string, results []Result) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, data, 0o644)
}
