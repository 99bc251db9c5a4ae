package main

import (
	"flag"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"git.fiblab.net/sim/epidemic/mapdata"
	"git.fiblab.net/sim/epidemic/router"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var (
	benchmarkCount = flag.Int("benchmark.count", 1000, "the random routing count for benchmark")
	benchmarkSeed  = flag.Int64("benchmark.seed", 0, "the seed for benchmark")
	benchmarkCPU   = flag.Int("benchmark.cpu", 1, "the cpu count for benchmark")
)

type benchmarkResult struct {
	Count    int
	Success  int32
	Duration time.Duration
}

// benchmarkRoutes plans count routes between random road nodes.
func benchmarkRoutes(net *router.Network, count int, seed int64, cpu int) benchmarkResult {
	// 只在有边的路口之间规划
	nodes := lo.Filter(net.City().Nodes, func(n *mapdata.Node, _ int) bool {
		return len(n.Edges) > 0
	})
	if len(nodes) == 0 || count <= 0 {
		return benchmarkResult{}
	}
	// 设置随机种子
	e := rand.New(rand.NewSource(seed))
	type request struct{ from, to *mapdata.Node }
	reqs := make([]request, count)
	for i := range reqs {
		reqs[i] = request{nodes[e.Intn(len(nodes))], nodes[e.Intn(len(nodes))]}
	}

	var success atomic.Int32
	route := func(req request) {
		if _, err := net.ShortestPath(req.from, req.to); err != nil {
			log.Debugf("benchmark route %d->%d failed: %v", req.from.ID, req.to.ID, err)
			return
		}
		success.Add(1)
	}
	// 开始benchmark
	start := time.Now()
	if cpu <= 1 {
		for _, req := range reqs {
			route(req)
		}
	} else {
		// 设置cpu数量
		prev := runtime.GOMAXPROCS(cpu)
		defer runtime.GOMAXPROCS(prev)
		var wg sync.WaitGroup
		wg.Add(len(reqs))
		for _, req := range reqs {
			go func(req request) {
				defer wg.Done()
				route(req)
			}(req)
		}
		wg.Wait()
	}
	return benchmarkResult{Count: count, Success: success.Load(), Duration: time.Since(start)}
}

func runBenchmark(net *router.Network) {
	log.Logger.SetLevel(logrus.WarnLevel)
	res := benchmarkRoutes(net, *benchmarkCount, *benchmarkSeed, *benchmarkCPU)
	if res.Count == 0 {
		log.Error("benchmark skipped: no routable node")
		return
	}
	timeCost := res.Duration * time.Duration(lo.Max([]int{*benchmarkCPU, 1}))
	log.Error(
		"benchmark finished", "\n",
		"count:", res.Count, "\n",
		"time:", timeCost, "\n",
		"avg:", timeCost/time.Duration(res.Count), "\n",
		"success:", res.Success, "\n",
	)
}
