package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"git.fiblab.net/general/common/v2/protoutil"
	"git.fiblab.net/sim/epidemic/agent"
	"git.fiblab.net/sim/epidemic/config"
	"git.fiblab.net/sim/epidemic/infection"
	"git.fiblab.net/sim/epidemic/mapdata/maptest"
	"git.fiblab.net/sim/epidemic/report"
	"git.fiblab.net/sim/epidemic/router"
	"git.fiblab.net/sim/epidemic/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "map.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o644))

	p, err := NewPath(file)
	require.NoError(t, err)
	assert.True(t, p.IsFile())
	assert.Equal(t, file, p.String())

	p, err = NewPath("srt.map_beijing")
	require.NoError(t, err)
	assert.False(t, p.IsFile())
	assert.Equal(t, "srt", p.GetDb())
	assert.Equal(t, "map_beijing", p.GetColl())
	assert.Equal(t, "srt.map_beijing", p.String())

	p, err = NewPath("  ")
	assert.NoError(t, err)
	assert.Nil(t, p)

	for _, bad := range []string{"nodot", "a.b.c", "db.", ".coll"} {
		_, err = NewPath(bad)
		assert.Error(t, err, bad)
	}
}

func newTestKernel(t *testing.T) *simulation.Kernel {
	city, err := maptest.City(maptest.Blocks(4, "house", "office"), 2)
	require.NoError(t, err)
	cfg := simulation.DefaultConfig()
	cfg.AgentNum = 12
	cfg.ThreadNumber = 2
	cfg.StepLength = 60
	cfg.HomeTypes = []string{"house"}
	cfg.InfectedAgentFraction = 0.25
	model, err := infection.NewContact(infection.Params{Probability: 0.5}, infection.GRANULARITY_NODE, rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	classes := []*agent.JobClass{{
		Name:                 "clerk",
		BuildingType:         "office",
		MinWorkhour:          4,
		MaxWorkhour:          6,
		MinStartHour:         8,
		MaxStartHour:         9,
		MinAge:               20,
		MaxAge:               60,
		Workdays:             0b1111111,
		PopulationProportion: 1,
	}}
	k, err := simulation.New(cfg, city, router.New(city), classes, model, nil)
	require.NoError(t, err)
	return k
}

func getJSON(t *testing.T, url string, status int, v any) {
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, status, res.StatusCode)
	if v != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(v))
	}
}

func TestStatusServer(t *testing.T) {
	k := newTestKernel(t)
	status := NewStatusServer(k)
	ts := httptest.NewServer(status.Handler())
	defer ts.Close()

	require.NoError(t, k.Run(context.Background(), 5, status.Wait))

	var positions struct {
		Now       report.Timestamp      `json:"now"`
		Positions []simulation.Position `json:"positions"`
	}
	getJSON(t, ts.URL+"/positions", http.StatusOK, &positions)
	assert.Len(t, positions.Positions, 12)
	assert.Equal(t, int64(5*60), positions.Now.Step)

	var history []report.Summary
	getJSON(t, ts.URL+"/history", http.StatusOK, &history)
	assert.Len(t, history, 5)
	for _, s := range history {
		assert.Equal(t, 12, s.Total())
	}
	getJSON(t, ts.URL+"/history?from=3", http.StatusOK, &history)
	assert.Len(t, history, 2)
	getJSON(t, ts.URL+"/history?from=100", http.StatusOK, &history)
	assert.Empty(t, history)
	getJSON(t, ts.URL+"/history?from=x", http.StatusBadRequest, nil)

	var summary struct {
		RunID     string           `json:"runId"`
		Latest    report.Summary   `json:"latest"`
		Stats     simulation.Stats `json:"stats"`
		Suspended bool             `json:"suspended"`
	}
	getJSON(t, ts.URL+"/summary", http.StatusOK, &summary)
	assert.Equal(t, k.RunID, summary.RunID)
	assert.Equal(t, 12, summary.Latest.Total())
	assert.Equal(t, 3, summary.Stats.Infections)
	assert.False(t, summary.Suspended)

	res, err := http.Get(ts.URL + "/suspend")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestSuspendResume(t *testing.T) {
	status := NewStatusServer(newTestKernel(t))
	ts := httptest.NewServer(status.Handler())
	defer ts.Close()

	res, err := http.Post(ts.URL+"/suspend", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, status.Suspended())

	// 暂停时Wait阻塞直到超时
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, status.Wait(ctx), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- status.Wait(context.Background()) }()
	res, err = http.Post(ts.URL+"/resume", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after resume")
	}
	assert.False(t, status.Suspended())
}

func TestBenchmarkRoutes(t *testing.T) {
	city, err := maptest.City(maptest.Blocks(4, "house"), 2)
	require.NoError(t, err)
	net := router.New(city)

	res := benchmarkRoutes(net, 40, 7, 1)
	assert.Equal(t, 40, res.Count)
	assert.Equal(t, int32(40), res.Success)

	res = benchmarkRoutes(net, 40, 7, 4)
	assert.Equal(t, int32(40), res.Success)

	raw := maptest.Blocks(4, "house")
	maptest.WithIsland(raw, 4)
	city, err = maptest.City(raw, 2)
	require.NoError(t, err)
	res = benchmarkRoutes(router.New(city), 200, 7, 2)
	assert.Equal(t, 200, res.Count)
	assert.Less(t, res.Success, int32(200))
	assert.Greater(t, res.Success, int32(0))

	assert.Zero(t, benchmarkRoutes(net, 0, 7, 1).Count)
}

func TestNewModel(t *testing.T) {
	cfg := config.Default()
	model, err := newModel(&cfg)
	require.NoError(t, err)
	assert.IsType(t, &infection.Contact{}, model)

	cfg.ContactRadius = 20
	model, err = newModel(&cfg)
	require.NoError(t, err)
	assert.IsType(t, &infection.Proximity{}, model)

	cfg.ContactRadius = 0
	cfg.ContactGranularity = "street"
	_, err = newModel(&cfg)
	assert.ErrorIs(t, err, infection.ErrBadParams)
}

func TestNewSink(t *testing.T) {
	db := &lazyMongo{}
	cfg := config.Default()
	sink, err := newSink(context.Background(), &cfg, "run", db)
	assert.NoError(t, err)
	assert.Nil(t, sink)

	cfg.Report.Mongo = "nodot"
	_, err = newSink(context.Background(), &cfg, "run", db)
	assert.Error(t, err)
	assert.Nil(t, db.client)
}

func TestLoadCity(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "map.json")
	data, err := json.Marshal(maptest.Blocks(3, "house", "office"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, data, 0o644))

	cfg := config.Default()
	cfg.MapPath = file
	cfg.GridHeight, cfg.GridWidth = 2, 2
	db := &lazyMongo{}
	city, err := loadCity(context.Background(), &cfg, db, "")
	require.NoError(t, err)
	assert.Len(t, city.Roads, 6)
	assert.Len(t, city.Buildings, 4)
	assert.Len(t, city.BuildingsByType["house"], 2)
	assert.Nil(t, db.client)

	cfg.MapPath = ""
	_, err = loadCity(context.Background(), &cfg, db, "")
	assert.Error(t, err)
}

func TestLoadCityPb(t *testing.T) {
	file := filepath.Join(t.TempDir(), "map.pb")
	require.NoError(t, protoutil.MarshalToFile(maptest.CityMap(), file))

	cfg := config.Default()
	cfg.MapPath = file
	cfg.MapFormat = config.MAP_FORMAT_PB
	cfg.GridHeight, cfg.GridWidth = 1, 1
	db := &lazyMongo{}
	// a cache dir never shadows a map file
	city, err := loadCity(context.Background(), &cfg, db, t.TempDir())
	require.NoError(t, err)
	assert.Len(t, city.Roads, 4)
	assert.Len(t, city.Buildings, 3)
	assert.Len(t, city.BuildingsByType["residential"], 1)
	assert.Nil(t, db.client)

	cfg.MapFormat = "osm"
	_, err = loadCity(context.Background(), &cfg, db, "")
	assert.ErrorContains(t, err, "unknown map format")
}

func TestLoadMapPbFromCache(t *testing.T) {
	dir := t.TempDir()
	p := &Path{DB: "city", Coll: "beijing"}
	assert.Equal(t, "city.beijing.pb", p.GetCachePath())
	require.NoError(t, protoutil.MarshalToFile(maptest.CityMap(), filepath.Join(dir, p.GetCachePath())))

	db := &lazyMongo{}
	raw, err := loadMapPb(context.Background(), p, db, dir)
	require.NoError(t, err)
	assert.Len(t, raw.Roads, 4)
	// served from the cache without dialing
	assert.Nil(t, db.client)

	file := &Path{File: filepath.Join(dir, "missing.pb")}
	_, err = loadMapPb(context.Background(), file, db, "")
	assert.Error(t, err)
}

func TestDebugHandler(t *testing.T) {
	ts := httptest.NewServer(debugHandler())
	defer ts.Close()

	for _, path := range []string{"/debug/pprof/", "/debug/pprof/cmdline", "/debug/pprof/heap?debug=1", "/debug/pprof/goroutine?debug=1"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err, path)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
	resp, err := http.Get(ts.URL + "/debug/pprof/nosuchprofile")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
