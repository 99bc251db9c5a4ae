package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.fiblab.net/general/common/v2/cache"
	"git.fiblab.net/general/common/v2/mongoutil"
	"git.fiblab.net/sim/epidemic/config"
	"git.fiblab.net/sim/epidemic/infection"
	"git.fiblab.net/sim/epidemic/mapdata"
	"git.fiblab.net/sim/epidemic/report"
	"git.fiblab.net/sim/epidemic/router"
	"git.fiblab.net/sim/epidemic/simulation"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

var (
	// 配置信息
	configPath     = flag.String("config", "config.yml", "simulation config file")
	cacheDir       = flag.String("cache", "", "input cache dir path (empty means disable cache)")
	mongoURI       = flag.String("mongo_uri", "", "mongo db uri, used by {db}.{col} map paths and the mongo report")
	statusEndpoint = flag.String("listen", "localhost:52101", "status server listening address (empty means disable)")
	logLevel       = flag.String("log-level", "info", "log level [debug, info, warn, error, fatal, panic]")
	steps          = flag.Int64("steps", -1, "number of steps to simulate (negative means until interrupted)")

	// 性能测试
	benchmark = flag.Bool("benchmark", false, "benchmark mode")
	pprofAddr = flag.String("pprof", "localhost:52102", "pprof listening address")

	LOG_LEVELS = map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}
)

// lazyMongo connects on first use only, file based runs never dial.
type lazyMongo struct {
	uri    string
	client *mongo.Client
}

func (l *lazyMongo) get() *mongo.Client {
	if l.client == nil {
		l.client = mongoutil.NewClient(l.uri)
	}
	return l.client
}

func (l *lazyMongo) close() {
	if l.client != nil {
		l.client.Disconnect(context.Background())
	}
}

func loadCity(ctx context.Context, cfg *config.Config, db *lazyMongo, cacheDir string) (*mapdata.City, error) {
	mapPath, err := NewPath(cfg.MapPath)
	if err != nil {
		return nil, fmt.Errorf("invalid map path: %w", err)
	}
	if mapPath == nil {
		return nil, errors.New("map path is empty")
	}
	var raw *mapdata.Raw
	switch cfg.MapFormat {
	case config.MAP_FORMAT_RAW, "":
		if mapPath.IsFile() {
			raw, err = mapdata.LoadFile(mapPath.File)
		} else {
			raw, err = mapdata.LoadFromMongo(ctx, mongoutil.GetMongoColl(db.get(), mapPath))
		}
	case config.MAP_FORMAT_PB:
		raw, err = loadMapPb(ctx, mapPath, db, cacheDir)
	default:
		return nil, fmt.Errorf("unknown map format %q", cfg.MapFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("load map from %s: %w", mapPath, err)
	}
	opts := mapdata.BuildOptions{Rows: cfg.GridHeight, Cols: cfg.GridWidth}
	if cfg.BuildingConfigPath != "" {
		if opts.Retag, err = config.LoadBuildingQuotas(cfg.BuildingConfigPath); err != nil {
			return nil, err
		}
	}
	return mapdata.Build(raw, opts)
}

// loadMapPb reads a city map pb through the input cache. Files are read in
// place, collections are downloaded once and saved under cacheDir.
func loadMapPb(ctx context.Context, mapPath *Path, db *lazyMongo, cacheDir string) (raw *mapdata.Raw, err error) {
	// panic recover
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: map download: %v", r)
		}
	}()
	pb, err := cache.LoadWithCache(cacheDir, mapPath, func() *mapv2.Map {
		if mapPath.IsFile() {
			panic(fmt.Errorf("map file %s cannot be read", mapPath.File))
		}
		m, err := mapdata.LoadMapPbFromMongo(ctx, mongoutil.GetMongoColl(db.get(), mapPath))
		if err != nil {
			panic(err)
		}
		return m
	})
	if err != nil {
		return nil, err
	}
	return mapdata.FromMapPb(pb)
}

// newModel picks the proximity policy when a contact radius is configured.
func newModel(cfg *config.Config) (infection.Model, error) {
	// 与人口生成使用不同的随机数流
	rng := rand.New(rand.NewSource(cfg.Seed + 1))
	if cfg.ContactRadius > 0 {
		return infection.NewProximity(cfg.InfectionParams(), cfg.ContactRadius, rng)
	}
	return infection.NewContact(cfg.InfectionParams(), infection.Granularity(cfg.ContactGranularity), rng)
}

// newSink combines the configured report backends. nil means in-memory only.
func newSink(ctx context.Context, cfg *config.Config, runID string, db *lazyMongo) (report.Sink, error) {
	sinks := make(report.MultiSink, 0)
	if cfg.Report.Mongo != "" {
		p, err := NewPath(cfg.Report.Mongo)
		if err != nil || p == nil || p.IsFile() {
			return nil, fmt.Errorf("invalid mongo report path %q: %v", cfg.Report.Mongo, err)
		}
		sinks = append(sinks, report.NewMongoSink(db.get().Database(p.GetDb()), p.GetColl(), runID))
	}
	if cfg.Report.S3Bucket != "" {
		s, err := report.NewS3SinkFromEnv(ctx, cfg.Report.S3Region, cfg.Report.S3Bucket, cfg.Report.S3Prefix, runID)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

func main() {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	flag.Parse()
	if level, ok := LOG_LEVELS[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		logrus.Fatalf("invalid log level: %s", *logLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	db := &lazyMongo{uri: *mongoURI}
	defer db.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	city, err := loadCity(ctx, cfg, db, *cacheDir)
	if err != nil {
		log.Fatalf("failed to build city: %v", err)
	}
	net := router.New(city)
	defer net.Close()

	if *pprofAddr != "" {
		// 启动pprof
		debug := startHTTPDebugger(*pprofAddr)
		defer debug.Close()
	}

	if *benchmark {
		// 性能测试
		runBenchmark(net)
		return
	}

	classes, err := config.LoadJobClasses(cfg.JobsFile)
	if err != nil {
		log.Fatalf("failed to load job classes: %v", err)
	}
	model, err := newModel(cfg)
	if err != nil {
		log.Fatalf("failed to create infection model: %v", err)
	}
	runID := report.NewRunID()
	sink, err := newSink(ctx, cfg, runID, db)
	if err != nil {
		log.Fatalf("failed to create report sink: %v", err)
	}
	simCfg := cfg.Simulation()
	simCfg.RunID = runID
	kernel, err := simulation.New(simCfg, city, net, classes, model, sink)
	if err != nil {
		log.Fatalf("failed to create simulation: %v", err)
	}

	status := NewStatusServer(kernel)
	var s *http.Server
	if *statusEndpoint != "" {
		// 使用HTTP/2 w.o. TLS
		s = &http.Server{
			Addr:    *statusEndpoint,
			Handler: h2c.NewHandler(status.Handler(), &http2.Server{}),
		}
		go func() {
			log.Infof("status server listening at %v", s.Addr)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("failed to serve: %v", err)
			}
		}()
	}

	// 优雅退出
	// 创建监听退出chan
	signalCh := make(chan os.Signal, 1)
	//监听指定信号 ctrl+c kill
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Info("stopping...")
		cancel()
		<-signalCh
		os.Exit(1) // 强制结束
	}()

	err = kernel.Run(ctx, *steps, status.Wait)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("simulation stopped: %v", err)
	}
	// 写出剩余的报告
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()
	if err := kernel.Close(closeCtx); err != nil {
		log.Errorf("failed to flush reports: %v", err)
	}
	if s != nil {
		s.Close()
	}
	stats := kernel.Stats()
	log.Infof("run %s closes at %+v: %d infections, %d unreachable routes, %d stale routes",
		kernel.RunID, kernel.Now(), stats.Infections, stats.Unreachable, stats.StaleRoutes)
}
