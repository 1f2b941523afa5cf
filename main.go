package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/audio-hub/audio-hub/internal/config"
	"github.com/audio-hub/audio-hub/internal/delivery"
	"github.com/audio-hub/audio-hub/internal/links"
	"github.com/audio-hub/audio-hub/internal/logging"
	"github.com/audio-hub/audio-hub/internal/origin"
	"github.com/audio-hub/audio-hub/internal/pathing"
	"github.com/audio-hub/audio-hub/internal/server"
	"github.com/audio-hub/audio-hub/internal/storage"
	"github.com/audio-hub/audio-hub/internal/tags"
	"github.com/audio-hub/audio-hub/internal/transcode"
	"github.com/audio-hub/audio-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["driver"] = cfg.Storage.Driver
		fields["bitrates"] = cfg.Encoder.Bitrates
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	coordinator, local, publisher, err := buildPipeline(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存管线失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["driver"] = cfg.Storage.Driver
	fields["listen_port"] = cfg.Global.ListenPort
	fields["bitrates"] = cfg.Encoder.Bitrates
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, logger, coordinator, local, publisher); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildPipeline 按 配置 → 存储后端 → 回源/转码 → 编排器 的顺序组装依赖，
// 保证所有请求共享同一份后端与缓存实例。
func buildPipeline(cfg *config.Config, logger *logrus.Logger) (*delivery.Coordinator, *storage.Local, *links.Publisher, error) {
	resolver, err := pathing.NewResolver(cfg.Storage.HashAlgo)
	if err != nil {
		return nil, nil, nil, err
	}

	local, err := storage.NewLocal(cfg.Storage.StoragePath)
	if err != nil {
		return nil, nil, nil, err
	}

	var backend storage.Backend = local
	if cfg.Storage.Driver == config.DriverS3 {
		backend, err = storage.NewS3(context.Background(), cfg.S3)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	var publisher *links.Publisher
	if cfg.Storage.Driver == config.DriverLocal {
		publisher, err = links.NewPublisher(cfg.Storage.LinksPath)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	fetcher := origin.NewFetcher(cfg.Fetch, logger)
	transcoder := transcode.New(cfg.Encoder, backend, local, transcode.NewExecRunner(cfg.Encoder.BinaryPath), logger)

	coordinator := delivery.NewCoordinator(delivery.Options{
		Config:     cfg,
		Resolver:   resolver,
		Backend:    backend,
		Local:      local,
		Origin:     origin.NewHTTPResolver(cfg.Origin.BaseURL, nil),
		Fetcher:    fetcher,
		Transcoder: transcoder,
		Tagger:     tags.NewID3Writer(),
		Publisher:  publisher,
		Logger:     logger,
	})

	return coordinator, local, publisher, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("audio-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 AUDIO_HUB_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("AUDIO_HUB_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, logger *logrus.Logger, coordinator *delivery.Coordinator, local *storage.Local, publisher *links.Publisher) error {
	app, err := server.NewApp(server.AppOptions{
		Logger:      logger,
		Coordinator: coordinator,
		Local:       local,
		Publisher:   publisher,
		ListenPort:  cfg.Global.ListenPort,
	})
	if err != nil {
		return err
	}

	return app.Listen(fmt.Sprintf(":%d", cfg.Global.ListenPort))
}
