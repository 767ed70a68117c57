package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/idx-hub/idx-hub/internal/config"
	"github.com/idx-hub/idx-hub/internal/fetch"
	"github.com/idx-hub/idx-hub/internal/logging"
	"github.com/idx-hub/idx-hub/internal/pipeline"
	"github.com/idx-hub/idx-hub/internal/preview"
	"github.com/idx-hub/idx-hub/internal/registry"
	"github.com/idx-hub/idx-hub/internal/server"
	"github.com/idx-hub/idx-hub/internal/version"
	"github.com/idx-hub/idx-hub/internal/weights"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath     string
	configExplicit bool
	checkOnly      bool
	showVersion    bool
	dataset        string
	split          string
	verify         bool
	repair         bool
	pngPath        string
	weightsPath    string
	serve          bool
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

// run 根据解析到的 CLI 选项执行 获取 → 解码 → 分批 流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := loadConfig(opts)
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
		fields["datasets"] = registry.Keys()
		fields["base_dir"] = cfg.Global.BaseDir
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fetcher := newFetcher(cfg, logger)
	if opts.serve {
		if err := startHTTPServer(cfg, fetcher, logger); err != nil {
			fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
			return 1
		}
		return 0
	}

	family, err := cfg.Family(opts.dataset)
	if err != nil {
		fmt.Fprintf(stdErr, "%v\n", err)
		return 1
	}
	loader, err := newLoader(cfg, family, fetcher, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["dataset"] = family.Key
	fields["split"] = opts.split
	fields["cache_dir"] = loader.Store().Dir()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if opts.verify {
		return runVerify(ctx, fetcher, loader, opts.repair)
	}

	batches, err := loader.Load(ctx, opts.split)
	if err != nil {
		logger.WithError(err).WithField("action", "load").Error("数据集加载失败")
		fmt.Fprintf(stdErr, "数据集加载失败: %v\n", err)
		return 1
	}
	features := 0
	if len(batches) > 0 {
		_, features = batches[0].Features.Dims()
	}
	fmt.Fprintf(stdOut, "dataset=%s split=%s batches=%d batch_size=%d features=%d\n",
		family.Key, opts.split, len(batches), cfg.Global.BatchSize, features)

	if opts.weightsPath != "" {
		params, err := weights.LoadFile(opts.weightsPath)
		if err != nil {
			fmt.Fprintf(stdErr, "加载模型参数失败: %v\n", err)
			return 1
		}
		if params.InputSize() != features {
			fmt.Fprintf(stdErr, "模型输入维度 %d 与特征维度 %d 不一致\n", params.InputSize(), features)
			return 1
		}
		logger.WithFields(logrus.Fields{
			"action":     "weights",
			"path":       opts.weightsPath,
			"input_size": params.InputSize(),
		}).Info("模型参数已加载")
	}

	if opts.pngPath != "" {
		if err := exportPreview(ctx, loader, opts.split, opts.pngPath); err != nil {
			fmt.Fprintf(stdErr, "导出 PNG 失败: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdOut, "saved record 0 to %s\n", opts.pngPath)
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("idx-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts cliOptions
	var configFlag string
	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 IDX_HUB_CONFIG 覆盖）")
	fs.BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&opts.showVersion, "version", false, "显示版本信息")
	fs.StringVar(&opts.dataset, "dataset", registry.MNISTKey, "数据集名称")
	fs.StringVar(&opts.split, "split", "train", "数据划分（train/test）")
	fs.BoolVar(&opts.verify, "verify", false, "重新校验缓存文件摘要后退出")
	fs.BoolVar(&opts.repair, "repair", false, "与 -verify 一起使用，删除校验失败的文件")
	fs.StringVar(&opts.pngPath, "png", "", "将第一条记录导出为 PNG")
	fs.StringVar(&opts.weightsPath, "weights", "", "加载模型参数文件并校验输入维度")
	fs.BoolVar(&opts.serve, "serve", false, "启动诊断 HTTP 服务")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}
	if opts.repair && !opts.verify {
		return cliOptions{}, errors.New("-repair 需要与 -verify 一起使用")
	}

	path := os.Getenv("IDX_HUB_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	opts.configExplicit = path != ""
	if path == "" {
		path = "config.toml"
	}
	opts.configPath = path
	return opts, nil
}

// loadConfig 在未显式指定且默认文件不存在时退回内置默认配置。
func loadConfig(opts cliOptions) (*config.Config, error) {
	if !opts.configExplicit {
		if _, err := os.Stat(opts.configPath); errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
	}
	return config.Load(opts.configPath)
}

func newFetcher(cfg *config.Config, logger *logrus.Logger) *fetch.Orchestrator {
	var progress io.Writer
	if cfg.Global.ShowProgress {
		progress = stdErr
	}
	return fetch.New(fetch.Options{
		Client:        fetch.NewClient(cfg.Global.DownloadTimeout.DurationValue()),
		Logger:        logger,
		MaxConcurrent: cfg.Global.MaxConcurrentDownloads,
		Progress:      progress,
	})
}

func newLoader(cfg *config.Config, family registry.Family, fetcher *fetch.Orchestrator, logger *logrus.Logger) (*pipeline.Loader, error) {
	return pipeline.NewLoader(family, cfg.Global.BaseDir, fetcher, logger, pipeline.Options{
		BatchSize:   cfg.Global.BatchSize,
		Normalize:   cfg.Global.Normalize,
		KeepDecoded: cfg.Global.KeepDecoded,
	})
}

func runVerify(ctx context.Context, fetcher *fetch.Orchestrator, loader *pipeline.Loader, repair bool) int {
	report, err := fetcher.Verify(ctx, loader.Store(), loader.Family().Files, repair)
	if err != nil {
		fmt.Fprintf(stdErr, "校验失败: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdOut, "verified=%d corrupt=%d missing=%d unverifiable=%d removed=%d\n",
		len(report.Verified), len(report.Corrupt), len(report.Missing), len(report.Unverifiable), len(report.Removed))
	if !report.OK() {
		return 1
	}
	return 0
}

func exportPreview(ctx context.Context, loader *pipeline.Loader, split, path string) error {
	images, _, err := loader.Decode(ctx, split)
	if err != nil {
		return err
	}
	features, err := images.Record(0, false)
	if err != nil {
		return err
	}
	return preview.SavePNG(path, features, images.Rows(), images.Cols(), false)
}

func startHTTPServer(cfg *config.Config, fetcher *fetch.Orchestrator, logger *logrus.Logger) error {
	families := cfg.Families()
	loaders := make([]*pipeline.Loader, 0, len(families))
	for _, family := range families {
		loader, err := newLoader(cfg, family, fetcher, logger)
		if err != nil {
			return err
		}
		loaders = append(loaders, loader)
	}

	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Loaders:    loaders,
		Fetcher:    fetcher,
		ListenPort: port,
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"action":   "listen",
		"port":     port,
		"datasets": len(loaders),
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
