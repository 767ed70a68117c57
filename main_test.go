package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("IDX_HUB_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" || !opts.configExplicit {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestParseCLIFlagsDefaults(t *testing.T) {
	t.Setenv("IDX_HUB_CONFIG", "")

	opts, err := parseCLIFlags(nil)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configExplicit || opts.configPath != "config.toml" {
		t.Fatalf("默认配置路径不正确: %+v", opts)
	}
	if opts.dataset != "mnist" || opts.split != "train" {
		t.Fatalf("默认数据集/划分不正确: %s/%s", opts.dataset, opts.split)
	}
}

func TestParseCLIFlagsRepairRequiresVerify(t *testing.T) {
	if _, err := parseCLIFlags([]string{"-repair"}); err == nil {
		t.Fatalf("单独使用 -repair 应返回错误")
	}
	opts, err := parseCLIFlags([]string{"-verify", "-repair"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if !opts.verify || !opts.repair {
		t.Fatalf("verify/repair 应同时开启: %+v", opts)
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), configExplicit: true, checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d: %s", code, stdErrBuffer().String())
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), configExplicit: true, checkOnly: true})
	if code == 0 {
		t.Fatalf("缺失配置应返回非零退出码")
	}

	code = run(cliOptions{configPath: configFixture(t, "invalid.toml"), configExplicit: true, checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "idx-hub") {
		t.Fatalf("version 输出应包含 idx-hub 标识")
	}
}

func TestRunUnknownDataset(t *testing.T) {
	useBufferWriters(t)
	configPath := writeConfigFile(t, fmt.Sprintf(`
LogLevel = "error"
BaseDir = "%s"
`, t.TempDir()))

	code := run(cliOptions{configPath: configPath, configExplicit: true, dataset: "cifar", split: "train"})
	if code == 0 {
		t.Fatalf("未注册数据集应失败")
	}
	if !strings.Contains(stdErrBuffer().String(), "cifar") {
		t.Fatalf("错误输出应包含数据集名称: %s", stdErrBuffer().String())
	}
}

func TestRunVerifyReportsMissingFiles(t *testing.T) {
	useBufferWriters(t)
	configPath := writeConfigFile(t, fmt.Sprintf(`
LogLevel = "error"
BaseDir = "%s"
`, t.TempDir()))

	code := run(cliOptions{configPath: configPath, configExplicit: true, dataset: "mnist", split: "train", verify: true})
	if code != 1 {
		t.Fatalf("空缓存校验应返回 1，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "missing=4") {
		t.Fatalf("应报告 4 个缺失文件: %s", stdOutBuffer().String())
	}
}

func TestRunRejectsTamperedMirror(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("not the published archive"))
	}))
	defer upstream.Close()

	baseDir := t.TempDir()
	configPath := writeConfigFile(t, fmt.Sprintf(`
LogLevel = "error"
BaseDir = "%s"
MaxConcurrentDownloads = 1

[[Dataset]]
Name = "mnist"
Mirror = "%s"
`, baseDir, upstream.URL))

	useBufferWriters(t)
	code := run(cliOptions{configPath: configPath, configExplicit: true, dataset: "mnist", split: "train"})
	if code == 0 {
		t.Fatalf("摘要不匹配应失败")
	}
	if hits.Load() == 0 {
		t.Fatalf("应访问镜像")
	}
	if !strings.Contains(stdErrBuffer().String(), "数据集加载失败") {
		t.Fatalf("错误输出不正确: %s", stdErrBuffer().String())
	}
	matches, _ := filepath.Glob(filepath.Join(baseDir, "mnist", "*"))
	if len(matches) != 0 {
		t.Fatalf("校验失败时不应写入文件: %v", matches)
	}
}
