package docker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

const (
	defaultImage = "aquasec/trivy:latest"
	dbRepository = "public.ecr.aws/aquasecurity/trivy-db"
	javaDBRepo   = "public.ecr.aws/aquasecurity/trivy-java-db"
)

var severityLevels = []string{"UNKNOWN", "LOW", "MEDIUM", "HIGH", "CRITICAL"}

// Runner runs trivy in docker and writes one JSON report per category.
type Runner struct {
	Image       string // trivy image
	MinSeverity string // lowest severity kept for code/container scans
	Log         *zap.Logger
}

func NewRunner(image, minSeverity string, log *zap.Logger) *Runner {
	if image == "" {
		image = defaultImage
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{Image: image, MinSeverity: minSeverity, Log: log}
}

func (r *Runner) Run(ctx context.Context, req findings.RunRequest) (findings.RunResult, error) {
	start := time.Now()

	// cluster scans take hours; an existing report is reused
	if req.Category == findings.CategoryKubernetes {
		if _, err := os.Stat(req.ReportPath); err == nil {
			r.Log.Info("kubernetes report exists, scan skipped", zap.String("report", req.ReportPath))
			return findings.RunResult{ReportPath: req.ReportPath, Skipped: true}, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(req.ReportPath), 0o755); err != nil {
		return findings.RunResult{}, err
	}

	args, err := r.Args(req)
	if err != nil {
		return findings.RunResult{}, err
	}
	cmd := exec.CommandContext(ctx, "docker", args...)

	// jalankan docker command
	out, err := cmd.CombinedOutput()
	duration := time.Since(start).Milliseconds()

	exitCode := 0
	if err != nil {
		// ambil exit code
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			return findings.RunResult{}, fmt.Errorf("run error: %v, output=%s", err, string(out))
		}
		exitCode = ee.ExitCode()
		r.Log.Warn("trivy exited non-zero", zap.String("category", string(req.Category)), zap.Int("exit_code", exitCode), zap.ByteString("output", tail(out, 2048)))
	}

	if _, err := os.Stat(req.ReportPath); err != nil {
		return findings.RunResult{ExitCode: exitCode, DurationMS: duration}, fmt.Errorf("output file %s not found, scanner may have failed: %w", req.ReportPath, err)
	}
	return findings.RunResult{ReportPath: req.ReportPath, ExitCode: exitCode, DurationMS: duration}, nil
}

// Args builds the docker argument list for a category. The report directory is
// mounted at /out and the scan target at /target.
func (r *Runner) Args(req findings.RunRequest) ([]string, error) {
	outDir, err := filepath.Abs(filepath.Dir(req.ReportPath))
	if err != nil {
		return nil, err
	}
	report := "/out/" + filepath.Base(req.ReportPath)
	args := []string{"run", "--rm", "-v", outDir + ":/out"}

	switch req.Category {
	case findings.CategoryCode:
		if req.Target == "" {
			return nil, errors.New("code scan needs a folder")
		}
		src, err := filepath.Abs(req.Target)
		if err != nil {
			return nil, err
		}
		args = append(args, "-v", src+":/target:ro", r.Image,
			"fs", "--scanners", "vuln,secret,misconfig", "--format", "json",
			"--db-repository", dbRepository, "--java-db-repository", javaDBRepo,
			"--output", report, "--severity", r.severities(), "/target")

	case findings.CategoryContainer:
		if req.Target == "" {
			return nil, errors.New("container scan needs an image tarball")
		}
		tarball, err := filepath.Abs(req.Target)
		if err != nil {
			return nil, err
		}
		args = append(args, "-v", tarball+":/target/image.tar:ro", r.Image,
			"image", "--scanners", "vuln,secret,misconfig", "--format", "json",
			"--db-repository", dbRepository, "--java-db-repository", javaDBRepo,
			"--output", report, "--severity", r.severities(), "--input", "/target/image.tar")

	case findings.CategoryKubernetes:
		args = append(args, "--network", "host")
		k8s := []string{"k8s", "--report", "all", "--db-repository", dbRepository,
			"--disable-node-collector", "--timeout", "2h", "--skip-images", "--qps", "40",
			"--format", "json", "--output", report}
		if req.Target != "" {
			kubeconfig, err := filepath.Abs(req.Target)
			if err != nil {
				return nil, err
			}
			args = append(args, "-v", kubeconfig+":/target/kubeconfig:ro")
			k8s = append(k8s, "--kubeconfig", "/target/kubeconfig")
		}
		args = append(args, r.Image)
		args = append(args, k8s...)

	case findings.CategoryAWS:
		for _, env := range []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN", "AWS_PROFILE"} {
			args = append(args, "-e", env)
		}
		region := req.Target
		if region == "" {
			region = "us-east-1"
		}
		args = append(args, r.Image, "aws", "--region", region, "--format", "json", "--output", report)

	default:
		return nil, fmt.Errorf("unsupported category: %s", req.Category)
	}
	return args, nil
}

// severities lists MinSeverity and everything above it; HIGH,CRITICAL when unset or invalid.
func (r *Runner) severities() string {
	for i, l := range severityLevels {
		if strings.EqualFold(l, r.MinSeverity) {
			return strings.Join(severityLevels[i:], ",")
		}
	}
	return "HIGH,CRITICAL"
}

func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
