package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"

	domain "github.com/haliard/binsight/internal/domain/scans"
)

// Runner invokes containerized analysis tools against a stored artifact.
// Each tool writes a JSON report the runner decodes into the domain types;
// the engine treats both as pure functions of the artifact.
type Runner struct {
	StaticImage  string
	DynamicImage string
}

func NewRunner(staticImage, dynamicImage string) *Runner {
	return &Runner{
		StaticImage:  staticImage,
		DynamicImage: dynamicImage,
	}
}

// StaticAnalyze runs the PE/strings/entropy extractor container.
func (r *Runner) StaticAnalyze(ctx context.Context, ref domain.ArtifactRef) (*domain.StaticAnalysis, error) {
	var out domain.StaticAnalysis
	if err := r.runTool(ctx, r.StaticImage, "static", ref, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DynamicAnalyze runs the sandbox execution container.
func (r *Runner) DynamicAnalyze(ctx context.Context, ref domain.ArtifactRef) (*domain.DynamicAnalysis, error) {
	var out domain.DynamicAnalysis
	if err := r.runTool(ctx, r.DynamicImage, "dynamic", ref, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Runner) runTool(ctx context.Context, image, kind string, ref domain.ArtifactRef, report any) error {
	if image == "" {
		return fmt.Errorf("no %s analyzer image configured", kind)
	}

	tempDir := filepath.Join(".", "temp")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return err
	}
	// rand's global source is lock-protected; static and dynamic run concurrently
	reportPath := filepath.Join(tempDir, fmt.Sprintf("%s-%d.json", kind, rand.Int()))

	cmd := exec.CommandContext(ctx, "docker", "run", "--rm",
		"--network", "none",
		"-v", fmt.Sprintf("%s:/out", filepath.Dir(reportPath)),
		image,
		"--artifact", ref.URL,
		"--report", "/out/"+filepath.Base(reportPath),
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("%s analyzer exit %d: %s", kind, ee.ExitCode(), string(out))
		}
		return fmt.Errorf("%s analyzer: %v, output=%s", kind, err, string(out))
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		return fmt.Errorf("read %s report: %w", kind, err)
	}
	defer os.Remove(reportPath)

	if err := json.Unmarshal(data, report); err != nil {
		return fmt.Errorf("decode %s report: %w", kind, err)
	}
	return nil
}
