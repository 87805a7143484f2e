package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/brimdata/conclave/codegen/python"
	"github.com/brimdata/conclave/job"
	"go.uber.org/zap"
)

// Python runs a generated python job with the local interpreter.
type Python struct {
	Interpreter string
	Logger      *zap.Logger
}

func NewPython(logger *zap.Logger) *Python {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Python{Interpreter: "python3", Logger: logger}
}

func (p *Python) Dispatch(ctx context.Context, j *job.Job) error {
	script := filepath.Join(j.CodeDir, python.File)
	cmd := exec.CommandContext(ctx, p.Interpreter, script)
	cmd.Dir = j.CodeDir
	out, err := cmd.CombinedOutput()
	p.Logger.Debug("python job finished",
		zap.String("job", j.Name),
		zap.ByteString("output", out),
		zap.Error(err),
	)
	if err != nil {
		return fmt.Errorf("%s: %w: %s", script, err, out)
	}
	return nil
}
