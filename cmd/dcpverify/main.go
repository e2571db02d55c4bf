// Command dcpverify runs the DCP conformance checker over one or more
// package directories and reports its notes as structured log lines.
//
// This is a minimal worked example wiring the ambient logging stack to
// pkg/verify, not a general-purpose CLI framework — see SPEC_FULL.md's
// Non-goals.
//
// Run: go run ./cmd/dcpverify [-config file.yaml] dir [dir ...]
package main

import (
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/mart-jansink/libdcp/pkg/verify"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config overriding verifier tolerances")
	prod := flag.Bool("prod", false, "use zap's production (JSON) encoder instead of the development console one")
	flag.Parse()

	dirs := flag.Args()
	if len(dirs) == 0 {
		os.Stderr.WriteString("usage: dcpverify [-config file.yaml] dir [dir ...]\n")
		os.Exit(2)
	}

	logger, err := newLogger(*prod)
	if err != nil {
		os.Stderr.WriteString("dcpverify: failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	fc, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", *configPath), zap.Error(err))
	}

	cfg := verify.Config{
		SchemaDir:                     fc.SchemaDir,
		IgnoreIncorrectPictureMxfType: fc.IgnoreIncorrectPictureMxfType,
		ProgressPollInterval:          fc.ProgressPollInterval,
		DigestBufferSize:              fc.DigestBufferSize,
		PictureFrameRate:              fc.PictureFrameRate,
	}

	stageCB := func(stage verify.Stage) {
		logger.Info("entering stage", zap.String("stage", string(stage)))
	}

	notes := verify.Run(dirs, cfg, stageCB, nil)

	errorCount := 0
	for _, n := range notes {
		fields := []zap.Field{
			zap.String("code", string(n.Code)),
			zap.String("severity", n.Severity.String()),
		}
		if n.File != "" {
			fields = append(fields, zap.String("file", n.File))
		}
		if n.Line > 0 {
			fields = append(fields, zap.Int("line", n.Line))
		}

		switch n.Severity {
		case verify.SeverityError, verify.SeverityBv21Error:
			errorCount++
			logger.Error(n.Text, fields...)
		default:
			logger.Warn(n.Text, fields...)
		}
	}

	logger.Info("verification complete", zap.Int("dirs", len(dirs)), zap.Int("notes", len(notes)), zap.Int("errors", errorCount))
	if errorCount > 0 {
		os.Exit(1)
	}
}

func newLogger(prod bool) (*zap.Logger, error) {
	if prod {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
