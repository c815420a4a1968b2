package connector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/lsm/sinkforge/internal/tracing"
)

// buildFile derives the sink's output path and claims it exclusively. Only
// the name is claimed: the empty file handle is closed immediately and the
// writer subsystem opens and appends to the path on its own. Creation uses
// the filesystem's atomic create-new semantics, so two concurrent builds of
// the same derived path cannot both succeed.
func (b *Builder) buildFile(ctx context.Context, sb *FileSinkBuilder, id SinkID) (SinkConnector, error) {
	ctx, span := tracing.StartSpan(ctx, b.tracer, tracing.SpanBuildFile,
		trace.WithAttributes(
			tracing.SinkIDAttr(string(id)),
			tracing.SinkKindAttr("file"),
		),
	)
	defer span.End()

	path, err := deriveSinkFilePath(sb.Path, id, sb.FileNameSuffix)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(tracing.FilePathAttr(path))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			err = fmt.Errorf("%w: %s", ErrSinkFileExists, path)
		} else {
			err = fmt.Errorf("create sink file %s: %w", path, err)
		}
		tracing.SetSpanError(span, err)
		return nil, err
	}
	if err := f.Close(); err != nil {
		tracing.SetSpanError(span, err)
		return nil, fmt.Errorf("close sink file %s: %w", path, err)
	}

	b.logger.Info(ctx, "file sink provisioned", "sink_id", string(id), "path", path)
	tracing.SetSpanOK(span)

	return &FileSinkConnector{
		Path:      path,
		ValueDesc: sb.ValueDesc,
	}, nil
}

// deriveSinkFilePath builds <dir>/<stem>-<id>-<suffix>[.<ext>] from the base
// path, preserving the parent directory and the original extension. It is
// pure: no filesystem calls, so a missing stem fails before anything is
// touched on disk.
func deriveSinkFilePath(base string, id SinkID, suffix string) (string, error) {
	if base == "" || strings.HasSuffix(base, string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathMissingFileStem, base)
	}

	name := filepath.Base(base)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrPathMissingFileStem, base)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		// Dotfiles like ".avro" are all stem, no extension.
		stem, ext = ext, ""
	}
	if stem == "" {
		return "", fmt.Errorf("%w: %q", ErrPathMissingFileStem, base)
	}

	derived := fmt.Sprintf("%s-%s-%s%s", stem, id, suffix, ext)
	return filepath.Join(filepath.Dir(base), derived), nil
}
