package log

import (
	"context"
	"log/slog"

	cerrors "github.com/cockroachdb/errors"

	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

// ErrFmtHandler decorates records carrying an ErrAttr with the stack trace
// recorded by cockroachdb/errors and the structured fields of this module's
// error types (operation, column, parameter, model name).
type ErrFmtHandler struct {
	handler slog.Handler
}

// WrapByErrFmtHandler wraps handler with ErrFmtHandler.
func WrapByErrFmtHandler(handler slog.Handler) slog.Handler {
	return &ErrFmtHandler{handler: handler}
}

func (eh *ErrFmtHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return eh.handler.Enabled(ctx, l)
}

func (eh *ErrFmtHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == ErrAttrKey {
			err, _ = attr.Value.Any().(error)
			return false
		}
		return true
	})
	if err != nil {
		if st := extractStacktrace(err); st != "" {
			r.AddAttrs(slog.String(StacktraceAttrKey, st))
		}
		r.AddAttrs(errorAttrs(err)...)
	}
	return eh.handler.Handle(ctx, r)
}

func (eh *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithAttrs(attrs)}
}

func (eh *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithGroup(g)}
}

// extractStacktrace returns the outermost stack trace in the chain. Layers
// added by fmt.Errorf("%w") carry none and are skipped.
func extractStacktrace(err error) string {
	for e := err; e != nil; e = cerrors.UnwrapOnce(e) {
		if details := cerrors.GetSafeDetails(e).SafeDetails; len(details) > 0 && details[0] != "" {
			return details[0]
		}
	}
	return ""
}

// errorAttrs maps the first typed error found in the chain to attributes.
func errorAttrs(err error) []slog.Attr {
	var (
		schemaErr    *errors.SchemaError
		validErr     *errors.ValidationError
		dimErr       *errors.DimensionError
		notFittedErr *errors.NotFittedError
		valueErr     *errors.ValueError
		modelErr     *errors.ModelError
	)
	switch {
	case errors.As(err, &schemaErr):
		return []slog.Attr{
			slog.String(ErrorTypeKey, "SchemaError"),
			slog.String(ErrorCodeKey, ErrorSchema),
			slog.String(ErrorOpKey, schemaErr.Op),
			slog.String(ErrorColumnKey, schemaErr.Column),
		}
	case errors.As(err, &validErr):
		return []slog.Attr{
			slog.String(ErrorTypeKey, "ValidationError"),
			slog.String(ErrorParamKey, validErr.ParamName),
		}
	case errors.As(err, &dimErr):
		return []slog.Attr{
			slog.String(ErrorTypeKey, "DimensionError"),
			slog.String(ErrorCodeKey, ErrorDimensionMismatch),
			slog.String(ErrorOpKey, dimErr.Op),
		}
	case errors.As(err, &notFittedErr):
		return []slog.Attr{
			slog.String(ErrorTypeKey, "NotFittedError"),
			slog.String(ErrorCodeKey, ErrorNotFitted),
			slog.String(ModelNameKey, notFittedErr.ModelName),
		}
	case errors.As(err, &valueErr):
		return []slog.Attr{
			slog.String(ErrorTypeKey, "ValueError"),
			slog.String(ErrorOpKey, valueErr.Op),
		}
	case errors.As(err, &modelErr):
		attrs := []slog.Attr{
			slog.String(ErrorTypeKey, "ModelError"),
			slog.String(ErrorOpKey, modelErr.Op),
		}
		if errors.Is(err, errors.ErrEmptyData) {
			attrs = append(attrs, slog.String(ErrorCodeKey, ErrorEmptyData))
		}
		return attrs
	}
	return nil
}
