package infra

import (
	"log/slog"

	"bloodbank-ops/internal/pkg/errs"
)

type RepositoryErrorKind string

type RepositoryError struct {
	Kind RepositoryErrorKind
	msg  string
	err  error // wrapped low-level error
}

func (e RepositoryError) Error() string {
	if e.err != nil {
		return string(e.Kind) + ": " + e.msg + ": " + e.err.Error()
	}
	return string(e.Kind) + ": " + e.msg
}

func (e RepositoryError) Unwrap() error {
	return e.err
}

// WrapRepoErr builds a RepositoryError carrying the matching category mark so
// use cases can test it with errs.Is without knowing about infra.
func WrapRepoErr(slogger *slog.Logger, kind RepositoryErrorKind, msg string, err error) error {
	logArgs := []any{
		slog.String("kind", string(kind)),
	}
	if err != nil {
		logArgs = append(logArgs, slog.String("error", err.Error()))
	}

	switch kind {
	case KindNotFound, KindConflict:
		slogger.Debug("Repository error: "+msg, logArgs...)
	case KindUnavailable:
		slogger.Warn("Repository error: "+msg, logArgs...)
	default:
		slogger.Error("Repository error: "+msg, logArgs...)
	}

	if err != nil {
		err = errs.Wrap(err, msg)
	}

	repoErr := RepositoryError{Kind: kind, msg: msg, err: err}
	if category := kind.category(); category != nil {
		return errs.Mark(repoErr, category)
	}
	return repoErr
}

func IsKind(err error, kind RepositoryErrorKind) bool {
	var e RepositoryError
	if errs.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Infrastructure-specific error kinds
const (
	KindNotFound    RepositoryErrorKind = "NOT_FOUND"
	KindConflict    RepositoryErrorKind = "CONFLICT"
	KindUnavailable RepositoryErrorKind = "UNAVAILABLE"
	KindDBFailure   RepositoryErrorKind = "DB_FAILURE"
)

// category maps a kind onto the shared taxonomy. DB_FAILURE stays unmarked
// and is never retried.
func (k RepositoryErrorKind) category() error {
	switch k {
	case KindNotFound:
		return errs.ErrNotFound
	case KindConflict:
		return errs.ErrConflict
	case KindUnavailable:
		return errs.ErrStoreUnavailable
	default:
		return nil
	}
}
