package domain

import "errors"

// Kind classifies a failure. Every kind maps to exactly one process exit code.
type Kind uint8

const (
	// KindUnknown is the kind of any error that carries no classification.
	KindUnknown Kind = iota
	// KindGemfileNotFound means no manifest could be located.
	KindGemfileNotFound
	// KindGemNotFound means a name is absent from every source.
	KindGemNotFound
	// KindVersionConflict means the constraints cannot be satisfied together.
	KindVersionConflict
	// KindGemfileError means the root declarations are malformed or contradictory.
	KindGemfileError
	// KindPathError means a path source could not produce its listing or artifact.
	KindPathError
	// KindGitError means a git source could not produce its listing or artifact.
	KindGitError
	// KindDeprecated means a removed option or setting was used.
	KindDeprecated
	// KindGemspecError means a specification's own metadata is malformed.
	KindGemspecError
	// KindInstallError means one or more specifications failed to materialize.
	KindInstallError
	// KindInternal means an internal consistency fault, never a user error.
	KindInternal
)

var kindNames = [...]string{
	KindUnknown:         "Unknown",
	KindGemfileNotFound: "GemfileNotFound",
	KindGemNotFound:     "GemNotFound",
	KindVersionConflict: "VersionConflict",
	KindGemfileError:    "GemfileError",
	KindPathError:       "PathError",
	KindGitError:        "GitError",
	KindDeprecated:      "Deprecated",
	KindGemspecError:    "GemspecError",
	KindInstallError:    "InstallError",
	KindInternal:        "Internal",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// ExitCode returns the stable process exit status for the kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindGemfileNotFound:
		return 10
	case KindGemNotFound:
		return 7
	case KindVersionConflict:
		return 6
	case KindGemfileError:
		return 4
	case KindPathError:
		return 13
	case KindGitError:
		return 11
	case KindDeprecated:
		return 12
	case KindGemspecError:
		return 14
	case KindInstallError:
		return 5
	case KindInternal, KindUnknown:
		return 1
	default:
		return 1
	}
}

// Error is a classified sentinel error.
type Error struct {
	kind Kind
	msg  string
}

func newError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Error implements the error interface.
func (e *Error) Error() string { return e.msg }

// Message returns the message without any cause chain.
func (e *Error) Message() string { return e.msg }

// Kind returns the classification of the sentinel.
func (e *Error) Kind() Kind { return e.kind }

// Wrap returns an error that reports e's message and kind while keeping cause
// reachable through errors.Unwrap.
func (e *Error) Wrap(cause error) error {
	if cause == nil {
		return e
	}
	return &wrappedError{sentinel: e, cause: cause}
}

type wrappedError struct {
	sentinel *Error
	cause    error
}

func (w *wrappedError) Error() string   { return w.sentinel.msg + ": " + w.cause.Error() }
func (w *wrappedError) Message() string { return w.sentinel.msg }
func (w *wrappedError) Kind() Kind      { return w.sentinel.kind }
func (w *wrappedError) Unwrap() error   { return w.cause }
func (w *wrappedError) Is(target error) bool {
	return target == w.sentinel
}

type kinded interface {
	Kind() Kind
}

// KindOf returns the kind of the outermost classified error in err's tree.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// ExitCode maps err to a process exit status. A nil error maps to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}

var (
	// ErrGemfileNotFound is returned when no manifest exists in the working directory or its parents.
	ErrGemfileNotFound = newError(KindGemfileNotFound, "could not locate Bundlefile")

	// ErrGemfileInvalid is returned when the manifest cannot be parsed.
	ErrGemfileInvalid = newError(KindGemfileError, "malformed Bundlefile")

	// ErrGemfileExists is returned by init when a manifest is already present.
	ErrGemfileExists = newError(KindGemfileError, "Bundlefile already exists")

	// ErrInvalidRequirement is returned when a version requirement cannot be parsed.
	ErrInvalidRequirement = newError(KindGemfileError, "invalid version requirement")

	// ErrInvalidVersion is returned when a version string is malformed.
	ErrInvalidVersion = newError(KindGemfileError, "malformed version number")

	// ErrConflictingDeclaration is returned when the same gem is declared twice with different sources.
	ErrConflictingDeclaration = newError(KindGemfileError, "gem is declared more than once with different sources")

	// ErrUnknownSource is returned when a dependency pins a source that the manifest does not declare.
	ErrUnknownSource = newError(KindGemfileError, "dependency references an undeclared source")

	// ErrSourceUnavailable is returned when a declared source cannot be reached or is misconfigured.
	ErrSourceUnavailable = newError(KindGemfileError, "source is unreachable or misconfigured")

	// ErrLockfileInvalid is returned when the lock file cannot be parsed.
	ErrLockfileInvalid = newError(KindGemfileError, "malformed lock file")

	// ErrLockOutOfDate is returned in frozen mode when the manifest no longer matches the lock.
	ErrLockOutOfDate = newError(KindGemfileError, "the Bundlefile changed since the lock file was written")

	// ErrInvalidSetting is returned when a setting holds an unusable value.
	ErrInvalidSetting = newError(KindGemfileError, "invalid setting")

	// ErrGemNotFound is returned when a name is absent from every source.
	ErrGemNotFound = newError(KindGemNotFound, "could not find gem in any of the sources")

	// ErrGemNotInstalled is returned by check when a locked gem is missing on disk.
	ErrGemNotInstalled = newError(KindGemNotFound, "gem is not installed")

	// ErrVersionConflict is returned when no assignment satisfies every requirement.
	ErrVersionConflict = newError(KindVersionConflict, "could not find compatible versions")

	// ErrResolutionTooComplex is returned when the search exceeds its step budget.
	ErrResolutionTooComplex = newError(KindVersionConflict, "resolution exceeded the maximum number of steps")

	// ErrPathSource is returned when a path source cannot list or materialize its gem.
	ErrPathSource = newError(KindPathError, "path source failed")

	// ErrGitSource is returned when a git source cannot list or materialize its gems.
	ErrGitSource = newError(KindGitError, "git source failed")

	// ErrDeprecatedOption is returned when a removed option is used.
	ErrDeprecatedOption = newError(KindDeprecated, "option is no longer supported")

	// ErrGemspecInvalid is returned when a specification's metadata is malformed.
	ErrGemspecInvalid = newError(KindGemspecError, "gem specification is malformed")

	// ErrInstallFailed is returned when one or more gems could not be installed.
	ErrInstallFailed = newError(KindInstallError, "failed to install gems")

	// ErrMaterializeFailed is returned when a single gem could not be materialized.
	ErrMaterializeFailed = newError(KindInstallError, "failed to materialize gem")

	// ErrChecksumMismatch is returned when a downloaded artifact does not match its advertised digest.
	ErrChecksumMismatch = newError(KindInstallError, "gem checksum does not match the source index")

	// ErrDependencyCycle is returned when a resolved set contains a dependency cycle.
	ErrDependencyCycle = newError(KindInternal, "dependency cycle detected in resolved set")

	// ErrIncompleteSpecSet is returned when a resolved set violates its closure property.
	ErrIncompleteSpecSet = newError(KindInternal, "resolved set is not closed under its dependencies")

	// ErrLockAcquireFailed is returned when the install lock cannot be taken.
	ErrLockAcquireFailed = newError(KindInternal, "failed to acquire install lock")

	// ErrLockfileWriteFailed is returned when the lock file cannot be written.
	ErrLockfileWriteFailed = newError(KindInternal, "failed to write lock file")

	// ErrLockfileReadFailed is returned when the lock file exists but cannot be read.
	ErrLockfileReadFailed = newError(KindInternal, "failed to read lock file")

	// ErrSettingsReadFailed is returned when a settings file exists but cannot be parsed.
	ErrSettingsReadFailed = newError(KindInternal, "failed to read settings")

	// ErrCacheCreateFailed is returned when a cache directory cannot be created.
	ErrCacheCreateFailed = newError(KindInternal, "failed to create cache directory")

	// ErrRenderFailed is returned when the dependency graph cannot be rendered.
	ErrRenderFailed = newError(KindInternal, "failed to render dependency graph")

	// ErrCommandFailed is returned when exec cannot start the requested command.
	ErrCommandFailed = newError(KindInternal, "failed to run command")
)
