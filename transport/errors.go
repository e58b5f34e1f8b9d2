package transport

import (
	"errors"

	"github.com/goliatone/go-costhook/core"
	goerrors "github.com/goliatone/go-errors"
)

// Stage names the step of an outbound call that failed. Providers use it to
// tell a malformed request apart from a vendor that could not be reached.
type Stage string

const (
	StageConfigure Stage = "configure"
	StageBuild     Stage = "build"
	StageSend      Stage = "send"
	StageRead      Stage = "read"
)

func (s Stage) category() goerrors.Category {
	switch s {
	case StageBuild:
		return goerrors.CategoryBadInput
	case StageSend, StageRead:
		return goerrors.CategoryExternal
	default:
		return goerrors.CategoryInternal
	}
}

// stageError builds the envelope for a failed stage. The HTTP and text codes
// come from the service error mapping so transport and service agree.
func stageError(stage Stage, message string, cause error, metadata map[string]any) *goerrors.Error {
	var err *goerrors.Error
	if cause != nil {
		err = goerrors.Wrap(cause, stage.category(), message)
	} else {
		err = goerrors.New(message, stage.category())
	}
	fields := map[string]any{"adapter": KindREST, "stage": string(stage)}
	for key, value := range metadata {
		fields[key] = value
	}
	return core.MapError(err.WithMetadata(fields))
}

// StageOf reports the failed stage of a transport error, if any.
func StageOf(err error) (Stage, bool) {
	var rich *goerrors.Error
	if !errors.As(err, &rich) || rich.Metadata == nil {
		return "", false
	}
	stage, ok := rich.Metadata["stage"].(string)
	return Stage(stage), ok && stage != ""
}
