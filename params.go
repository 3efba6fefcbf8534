package mftasks

import (
	"errors"

	modellib "github.com/ygrebnov/model"

	"github.com/ygrebnov/mftasks/mfconfig"
)

// ErrInvalidParams is joined with the validation error when task params are
// rejected before any config is resolved or written.
var ErrInvalidParams = errors.New("invalid task params")

// MaterializeParams are the inputs of the materialize task.
type MaterializeParams struct {
	// MaterializationName names the materialization to build. Required.
	MaterializationName string
	// StartTime and EndTime bound the time range; formats are checked by
	// the MetricFlow client.
	StartTime string
	EndTime   string
	// Config is persisted at the resolved path when non-zero.
	Config mfconfig.Value
	// ConfigFilePath overrides the default MetricFlow config path.
	ConfigFilePath string
}

// DropParams are the inputs of the drop-materialization task.
type DropParams struct {
	MaterializationName string
	Config              mfconfig.Value
	ConfigFilePath      string
}

type target struct {
	MaterializationName string `validate:"nonempty"`
}

func validateName(name string) error {
	t := target{MaterializationName: name}
	mdl, err := modellib.New(
		&t,
		modellib.WithRules[target, string](modellib.BuiltinStringRules()),
	)
	if err != nil {
		return err
	}
	if err := mdl.Validate(); err != nil {
		return errors.Join(ErrInvalidParams, err)
	}
	return nil
}
