package deploy

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/cuemby/modelctl/pkg/types"
)

// ToolLocator finds external commands
type ToolLocator interface {
	LookPath(name string) (string, error)
}

// PathLocator finds commands on $PATH
type PathLocator struct{}

// LookPath implements ToolLocator
func (PathLocator) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// checkPrerequisites checks every required tool and the session credential
// before failing, so the report lists everything to fix at once. The
// session is verified only when a credential was found.
func (o *Orchestrator) checkPrerequisites(ctx context.Context, r *run) (stageResult, error) {
	var failures []*StageError
	found := make([]string, 0, len(o.opts.RequiredTools))

	for _, tool := range o.opts.RequiredTools {
		path, err := o.opts.Tools.LookPath(tool)
		if err != nil {
			failures = append(failures, newStageError(types.StagePrerequisites, KindMissingTool, err,
				"required command %s not found in PATH", tool))
			continue
		}
		r.logger.Debug().Str("tool", tool).Str("path", path).Msg("Found required command")
		found = append(found, tool)
	}

	credential, err := o.opts.Credentials(o.opts.Kubeconfig)
	if err != nil {
		failures = append(failures, newStageError(types.StagePrerequisites, KindMissingTool, err,
			"no cluster session credential found"))
	}

	var user string
	if err == nil {
		r.logger.Debug().Str("credential", credential).Msg("Found session credential")
		user, err = o.opts.Cluster.Authenticate(ctx)
		if err != nil {
			failures = append(failures, newStageError(types.StagePrerequisites, KindNotAuthenticated, err,
				"no authenticated cluster session"))
		}
	}

	if len(failures) > 0 {
		kind := KindMissingTool
		for _, f := range failures {
			if f.Kind == KindNotAuthenticated {
				kind = KindNotAuthenticated
			}
		}
		msgs := make([]string, 0, len(failures))
		for _, f := range failures {
			msgs = append(msgs, f.Message)
		}
		se := newStageError(types.StagePrerequisites, kind, nil, "%d prerequisite(s) not met: %s",
			len(failures), strings.Join(msgs, "; "))
		se.Causes = failures
		return stageResult{}, se
	}

	message := fmt.Sprintf("found %s", strings.Join(found, ", "))
	if user != "" {
		message += "; authenticated as " + user
	} else {
		message += "; session verified"
	}
	return succeeded(message), nil
}
