// Package render expands ${VAR} references in notification subjects and
// messages.
//
// Rendering is best effort. Unknown variables stay in the output verbatim and
// any failure while computing the variables returns the template unchanged.
package render

import (
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"snsnotify/internal/build"
	"snsnotify/internal/logging"
)

// MaxSubjectLength is the SNS subject limit, in characters.
const MaxSubjectLength = 100

// RootURLUnset stands in for the server root when none is configured.
const RootURLUnset = "(Global build server url not set)"

// Synthesized variable names.
const (
	VarBuildURL           = "BUILD_URL"
	VarBuildPhase         = "BUILD_PHASE"
	VarBuildResult        = "BUILD_RESULT"
	VarBuildDuration      = "BUILD_DURATION"
	VarBuildArtifactPaths = "BUILD_ARTIFACT_PATHS"
)

var macroPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.]+)\}`)

// EnvironmentSource computes the environment-style variables of a build.
type EnvironmentSource interface {
	Environment(ev build.Event) (map[string]string, error)
}

// EnvironmentFunc adapts a function to EnvironmentSource.
type EnvironmentFunc func(ev build.Event) (map[string]string, error)

// Environment implements EnvironmentSource.
func (f EnvironmentFunc) Environment(ev build.Event) (map[string]string, error) {
	return f(ev)
}

// EventEnvironment uses only the environment carried on the event.
func EventEnvironment() EnvironmentSource {
	return EnvironmentFunc(func(ev build.Event) (map[string]string, error) {
		return maps.Clone(ev.Environment), nil
	})
}

// ProcessEnvironment layers the event environment over the current process
// environment. The CLI uses it so templates can reference variables exported
// by the calling build script.
func ProcessEnvironment() EnvironmentSource {
	return EnvironmentFunc(func(ev build.Event) (map[string]string, error) {
		env := make(map[string]string, len(ev.Environment)+32)
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || key == "" {
				continue
			}
			env[key] = value
		}
		maps.Copy(env, ev.Environment)
		return env, nil
	})
}

// Renderer expands templates against a build event.
type Renderer struct {
	env    EnvironmentSource
	logger *slog.Logger
}

// New returns a renderer. A nil env uses EventEnvironment.
func New(env EnvironmentSource, logger *slog.Logger) *Renderer {
	if env == nil {
		env = EventEnvironment()
	}
	return &Renderer{env: env, logger: logging.NewComponentLogger(logger, "render")}
}

// Render substitutes build variables first and environment variables second.
// extra seeds the environment pass and is overridden by the build environment;
// the synthesized BUILD_* keys override both.
func (r *Renderer) Render(tmpl string, ev build.Event, extra map[string]string) (out string) {
	if !strings.Contains(tmpl, "${") {
		return tmpl
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.warn(tmpl, ev, fmt.Errorf("panic: %v", rec))
			out = tmpl
		}
	}()

	env, err := r.environment(ev, extra)
	if err != nil {
		r.warn(tmpl, ev, err)
		return tmpl
	}
	return Expand(Expand(tmpl, ev.Variables), env)
}

// Subject renders the subject line. A blank template produces
// "Build <RESULT>: <display name>". The result never exceeds MaxSubjectLength
// characters; longer values are cut without an ellipsis.
func (r *Renderer) Subject(tmpl string, ev build.Event, extra map[string]string) string {
	var subject string
	if strings.TrimSpace(tmpl) == "" {
		subject = DefaultSubject(ev)
	} else {
		subject = r.Render(tmpl, ev, extra)
	}
	return Truncate(subject, MaxSubjectLength)
}

// Message renders the message body from the job template, falling back to
// fallback when the job template is blank.
func (r *Renderer) Message(tmpl, fallback string, ev build.Event, extra map[string]string) string {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = fallback
	}
	return r.Render(tmpl, ev, extra)
}

func (r *Renderer) environment(ev build.Event, extra map[string]string) (map[string]string, error) {
	computed, err := r.env.Environment(ev)
	if err != nil {
		return nil, fmt.Errorf("compute build environment: %w", err)
	}
	env := make(map[string]string, len(extra)+len(computed)+4)
	maps.Copy(env, extra)
	maps.Copy(env, computed)
	env[VarBuildPhase] = string(ev.Phase)
	env[VarBuildArtifactPaths] = strings.Join(ev.ArtifactPaths, "\n")
	env[VarBuildResult] = ev.ResultLabel()
	env[VarBuildDuration] = strconv.FormatInt(ev.DurationMillis, 10)
	return env, nil
}

func (r *Renderer) warn(tmpl string, ev build.Event, err error) {
	logging.WarnWithContext(r.logger, "unable to resolve template variables", "render_failed",
		logging.Job(ev.Job),
		logging.BuildNumber(ev.Number),
		logging.String("template", tmpl),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the build environment supplied with the event"),
		logging.String(logging.FieldImpact, "template sent without variable substitution"),
	)
}

// Expand replaces ${NAME} with vars[NAME]. Unknown names are left as-is and
// substituted values are not expanded again.
func Expand(tmpl string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(tmpl, "${") {
		return tmpl
	}
	return macroPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := match[2 : len(match)-1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}

// DefaultSubject is "Build <STARTED|RESULT>: <full display name>".
func DefaultSubject(ev build.Event) string {
	return fmt.Sprintf("Build %s: %s", ev.ResultLabel(), ev.FullDisplayName())
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// BuildURL joins the server root and the build's relative URL and encodes the
// path. An absolute build URL is returned as-is after encoding. Without a root
// the RootURLUnset placeholder takes its place, and a build without a URL
// yields the root alone, so BUILD_URL is always defined.
func BuildURL(rootURL, buildURL string) string {
	buildURL = strings.TrimSpace(buildURL)
	if parsed, err := url.Parse(buildURL); err == nil && parsed.IsAbs() {
		return parsed.String()
	}
	rel := (&url.URL{Path: strings.TrimLeft(buildURL, "/")}).EscapedPath()
	rootURL = strings.TrimSpace(rootURL)
	if rootURL == "" {
		return RootURLUnset + "/" + rel
	}
	return strings.TrimRight(rootURL, "/") + "/" + rel
}
