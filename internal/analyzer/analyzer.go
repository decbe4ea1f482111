package analyzer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"post-or-nah/backend/internal/ai"
	"post-or-nah/backend/internal/util"
	"post-or-nah/backend/internal/verdict"
	"post-or-nah/backend/internal/vibe"
)

const (
	defaultTimeout             = 25 * time.Second
	defaultTemperature float32 = 0.2
)

// Config bounds each model call. A nil Temperature means the default; an
// explicit zero is sent as zero.
type Config struct {
	Temperature     *float32
	MaxOutputTokens int32
	Timeout         time.Duration
}

// Input is one photo review request.
type Input struct {
	RequestID   string
	ImageBase64 string
	MIMEType    string
	Category    string
}

// Result is the outcome of one review. Raw holds the provider response on
// success, the original error text on failure, or a fallback marker.
type Result struct {
	RequestID string
	Vibe      vibe.Key
	Verdict   verdict.Verdict
	Model     string
	Raw       any
	LatencyMs int64
}

// Analyzer runs the normalize → prompt → model → parse pipeline. It keeps no
// per-request state and is safe for concurrent use.
type Analyzer struct {
	model  ai.Model
	parser *verdict.Parser
	cfg    Config
}

var diagnostics = map[ai.FailureKind]string{
	ai.FailureNotConfigured: "Photo reviews aren't set up on the server yet. Please try again later.",
	ai.FailureAuth:          "The review service couldn't sign in. Please try again later.",
	ai.FailureTimeout:       "The review took too long. Check your connection and try again.",
	ai.FailureNetwork:       "Couldn't reach the review service. Check your connection and try again.",
	ai.FailureProvider:      "The review service had a problem. Please try again in a moment.",
}

// Diagnostic returns the user-facing message for kind.
func Diagnostic(kind ai.FailureKind) string {
	if msg, ok := diagnostics[kind]; ok {
		return msg
	}
	return diagnostics[ai.FailureProvider]
}

// New builds an analyzer. A nil model behaves like ai.Disabled and a nil
// parser uses verdict.NewParser.
func New(model ai.Model, parser *verdict.Parser, cfg Config) *Analyzer {
	if model == nil {
		model = ai.Disabled
	}
	if parser == nil {
		parser = verdict.NewParser()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Temperature == nil {
		t := defaultTemperature
		cfg.Temperature = &t
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 300
	}
	if !model.Enabled() {
		logrus.WithField("model", model.Name()).Warn("model client not configured; reviews will return Error verdicts")
	}
	return &Analyzer{model: model, parser: parser, cfg: cfg}
}

// ModelName reports the configured model.
func (a *Analyzer) ModelName() string {
	return a.model.Name()
}

// ModelEnabled reports whether reviews reach a real model.
func (a *Analyzer) ModelEnabled() bool {
	return a.model.Enabled()
}

// Analyze reviews one photo. The only errors are ErrMissingImage and
// ErrInvalidImage; every other outcome, model failures included, is a Result.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (Result, error) {
	sw := util.StartStopwatch()

	img, err := ParseImage(in.ImageBase64, in.MIMEType)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		RequestID: in.RequestID,
		Vibe:      vibe.Normalize(in.Category),
		Model:     a.model.Name(),
	}
	if result.RequestID == "" {
		result.RequestID = uuid.NewString()
	}
	log := logrus.WithFields(logrus.Fields{
		"request_id": result.RequestID,
		"vibe":       result.Vibe,
		"model":      result.Model,
		"mime":       img.MIMEType,
		"bytes":      len(img.Data),
	})

	if !a.model.Enabled() {
		result.Verdict = verdict.ErrorVerdict(Diagnostic(ai.FailureNotConfigured))
		result.Raw = ai.ErrDisabled.Error()
		result.LatencyMs = sw.ElapsedMs()
		return result, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	reply, err := a.model.Generate(callCtx, ai.Request{
		Image:           img.Data,
		MIMEType:        img.MIMEType,
		Prompt:          result.Vibe.Prompt(),
		Temperature:     *a.cfg.Temperature,
		MaxOutputTokens: a.cfg.MaxOutputTokens,
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(err, context.DeadlineExceeded)
		}
		kind := ai.Classify(err)
		log.WithError(err).WithField("failure", kind).Warn("model call failed")
		result.Verdict = verdict.ErrorVerdict(Diagnostic(kind))
		result.Raw = err.Error()
		result.LatencyMs = sw.ElapsedMs()
		return result, nil
	}

	result.Verdict = a.parser.Parse(reply.Text)
	if reply.Model != "" {
		result.Model = reply.Model
	}
	result.Raw = reply.Raw
	if result.Verdict.Source == verdict.SourceFallback {
		result.Raw = map[string]any{
			"fallback":      true,
			"reason":        "empty model reply",
			"finish_reason": reply.FinishReason,
		}
	}
	result.LatencyMs = sw.ElapsedMs()
	log.WithFields(logrus.Fields{
		"verdict":    result.Verdict.Label,
		"source":     result.Verdict.Source,
		"latency_ms": result.LatencyMs,
	}).Info("photo reviewed")
	return result, nil
}
