// Package advisor turns an optimization result into a short narrative brief
// for planners, using the Anthropic API. It is optional: without an API key
// the planner simply prints the numeric summary.
package advisor

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodshed/siteplan/internal/model"
	"github.com/foodshed/siteplan/internal/report"
)

const systemPrompt = `You are an operations analyst for a food-bank network.
Given the metrics of a facility-placement plan, write a brief (under 200
words) for the program director: what the plan achieves, where coverage is
thin, and what to consider before committing the budget. Plain prose, no
headings.`

// Completer abstracts the model call so tests can stub it.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Advisor generates narrative briefs.
type Advisor struct {
	completer Completer
	model     string
}

// New creates an Advisor backed by the Anthropic API. Returns nil when no
// API key is configured; callers treat a nil Advisor as disabled.
func New(apiKey, model string) *Advisor {
	if apiKey == "" {
		return nil
	}
	return &Advisor{
		completer: &sdkCompleter{
			client: sdk.NewClient(option.WithAPIKey(apiKey)),
			model:  model,
		},
		model: model,
	}
}

// NewWithCompleter creates an Advisor with a custom Completer, for tests.
func NewWithCompleter(c Completer) *Advisor {
	return &Advisor{completer: c}
}

// Narrate produces a brief for the given result.
func (a *Advisor) Narrate(ctx context.Context, dataset string, res *model.OptimizationResult) (string, error) {
	prompt := buildPrompt(dataset, res)

	out, err := a.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return "", err
	}

	zap.L().Debug("advisor: narrative generated",
		zap.String("dataset", dataset),
		zap.String("model", a.model),
		zap.Int("chars", len(out)),
	)
	return out, nil
}

func buildPrompt(dataset string, res *model.OptimizationResult) string {
	var b strings.Builder
	b.WriteString("Plan metrics:\n")
	b.WriteString(report.Text(dataset, res))

	depots := res.Depots()
	if len(depots) > 0 {
		b.WriteString("\nDepot sites:\n")
		for _, d := range depots {
			fmt.Fprintf(&b, "  %s at (%.4f, %.4f), radius %.1f mi, serves %d distribution points\n",
				d.ID, d.Lat, d.Lon, d.ServiceRadius, len(d.ServedFacilityIDs))
		}
	}
	return b.String()
}

type sdkCompleter struct {
	client sdk.Client
	model  string
}

func (c *sdkCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: 1024,
		System:    []sdk.TextBlockParam{{Text: system}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	})
	if err != nil {
		return "", eris.Wrap(err, "advisor: create message")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
