package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/doc-investigator/internal/cache"
	"github.com/sells-group/doc-investigator/internal/document"
	"github.com/sells-group/doc-investigator/internal/export"
	"github.com/sells-group/doc-investigator/internal/investigator"
	"github.com/sells-group/doc-investigator/internal/llm"
	"github.com/sells-group/doc-investigator/internal/report"
	"github.com/sells-group/doc-investigator/internal/store"
	anthropicpkg "github.com/sells-group/doc-investigator/pkg/anthropic"
)

// appEnv holds the components shared by ask, serve and the analytics
// commands.
type appEnv struct {
	Store        store.Store
	Cache        *cache.ResponseCache
	Investigator *investigator.Investigator // nil for store-only modes
	Evaluator    *investigator.Evaluator
	Exporter     *export.Exporter
	Reports      *report.Generator
	ExportPath   string
	ReportDir    string
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp opens the store and wires the analytics components. Modes "ask"
// and "serve" also build the document processor and the Claude client.
// Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	env := newAppEnv(st)
	if mode == "store" {
		return env, nil
	}

	if !anthropicpkg.Priced(cfg.Anthropic.Model) {
		zap.L().Warn("no price entry for model, usage logs will carry no cost",
			zap.String("model", cfg.Anthropic.Model))
	}
	completer := llm.New(anthropicpkg.NewClient(cfg.Anthropic.Key), llm.Config{
		Model:             cfg.Anthropic.Model,
		MaxTokens:         cfg.Anthropic.MaxTokens,
		Temperature:       cfg.Anthropic.Temperature,
		TopP:              cfg.Anthropic.TopP,
		RequestsPerMinute: cfg.Anthropic.RequestsPerMinute,
		Timeout:           time.Duration(cfg.Anthropic.TimeoutSecs) * time.Second,
	})
	env.Investigator = investigator.New(newProcessor(), env.Cache, st, completer, investigator.Options{
		UnknownAnswer:    cfg.Investigator.UnknownAnswer,
		NotAllowedAnswer: cfg.Investigator.NotAllowedAnswer,
		NoReasonGiven:    cfg.Investigator.NoReasonGiven,
	})
	return env, nil
}

func newAppEnv(st store.Store) *appEnv {
	return &appEnv{
		Store:      st,
		Cache:      cache.New(st),
		Evaluator:  investigator.NewEvaluator(st, cfg.Investigator.NoReasonGiven),
		Exporter:   export.New(st),
		Reports:    report.NewGenerator(cfg.Report.Title),
		ExportPath: cfg.Export.Path,
		ReportDir:  cfg.Report.OutputDir,
	}
}

func newProcessor() *document.Processor {
	return document.NewProcessor(document.Options{
		SupportedTypes:  cfg.Investigator.SupportedTypes,
		MaxContextChars: cfg.Investigator.MaxContextChars,
		PDFExtractor:    cfg.Document.PDFExtractor,
		PdfToTextPath:   cfg.Document.PdfToTextPath,
	})
}
