// Package gologger names and resolves the glog loggers used by the costhook
// runtime, and bridges them to go-job.
package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// RootName prefixes every component logger name.
const RootName = "costhook"

// Runtime component names. Each resolves to "costhook.<name>".
const (
	ComponentServe     = "serve"
	ComponentService   = "service"
	ComponentScheduler = "scheduler"
	ComponentJobs      = "jobs"
	ComponentHTTP      = "http"
)

// ComponentName returns "costhook.<component>", or RootName for a blank component.
func ComponentName(component string) string {
	component = strings.Trim(strings.TrimSpace(component), ".")
	if component == "" {
		return RootName
	}
	return RootName + "." + component
}

// Loggers resolves component loggers from one provider. A missing provider
// falls back to the root logger, then to a nop logger.
type Loggers struct {
	provider glog.LoggerProvider
	root     glog.Logger
}

func NewLoggers(provider glog.LoggerProvider, fallback glog.Logger) Loggers {
	provider, root := glog.Resolve(RootName, provider, fallback)
	return Loggers{provider: provider, root: glog.Ensure(root)}
}

func (l Loggers) Provider() glog.LoggerProvider {
	return l.provider
}

func (l Loggers) Root() glog.Logger {
	return glog.Ensure(l.root)
}

// Component returns the named logger for one runtime component.
func (l Loggers) Component(component string) glog.Logger {
	if l.provider != nil {
		if named := l.provider.GetLogger(ComponentName(component)); named != nil {
			return named
		}
	}
	return l.Root()
}

// Component is a one-shot NewLoggers(provider, fallback).Component(component).
func Component(provider glog.LoggerProvider, fallback glog.Logger, component string) glog.Logger {
	return NewLoggers(provider, fallback).Component(component)
}

// JobProvider exposes the provider through the go-job logger contract.
func (l Loggers) JobProvider() job.LoggerProvider {
	if l.provider == nil {
		return nil
	}
	return job.GoLoggerProvider(l.provider)
}

// JobLogger exposes one component logger through the go-job contract.
func (l Loggers) JobLogger(component string) job.Logger {
	return job.GoLogger(l.Component(component))
}
