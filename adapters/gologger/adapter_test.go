package gologger

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

func TestNewLoggersFallbackOrder(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	if got := NewLoggers(provider, loggerOnly).Root().(*capturingLogger); got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}

	fromLogger := NewLoggers(nil, loggerOnly)
	if got := fromLogger.Root().(*capturingLogger); got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if fromLogger.Provider() == nil {
		t.Fatalf("expected provider wrapper from logger")
	}

	if NewLoggers(nil, nil).Component(ComponentHTTP) == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestLoggersComponentNames(t *testing.T) {
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	if got := ComponentName(" scheduler. "); got != "costhook.scheduler" {
		t.Fatalf("expected costhook.scheduler, got %q", got)
	}
	if got := ComponentName(""); got != RootName {
		t.Fatalf("expected root name, got %q", got)
	}

	logger := NewLoggers(provider, nil).Component(ComponentScheduler)
	if logger != glog.Logger(providerLogger) {
		t.Fatalf("expected provider logger for component")
	}
	if provider.names[len(provider.names)-1] != "costhook.scheduler" {
		t.Fatalf("expected component name lookup, got %#v", provider.names)
	}
	if Component(provider, nil, ComponentJobs) != glog.Logger(providerLogger) {
		t.Fatalf("expected one-shot component lookup")
	}
}

func TestLoggersBridgeToGoJob(t *testing.T) {
	providerLogger := &capturingLogger{id: "provider"}
	loggers := NewLoggers(&capturingProvider{logger: providerLogger}, nil)

	jobProvider := loggers.JobProvider()
	if jobProvider == nil {
		t.Fatalf("expected go-job provider bridge")
	}
	jobProvider.GetLogger(ComponentName(ComponentJobs)).Info("hello", "k", "v")
	if providerLogger.lastInfo.msg != "hello" {
		t.Fatalf("expected bridged message, got %q", providerLogger.lastInfo.msg)
	}
	if args := providerLogger.lastInfo.args; args[0] != "k" || args[1] != "v" {
		t.Fatalf("expected bridged args, got %#v", args)
	}

	loggers.JobLogger(ComponentJobs).Info("job", "attempt", 2)
	if providerLogger.lastInfo.msg != "job" {
		t.Fatalf("expected component job logger bridge, got %q", providerLogger.lastInfo.msg)
	}
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger *capturingLogger
	names  []string
}

func (p *capturingProvider) GetLogger(name string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	p.names = append(p.names, name)
	return p.logger
}

type infoCall struct {
	msg  string
	args []any
}

type capturingLogger struct {
	id       string
	lastInfo infoCall
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) Info(msg string, args ...any) {
	l.lastInfo = infoCall{
		msg:  msg,
		args: append([]any(nil), args...),
	}
}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
