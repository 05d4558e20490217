// Package xlog is a small leveled logger with per-package log levels,
// adapted from dolly's xlog package for use inside the lockdown client.
//
// Copyright 2018, Denis Issoupov
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package xlog

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel controls verbosity.
type LogLevel int

// Supported levels, most to least severe.
const (
	CRITICAL LogLevel = iota
	ERROR
	WARNING
	NOTICE
	INFO
	DEBUG
	TRACE
)

var levelNames = map[LogLevel]string{
	CRITICAL: "CRITICAL",
	ERROR:    "ERROR",
	WARNING:  "WARNING",
	NOTICE:   "NOTICE",
	INFO:     "INFO",
	DEBUG:    "DEBUG",
	TRACE:    "TRACE",
}

// Logger is the interface every component in this module logs through.
type Logger interface {
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Error(entries ...interface{})
	Errorf(format string, args ...interface{})

	Warning(entries ...interface{})
	Warningf(format string, args ...interface{})

	Notice(entries ...interface{})
	Noticef(format string, args ...interface{})

	Info(entries ...interface{})
	Infof(format string, args ...interface{})

	Debug(entries ...interface{})
	Debugf(format string, args ...interface{})

	Trace(entries ...interface{})
	Tracef(format string, args ...interface{})

	// WithValues returns a Logger that prepends the given key/value pairs
	// to every subsequent entry.
	WithValues(keysAndValues ...interface{}) Logger
}

var (
	mu        sync.Mutex
	output    = log.New(os.Stderr, "", log.LstdFlags)
	levelFlag = DEBUG
)

// SetOutput redirects every PackageLogger's output, e.g. to a
// lumberjack.Logger for rotation.
func SetOutput(w *log.Logger) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// SetGlobalLogLevel sets the level floor applied to every PackageLogger
// that was not given its own level via SetPackageLogLevel.
func SetGlobalLogLevel(l LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	levelFlag = l
}

// PackageLogger logs on behalf of a single package, at its own level.
type PackageLogger struct {
	module string
	pkg    string
	level  LogLevel
	values []interface{}
}

// NewPackageLogger returns a logger tagged with module/pkg, e.g.
// xlog.NewPackageLogger("github.com/go-phorce/lockdown", "ca").
func NewPackageLogger(module, pkg string) *PackageLogger {
	return &PackageLogger{module: module, pkg: pkg, level: -1}
}

// SetPackageLogLevel overrides the level for this one logger, independent
// of the global level.
func (p *PackageLogger) SetPackageLogLevel(l LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	p.level = l
}

func (p *PackageLogger) effectiveLevel() LogLevel {
	mu.Lock()
	defer mu.Unlock()
	if p.level >= 0 {
		return p.level
	}
	return levelFlag
}

// WithValues returns a logger that prepends keysAndValues to every entry.
func (p *PackageLogger) WithValues(keysAndValues ...interface{}) Logger {
	return &PackageLogger{
		module: p.module,
		pkg:    p.pkg,
		level:  p.level,
		values: append(append([]interface{}{}, p.values...), keysAndValues...),
	}
}

func (p *PackageLogger) write(l LogLevel, s string) {
	if l != CRITICAL && p.effectiveLevel() < l {
		return
	}
	prefix := fmt.Sprintf("[%s] %s: ", levelNames[l], p.pkg)
	if len(p.values) > 0 {
		prefix += flatten(p.values...) + ", "
	}
	mu.Lock()
	defer mu.Unlock()
	output.Output(3, prefix+s)
}

func flatten(entries ...interface{}) string {
	parts := make([]string, 0, len(entries)/2)
	for i := 0; i+1 < len(entries); i += 2 {
		parts = append(parts, fmt.Sprintf("%v=%v", entries[i], entries[i+1]))
	}
	return strings.Join(parts, ", ")
}

// Fatal logs at CRITICAL and exits the process.
func (p *PackageLogger) Fatal(args ...interface{}) {
	p.write(CRITICAL, fmt.Sprint(args...))
	os.Exit(1)
}

// Fatalf logs at CRITICAL and exits the process.
func (p *PackageLogger) Fatalf(format string, args ...interface{}) {
	p.write(CRITICAL, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Panic logs at CRITICAL and panics, for programmer errors (bad
// construction arguments) rather than runtime conditions Fatal covers.
func (p *PackageLogger) Panic(args ...interface{}) {
	s := fmt.Sprint(args...)
	p.write(CRITICAL, s)
	panic(s)
}

// Panicf logs at CRITICAL and panics.
func (p *PackageLogger) Panicf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	p.write(CRITICAL, s)
	panic(s)
}

// Error logs at ERROR.
func (p *PackageLogger) Error(entries ...interface{}) { p.write(ERROR, fmt.Sprint(entries...)) }

// Errorf logs at ERROR.
func (p *PackageLogger) Errorf(format string, args ...interface{}) {
	p.write(ERROR, fmt.Sprintf(format, args...))
}

// Warning logs at WARNING.
func (p *PackageLogger) Warning(entries ...interface{}) { p.write(WARNING, fmt.Sprint(entries...)) }

// Warningf logs at WARNING.
func (p *PackageLogger) Warningf(format string, args ...interface{}) {
	p.write(WARNING, fmt.Sprintf(format, args...))
}

// Notice logs at NOTICE.
func (p *PackageLogger) Notice(entries ...interface{}) { p.write(NOTICE, fmt.Sprint(entries...)) }

// Noticef logs at NOTICE.
func (p *PackageLogger) Noticef(format string, args ...interface{}) {
	p.write(NOTICE, fmt.Sprintf(format, args...))
}

// Info logs at INFO.
func (p *PackageLogger) Info(entries ...interface{}) { p.write(INFO, fmt.Sprint(entries...)) }

// Infof logs at INFO.
func (p *PackageLogger) Infof(format string, args ...interface{}) {
	p.write(INFO, fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG.
func (p *PackageLogger) Debug(entries ...interface{}) { p.write(DEBUG, fmt.Sprint(entries...)) }

// Debugf logs at DEBUG.
func (p *PackageLogger) Debugf(format string, args ...interface{}) {
	p.write(DEBUG, fmt.Sprintf(format, args...))
}

// Trace logs at TRACE.
func (p *PackageLogger) Trace(entries ...interface{}) { p.write(TRACE, fmt.Sprint(entries...)) }

// Tracef logs at TRACE.
func (p *PackageLogger) Tracef(format string, args ...interface{}) {
	p.write(TRACE, fmt.Sprintf(format, args...))
}
