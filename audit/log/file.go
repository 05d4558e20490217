// Package log provides an implementation of audit.Auditor that writes
// audit entries to a rotated local log file, for callers (such as
// cmd/lockdownctl) that want a persistent record of pairing/session
// lifecycle events without standing up a collection service.
package log

import (
	"log"
	"os"
	"path/filepath"

	"github.com/go-phorce/lockdown/audit"
	"github.com/juju/errors"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// New return a new instance of an Auditor that writes audit entries to a local log file
func New(fileprefix, directory string, maxAgeDays int, maxSizeMb int) (audit.Auditor, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, errors.Trace(err)
	}
	res := fileAuditor{
		fileWriter: lumberjack.Logger{
			Filename: filepath.Join(directory, fileprefix),
			MaxAge:   maxAgeDays,
			MaxSize:  maxSizeMb,
		},
	}
	res.logger = log.New(&res.fileWriter, "", log.Ldate|log.Ltime|log.LUTC)
	return &res, nil
}

type fileAuditor struct {
	fileWriter lumberjack.Logger
	logger     *log.Logger
}

func (f *fileAuditor) Close() error {
	return f.fileWriter.Close()
}

// Event logs e in the following format:
// {source}:{type}:{identity}:{contextID}:{message}
func (f *fileAuditor) Event(e audit.Event) {
	f.logger.Printf("%s:%s:%s:%s:%s\n",
		e.Source(), e.EventType(), e.Identity(), e.ContextID(), e.Message())
}
